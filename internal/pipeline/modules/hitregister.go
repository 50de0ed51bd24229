package modules

import (
	"context"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
	"edge-gateway/internal/pipeline"
)

// HitRegistrar accepts click telemetry.
type HitRegistrar interface {
	Register(ctx context.Context, hit models.Hit) error
}

// HitRegister records a click for every request that reaches Register.
type HitRegister struct {
	pipeline.BaseModule
	registrar HitRegistrar
	logger    logging.Logger
}

func NewHitRegister(registrar HitRegistrar, logger logging.Logger) *HitRegister {
	if logger == nil {
		logger = logging.Component("hits")
	}
	return &HitRegister{registrar: registrar, logger: logger}
}

func (m *HitRegister) Name() string { return "hit_register" }

func (m *HitRegister) OnRegister(c *pipeline.Context) pipeline.Flow {
	out := c.OutRoute
	if out == nil {
		return pipeline.Continue()
	}

	agent := c.Agent()
	hit := models.Hit{
		OwnerID:      out.Properties.OwnerID,
		CreatorID:    out.Properties.CreatorID,
		RouteID:      out.Properties.RouteID,
		WorkspaceID:  out.Properties.WorkspaceID,
		Destination:  c.Destination(),
		IP:           c.Request.ClientIP,
		OSFamily:     agent.OSFamily,
		OSVersion:    agent.OSVersion,
		UAFamily:     agent.UAFamily,
		UAVersion:    agent.UAVersion,
		DeviceBrand:  agent.DeviceBrand,
		DeviceFamily: agent.DeviceFamily,
		DeviceModel:  agent.DeviceModel,
		IsBot:        agent.IsBot,
		CreatedAt:    c.Now().UTC(),
	}
	if loc, ok := c.Location(); ok {
		hit.Continent = loc.Continent
		hit.Country = loc.Country
		hit.Location = &models.Location{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			City:      loc.City,
		}
	}

	if err := m.registrar.Register(c.Context(), hit); err != nil {
		m.logger.Error("Failed to register hit", err,
			logging.String("route_id", hit.RouteID),
			logging.String("domain", c.Request.Host),
		)
	}
	return pipeline.Continue()
}
