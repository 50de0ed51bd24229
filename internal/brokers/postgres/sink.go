// Package postgres writes hits into a table with COPY.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edge-gateway/internal/brokers/base"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
)

type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}
	if c.Table == "" {
		return fmt.Errorf("postgres table is required")
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 4
	}
	return nil
}

func (c *Config) GetType() string { return "postgres" }

// GetConnectionString omits credentials.
func (c *Config) GetConnectionString() string {
	cfg, err := pgx.ParseConfig(c.DSN)
	if err != nil {
		return "postgres://***"
	}
	return fmt.Sprintf("postgres://%s:%d/%s/%s", cfg.Host, cfg.Port, cfg.Database, c.Table)
}

// Columns is the COPY column list, in row order.
var Columns = []string{
	"id", "owner_id", "creator_id", "route_id", "workspace_id", "destination", "ip",
	"continent", "country", "latitude", "longitude", "city",
	"os_family", "os_version", "ua_family", "ua_version",
	"device_brand", "device_family", "device_model",
	"session_first_seen", "session_clicks", "is_unique", "is_bot", "created_at",
}

type pool interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

type Sink struct {
	*base.BaseBroker
	config *Config
	pool   pool
}

func NewSink(ctx context.Context, config *Config) (*Sink, error) {
	bb, err := base.NewBaseBroker("postgres", config)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid postgres DSN: %v", err))
	}
	poolConfig.MaxConns = config.MaxConns

	p, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.ConnectionError("failed to create postgres pool", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, errors.ConnectionError("failed to connect to postgres", err)
	}

	return &Sink{BaseBroker: bb, config: config, pool: p}, nil
}

func row(h models.Hit) []any {
	var lat, lon *float64
	var city string
	if h.Location != nil {
		lat, lon, city = &h.Location.Latitude, &h.Location.Longitude, h.Location.City
	}
	return []any{
		h.ID, h.OwnerID, h.CreatorID, h.RouteID, h.WorkspaceID, h.Destination, h.IP,
		h.Continent, h.Country, lat, lon, city,
		h.OSFamily, h.OSVersion, h.UAFamily, h.UAVersion,
		h.DeviceBrand, h.DeviceFamily, h.DeviceModel,
		h.SessionFirstSeen, h.SessionClicks, h.IsUnique, h.IsBot, h.CreatedAt,
	}
}

// Process copies the batch in one statement.
func (s *Sink) Process(ctx context.Context, batch []models.Hit) error {
	if len(batch) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
		return row(batch[i]), nil
	})

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.config.Table}, Columns, src)
	if err != nil {
		return base.PublishError("postgres", s.config.Table, err)
	}
	if int(n) != len(batch) {
		s.GetLogger().Warn("Short copy",
			logging.Int64("copied", n),
			logging.Int("batch", len(batch)),
		)
	}
	return nil
}

func (s *Sink) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.ConnectionError("postgres ping failed", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}
