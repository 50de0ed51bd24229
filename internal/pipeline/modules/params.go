package modules

import (
	"net/url"
	"strings"

	"github.com/samber/lo"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/pipeline"
)

// Params forwards query parameters the owner allow-listed onto the
// destination and exposes the owner's debug flag.
//
// A request parameter is forwarded when it is in allowed_request_params. If
// the destination already carries that key, it is only overwritten when the
// key is also in allowed_destination_params.
type Params struct {
	pipeline.BaseModule
	logger logging.Logger
}

func NewParams(logger logging.Logger) *Params {
	if logger == nil {
		logger = logging.Component("params")
	}
	return &Params{logger: logger}
}

func (m *Params) Name() string { return "params" }

func (m *Params) OnURLExtract(c *pipeline.Context) pipeline.Flow {
	settings := c.OwnerSettings()
	if settings == nil {
		return pipeline.Continue()
	}
	c.SetFact(pipeline.FactDebug, settings.Debug)

	if len(settings.AllowedRequestParams) == 0 || len(c.Request.Query) == 0 {
		return pipeline.Continue()
	}
	dest := c.Destination()
	if dest == "" {
		return pipeline.Continue()
	}

	u, err := url.Parse(dest)
	if err != nil {
		m.logger.Warn("Destination is not a valid URL", logging.String("destination", dest), logging.Err(err))
		return pipeline.Continue()
	}

	query := u.Query()
	changed := false
	for key, values := range c.Request.Query {
		if !containsFold(settings.AllowedRequestParams, key) {
			continue
		}
		if query.Has(key) && !containsFold(settings.AllowedDestinationParams, key) {
			continue
		}
		query[key] = values
		changed = true
	}
	if changed {
		u.RawQuery = query.Encode()
		c.SetDestination(u.String())
	}
	return pipeline.Continue()
}

func containsFold(list []string, key string) bool {
	return lo.ContainsBy(list, func(item string) bool { return strings.EqualFold(item, key) })
}
