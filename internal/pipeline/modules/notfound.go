package modules

import (
	"edge-gateway/internal/pipeline"
)

// BlockedOwner is the blocked_reason of routes whose owner account is blocked.
const BlockedOwner = "owner_blocked"

// NotFound ends the flow for requests without a usable main route. Blocked
// routes and routes of blocked owners count as missing.
type NotFound struct {
	pipeline.BaseModule
	urlTemplate string
}

// NewNotFound redirects misses to urlTemplate, or renders a 404 page when it is empty.
func NewNotFound(urlTemplate string) *NotFound {
	return &NotFound{urlTemplate: urlTemplate}
}

func (m *NotFound) Name() string { return "not_found" }

func (m *NotFound) OnStart(c *pipeline.Context) pipeline.Flow {
	main, _ := c.MainRoute()
	switch {
	case main == nil:
	case main.Blocked():
		c.SetFact(pipeline.FactBlockedReason, main.Status.Reason)
	case c.OwnerSettings().Blocked():
		c.SetFact(pipeline.FactBlockedReason, BlockedOwner)
	default:
		return pipeline.Continue()
	}

	c.SetFact(pipeline.FactNotFound, true)

	location := ""
	if m.urlTemplate != "" {
		location = ExpandHost(m.urlTemplate, c.Request.Host)
	}
	c.Result = pipeline.NotFound(location)
	return pipeline.JumpTo(pipeline.StepEnd)
}

func (m *NotFound) OnEnd(c *pipeline.Context) pipeline.Flow {
	if c.FactBool(pipeline.FactNotFound) {
		return pipeline.Break()
	}
	return pipeline.Continue()
}
