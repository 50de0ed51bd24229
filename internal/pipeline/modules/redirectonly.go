package modules

import (
	"net/http"

	"edge-gateway/internal/pipeline"
)

// RedirectOnly skips registration for requests that must not be counted.
type RedirectOnly struct {
	pipeline.BaseModule
}

func NewRedirectOnly() *RedirectOnly {
	return &RedirectOnly{}
}

func (m *RedirectOnly) Name() string { return "redirect_only" }

func (m *RedirectOnly) OnStart(c *pipeline.Context) pipeline.Flow {
	if skipRegistration(c) {
		c.SetFact(pipeline.FactRedirectOnly, true)
	}
	return pipeline.Continue()
}

func (m *RedirectOnly) OnRegister(c *pipeline.Context) pipeline.Flow {
	if c.FactBool(pipeline.FactRedirectOnly) {
		return pipeline.JumpTo(pipeline.StepBuildResult)
	}
	return pipeline.Continue()
}

func skipRegistration(c *pipeline.Context) bool {
	main, _ := c.MainRoute()
	if main == nil || c.Request.Method == http.MethodHead {
		return true
	}
	if main.Properties.OwnerID == "" {
		return true
	}
	return !c.OwnerSettings().TrackingAllowed()
}
