package pipeline

import (
	"context"
	"net/http"
	"time"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/facts"
	"edge-gateway/internal/geoip"
	"edge-gateway/internal/models"
)

// RouteResolver finds a route or returns nil.
type RouteResolver interface {
	Get(ctx context.Context, switchName, domain, path string) *models.Route
}

// SettingsResolver finds an owner's settings or returns nil.
type SettingsResolver interface {
	Get(ctx context.Context, ownerID string) *models.UserSettings
}

// Locator resolves client IPs to locations.
type Locator interface {
	Lookup(ip string) (geoip.Record, bool)
}

// Options are the collaborators of a Router. Routes is required.
type Options struct {
	Routes   RouteResolver
	Settings SettingsResolver
	Locator  Locator
	// ParseAgent defaults to facts.ParseUserAgent.
	ParseAgent func(string) facts.Agent
	Debug      *facts.DebugOverride
	// Timeout bounds each flow. Zero means no deadline.
	Timeout time.Duration
	Now     func() time.Time
	Logger  logging.Logger
}

// Router runs requests through the registered modules.
type Router struct {
	modules    []Module
	routes     RouteResolver
	settings   SettingsResolver
	locator    Locator
	parseAgent func(string) facts.Agent
	debug      *facts.DebugOverride
	timeout    time.Duration
	now        func() time.Time
	logger     logging.Logger
}

// NewRouter creates a router running modules in the given order.
func NewRouter(opts Options, modules ...Module) *Router {
	r := &Router{
		modules:    modules,
		routes:     opts.Routes,
		settings:   opts.Settings,
		locator:    opts.Locator,
		parseAgent: opts.ParseAgent,
		debug:      opts.Debug,
		timeout:    opts.Timeout,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if r.parseAgent == nil {
		r.parseAgent = facts.ParseUserAgent
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = logging.Component("flow")
	}
	return r
}

// Handle extracts the request facts and runs the flow. The result is never nil.
func (r *Router) Handle(ctx context.Context, req *http.Request) *Result {
	return r.Run(ctx, facts.Extract(req, r.debug))
}

// Run runs the flow for already extracted request facts.
func (r *Router) Run(ctx context.Context, req facts.Request) *Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	c := newContext(ctx, r, req)

	for _, m := range r.modules {
		if flow := m.Init(c); flow.kind == flowBreak {
			return r.finish(c)
		}
	}

	if !c.mainRoute.Resolved() {
		c.SetMainRoute(r.routes.Get(ctx, models.MainSwitch, req.Host, req.Path))
	}

	r.walk(c)
	return r.finish(c)
}

// walk advances through the steps in order until End or a Break.
func (r *Router) walk(c *Context) {
	step := StepStart
	for {
		c.step = step
		next := step + 1

	modules:
		for _, m := range r.modules {
			flow := hook(m, step, c)
			switch flow.kind {
			case flowBreak:
				r.logger.Debug("Flow stopped",
					logging.String("module", m.Name()),
					logging.String("step", step.String()),
				)
				return
			case flowJump:
				if flow.target <= step {
					r.logger.Warn("Backward jump stops the flow",
						logging.String("module", m.Name()),
						logging.String("step", step.String()),
						logging.String("target", flow.target.String()),
					)
					return
				}
				next = flow.target
				break modules
			}
		}

		if step == StepBuildResult && c.Result == nil {
			c.Result = defaultResult(c)
		}
		if step >= StepEnd {
			return
		}
		step = next
	}
}

func (r *Router) finish(c *Context) *Result {
	if c.Result == nil {
		c.Result = NotFound("")
	}
	return c.Result
}

// defaultResult answers from the outbound route when no module did.
func defaultResult(c *Context) *Result {
	out := c.OutRoute
	dest := c.Destination()
	if out == nil || dest == "" {
		return NotFound("")
	}

	switch {
	case out.Terminal == models.TerminalInternal:
		return Proxy(dest)
	case out.Format == models.FormatNative:
		return Native(dest)
	}

	res := Redirect(dest, out.RedirectStatus())
	res.CacheTTL = out.CacheTTL()
	return res
}
