package pipeline

import (
	"context"
	"time"

	"edge-gateway/internal/facts"
	"edge-gateway/internal/geoip"
	"edge-gateway/internal/models"
	"edge-gateway/internal/routing"
)

// Well-known keys of the context fact bag.
const (
	FactNotFound      = "404"
	FactRedirectOnly  = "redirect_only"
	FactRoot          = "root"
	FactBlockedReason = "blocked_reason"
	FactMatchedSwitch = "matched_switch"
	FactDebug         = "debug"
)

// Context is the state of one request walking the flow. It implements
// routing.FactSource; client facts are derived on first use only.
type Context struct {
	ctx    context.Context
	router *Router

	step    Step
	Request facts.Request

	mainRoute Lazy[*models.Route]
	// OutRoute is the route the request leaves through. It starts as the
	// main route and may be replaced by policy modules.
	OutRoute    *models.Route
	destination string

	agent    Lazy[facts.Agent]
	location Lazy[geoip.Record]
	settings Lazy[*models.UserSettings]

	facts map[string]any

	Result *Result
}

var _ routing.FactSource = (*Context)(nil)

func newContext(ctx context.Context, router *Router, req facts.Request) *Context {
	return &Context{
		ctx:     ctx,
		router:  router,
		step:    StepInitial,
		Request: req,
		facts:   make(map[string]any),
	}
}

// Context returns the request context.
func (c *Context) Context() context.Context { return c.ctx }

// Step returns the step being walked.
func (c *Context) Step() Step { return c.step }

// MainRoute returns the main route and whether it has been resolved yet.
func (c *Context) MainRoute() (*models.Route, bool) {
	route, _ := c.mainRoute.Peek()
	return route, c.mainRoute.Resolved()
}

// SetMainRoute pre-resolves the main route, which suppresses the lookup the
// router would otherwise do. A nil route means "no route".
func (c *Context) SetMainRoute(route *models.Route) {
	c.mainRoute.Set(route, route != nil)
	c.OutRoute = route
}

// ResolveRoute looks up the request's domain and path under another switch.
func (c *Context) ResolveRoute(switchName string) *models.Route {
	return c.router.routes.Get(c.ctx, switchName, c.Request.Host, c.Request.Path)
}

// Destination is the outbound URL, including any rewrite by modules.
func (c *Context) Destination() string {
	if c.destination != "" {
		return c.destination
	}
	return c.OutRoute.DestinationURL()
}

// SetDestination overrides the outbound URL.
func (c *Context) SetDestination(url string) {
	c.destination = url
}

// SetFact stores a value in the fact bag.
func (c *Context) SetFact(key string, value any) {
	c.facts[key] = value
}

// Fact returns a value from the fact bag.
func (c *Context) Fact(key string) (any, bool) {
	v, ok := c.facts[key]
	return v, ok
}

// FactBool returns a boolean fact, false when absent.
func (c *Context) FactBool(key string) bool {
	v, _ := c.facts[key].(bool)
	return v
}

// FactString returns a string fact, "" when absent.
func (c *Context) FactString(key string) string {
	v, _ := c.facts[key].(string)
	return v
}

// Agent returns the parsed user agent.
func (c *Context) Agent() facts.Agent {
	agent, _ := c.agent.Get(func() (facts.Agent, bool) {
		return c.router.parseAgent(c.Request.UserAgent), true
	})
	return agent
}

// Location returns the client location, if known.
func (c *Context) Location() (geoip.Record, bool) {
	return c.location.Get(func() (geoip.Record, bool) {
		if c.router.locator == nil {
			return geoip.Record{}, false
		}
		return c.router.locator.Lookup(c.Request.ClientIP)
	})
}

// ClientFactsLoaded reports which lazy client facts have been derived.
func (c *Context) ClientFactsLoaded() routing.Facts {
	var loaded routing.Facts
	if c.agent.Resolved() {
		loaded |= routing.FactUserAgent | routing.FactOS | routing.FactDevice
	}
	if c.location.Resolved() {
		loaded |= routing.FactLocation
	}
	return loaded
}

// Preload derives the given client facts now.
func (c *Context) Preload(need routing.Facts) {
	if need.Has(routing.FactUserAgent) || need.Has(routing.FactOS) || need.Has(routing.FactDevice) {
		c.Agent()
	}
	if need.Has(routing.FactLocation) {
		c.Location()
	}
}

// OwnerSettings returns the settings of the main route's owner, or nil.
func (c *Context) OwnerSettings() *models.UserSettings {
	us, _ := c.settings.Get(func() (*models.UserSettings, bool) {
		main, _ := c.MainRoute()
		if main == nil || c.router.settings == nil {
			return nil, false
		}
		us := c.router.settings.Get(c.ctx, main.Properties.OwnerID)
		return us, us != nil
	})
	return us
}

func (c *Context) UserAgentFamily() string { return c.Agent().UAFamily }

func (c *Context) OSFamily() string { return c.Agent().OSFamily }

func (c *Context) DeviceFamily() string { return c.Agent().DeviceFamily }

func (c *Context) Country() string {
	rec, _ := c.Location()
	return rec.Country
}

func (c *Context) Language() string { return facts.PrimaryLanguage(c.Request.Languages) }

func (c *Context) Now() time.Time { return c.router.now() }
