package testutil

import (
	"edge-gateway/internal/models"
)

// RouteBuilder helps build test routes
type RouteBuilder struct {
	route *models.Route
}

// NewRouteBuilder starts an active main-switch route with a destination.
func NewRouteBuilder(domain, path string) *RouteBuilder {
	return &RouteBuilder{
		route: &models.Route{
			Switch:      models.MainSwitch,
			Domain:      domain,
			Path:        path,
			Destination: models.Str("https://destination.example/landing"),
			Format:      models.FormatHTTP,
			Status:      models.RouteStatus{State: models.StateActive},
			Terminal:    models.TerminalExternal,
			Policy:      models.RoutingPolicy{Kind: models.PolicyBasic},
			Properties: models.RouteProperties{
				RouteID:     "route-1",
				OwnerID:     "owner-1",
				CreatorID:   "creator-1",
				WorkspaceID: "workspace-1",
			},
		},
	}
}

func (b *RouteBuilder) WithSwitch(name string) *RouteBuilder {
	b.route.Switch = name
	return b
}

func (b *RouteBuilder) WithDestination(url string) *RouteBuilder {
	b.route.Destination = models.Str(url)
	return b
}

func (b *RouteBuilder) WithoutDestination() *RouteBuilder {
	b.route.Destination = nil
	return b
}

func (b *RouteBuilder) WithStatusCode(code int) *RouteBuilder {
	b.route.StatusCode = code
	return b
}

func (b *RouteBuilder) WithTTL(seconds int) *RouteBuilder {
	b.route.TTL = seconds
	return b
}

func (b *RouteBuilder) WithFormat(format models.DestinationFormat) *RouteBuilder {
	b.route.Format = format
	return b
}

func (b *RouteBuilder) WithTerminal(kind models.TerminalKind) *RouteBuilder {
	b.route.Terminal = kind
	return b
}

func (b *RouteBuilder) WithOwner(ownerID string) *RouteBuilder {
	b.route.Properties.OwnerID = ownerID
	return b
}

func (b *RouteBuilder) Blocked(reason string) *RouteBuilder {
	b.route.Status = models.RouteStatus{State: models.StateBlocked, Reason: reason}
	return b
}

// WithConditions makes the route conditional.
func (b *RouteBuilder) WithConditions(conditions ...models.ConditionalRoute) *RouteBuilder {
	b.route.Policy = models.RoutingPolicy{Kind: models.PolicyConditional, Conditions: conditions}
	return b
}

func (b *RouteBuilder) Build() *models.Route {
	return b.route
}
