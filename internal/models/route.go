// Package models defines the documents the gateway reads from its stores and
// the telemetry events it emits.
package models

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// MainSwitch is the routing namespace consulted first for every request.
const MainSwitch = "main"

// DestinationFormat selects how a destination is handed to the client.
type DestinationFormat string

const (
	// FormatHTTP answers with an HTTP redirect.
	FormatHTTP DestinationFormat = "http"
	// FormatNative answers with an HTML page that hands off to the destination.
	FormatNative DestinationFormat = "native"
)

// TerminalKind says where a route's destination lives.
type TerminalKind string

const (
	TerminalExternal   TerminalKind = "external"
	TerminalInternal   TerminalKind = "internal"
	TerminalMiddleware TerminalKind = "middleware"
)

// StatusState is the lifecycle state of a route.
type StatusState string

const (
	StateActive  StatusState = "active"
	StateBlocked StatusState = "blocked"
)

// RouteStatus is the route state plus the reason when blocked.
type RouteStatus struct {
	State  StatusState `json:"state"`
	Reason string      `json:"reason,omitempty"`
}

// RouteProperties carries ownership and presentation metadata.
type RouteProperties struct {
	RouteID     string          `json:"route_id,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	CreatorID   string          `json:"creator_id,omitempty"`
	WorkspaceID string          `json:"workspace_id,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Custom      json.RawMessage `json:"custom,omitempty"`
	Native      json.RawMessage `json:"native,omitempty"`
	Bundling    json.RawMessage `json:"bundling,omitempty"`
	OpenGraph   bool            `json:"open_graph,omitempty"`
}

// Route is a routing table entry, unique per (switch, domain, path).
// A nil Destination means the route exists but resolves nowhere.
type Route struct {
	Switch      string            `json:"switch"`
	Domain      string            `json:"domain"`
	Path        string            `json:"path"`
	Destination *string           `json:"destination,omitempty"`
	Format      DestinationFormat `json:"format,omitempty"`
	StatusCode  int               `json:"status_code,omitempty"`
	// TTL in seconds, used for client side caching of redirects.
	TTL        int             `json:"ttl,omitempty"`
	Status     RouteStatus     `json:"status"`
	Terminal   TerminalKind    `json:"terminal,omitempty"`
	Policy     RoutingPolicy   `json:"policy"`
	Properties RouteProperties `json:"properties"`
}

// HasDestination reports whether the route points somewhere.
func (r *Route) HasDestination() bool {
	return r != nil && r.Destination != nil && *r.Destination != ""
}

// DestinationURL returns the destination or "".
func (r *Route) DestinationURL() string {
	if !r.HasDestination() {
		return ""
	}
	return *r.Destination
}

func (r *Route) Blocked() bool {
	return r != nil && r.Status.State == StateBlocked
}

// RedirectStatus returns the route's own 3xx code, or 307 when unset or not a redirect code.
func (r *Route) RedirectStatus() int {
	switch r.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return r.StatusCode
	}
	return http.StatusTemporaryRedirect
}

// CacheTTL converts TTL to a duration.
func (r *Route) CacheTTL() time.Duration {
	if r == nil || r.TTL <= 0 {
		return 0
	}
	return time.Duration(r.TTL) * time.Second
}

// RouteKey joins a domain and path into the store key. Both parts are lowercased.
func RouteKey(domain, path string) string {
	return strings.ToLower(domain) + "%2F" + strings.ToLower(path)
}
