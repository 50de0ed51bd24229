package pipeline

import (
	"net/http"
	"time"
)

// ResultKind says how the handler answers the client.
type ResultKind int

const (
	ResultNotFound ResultKind = iota
	ResultRedirect
	ResultProxy
	ResultNative
)

func (k ResultKind) String() string {
	switch k {
	case ResultRedirect:
		return "redirect"
	case ResultProxy:
		return "proxy"
	case ResultNative:
		return "native"
	default:
		return "not_found"
	}
}

// Result is the outcome of a flow.
type Result struct {
	Kind ResultKind
	// Location is the redirect target, proxied upstream or native hand-off URL.
	// An empty Location on a not-found result means a plain 404 page.
	Location   string
	StatusCode int
	// CacheTTL, when positive, lets clients cache the answer.
	CacheTTL time.Duration
}

// Redirect answers with status and a Location header.
func Redirect(location string, status int) *Result {
	return &Result{Kind: ResultRedirect, Location: location, StatusCode: status}
}

// Proxy forwards the request to location.
func Proxy(location string) *Result {
	return &Result{Kind: ResultProxy, Location: location, StatusCode: http.StatusOK}
}

// Native renders a hand-off page for location.
func Native(location string) *Result {
	return &Result{Kind: ResultNative, Location: location, StatusCode: http.StatusOK}
}

// NotFound redirects to location when set and renders a 404 page otherwise.
func NotFound(location string) *Result {
	if location != "" {
		return &Result{Kind: ResultNotFound, Location: location, StatusCode: http.StatusTemporaryRedirect}
	}
	return &Result{Kind: ResultNotFound, StatusCode: http.StatusNotFound}
}
