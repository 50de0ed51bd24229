// Package handlers is the HTTP surface: a health probe and a catch-all that
// runs every other request through the flow router and writes its result.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/middleware"
	"edge-gateway/internal/pipeline"
)

// HealthPath is reserved on every host.
const HealthPath = "/_edge/health"

// FlowRouter resolves a request to a result.
type FlowRouter interface {
	Handle(ctx context.Context, r *http.Request) *pipeline.Result
}

// HealthChecker is a dependency probed by the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	router  FlowRouter
	checks  map[string]HealthChecker
	proxy   http.RoundTripper
	logger  logging.Logger
	version string
}

// Option configures Handlers.
type Option func(*Handlers)

// WithHealthCheck adds a named dependency to the health report.
func WithHealthCheck(name string, c HealthChecker) Option {
	return func(h *Handlers) { h.checks[name] = c }
}

// WithTransport sets the transport used for proxied results.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Handlers) { h.proxy = rt }
}

func WithVersion(v string) Option {
	return func(h *Handlers) { h.version = v }
}

func New(router FlowRouter, logger logging.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = logging.Component("handlers")
	}
	h := &Handlers{
		router:  router,
		checks:  make(map[string]HealthChecker),
		proxy:   http.DefaultTransport,
		logger:  logger,
		version: "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the mux shared by every listener. Paths are not cleaned:
// the raw path is part of the route key.
func (h *Handlers) Routes() http.Handler {
	router := mux.NewRouter()
	router.SkipClean(true)

	router.HandleFunc(HealthPath, h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	router.PathPrefix("/").HandlerFunc(h.HandleRequest)

	return middleware.Recover(middleware.RequestID(middleware.LoggingMiddleware(router)))
}

// HandleRequest runs the flow and writes its result.
func (h *Handlers) HandleRequest(w http.ResponseWriter, r *http.Request) {
	result := h.router.Handle(r.Context(), r)
	h.writeResult(w, r, result)
}

type healthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports 503 when any dependency check fails.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := healthReport{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Checks:    make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK
	for name, c := range h.checks {
		if err := c.Health(ctx); err != nil {
			report.Checks[name] = err.Error()
			report.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		report.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		json.NewEncoder(w).Encode(report)
	}
}
