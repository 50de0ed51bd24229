package routing

import (
	"context"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
	"edge-gateway/internal/storage"
)

// ErrRouteNotFound is returned by Lookup when no route exists.
var ErrRouteNotFound = errors.NotFoundError("route")

// Manager resolves routes through a cache in front of a RouteStore.
type Manager struct {
	store  storage.RouteStore
	cache  *cache.Cache[*models.Route]
	logger logging.Logger
}

func NewManager(store storage.RouteStore, routes *cache.Cache[*models.Route], logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Component("routes")
	}
	return &Manager{store: store, cache: routes, logger: logger}
}

// Lookup returns the route, ErrRouteNotFound, or the backend error.
func (m *Manager) Lookup(ctx context.Context, switchName, domain, path string) (*models.Route, error) {
	key := models.RouteKey(domain, path)
	route, found, err := m.cache.GetWith(ctx, cacheKey(switchName, key), func(ctx context.Context) (*models.Route, bool, error) {
		return m.store.GetRoute(ctx, switchName, key)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrRouteNotFound
	}
	return route, nil
}

// Get returns the route or nil. Backend failures are logged and read as a miss.
func (m *Manager) Get(ctx context.Context, switchName, domain, path string) *models.Route {
	route, err := m.Lookup(ctx, switchName, domain, path)
	if err == nil {
		return route
	}
	if !errors.IsType(err, errors.ErrTypeNotFound) {
		m.logger.Error("Route lookup failed", err,
			logging.String("switch", switchName),
			logging.String("domain", domain),
			logging.String("path", path),
		)
	}
	return nil
}

// Invalidate evicts a cached route.
func (m *Manager) Invalidate(switchName, domain, path string) {
	m.cache.Invalidate(cacheKey(switchName, models.RouteKey(domain, path)))
}

func cacheKey(switchName, key string) string {
	return switchName + "/" + key
}
