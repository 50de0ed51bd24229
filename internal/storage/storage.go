// Package storage holds the read-side adapters for routes, certificates and
// user settings.
package storage

import (
	"context"

	"edge-gateway/internal/models"
)

// RouteStore looks up routes by switch and route key (see models.RouteKey).
// A missing route is found=false with a nil error.
type RouteStore interface {
	GetRoute(ctx context.Context, switchName, key string) (*models.Route, bool, error)
}

// CertStore looks up keycerts by lowercased server name.
type CertStore interface {
	GetKeycert(ctx context.Context, name string) (*models.Keycert, bool, error)
}

// SettingsStore looks up user settings by owner id.
type SettingsStore interface {
	GetUserSettings(ctx context.Context, ownerID string) (*models.UserSettings, bool, error)
}

// Store is a complete backend.
type Store interface {
	RouteStore
	CertStore
	SettingsStore

	Health(ctx context.Context) error
	Close() error
}

// Redis key layout.
const (
	routesKeyPrefix = "routes:"
	certsKey        = "certs"
	settingsKey     = "user_settings"
)

// RoutesKey returns the hash holding the routes of a switch.
func RoutesKey(switchName string) string {
	return routesKeyPrefix + switchName
}
