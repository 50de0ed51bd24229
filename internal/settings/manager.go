// Package settings serves per-owner user settings from a cached store.
package settings

import (
	"context"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
	"edge-gateway/internal/storage"
)

// Manager reads user settings through a cache.
type Manager struct {
	store  storage.SettingsStore
	cache  *cache.Cache[*models.UserSettings]
	logger logging.Logger
}

func NewManager(store storage.SettingsStore, settings *cache.Cache[*models.UserSettings], logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Component("settings")
	}
	return &Manager{store: store, cache: settings, logger: logger}
}

// Get returns the owner's settings, or nil when the owner id is empty, the
// owner has none, or the backend failed. Failures are logged.
func (m *Manager) Get(ctx context.Context, ownerID string) *models.UserSettings {
	if ownerID == "" {
		return nil
	}
	us, found, err := m.cache.GetWith(ctx, ownerID, func(ctx context.Context) (*models.UserSettings, bool, error) {
		return m.store.GetUserSettings(ctx, ownerID)
	})
	if err != nil {
		m.logger.Error("User settings lookup failed", err, logging.String("owner_id", ownerID))
		return nil
	}
	if !found {
		return nil
	}
	return us
}

// Invalidate evicts the cached settings of an owner.
func (m *Manager) Invalidate(ownerID string) {
	m.cache.Invalidate(ownerID)
}
