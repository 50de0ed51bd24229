package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/models"
)

// MemoryStore keeps everything in process. It backs local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	routes   map[string]*models.Route
	certs    map[string]*models.Keycert
	settings map[string]*models.UserSettings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:   make(map[string]*models.Route),
		certs:    make(map[string]*models.Keycert),
		settings: make(map[string]*models.UserSettings),
	}
}

// Seed is the document accepted by LoadSeedFile.
type Seed struct {
	Routes       []models.Route                 `json:"routes"`
	Certs        map[string]models.Keycert      `json:"certs"`
	UserSettings map[string]models.UserSettings `json:"user_settings"`
}

// LoadSeedFile adds every entry of a JSON seed file to the store.
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("cannot read store seed %s: %v", path, err))
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.MalformedError("store seed is not valid JSON", err).WithContext("path", path)
	}
	for i := range seed.Routes {
		route := seed.Routes[i]
		if route.Switch == "" {
			route.Switch = models.MainSwitch
		}
		s.PutRoute(&route)
	}
	for name, kc := range seed.Certs {
		s.PutKeycert(name, &kc)
	}
	for owner, us := range seed.UserSettings {
		s.PutUserSettings(owner, &us)
	}
	return nil
}

func (s *MemoryStore) PutRoute(route *models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[memoryRouteKey(route.Switch, models.RouteKey(route.Domain, route.Path))] = route
}

func (s *MemoryStore) PutKeycert(name string, kc *models.Keycert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[strings.ToLower(name)] = kc
}

func (s *MemoryStore) PutUserSettings(ownerID string, settings *models.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[ownerID] = settings
}

func (s *MemoryStore) GetRoute(_ context.Context, switchName, key string) (*models.Route, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.routes[memoryRouteKey(switchName, key)]
	return route, ok, nil
}

func (s *MemoryStore) GetKeycert(_ context.Context, name string) (*models.Keycert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kc, ok := s.certs[name]
	return kc, ok, nil
}

func (s *MemoryStore) GetUserSettings(_ context.Context, ownerID string) (*models.UserSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	us, ok := s.settings[ownerID]
	return us, ok, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func memoryRouteKey(switchName, key string) string {
	return switchName + "\x00" + key
}
