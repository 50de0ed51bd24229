package storage

import (
	"context"
	stderrors "errors"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/models"
	"edge-gateway/internal/redis"
)

// RedisStore reads JSON documents from Redis hashes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetRoute(ctx context.Context, switchName, key string) (*models.Route, bool, error) {
	var route models.Route
	found, err := s.client.HGetJSON(ctx, RoutesKey(switchName), key, &route)
	if err != nil || !found {
		return nil, false, classify(err)
	}
	return &route, true, nil
}

func (s *RedisStore) GetKeycert(ctx context.Context, name string) (*models.Keycert, bool, error) {
	var kc models.Keycert
	found, err := s.client.HGetJSON(ctx, certsKey, name, &kc)
	if err != nil || !found {
		return nil, false, classify(err)
	}
	return &kc, true, nil
}

func (s *RedisStore) GetUserSettings(ctx context.Context, ownerID string) (*models.UserSettings, bool, error) {
	var settings models.UserSettings
	found, err := s.client.HGetJSON(ctx, settingsKey, ownerID, &settings)
	if err != nil || !found {
		return nil, false, classify(err)
	}
	return &settings, true, nil
}

// PutRoute writes a route under its own switch, domain and path.
func (s *RedisStore) PutRoute(ctx context.Context, route *models.Route) error {
	return s.client.HSetJSON(ctx, RoutesKey(route.Switch), models.RouteKey(route.Domain, route.Path), route)
}

func (s *RedisStore) PutKeycert(ctx context.Context, name string, kc *models.Keycert) error {
	return s.client.HSetJSON(ctx, certsKey, name, kc)
}

func (s *RedisStore) PutUserSettings(ctx context.Context, ownerID string, settings *models.UserSettings) error {
	return s.client.HSetJSON(ctx, settingsKey, ownerID, settings)
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var decodeErr *redis.DecodeError
	if stderrors.As(err, &decodeErr) {
		return errors.MalformedError("stored document is not valid", err).
			WithContext("key", decodeErr.Key).
			WithContext("field", decodeErr.Field)
	}
	return errors.ConnectionError("redis lookup failed", err)
}
