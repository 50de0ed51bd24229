package storage

import (
	"context"

	"edge-gateway/internal/circuitbreaker"
	"edge-gateway/internal/models"
)

// BreakerStore fails fast while its backend keeps failing.
type BreakerStore struct {
	next    Store
	breaker *circuitbreaker.Breaker
}

func NewBreakerStore(next Store, breaker *circuitbreaker.Breaker) *BreakerStore {
	return &BreakerStore{next: next, breaker: breaker}
}

type lookup[T any] struct {
	value T
	found bool
}

func guarded[T any](ctx context.Context, b *circuitbreaker.Breaker, fn func(context.Context) (T, bool, error)) (T, bool, error) {
	res, err := circuitbreaker.Call(ctx, b, func(ctx context.Context) (lookup[T], error) {
		v, found, err := fn(ctx)
		return lookup[T]{value: v, found: found}, err
	})
	return res.value, res.found, err
}

func (s *BreakerStore) GetRoute(ctx context.Context, switchName, key string) (*models.Route, bool, error) {
	return guarded(ctx, s.breaker, func(ctx context.Context) (*models.Route, bool, error) {
		return s.next.GetRoute(ctx, switchName, key)
	})
}

func (s *BreakerStore) GetKeycert(ctx context.Context, name string) (*models.Keycert, bool, error) {
	return guarded(ctx, s.breaker, func(ctx context.Context) (*models.Keycert, bool, error) {
		return s.next.GetKeycert(ctx, name)
	})
}

func (s *BreakerStore) GetUserSettings(ctx context.Context, ownerID string) (*models.UserSettings, bool, error) {
	return guarded(ctx, s.breaker, func(ctx context.Context) (*models.UserSettings, bool, error) {
		return s.next.GetUserSettings(ctx, ownerID)
	})
}

// Health bypasses the breaker so probes see the backend itself.
func (s *BreakerStore) Health(ctx context.Context) error {
	return s.next.Health(ctx)
}

func (s *BreakerStore) Close() error {
	return s.next.Close()
}
