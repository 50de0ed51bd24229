package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/batching"
	"edge-gateway/internal/models"
)

type collector struct {
	mu   sync.Mutex
	hits []models.Hit
}

func (c *collector) Process(_ context.Context, batch []models.Hit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = append(c.hits, batch...)
	return nil
}

func (c *collector) all() []models.Hit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Hit(nil), c.hits...)
}

func TestSessionTracker_CountsPerClientAndRoute(t *testing.T) {
	tracker, err := NewSessionTracker(100, time.Hour)
	require.NoError(t, err)
	defer tracker.Close()

	first := tracker.Touch("10.0.0.1", "route-1")
	second := tracker.Touch("10.0.0.1", "route-1")
	other := tracker.Touch("10.0.0.2", "route-1")

	assert.Equal(t, 1, first.Clicks)
	assert.Equal(t, 2, second.Clicks)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.Equal(t, 1, other.Clicks)
}

func TestRegistrar_StampsAndShipsHits(t *testing.T) {
	sink := &collector{}
	tracker, err := NewSessionTracker(100, time.Hour)
	require.NoError(t, err)

	r, err := NewRegistrar(batching.Config{BatchSize: 10, Consumers: 1, MaxWait: 10 * time.Millisecond}, sink, tracker, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Register(ctx, models.Hit{RouteID: "route-1", IP: "10.0.0.1"}))
	require.NoError(t, r.Register(ctx, models.Hit{RouteID: "route-1", IP: "10.0.0.1"}))
	require.NoError(t, r.Close(ctx))

	hits := sink.all()
	require.Len(t, hits, 2)
	assert.NotEmpty(t, hits[0].ID)
	assert.NotEqual(t, hits[0].ID, hits[1].ID)
	assert.False(t, hits[0].CreatedAt.IsZero())

	byClicks := map[int]models.Hit{}
	for _, h := range hits {
		byClicks[h.SessionClicks] = h
	}
	assert.True(t, byClicks[1].IsUnique)
	assert.False(t, byClicks[2].IsUnique)
	assert.Equal(t, byClicks[1].SessionFirstSeen, byClicks[2].SessionFirstSeen)
}

func TestRegistrar_RejectsAfterClose(t *testing.T) {
	r, err := NewRegistrar(batching.Config{BatchSize: 1, Consumers: 1, MaxWait: time.Millisecond}, &collector{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close(context.Background()))

	err = r.Register(context.Background(), models.Hit{RouteID: "route-1"})
	assert.ErrorIs(t, err, batching.ErrClosed)
}
