package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/models"
	"edge-gateway/internal/storage"
)

type flakyStore struct {
	*storage.MemoryStore
	calls int
	err   error
}

func (f *flakyStore) GetUserSettings(ctx context.Context, ownerID string) (*models.UserSettings, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	return f.MemoryStore.GetUserSettings(ctx, ownerID)
}

func newManager(t *testing.T, store storage.SettingsStore) *Manager {
	c, err := cache.New[*models.UserSettings](cache.Options{Capacity: 16, TTL: time.Minute})
	require.NoError(t, err)
	return NewManager(store, c, nil)
}

func TestManager_Get(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutUserSettings("owner-1", &models.UserSettings{Skip: []string{"Tracking"}})
	store := &flakyStore{MemoryStore: mem}
	m := newManager(t, store)
	ctx := context.Background()

	us := m.Get(ctx, "owner-1")
	require.NotNil(t, us)
	assert.False(t, us.TrackingAllowed())

	assert.Nil(t, m.Get(ctx, "owner-2"))
	assert.Nil(t, m.Get(ctx, "owner-2"))
	assert.Equal(t, 2, store.calls)

	assert.Nil(t, m.Get(ctx, ""))
	assert.Equal(t, 2, store.calls)

	m.Invalidate("owner-1")
	require.NotNil(t, m.Get(ctx, "owner-1"))
	assert.Equal(t, 3, store.calls)
}

func TestManager_BackendFailureIsNil(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), err: fmt.Errorf("down")}
	m := newManager(t, store)

	assert.Nil(t, m.Get(context.Background(), "owner-1"))
	assert.Nil(t, m.Get(context.Background(), "owner-1"))
	assert.Equal(t, 2, store.calls)
}
