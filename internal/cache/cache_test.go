package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, ttl, tti time.Duration, clock *fakeClock) *Cache[string] {
	t.Helper()
	c, err := New[string](Options{Capacity: 128, TTL: ttl, TTI: tti, Clock: clock.Now})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func counting(calls *atomic.Int32, value string, found bool) ComputeFunc[string] {
	return func(context.Context) (string, bool, error) {
		calls.Add(1)
		return value, found, nil
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New[int](Options{Capacity: 0})
	assert.Error(t, err)

	_, err = New[int](Options{Capacity: 1, TTL: -time.Second})
	assert.Error(t, err)
}

func TestGetWith_CachesPositiveAnswers(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		value, found, err := c.GetWith(context.Background(), "main:example.com%2Fa", counting(&calls, "route-a", true))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "route-a", value)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetWith_CachesNegativeAnswers(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		value, found, err := c.GetWith(context.Background(), "missing", counting(&calls, "", false))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, value)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, found, ok := c.Get("missing")
	assert.True(t, ok)
	assert.False(t, found)
}

func TestGetWith_DoesNotCacheErrors(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	boom := errors.New("store down")
	var calls atomic.Int32

	compute := func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "", false, boom
	}

	_, _, err := c.GetWith(context.Background(), "k", compute)
	assert.ErrorIs(t, err, boom)
	_, _, err = c.GetWith(context.Background(), "k", compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetWith_SingleFlight(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(context.Context) (string, bool, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", true, nil
	}

	const callers = 32
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, _, err := c.GetWith(context.Background(), "hot", compute)
			assert.NoError(t, err)
			results[i] = value
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, value := range results {
		assert.Equal(t, "shared", value)
	}
}

func TestGetWith_WaiterHonoursContext(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	go func() {
		_, _, _ = c.GetWith(context.Background(), "slow", func(context.Context) (string, bool, error) {
			close(started)
			<-release
			return "v", true, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.GetWith(ctx, "slow", func(context.Context) (string, bool, error) {
		t.Fatal("second caller must join the flight")
		return "", false, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetWith_LeaderCancellationDoesNotFailWaiters(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetWith(leaderCtx, "shop.example.com%2Fsale", func(ctx context.Context) (string, bool, error) {
			close(started)
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-release:
				return "route", true, nil
			}
		})
		leaderErr <- err
	}()
	<-started

	type answer struct {
		value string
		err   error
	}
	waiter := make(chan answer, 1)
	go func() {
		value, _, err := c.GetWith(context.Background(), "shop.example.com%2Fsale", func(context.Context) (string, bool, error) {
			return "", false, errors.New("waiter must join the running flight")
		})
		waiter <- answer{value, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, "route", got.value)

	value, found, ok := c.Get("shop.example.com%2Fsale")
	assert.True(t, ok)
	assert.True(t, found)
	assert.Equal(t, "route", value)
}

func TestGetWith_ComputeTimeout(t *testing.T) {
	c, err := New[string](Options{Capacity: 8, ComputeTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, _, err = c.GetWith(context.Background(), "k", func(ctx context.Context) (string, bool, error) {
		<-ctx.Done()
		return "", false, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Minute, 0, clock)
	var calls atomic.Int32

	_, _, err := c.GetWith(context.Background(), "k", counting(&calls, "v1", true))
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, _, err = c.GetWith(context.Background(), "k", counting(&calls, "v2", true))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(2 * time.Second)
	value, _, err := c.GetWith(context.Background(), "k", counting(&calls, "v2", true))
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTTI_ReadsKeepEntryAlive(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Hour, 10*time.Second, clock)
	c.Set("k", "v", true)

	for i := 0; i < 5; i++ {
		clock.Advance(9 * time.Second)
		_, _, ok := c.Get("k")
		require.True(t, ok, "read %d", i)
	}

	clock.Advance(10 * time.Second)
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	var calls atomic.Int32

	_, _, _ = c.GetWith(context.Background(), "k", counting(&calls, "old", true))
	c.Invalidate("k")

	value, _, err := c.GetWith(context.Background(), "k", counting(&calls, "new", true))
	require.NoError(t, err)
	assert.Equal(t, "new", value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidate_DiscardsInFlightAnswer(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		value, _, err := c.GetWith(context.Background(), "k", func(context.Context) (string, bool, error) {
			close(started)
			<-release
			return "stale", true, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "stale", value)
	}()

	<-started
	c.Invalidate("k")
	close(release)
	<-done

	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidate_OtherKeysKeepInFlightAnswer(t *testing.T) {
	c := newTestCache(t, time.Minute, 0, newFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _, err := c.GetWith(context.Background(), "a", func(context.Context) (string, bool, error) {
			close(started)
			<-release
			return "fresh", true, nil
		})
		assert.NoError(t, err)
	}()

	<-started
	c.Invalidate("b")
	close(release)
	<-done

	value, found, ok := c.Get("a")
	require.True(t, ok)
	assert.True(t, found)
	assert.Equal(t, "fresh", value)
}
