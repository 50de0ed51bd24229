// Package cache provides a generic read-through cache with time-to-live and
// time-to-idle expiry, negative caching and one computation per key at a time.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"
)

// Options configures a Cache.
type Options struct {
	// Capacity bounds the number of entries. Least valuable entries are evicted first.
	Capacity int
	// TTL expires an entry this long after it was computed. Zero keeps entries until evicted.
	TTL time.Duration
	// TTI expires an entry this long after it was last read. Zero disables idle expiry.
	TTI time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// ComputeTimeout bounds a shared computation. Zero leaves it unbounded.
	ComputeTimeout time.Duration
}

// ComputeFunc loads the value for a key. found=false is a valid, cacheable answer.
type ComputeFunc[V any] func(ctx context.Context) (value V, found bool, err error)

type entry[V any] struct {
	value     V
	found     bool
	expiresAt int64
	// lastRead is unix nanos, updated on every hit.
	lastRead atomic.Int64
}

type result[V any] struct {
	value V
	found bool
}

// Cache decorates any lookup with caching. It is safe for concurrent use.
type Cache[V any] struct {
	entries otter.Cache[string, *entry[V]]
	group   singleflight.Group
	ttl     time.Duration
	tti     time.Duration
	now     func() time.Time
	timeout time.Duration

	// flights maps a key to the id of the computation allowed to store its
	// answer. Invalidate removes the key, so that computation stores nothing.
	mu      sync.Mutex
	flights map[string]uint64
	seq     atomic.Uint64
}

// New builds a cache. Capacity must be positive.
func New[V any](opts Options) (*Cache[V], error) {
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", opts.Capacity)
	}
	if opts.TTL < 0 || opts.TTI < 0 {
		return nil, fmt.Errorf("cache ttl and tti must not be negative")
	}

	builder := otter.MustBuilder[string, *entry[V]](opts.Capacity).
		Cost(func(string, *entry[V]) uint32 { return 1 })

	var (
		entries otter.Cache[string, *entry[V]]
		err     error
	)
	if opts.TTL > 0 {
		entries, err = builder.WithTTL(opts.TTL).Build()
	} else {
		entries, err = builder.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		entries: entries,
		ttl:     opts.TTL,
		tti:     opts.TTI,
		now:     now,
		timeout: opts.ComputeTimeout,
		flights: make(map[string]uint64),
	}, nil
}

// Get returns a cached answer without computing. ok is false on a miss.
func (c *Cache[V]) Get(key string) (value V, found bool, ok bool) {
	e, ok := c.lookup(key)
	if !ok {
		return value, false, false
	}
	return e.value, e.found, true
}

// GetWith returns the cached answer for key, calling compute on a miss.
// Concurrent misses for the same key share a single compute call. Errors
// are returned to every waiting caller and are not cached.
func (c *Cache[V]) GetWith(ctx context.Context, key string, compute ComputeFunc[V]) (V, bool, error) {
	if e, ok := c.lookup(key); ok {
		return e.value, e.found, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another flight may have filled the entry while we queued
		if e, ok := c.lookup(key); ok {
			return result[V]{value: e.value, found: e.found}, nil
		}
		id := c.begin(key)
		value, found, err := c.compute(ctx, compute)
		c.finish(key, id, value, found, err)
		if err != nil {
			return nil, err
		}
		return result[V]{value: value, found: found}, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result[V])
		return r.value, r.found, nil
	}
}

// Set stores an answer directly.
func (c *Cache[V]) Set(key string, value V, found bool) {
	c.store(key, value, found)
}

// Invalidate evicts key. A computation already in flight is detached so the
// next miss starts a fresh one.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.flights, key)
	c.mu.Unlock()
	c.group.Forget(key)
	c.entries.Delete(key)
}

// Len is the number of stored entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	return c.entries.Size()
}

// Close releases the background resources of the underlying cache.
func (c *Cache[V]) Close() {
	c.entries.Close()
}

// compute ignores cancellation of the caller that started the flight; every
// waiter shares its answer.
func (c *Cache[V]) compute(ctx context.Context, fn ComputeFunc[V]) (V, bool, error) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (c *Cache[V]) begin(key string) uint64 {
	id := c.seq.Add(1)
	c.mu.Lock()
	c.flights[key] = id
	c.mu.Unlock()
	return id
}

func (c *Cache[V]) finish(key string, id uint64, value V, found bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[key] != id {
		return
	}
	delete(c.flights, key)
	if err == nil {
		c.store(key, value, found)
	}
}

func (c *Cache[V]) store(key string, value V, found bool) {
	now := c.now()
	e := &entry[V]{value: value, found: found}
	if c.ttl > 0 {
		e.expiresAt = now.Add(c.ttl).UnixNano()
	}
	e.lastRead.Store(now.UnixNano())
	c.entries.Set(key, e)
}

func (c *Cache[V]) lookup(key string) (*entry[V], bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	now := c.now().UnixNano()
	if e.expiresAt != 0 && now >= e.expiresAt {
		c.entries.Delete(key)
		return nil, false
	}
	if c.tti > 0 && now-e.lastRead.Load() >= int64(c.tti) {
		c.entries.Delete(key)
		return nil, false
	}
	e.lastRead.Store(now)
	return e, true
}
