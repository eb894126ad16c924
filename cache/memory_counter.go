package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// counterEntry carries the window deadline alongside the count so that
// re-storing an incremented value never moves the window.
type counterEntry struct {
	count    int64
	deadline time.Time
}

// MemoryCounterCache implements CounterCache on ttlcache. Single-process
// only; it exists for tests and local development, production uses the
// Redis implementation. Windows are fixed, matching the Redis semantics:
// the TTL is pinned on the first increment and steady hits do not extend
// it.
type MemoryCounterCache struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, counterEntry]
}

// NewMemoryCounterCache creates an in-memory counter cache with automatic
// expiry cleanup.
func NewMemoryCounterCache() *MemoryCounterCache {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, counterEntry](),
	)
	go cache.Start()

	return &MemoryCounterCache{cache: cache}
}

func (c *MemoryCounterCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if item := c.cache.Get(key); item != nil && now.Before(item.Value().deadline) {
		entry := item.Value()
		entry.count++
		// Re-set with the remaining time so the deadline stays put.
		c.cache.Set(key, entry, entry.deadline.Sub(now))
		return entry.count, nil
	}
	c.cache.Set(key, counterEntry{count: 1, deadline: now.Add(ttl)}, ttl)
	return 1, nil
}

func (c *MemoryCounterCache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.cache.Get(key)
	if item == nil || !time.Now().Before(item.Value().deadline) {
		return 0, false, nil
	}
	return item.Value().count, true, nil
}

func (c *MemoryCounterCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item := c.cache.Get(key); item != nil {
		entry := item.Value()
		entry.deadline = time.Now().Add(ttl)
		c.cache.Set(key, entry, ttl)
	}
	return nil
}

func (c *MemoryCounterCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
	return nil
}

// Stop halts the background expiry loop.
func (c *MemoryCounterCache) Stop() {
	c.cache.Stop()
}
