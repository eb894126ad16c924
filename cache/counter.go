package cache

import (
	"context"
	"time"
)

// CounterCache is the shared low-latency counter store backing rate
// windows, escalation counters, and temporary blocks. Increment must be
// atomic across processes; the window TTL is set on the first increment
// only, so the minor race between increment and TTL-set on the very first
// hit is the worst case (a window expiring fractionally late).
type CounterCache interface {
	// Increment atomically bumps the counter, setting ttl when the key is
	// created by this call, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the counter value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Expire resets the key's TTL. Used to stretch a window into a block.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}
