package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterCache implements cache.CounterCache on Redis. Windows are fixed:
// INCR plus a conditional EXPIRE on the first hit.
type CounterCache struct {
	client *redis.Client
	prefix string
}

// NewCounterCache creates a Redis-backed counter cache. All keys are
// namespaced under the given prefix.
func NewCounterCache(client *redis.Client, prefix string) *CounterCache {
	return &CounterCache{client: client, prefix: prefix}
}

func (c *CounterCache) key(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *CounterCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := c.key(key)
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, k, ttl).Err(); err != nil {
			return count, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	return count, nil
}

func (c *CounterCache) Get(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read counter: %w", err)
	}
	return val, true, nil
}

func (c *CounterCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, c.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("failed to reset counter expiry: %w", err)
	}
	return nil
}

func (c *CounterCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete counter: %w", err)
	}
	return nil
}
