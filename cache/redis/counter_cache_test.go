package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounterCache(t *testing.T) (*CounterCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCounterCache(client, "test"), mr
}

func TestCounterIncrementAndGet(t *testing.T) {
	cc, _ := newCounterCache(t)
	ctx := context.Background()

	count, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	val, found, err := cc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), val)

	_, found, err = cc.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCounterWindowExpiry(t *testing.T) {
	cc, mr := newCounterCache(t)
	ctx := context.Background()

	_, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	_, err = cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)

	// TTL is set on the first increment only; the second must not refresh
	// it, otherwise steady traffic would never reopen the window.
	mr.FastForward(61 * time.Second)

	count, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCounterExpireOverride(t *testing.T) {
	cc, mr := newCounterCache(t)
	ctx := context.Background()

	_, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, cc.Expire(ctx, "k1", 10*time.Minute))

	mr.FastForward(2 * time.Minute)
	_, found, err := cc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found, "extended counter should outlive its original window")
}

func TestCounterDelete(t *testing.T) {
	cc, _ := newCounterCache(t)
	ctx := context.Background()

	_, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, cc.Delete(ctx, "k1"))

	_, found, err := cc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCounterKeysAreNamespaced(t *testing.T) {
	cc, mr := newCounterCache(t)
	ctx := context.Background()

	_, err := cc.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k1"))
}
