package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterIncrement(t *testing.T) {
	c := NewMemoryCounterCache()
	t.Cleanup(c.Stop)
	ctx := context.Background()

	count, err := c.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = c.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	val, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), val)
}

func TestMemoryCounterWindowExpiry(t *testing.T) {
	c := NewMemoryCounterCache()
	t.Cleanup(c.Stop)
	ctx := context.Background()

	_, err := c.Increment(ctx, "k1", 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	count, err := c.Increment(ctx, "k1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired counter should restart the window")
}

func TestMemoryCounterWindowIsFixed(t *testing.T) {
	c := NewMemoryCounterCache()
	t.Cleanup(c.Stop)
	ctx := context.Background()

	// Steady hits inside the window must not push the deadline out: the
	// window is pinned by the first increment, as on Redis.
	_, err := c.Increment(ctx, "k1", 60*time.Millisecond)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err = c.Increment(ctx, "k1", 60*time.Millisecond)
		require.NoError(t, err)
	}

	time.Sleep(50 * time.Millisecond)
	count, err := c.Increment(ctx, "k1", 60*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "the window deadline must not move on increments")
}

func TestMemoryCounterDelete(t *testing.T) {
	c := NewMemoryCounterCache()
	t.Cleanup(c.Stop)
	ctx := context.Background()

	_, err := c.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "k1"))

	_, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}
