package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"formcoach/server/cache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper"),
	)
}

type cachedResult struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newMemoryCache(t *testing.T, maxSize int, ttl time.Duration) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache(maxSize, ttl, zap.NewNop())
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	stored := cachedResult{Name: "squat", Score: 0.85}
	require.NoError(t, c.Set(ctx, "k1", stored))

	var loaded cachedResult
	require.NoError(t, c.Get(ctx, "k1", &loaded))
	assert.Equal(t, stored, loaded)

	exists, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	ttl, err := c.GetTTL(ctx, "k1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestMemoryCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	var dest cachedResult
	assert.ErrorIs(t, c.Get(ctx, "absent", &dest), cache.ErrCacheMiss)

	_, err := c.GetTTL(ctx, "absent")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	exists, err := c.Exists(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	require.NoError(t, c.SetWithTTL(ctx, "fleeting", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	var dest string
	assert.ErrorIs(t, c.Get(ctx, "fleeting", &dest), cache.ErrCacheMiss)

	exists, err := c.Exists(ctx, "fleeting")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	require.NoError(t, c.Set(ctx, "k", 1))
	require.NoError(t, c.Delete(ctx, "k"))

	var dest int
	assert.ErrorIs(t, c.Get(ctx, "k", &dest), cache.ErrCacheMiss)
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", 1))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", 2))
	time.Sleep(2 * time.Millisecond)

	// touching a makes b the coldest entry
	var n int
	require.NoError(t, c.Get(ctx, "a", &n))
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, c.Set(ctx, "c", 3))

	require.NoError(t, c.Get(ctx, "a", &n))
	require.NoError(t, c.Get(ctx, "c", &n))
	assert.ErrorIs(t, c.Get(ctx, "b", &n), cache.ErrCacheMiss)
}

func TestMemoryCacheOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	require.NoError(t, c.Set(ctx, "a", 10))

	var n int
	require.NoError(t, c.Get(ctx, "a", &n))
	assert.Equal(t, 10, n)
	require.NoError(t, c.Get(ctx, "b", &n))
	assert.Equal(t, 2, n)
}

func TestMemoryCacheIncrement(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	count, err := c.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = c.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// counters read back like any other value
	var n int64
	require.NoError(t, c.Get(ctx, "hits", &n))
	assert.EqualValues(t, 2, n)
}

func TestMemoryCacheIncrementNonNumeric(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	require.NoError(t, c.Set(ctx, "k", "text"))
	count, err := c.Increment(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMemoryCacheIncrementWithTTLRefreshes(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	_, err := c.IncrementWithTTL(ctx, "window", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	count, err := c.IncrementWithTTL(ctx, "window", 50*time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// the second increment pushed the expiry out again
	time.Sleep(30 * time.Millisecond)
	ttl, err := c.GetTTL(ctx, "window")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestMemoryCachePurge(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	require.NoError(t, c.Purge(ctx))

	var got int
	assert.ErrorIs(t, c.Get(ctx, "a", &got), cache.ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "b", &got), cache.ErrCacheMiss)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Contains(t, stats.Info, "items=0")
}

func TestMemoryCacheStats(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(t, 10, time.Minute)

	require.NoError(t, c.Set(ctx, "k", 1))

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Connected)
	assert.Contains(t, stats.Info, "backend=memory")
	assert.Contains(t, stats.Info, "items=1")
}

func TestGenerateCacheKey(t *testing.T) {
	k1 := cache.GenerateCacheKey("analysis", "payload", "squat")
	k2 := cache.GenerateCacheKey("analysis", "payload", "squat")
	k3 := cache.GenerateCacheKey("analysis", "payload", "deadlift")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 32)
}
