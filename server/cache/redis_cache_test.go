package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"formcoach/server/cache"
)

func newRedisCache(t *testing.T) (*cache.RedisCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	c := cache.NewRedisCacheFromClient(db, time.Minute, zap.NewNop())
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		require.NoError(t, c.Close())
	})
	return c, mock
}

func TestRedisCacheSet(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	value := cachedResult{Name: "deadlift", Score: 0.72}
	data, err := json.Marshal(value)
	require.NoError(t, err)

	mock.ExpectSet("k1", data, time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "k1", value))

	mock.ExpectSet("k2", data, time.Hour).SetVal("OK")
	require.NoError(t, c.SetWithTTL(ctx, "k2", value, time.Hour))
}

func TestRedisCacheGet(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectGet("hit").SetVal(`{"name":"squat","score":0.9}`)
	var loaded cachedResult
	require.NoError(t, c.Get(ctx, "hit", &loaded))
	assert.Equal(t, cachedResult{Name: "squat", Score: 0.9}, loaded)

	mock.ExpectGet("miss").RedisNil()
	assert.ErrorIs(t, c.Get(ctx, "miss", &loaded), cache.ErrCacheMiss)
}

func TestRedisCacheDeleteExists(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectDel("k").SetVal(1)
	require.NoError(t, c.Delete(ctx, "k"))

	mock.ExpectExists("there").SetVal(1)
	exists, err := c.Exists(ctx, "there")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectExists("gone").SetVal(0)
	exists, err = c.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCacheGetTTL(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectTTL("k").SetVal(30 * time.Second)
	ttl, err := c.GetTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mock.ExpectTTL("gone").SetVal(time.Duration(-2))
	_, err = c.GetTTL(ctx, "gone")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisCacheIncrement(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	// a fresh counter picks up the default TTL
	mock.ExpectIncr("hits").SetVal(1)
	mock.ExpectExpire("hits", time.Minute).SetVal(true)
	count, err := c.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	mock.ExpectIncr("hits").SetVal(2)
	count, err = c.Increment(ctx, "hits")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRedisCacheIncrementWithTTL(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectIncr("window").SetVal(3)
	mock.ExpectExpire("window", 10*time.Second).SetVal(true)

	count, err := c.IncrementWithTTL(ctx, "window", 10*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestRedisCachePurge(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectFlushDB().SetVal("OK")
	require.NoError(t, c.Purge(ctx))
}

func TestRedisCacheStats(t *testing.T) {
	ctx := context.Background()
	c, mock := newRedisCache(t)

	mock.ExpectDBSize().SetVal(42)
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Connected)
	assert.Contains(t, stats.Info, "keys=42")
}
