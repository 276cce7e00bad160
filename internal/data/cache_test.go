package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedAnswer struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Test Set and Get roundtrip
func TestCacheClient_SetGet(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	in := cachedAnswer{Content: "use a Gantt chart", Source: "cache"}
	err := cache.Set(ctx, "fallback:abc", in, time.Minute)
	require.NoError(t, err)

	var out cachedAnswer
	err = cache.Get(ctx, "fallback:abc", &out)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

// Test Get - missing key
func TestCacheClient_GetNotFound(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)

	var out cachedAnswer
	err := cache.Get(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

// Test TTL expiry
func TestCacheClient_Expiry(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	var out string
	assert.ErrorIs(t, cache.Get(ctx, "k", &out), ErrCacheNotFound)
}

// Test Delete
func TestCacheClient_Delete(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))

	var out string
	assert.ErrorIs(t, cache.Get(ctx, "k", &out), ErrCacheNotFound)
}

// Test corrupt payload
func TestCacheClient_DeserializationError(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	cache := NewCacheClient(rdb)
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, "k", "not json{", time.Minute).Err())

	var out cachedAnswer
	err := cache.Get(ctx, "k", &out)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheNotFound)
}

// Test nil Redis client handling - reads miss, writes are no-ops
func TestCacheClient_NilRedis(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	var out string
	assert.ErrorIs(t, cache.Get(ctx, "k", &out), ErrCacheNotFound)
	assert.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "k"))

	ok, err := cache.Exists(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}
