package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/config"
)

type cachedResponse struct {
	RequestID string   `json:"request_id"`
	Files     []string `json:"files"`
}

func TestRequestKeyFormat(t *testing.T) {
	body := []byte(`{"query":"auth token validation","max_chunks":10}`)
	key := RequestKey("github.com/acme/api", 3, body)

	sum := sha256.Sum256(body)
	want := fmt.Sprintf("ctx:req:github.com/acme/api:v3:%s", hex.EncodeToString(sum[:])[:16])
	assert.Equal(t, want, key)
}

func TestRequestKeyChangesWithVersionAndBody(t *testing.T) {
	body := []byte(`{"query":"auth"}`)

	base := RequestKey("acme", 1, body)
	assert.Equal(t, base, RequestKey("acme", 1, body))
	assert.NotEqual(t, base, RequestKey("acme", 2, body))
	assert.NotEqual(t, base, RequestKey("acme", 1, []byte(`{"query":"billing"}`)))
	assert.NotEqual(t, base, RequestKey("globex", 1, body))
}

func TestRepoPattern(t *testing.T) {
	assert.Equal(t, "ctx:req:github.com/acme/api:*", RepoPattern("github.com/acme/api"))
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	stored := cachedResponse{RequestID: "req-1", Files: []string{"src/auth.py"}}
	require.NoError(t, c.Set(ctx, "ctx:req:acme:v1:abcd", stored, 0))

	var got cachedResponse
	found, err := c.Get(ctx, "ctx:req:acme:v1:abcd", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, stored, got)

	found, err = c.Get(ctx, "ctx:req:acme:v2:abcd", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheEntriesAreSnapshots(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	stored := cachedResponse{RequestID: "req-1", Files: []string{"src/auth.py"}}
	require.NoError(t, c.Set(ctx, "key", stored, 0))

	stored.Files[0] = "src/mutated.py"

	var got cachedResponse
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "src/auth.py", got.Files[0])
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	var got string
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", 0))
	require.NoError(t, c.Delete(ctx, "key"))

	var got string
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Delete(ctx, "absent"))
}

func TestMemoryCacheDeletePattern(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	keys := []string{
		RequestKey("github.com/acme/api", 1, []byte("a")),
		RequestKey("github.com/acme/api", 2, []byte("b")),
		RequestKey("github.com/globex/web", 1, []byte("c")),
	}
	for _, k := range keys {
		require.NoError(t, c.Set(ctx, k, "cached", 0))
	}

	deleted, err := c.DeletePattern(ctx, RepoPattern("github.com/acme/api"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var got string
	found, err := c.Get(ctx, keys[0], &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.Get(ctx, keys[2], &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryCacheDeletePatternExactKey(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "one", 0))
	require.NoError(t, c.Set(ctx, "ab", "two", 0))

	deleted, err := c.DeletePattern(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var got string
	found, err := c.Get(ctx, "ab", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryCacheDeletePatternNoMatches(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	deleted, err := c.DeletePattern(context.Background(), RepoPattern("absent"))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMemoryCacheGetIncompatibleTarget(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "not a number", 0))

	var got int
	found, err := c.Get(ctx, "key", &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := NewNoopCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	var got string
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := c.DeletePattern(ctx, "ctx:req:*")
	require.NoError(t, err)
	assert.Zero(t, deleted)

	require.NoError(t, c.Close())
}

func TestNewDispatch(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Backend: "memory", TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, &NoopCache{}, c)

	_, err = New(ctx, config.CacheConfig{Backend: "memcached"})
	assert.ErrorContains(t, err, "unsupported cache backend")

	_, err = New(ctx, config.CacheConfig{Backend: "redis"})
	assert.ErrorContains(t, err, "redis address missing")
}
