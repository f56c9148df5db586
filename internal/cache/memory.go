package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache keeps responses in process memory. Suitable for single-node
// setups where a shared redis is not worth running.
type MemoryCache struct {
	store  *cache.Cache
	logger *slog.Logger
	ttl    time.Duration
}

// NewMemoryCache creates an in-process cache with the given default TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryCache{
		store:  cache.New(ttl, 2*ttl),
		logger: slog.Default().With("component", "cache"),
		ttl:    ttl,
	}
}

// Get retrieves a cached value by key and unmarshals it into target.
// A miss returns (false, nil).
func (c *MemoryCache) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	item, found := c.store.Get(key)
	if !found {
		return false, nil
	}

	data, ok := item.([]byte)
	if !ok {
		return false, fmt.Errorf("unexpected cache entry type for key %s", key)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value for key %s: %w", key, err)
	}

	return true, nil
}

// Set stores a value as JSON, same as the redis backend, so a cached entry
// never aliases the caller's data. A non-positive ttl uses the configured
// default.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	c.store.Set(key, data, ttl)
	return nil
}

// Delete removes a key from cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// DeletePattern deletes all keys matching a trailing-wildcard pattern such
// as "ctx:req:repo:*". Without a trailing star the match is exact, which
// covers every pattern the service issues.
func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	prefix, wildcard := strings.CutSuffix(pattern, "*")

	var deleted int64
	for key := range c.store.Items() {
		if wildcard && !strings.HasPrefix(key, prefix) {
			continue
		}
		if !wildcard && key != pattern {
			continue
		}
		c.store.Delete(key)
		deleted++
	}

	if deleted > 0 {
		c.logger.Info("cache pattern delete", "pattern", pattern, "deleted", deleted)
	}
	return deleted, nil
}

// Close drops the stored entries.
func (c *MemoryCache) Close() error {
	c.store.Flush()
	return nil
}
