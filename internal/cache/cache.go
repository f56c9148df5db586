// Package cache stores retrieval responses keyed by request hash.
//
// Three backends share one interface: redis for deployments with shared
// infrastructure, an in-process store for single-node setups, and a noop
// backend that disables caching. Every backend stores values as JSON, so
// a cached entry never aliases live data.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/voyantlabs/codectx/internal/config"
)

// DefaultTTL applies when the configuration does not set one.
const DefaultTTL = time.Hour

// Cache is the response cache used by the service layer.
//
// Get reports a miss as (false, nil); errors are reserved for backend
// failures and undecodable entries. A non-positive ttl on Set falls back
// to the backend's configured default.
type Cache interface {
	Get(ctx context.Context, key string, target interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Close() error
}

// New builds the cache backend named by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(ctx, cfg)
	case "memory", "":
		return NewMemoryCache(cfg.TTL), nil
	case "none":
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (use 'redis', 'memory', or 'none')", cfg.Backend)
	}
}

// RequestKey builds the cache key for a context request body. The snapshot
// version is part of the key, so publishing a new snapshot orphans every
// entry cached against older versions; those age out through the TTL.
func RequestKey(repoID string, version uint64, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("ctx:req:%s:v%d:%s", repoID, version, hex.EncodeToString(sum[:8]))
}

// RepoPattern matches every request entry cached for a repository across
// all snapshot versions. Used when a repository is deleted.
func RepoPattern(repoID string) string {
	return fmt.Sprintf("ctx:req:%s:*", repoID)
}

// NoopCache turns caching off. Every lookup misses and writes are
// discarded.
type NoopCache struct{}

// NewNoopCache creates a cache that never stores anything.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (n *NoopCache) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	return false, nil
}

func (n *NoopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (n *NoopCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoopCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	return 0, nil
}

func (n *NoopCache) Close() error {
	return nil
}
