// Package vector persists entity embeddings and serves similarity
// search. Two backends exist: a local sqlite database using the
// sqlite-vec extension, and a shared PostgreSQL database using
// pgvector. Both reject rows whose vector dimension disagrees with the
// store's configured dimension.
package vector

import (
	"context"
	"fmt"

	"github.com/voyantlabs/codectx/internal/models"
)

// Filters narrows a similarity search. Zero values mean no filter.
type Filters struct {
	RepoID     string
	Languages  []string
	EntityType string
	FilePath   string
}

// Candidate is one search hit. Distance is cosine distance, smaller is
// closer, monotonically non-decreasing across a result set.
type Candidate struct {
	Entity   models.Entity
	Distance float64
}

// Store is the vector persistence contract
type Store interface {
	// Upsert writes or replaces rows keyed by entity id. The batch
	// must be dimension-homogeneous or the whole batch is rejected.
	Upsert(ctx context.Context, entities []*models.Entity) error

	// Search returns the k nearest entities ordered by distance
	Search(ctx context.Context, embedding []float32, k int, filters Filters) ([]Candidate, error)

	// GetByFile returns all entities in a file, ordered by start line.
	// Embeddings are not loaded.
	GetByFile(ctx context.Context, repoID, filePath string) ([]*models.Entity, error)

	// GetByName returns entities carrying an exact symbol name, ordered
	// by file path and start line. An empty entityType matches all types.
	// Embeddings are not loaded.
	GetByName(ctx context.Context, repoID, name, entityType string) ([]*models.Entity, error)

	DeleteByFile(ctx context.Context, repoID, filePath string) error
	DeleteRepository(ctx context.Context, repoID string) error
	CountEntities(ctx context.Context, repoID string) (int, error)

	// Dimensions returns the configured vector size
	Dimensions() int

	Close() error
}

// Config selects and parameterizes a backend
type Config struct {
	// Backend: "sqlite" (default) or "pgvector"
	Backend string

	// Path is the sqlite database file
	Path string

	// PostgresDSN is the pgvector connection string
	PostgresDSN string

	// Dimensions is the fixed vector size for the store
	Dimensions int
}

// NewStore creates a vector store based on configuration
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store requires a positive dimension, got %d", cfg.Dimensions)
	}

	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path, cfg.Dimensions)
	case "pgvector":
		return NewPGVectorStore(ctx, cfg.PostgresDSN, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s (use 'sqlite' or 'pgvector')", cfg.Backend)
	}
}

// validateBatch enforces the dimension invariant before any write
func validateBatch(entities []*models.Entity, dims int) error {
	for _, entity := range entities {
		if len(entity.Embedding) != dims {
			return fmt.Errorf("entity %s: embedding dimension %d does not match store dimension %d",
				entity.ID, len(entity.Embedding), dims)
		}
	}
	return nil
}
