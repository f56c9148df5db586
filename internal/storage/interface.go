// Package storage persists repositories and index jobs. Repositories
// live in a relational store (sqlite by default, postgres optionally);
// jobs live in an embedded bbolt database that also enforces the
// one-active-job-per-repo rule.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// RepositoryStore persists registered repositories
type RepositoryStore interface {
	Create(ctx context.Context, repo *models.Repository) error
	Get(ctx context.Context, id string) (*models.Repository, error)
	List(ctx context.Context) ([]*models.Repository, error)
	UpdateStatus(ctx context.Context, id string, status models.RepoStatus) error
	MarkIndexed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// JobStore persists index jobs and their progress
type JobStore interface {
	Create(job *models.Job) error
	Get(id string) (*models.Job, error)
	Active(repoID string) (*models.Job, error)
	Start(id string) error
	UpdateProgress(id string, current, total int) error
	Complete(id string) error
	Fail(id string, message string) error
	List(repoID string) ([]*models.Job, error)
	DeleteByRepo(repoID string) error
	Close() error
}

// NewRepositoryStore builds the configured repository store backend
func NewRepositoryStore(cfg config.StorageConfig) (RepositoryStore, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteRepositoryStore(cfg.Path)
	case "postgres":
		return NewPostgresRepositoryStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (use 'sqlite' or 'postgres')", cfg.Backend)
	}
}
