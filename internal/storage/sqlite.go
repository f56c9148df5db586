package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/voyantlabs/codectx/internal/models"
)

// SQLiteRepositoryStore keeps repositories in a local sqlite database
type SQLiteRepositoryStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLiteRepositoryStore opens (creating if needed) the repository
// database at path
func NewSQLiteRepositoryStore(path string) (*SQLiteRepositoryStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteRepositoryStore{
		db:     db,
		logger: slog.Default().With("component", "repo_store"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteRepositoryStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		local_path TEXT NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_indexed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_repositories_status ON repositories(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create registers a repository. A repository with the same id is a
// conflict, not an upsert.
func (s *SQLiteRepositoryStore) Create(ctx context.Context, repo *models.Repository) error {
	query := `
		INSERT OR IGNORE INTO repositories
		(id, name, source_type, local_path, branch, status, created_at, last_indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		repo.ID, repo.Name, string(repo.SourceType), repo.LocalPath,
		repo.Branch, string(repo.Status), repo.CreatedAt, repo.LastIndexedAt)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("repository %s already exists: %w", repo.ID, ErrConflict)
	}

	s.logger.Debug("repository registered", "repo_id", repo.ID, "source", repo.SourceType)
	return nil
}

// Get returns one repository by id
func (s *SQLiteRepositoryStore) Get(ctx context.Context, id string) (*models.Repository, error) {
	var repo models.Repository
	query := `SELECT * FROM repositories WHERE id = ?`

	err := s.db.GetContext(ctx, &repo, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &repo, nil
}

// List returns all repositories, oldest first
func (s *SQLiteRepositoryStore) List(ctx context.Context) ([]*models.Repository, error) {
	var repos []*models.Repository
	query := `SELECT * FROM repositories ORDER BY created_at ASC, id ASC`

	if err := s.db.SelectContext(ctx, &repos, query); err != nil {
		return nil, err
	}

	return repos, nil
}

// UpdateStatus moves a repository through its lifecycle
func (s *SQLiteRepositoryStore) UpdateStatus(ctx context.Context, id string, status models.RepoStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update repository status: %w", err)
	}
	return requireRow(result)
}

// MarkIndexed records a completed ingest: status ready plus timestamp
func (s *SQLiteRepositoryStore) MarkIndexed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = ?, last_indexed_at = ? WHERE id = ?`,
		string(models.RepoReady), at, id)
	if err != nil {
		return fmt.Errorf("failed to mark repository indexed: %w", err)
	}
	return requireRow(result)
}

// Delete removes a repository row
func (s *SQLiteRepositoryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	return requireRow(result)
}

// Close closes the database connection
func (s *SQLiteRepositoryStore) Close() error {
	return s.db.Close()
}

// requireRow converts a zero-row update into ErrNotFound
func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
