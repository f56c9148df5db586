package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/voyantlabs/codectx/internal/models"
)

// PostgresRepositoryStore keeps repositories in PostgreSQL, for
// deployments that already run postgres for the pgvector backend
type PostgresRepositoryStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresRepositoryStore connects to postgres and prepares the schema
func NewPostgresRepositoryStore(dsn string) (*PostgresRepositoryStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresRepositoryStore{
		db:     db,
		logger: slog.Default().With("component", "repo_store"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresRepositoryStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		local_path TEXT NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_indexed_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_repositories_status ON repositories(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create registers a repository, treating an existing id as a conflict
func (s *PostgresRepositoryStore) Create(ctx context.Context, repo *models.Repository) error {
	query := `
		INSERT INTO repositories
		(id, name, source_type, local_path, branch, status, created_at, last_indexed_at)
		VALUES (:id, :name, :source_type, :local_path, :branch, :status, :created_at, :last_indexed_at)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.NamedExecContext(ctx, query, repo)
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
func (s *PostgresRepositoryStore) Get(ctx context.Context, id string) (*models.Repository, error) {
	var repo models.Repository
	query := `SELECT * FROM repositories WHERE id = $1`

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
func (s *PostgresRepositoryStore) List(ctx context.Context) ([]*models.Repository, error) {
	var repos []*models.Repository
	query := `SELECT * FROM repositories ORDER BY created_at ASC, id ASC`

	if err := s.db.SelectContext(ctx, &repos, query); err != nil {
		return nil, err
	}

	return repos, nil
}

// UpdateStatus moves a repository through its lifecycle
func (s *PostgresRepositoryStore) UpdateStatus(ctx context.Context, id string, status models.RepoStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update repository status: %w", err)
	}
	return requireRow(result)
}

// MarkIndexed records a completed ingest: status ready plus timestamp
func (s *PostgresRepositoryStore) MarkIndexed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = $1, last_indexed_at = $2 WHERE id = $3`,
		string(models.RepoReady), at, id)
	if err != nil {
		return fmt.Errorf("failed to mark repository indexed: %w", err)
	}
	return requireRow(result)
}

// Delete removes a repository row
func (s *PostgresRepositoryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	return requireRow(result)
}

// Close closes the database connection
func (s *PostgresRepositoryStore) Close() error {
	return s.db.Close()
}
