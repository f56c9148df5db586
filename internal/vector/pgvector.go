package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/voyantlabs/codectx/internal/models"
)

// PGVectorStore is the shared PostgreSQL backend for team deployments
type PGVectorStore struct {
	pool   *pgxpool.Pool
	dims   int
	logger *slog.Logger
}

// NewPGVectorStore connects to PostgreSQL and ensures the schema exists
func NewPGVectorStore(ctx context.Context, dsn string, dims int) (*PGVectorStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgvector backend requires a connection string")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("vector store requires a positive dimension, got %d", dims)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection immediately so misconfiguration fails fast
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PGVectorStore{
		pool:   pool,
		dims:   dims,
		logger: slog.Default().With("component", "vector"),
	}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.logger.Debug("connected to pgvector store", "dimensions", dims)
	return store, nil
}

func (s *PGVectorStore) initSchema(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			repo_id TEXT NOT NULL,
			file_path TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			name TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			chunk_id TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.dims),
		"CREATE INDEX IF NOT EXISTS idx_entities_repo ON entities (repo_id)",
		"CREATE INDEX IF NOT EXISTS idx_entities_repo_file ON entities (repo_id, file_path)",
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Upsert writes the batch in a single transaction
func (s *PGVectorStore) Upsert(ctx context.Context, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	if err := validateBatch(entities, s.dims); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO entities
		(id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		repo_id = EXCLUDED.repo_id,
		file_path = EXCLUDED.file_path,
		entity_type = EXCLUDED.entity_type,
		name = EXCLUDED.name,
		code = EXCLUDED.code,
		language = EXCLUDED.language,
		start_line = EXCLUDED.start_line,
		end_line = EXCLUDED.end_line,
		chunk_id = EXCLUDED.chunk_id,
		embedding = EXCLUDED.embedding
	`

	for _, entity := range entities {
		_, err := tx.Exec(ctx, query,
			entity.ID, entity.RepoID, entity.FilePath, string(entity.EntityType),
			entity.Name, entity.Code, entity.Language,
			entity.StartLine, entity.EndLine, entity.ChunkID,
			pgvector.NewVector(entity.Embedding))
		if err != nil {
			return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("upserted entities", "count", len(entities))
	return nil
}

// Search runs a cosine-distance scan ordered nearest first
func (s *PGVectorStore) Search(ctx context.Context, embedding []float32, k int, filters Filters) ([]Candidate, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query embedding dimension %d does not match store dimension %d", len(embedding), s.dims)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	where, args := buildPGFilter(filters, 2)
	query := fmt.Sprintf(`
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id,
		embedding <=> $1 AS distance
	FROM entities
	%s
	ORDER BY distance ASC
	LIMIT %d
	`, where, k)

	queryArgs := make([]interface{}, 0, len(args)+1)
	queryArgs = append(queryArgs, pgvector.NewVector(embedding))
	queryArgs = append(queryArgs, args...)

	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		err := rows.Scan(&c.Entity.ID, &c.Entity.RepoID, &c.Entity.FilePath, &c.Entity.EntityType,
			&c.Entity.Name, &c.Entity.Code, &c.Entity.Language,
			&c.Entity.StartLine, &c.Entity.EndLine, &c.Entity.ChunkID, &c.Distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// buildPGFilter turns Filters into a WHERE clause with positional
// parameters starting at startIdx.
func buildPGFilter(filters Filters, startIdx int) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	idx := startIdx

	if filters.RepoID != "" {
		conditions = append(conditions, fmt.Sprintf("repo_id = $%d", idx))
		args = append(args, filters.RepoID)
		idx++
	}
	if len(filters.Languages) > 0 {
		conditions = append(conditions, fmt.Sprintf("language = ANY($%d)", idx))
		args = append(args, filters.Languages)
		idx++
	}
	if filters.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, filters.EntityType)
		idx++
	}
	if filters.FilePath != "" {
		conditions = append(conditions, fmt.Sprintf("file_path = $%d", idx))
		args = append(args, filters.FilePath)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// GetByFile returns a file's entities ordered by position, embeddings omitted
func (s *PGVectorStore) GetByFile(ctx context.Context, repoID, filePath string) ([]*models.Entity, error) {
	query := `
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id
	FROM entities
	WHERE repo_id = $1 AND file_path = $2
	ORDER BY start_line ASC, end_line ASC
	`

	rows, err := s.pool.Query(ctx, query, repoID, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities for %s: %w", filePath, err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		var e models.Entity
		err := rows.Scan(&e.ID, &e.RepoID, &e.FilePath, &e.EntityType,
			&e.Name, &e.Code, &e.Language, &e.StartLine, &e.EndLine, &e.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, &e)
	}

	return entities, rows.Err()
}

// GetByName resolves a symbol name to its entities, embeddings omitted
func (s *PGVectorStore) GetByName(ctx context.Context, repoID, name, entityType string) ([]*models.Entity, error) {
	query := `
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id
	FROM entities
	WHERE repo_id = $1 AND name = $2`
	args := []interface{}{repoID, name}

	if entityType != "" {
		query += " AND entity_type = $3"
		args = append(args, entityType)
	}
	query += " ORDER BY file_path ASC, start_line ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities named %s: %w", name, err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		var e models.Entity
		err := rows.Scan(&e.ID, &e.RepoID, &e.FilePath, &e.EntityType,
			&e.Name, &e.Code, &e.Language, &e.StartLine, &e.EndLine, &e.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, &e)
	}

	return entities, rows.Err()
}

func (s *PGVectorStore) DeleteByFile(ctx context.Context, repoID, filePath string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM entities WHERE repo_id = $1 AND file_path = $2", repoID, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete entities for %s: %w", filePath, err)
	}
	return nil
}

func (s *PGVectorStore) DeleteRepository(ctx context.Context, repoID string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM entities WHERE repo_id = $1", repoID)
	if err != nil {
		return fmt.Errorf("failed to delete repository %s: %w", repoID, err)
	}
	s.logger.Debug("deleted repository entities", "repo_id", repoID, "count", result.RowsAffected())
	return nil
}

func (s *PGVectorStore) CountEntities(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM entities WHERE repo_id = $1", repoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

func (s *PGVectorStore) Dimensions() int {
	return s.dims
}

func (s *PGVectorStore) Close() error {
	s.pool.Close()
	s.logger.Debug("closed pgvector store")
	return nil
}
