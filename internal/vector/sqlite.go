package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/voyantlabs/codectx/internal/models"
)

func init() {
	// Register sqlite-vec on every sqlite3 connection opened after this point
	vec.Auto()
}

// SQLiteStore is the local, zero-infrastructure vector backend
type SQLiteStore struct {
	db     *sqlx.DB
	dims   int
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string, dims int) (*SQLiteStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector store requires a positive dimension, got %d", dims)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dims:   dims,
		logger: slog.Default().With("component", "vector"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.logger.Debug("opened sqlite vector store", "path", path, "dimensions", dims)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
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
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_repo ON entities(repo_id);
	CREATE INDEX IF NOT EXISTS idx_entities_repo_file ON entities(repo_id, file_path);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes the batch in a single transaction
func (s *SQLiteStore) Upsert(ctx context.Context, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	if err := validateBatch(entities, s.dims); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT OR REPLACE INTO entities
		(id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id, embedding)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, entity := range entities {
		blob, err := encodeVector(entity.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for %s: %w", entity.ID, err)
		}
		_, err = tx.ExecContext(ctx, query,
			entity.ID, entity.RepoID, entity.FilePath, string(entity.EntityType),
			entity.Name, entity.Code, entity.Language,
			entity.StartLine, entity.EndLine, entity.ChunkID, blob)
		if err != nil {
			return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("upserted entities", "count", len(entities))
	return nil
}

// Search runs an ordered cosine-distance scan over the filtered rows
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, k int, filters Filters) ([]Candidate, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query embedding dimension %d does not match store dimension %d", len(embedding), s.dims)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	blob, err := encodeVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query embedding: %w", err)
	}

	where, args := buildSQLiteFilter(filters)
	query := fmt.Sprintf(`
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id,
		vec_distance_cosine(embedding, ?) AS distance
	FROM entities
	%s
	ORDER BY distance ASC
	LIMIT ?
	`, where)

	queryArgs := make([]interface{}, 0, len(args)+2)
	queryArgs = append(queryArgs, blob)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, k)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
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

// buildSQLiteFilter turns Filters into a WHERE clause and its args
func buildSQLiteFilter(filters Filters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filters.RepoID != "" {
		conditions = append(conditions, "repo_id = ?")
		args = append(args, filters.RepoID)
	}
	if len(filters.Languages) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filters.Languages)), ",")
		conditions = append(conditions, fmt.Sprintf("language IN (%s)", placeholders))
		for _, lang := range filters.Languages {
			args = append(args, lang)
		}
	}
	if filters.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filters.EntityType)
	}
	if filters.FilePath != "" {
		conditions = append(conditions, "file_path = ?")
		args = append(args, filters.FilePath)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// GetByFile returns a file's entities ordered by position, embeddings omitted
func (s *SQLiteStore) GetByFile(ctx context.Context, repoID, filePath string) ([]*models.Entity, error) {
	query := `
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id
	FROM entities
	WHERE repo_id = ? AND file_path = ?
	ORDER BY start_line ASC, end_line ASC
	`

	rows, err := s.db.QueryContext(ctx, query, repoID, filePath)
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
func (s *SQLiteStore) GetByName(ctx context.Context, repoID, name, entityType string) ([]*models.Entity, error) {
	query := `
	SELECT id, repo_id, file_path, entity_type, name, code, language, start_line, end_line, chunk_id
	FROM entities
	WHERE repo_id = ? AND name = ?`
	args := []interface{}{repoID, name}

	if entityType != "" {
		query += " AND entity_type = ?"
		args = append(args, entityType)
	}
	query += " ORDER BY file_path ASC, start_line ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) DeleteByFile(ctx context.Context, repoID, filePath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE repo_id = ? AND file_path = ?", repoID, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete entities for %s: %w", filePath, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRepository(ctx context.Context, repoID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE repo_id = ?", repoID)
	if err != nil {
		return fmt.Errorf("failed to delete repository %s: %w", repoID, err)
	}
	if deleted, err := result.RowsAffected(); err == nil {
		s.logger.Debug("deleted repository entities", "repo_id", repoID, "count", deleted)
	}
	return nil
}

func (s *SQLiteStore) CountEntities(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM entities WHERE repo_id = ?", repoID)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Dimensions() int {
	return s.dims
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector serializes a float32 slice as a little-endian blob,
// the layout sqlite-vec expects for vec_distance_cosine.
func encodeVector(embedding []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, embedding); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
