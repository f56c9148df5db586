package ingestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/parser"
	"github.com/voyantlabs/codectx/internal/signature"
)

const loginCode = "def login(user, pw):\n    return user == \"admin\""

func authFile() *parser.FileResult {
	return &parser.FileResult{
		FilePath:    "svc/auth.py",
		Language:    "python",
		LinesOfCode: 10,
		Functions: []parser.Entity{
			{Name: "login", StartLine: 2, EndLine: 5, Code: loginCode},
		},
		Classes: []parser.Entity{
			{Name: "Session", StartLine: 7, EndLine: 9, Code: "class Session:\n    pass"},
		},
		Chunks: []parser.Chunk{
			{Kind: models.ChunkASTRegion, StartLine: 2, EndLine: 9, Code: "region"},
			{Kind: models.ChunkFixed, StartLine: 0, EndLine: 1, Code: "import os"},
		},
	}
}

func entityByID(t *testing.T, entities []*models.Entity, id string) *models.Entity {
	t.Helper()
	for _, e := range entities {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entity %s not found", id)
	return nil
}

func TestBuildEntitiesShapes(t *testing.T) {
	sigs := signature.NewStore()
	entities, stats := buildEntities("repo-1", []*parser.FileResult{authFile()}, sigs)

	require.Len(t, entities, 5)
	assert.Equal(t, 1, stats.functions)
	assert.Equal(t, 1, stats.classes)
	assert.Equal(t, 2, stats.chunks)
	assert.Equal(t, 0, stats.duplicates)

	file := entityByID(t, entities, "repo-1:file:svc/auth.py")
	assert.Equal(t, models.EntityFile, file.EntityType)
	assert.Equal(t, "auth.py", file.Name)
	assert.Empty(t, file.Code)
	assert.Equal(t, 0, file.StartLine)
	assert.Equal(t, 9, file.EndLine)
	assert.Equal(t, "python", file.Language)

	fn := entityByID(t, entities, "repo-1:function:svc/auth.py:login")
	assert.Equal(t, models.EntityFunction, fn.EntityType)
	assert.Equal(t, loginCode, fn.Code)
	assert.Equal(t, 2, fn.StartLine)
	assert.Equal(t, 5, fn.EndLine)

	cls := entityByID(t, entities, "repo-1:class:svc/auth.py:Session")
	assert.Equal(t, models.EntityClass, cls.EntityType)

	chunk := entityByID(t, entities, "repo-1:chunk:svc/auth.py:2-9")
	assert.Equal(t, models.EntityChunk, chunk.EntityType)
	assert.Equal(t, "svc/auth.py:2-9", chunk.ChunkID)
	assert.Equal(t, "region", chunk.Code)
}

func TestBuildEntitiesNamesChunksAfterDominantSymbol(t *testing.T) {
	sigs := signature.NewStore()
	entities, _ := buildEntities("repo-1", []*parser.FileResult{authFile()}, sigs)

	// The region spans login (4 lines) and Session (3 lines)
	region := entityByID(t, entities, "repo-1:chunk:svc/auth.py:2-9")
	assert.Equal(t, "login", region.Name)

	// The fixed chunk covers no symbol at all
	fixed := entityByID(t, entities, "repo-1:chunk:svc/auth.py:0-1")
	assert.Empty(t, fixed.Name)
}

func TestBuildEntitiesChunkSignatureMatchesFunction(t *testing.T) {
	file := &parser.FileResult{
		FilePath:    "a.py",
		Language:    "python",
		LinesOfCode: 2,
		Functions: []parser.Entity{
			{Name: "login", StartLine: 0, EndLine: 1, Code: loginCode},
		},
		Chunks: []parser.Chunk{
			{Kind: models.ChunkASTRegion, StartLine: 0, EndLine: 1, Code: loginCode},
		},
	}

	sigs := signature.NewStore()
	entities, _ := buildEntities("repo-1", []*parser.FileResult{file}, sigs)

	fn := entityByID(t, entities, "repo-1:function:a.py:login")
	chunk := entityByID(t, entities, "repo-1:chunk:a.py:0-1")

	assert.Equal(t,
		signature.Compute(fn.Name, fn.Code),
		signature.Compute(chunk.Name, chunk.Code))
}

func TestBuildEntitiesCollapsesDuplicateDefinitions(t *testing.T) {
	dup := func(path string) *parser.FileResult {
		return &parser.FileResult{
			FilePath:    path,
			Language:    "python",
			LinesOfCode: 2,
			Functions: []parser.Entity{
				{Name: "login", StartLine: 0, EndLine: 1, Code: loginCode},
			},
			Chunks: []parser.Chunk{
				{Kind: models.ChunkASTRegion, StartLine: 0, EndLine: 1, Code: loginCode},
			},
		}
	}

	sigs := signature.NewStore()
	entities, stats := buildEntities("repo-1", []*parser.FileResult{dup("a.py"), dup("c.py")}, sigs)

	assert.Equal(t, 1, stats.functions)
	assert.Equal(t, 1, stats.duplicates)
	assert.Equal(t, 2, stats.chunks)

	// One function row, from the first file seen; chunks from both
	var fnIDs, chunkIDs []string
	for _, e := range entities {
		switch e.EntityType {
		case models.EntityFunction:
			fnIDs = append(fnIDs, e.ID)
		case models.EntityChunk:
			chunkIDs = append(chunkIDs, e.ID)
		}
	}
	assert.Equal(t, []string{"repo-1:function:a.py:login"}, fnIDs)
	assert.Len(t, chunkIDs, 2)

	counts, reps := sigs.Snapshot()
	sig := signature.Compute("login", loginCode)
	assert.Equal(t, 2, counts[sig])
	assert.Equal(t, "repo-1:function:a.py:login", reps[sig])
}

func TestBuildEntitiesSkipsFailedFiles(t *testing.T) {
	broken := &parser.FileResult{
		FilePath: "bad.py",
		Language: "python",
		Err:      errors.New("failed to read file"),
		Functions: []parser.Entity{
			{Name: "ghost", StartLine: 0, EndLine: 0, Code: "def ghost(): pass"},
		},
	}

	sigs := signature.NewStore()
	entities, stats := buildEntities("repo-1", []*parser.FileResult{broken, authFile()}, sigs)

	assert.Len(t, entities, 5)
	assert.Equal(t, 1, stats.functions)
	for _, e := range entities {
		assert.NotEqual(t, "bad.py", e.FilePath)
	}
}

func TestBuildEntitiesEmptyFileSpansLineZero(t *testing.T) {
	empty := &parser.FileResult{FilePath: "empty.py", Language: "python", LinesOfCode: 0}

	sigs := signature.NewStore()
	entities, _ := buildEntities("repo-1", []*parser.FileResult{empty}, sigs)

	require.Len(t, entities, 1)
	assert.Equal(t, 0, entities[0].StartLine)
	assert.Equal(t, 0, entities[0].EndLine)
}

func TestDominantSymbolFunctionWinsExactTie(t *testing.T) {
	file := &parser.FileResult{
		FilePath:    "tie.py",
		Language:    "python",
		LinesOfCode: 10,
		Functions:   []parser.Entity{{Name: "fn", StartLine: 0, EndLine: 4}},
		Classes:     []parser.Entity{{Name: "Cls", StartLine: 5, EndLine: 9}},
	}
	chunk := parser.Chunk{Kind: models.ChunkASTRegion, StartLine: 0, EndLine: 9}

	assert.Equal(t, "fn", dominantSymbol(file, chunk))
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 5, overlap(0, 9, 3, 7))
	assert.Equal(t, 1, overlap(0, 4, 4, 9))
	assert.Equal(t, 0, overlap(0, 3, 4, 9))
	assert.Equal(t, 3, overlap(2, 4, 0, 9))
}
