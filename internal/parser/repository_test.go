package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
)

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestParseRepository(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "main.py", "def main():\n    pass\n")
	writeRepoFile(t, root, "src/app.js", "function run() {\n  return 1;\n}\n")
	writeRepoFile(t, root, "docs/readme.md", "# docs\n")

	repo, err := ParseRepository(context.Background(), root, 2)
	require.NoError(t, err)

	require.Len(t, repo.Files, 2)
	assert.Equal(t, "main.py", repo.Files[0].FilePath)
	assert.Equal(t, "src/app.js", repo.Files[1].FilePath)
	assert.Equal(t, models.LanguageStats{"python": 1, "javascript": 1}, repo.Stats)

	assert.Equal(t, []string{"main"}, entityNames(repo.Files[0].Functions))
	assert.Equal(t, []string{"run"}, entityNames(repo.Files[1].Functions))
}

func TestParseRepositorySkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "keep.py", "x = 1\n")
	writeRepoFile(t, root, "node_modules/lib/index.js", "module.exports = {};\n")
	writeRepoFile(t, root, "vendor/dep.py", "y = 2\n")
	writeRepoFile(t, root, "dist/bundle.js", "var z = 3;\n")
	writeRepoFile(t, root, "build/out.py", "w = 4\n")

	repo, err := ParseRepository(context.Background(), root, 0)
	require.NoError(t, err)

	require.Len(t, repo.Files, 1)
	assert.Equal(t, "keep.py", repo.Files[0].FilePath)
}

func TestParseRepositorySkipsHiddenEntries(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "app.py", "a = 1\n")
	writeRepoFile(t, root, ".git/hooks/sample.py", "b = 2\n")
	writeRepoFile(t, root, ".secrets.py", "c = 3\n")

	repo, err := ParseRepository(context.Background(), root, 0)
	require.NoError(t, err)

	require.Len(t, repo.Files, 1)
	assert.Equal(t, "app.py", repo.Files[0].FilePath)
}

func TestParseRepositoryEmptyTree(t *testing.T) {
	repo, err := ParseRepository(context.Background(), t.TempDir(), 0)
	require.NoError(t, err)

	assert.Empty(t, repo.Files)
	assert.Empty(t, repo.Stats)
}

func TestParseRepositoryCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.py", "x = 1\n")
	writeRepoFile(t, root, "b.py", "y = 2\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseRepository(ctx, root, 1)
	require.Error(t, err)
}
