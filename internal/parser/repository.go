package parser

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/voyantlabs/codectx/internal/models"
)

const defaultParallelism = 8

// Dependency and build-output trees contribute noise, never context
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// ParseRepository walks repoRoot and parses every supported source
// file concurrently. Hidden directories and files are skipped. Parse
// failures are recorded per file, not returned.
func ParseRepository(ctx context.Context, repoRoot string, parallelism int) (*RepoResult, error) {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	paths, err := collectSourcePaths(repoRoot)
	if err != nil {
		return nil, err
	}

	results := make([]*FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ParseFile(filepath.Join(repoRoot, filepath.FromSlash(rel)), rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	repo := &RepoResult{
		Files: results,
		Stats: make(models.LanguageStats),
	}
	for _, file := range results {
		if file.Err == nil {
			repo.Stats[file.Language]++
		}
	}

	return repo, nil
}

func collectSourcePaths(repoRoot string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(repoRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != repoRoot {
				return filepath.SkipDir
			}
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p == repoRoot {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || DetectLanguage(p) == "" {
			return nil
		}

		rel, err := filepath.Rel(repoRoot, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
