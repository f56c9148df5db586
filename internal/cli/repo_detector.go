package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/voyantlabs/codectx/internal/ingestion"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
)

// DetectRepo resolves which registered repository the user means when
// a command is run without one. The working directory wins: a repo
// whose checkout contains the cwd matches first, then the git remote's
// org/repo is tried against registered names.
func DetectRepo(ctx context.Context, svc *service.Service) (*models.Repository, error) {
	repos, err := svc.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories registered; run 'cctx repo add' first")
	}

	if cwd, err := os.Getwd(); err == nil {
		for _, repo := range repos {
			if repo.LocalPath == "" {
				continue
			}
			if cwd == repo.LocalPath || strings.HasPrefix(cwd, repo.LocalPath+string(filepath.Separator)) {
				return repo, nil
			}
		}
	}

	if name := remoteName(ctx); name != "" {
		for _, repo := range repos {
			if repo.ID == name || repo.Name == name {
				return repo, nil
			}
		}
	}

	if len(repos) == 1 {
		return repos[0], nil
	}
	return nil, fmt.Errorf("cannot tell which repository you mean; pass --repo (registered: %s)", repoIDs(repos))
}

// GetRepoRoot returns the root of the git checkout containing the
// working directory.
func GetRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// remoteName reads origin's URL and normalizes it to org/repo. Empty
// when there is no git checkout or no parseable remote.
func remoteName(ctx context.Context) string {
	cmd := exec.CommandContext(ctx, "git", "config", "--get", "remote.origin.url")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	remoteURL := strings.TrimSpace(string(output))
	if remoteURL == "" {
		return ""
	}
	org, repo, err := ingestion.ParseRepoURL(remoteURL)
	if err != nil {
		return ""
	}
	return org + "/" + repo
}

func repoIDs(repos []*models.Repository) string {
	ids := make([]string, len(repos))
	for i, repo := range repos {
		ids[i] = repo.ID
	}
	return strings.Join(ids, ", ")
}
