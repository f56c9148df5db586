package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/ingestion"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/storage"

	stderrors "errors"
)

// AddRepoRequest registers a repository. Source is a directory for
// local repos and a clone URL (or org/repo shorthand) otherwise. Name
// defaults from the source and doubles as the repository id.
type AddRepoRequest struct {
	Name       string            `json:"name,omitempty"`
	Source     string            `json:"source"`
	SourceType models.SourceType `json:"source_type"`
	Branch     string            `json:"branch,omitempty"`
}

// AddRepository registers a repository and, for remote sources, clones
// it into the data directory. The repository starts in pending status;
// nothing is queryable until an index job completes.
func (s *Service) AddRepository(ctx context.Context, req AddRepoRequest) (*models.Repository, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, errors.InvalidRequest("source is required").WithDetail("field", "source")
	}

	var (
		name      = strings.TrimSpace(req.Name)
		branch    = strings.TrimSpace(req.Branch)
		localPath string
	)

	switch req.SourceType {
	case models.SourceLocal:
		abs, err := filepath.Abs(req.Source)
		if err != nil {
			return nil, errors.InvalidRequestf("invalid local path %q", req.Source).WithDetail("field", "source")
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, errors.InvalidRequestf("local path %q is not a directory", req.Source).WithDetail("field", "source")
		}
		localPath = abs
		if name == "" {
			name = filepath.Base(abs)
		}

	case models.SourceGit:
		cloned, err := ingestion.CloneRepository(ctx, req.Source, branch, s.cfg.Index.DataDir)
		if err != nil {
			return nil, errors.Upstreamf(err, "clone of %s failed", req.Source)
		}
		localPath = cloned
		if name == "" {
			name = repoNameFromURL(req.Source)
		}

	case models.SourceGitHubHub:
		org, repoName, err := ingestion.ParseRepoURL(req.Source)
		if err != nil {
			return nil, errors.InvalidRequest(err.Error()).WithDetail("field", "source")
		}
		if branch == "" && s.github != nil {
			def, err := s.github.DefaultBranch(ctx, org, repoName)
			if err != nil {
				s.logger.Warn("default branch lookup failed, cloning remote HEAD",
					"repo", org+"/"+repoName, "error", err)
			} else {
				branch = def
			}
		}
		cloned, err := ingestion.CloneRepository(ctx, ingestion.BuildGitHubURL(org, repoName), branch, s.cfg.Index.DataDir)
		if err != nil {
			return nil, errors.Upstreamf(err, "clone of %s/%s failed", org, repoName)
		}
		localPath = cloned
		if name == "" {
			name = org + "/" + repoName
		}

	default:
		return nil, errors.InvalidRequestf("unknown source_type %q", req.SourceType).WithDetail("field", "source_type")
	}

	repo := &models.Repository{
		ID:         name,
		Name:       name,
		SourceType: req.SourceType,
		LocalPath:  localPath,
		Branch:     branch,
		Status:     models.RepoPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repos.Create(ctx, repo); err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return nil, errors.Conflictf("repository %q already exists", repo.ID)
		}
		return nil, errors.Internal(err, "repository create failed")
	}

	s.logger.Info("repository registered", "repo", repo.ID, "source_type", string(repo.SourceType))
	return repo, nil
}

// ListRepositories returns every registered repository.
func (s *Service) ListRepositories(ctx context.Context) ([]*models.Repository, error) {
	repos, err := s.repos.List(ctx)
	if err != nil {
		return nil, errors.Internal(err, "repository list failed")
	}
	return repos, nil
}

// GetRepository returns one repository by id.
func (s *Service) GetRepository(ctx context.Context, repoID string) (*models.Repository, error) {
	if strings.TrimSpace(repoID) == "" {
		return nil, errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	return s.repo(ctx, repoID)
}

// RemoveRepository deletes a repository and everything derived from it:
// vectors, snapshot, metadata, jobs, learned weights, cached responses.
// Removal is refused while an index job is active.
func (s *Service) RemoveRepository(ctx context.Context, repoID string) error {
	if strings.TrimSpace(repoID) == "" {
		return errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	if err := s.orch.RemoveRepository(ctx, repoID); err != nil {
		switch {
		case stderrors.Is(err, storage.ErrNotFound):
			return errors.NotFoundf("repository %q is not registered", repoID)
		case stderrors.Is(err, storage.ErrConflict):
			return errors.Conflictf("repository %q has an active index job", repoID)
		}
		return errors.Internal(err, "repository removal failed")
	}
	return nil
}

// repoNameFromURL derives a repository name from a clone URL. GitHub
// style URLs keep the org/repo pair, anything else keeps the last path
// segment without the .git suffix.
func repoNameFromURL(url string) string {
	if org, repo, err := ingestion.ParseRepoURL(url); err == nil {
		return org + "/" + repo
	}
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(url), "/"), ".git")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "repository"
	}
	return trimmed
}
