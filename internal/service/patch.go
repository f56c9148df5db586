package service

import (
	"context"
	"strings"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/patch"
)

// ValidatePatch checks a unified diff without touching any worktree.
// A failing patch is a normal result, not an error; the verdict lists
// what is wrong.
func (s *Service) ValidatePatch(ctx context.Context, req models.PatchRequest) (*models.PatchValidation, error) {
	if strings.TrimSpace(req.Patch) == "" {
		return nil, errors.InvalidRequest("patch is required").WithDetail("field", "patch")
	}
	if req.RepoID != "" {
		if _, err := s.repo(ctx, req.RepoID); err != nil {
			return nil, err
		}
	}
	v := patch.Validate(req.Patch, req.RestrictToFiles, req.EnforceRestriction)
	return &v, nil
}

// ApplyPatch validates and applies a diff in an isolated worktree,
// then optionally commits, pushes, and opens a pull request. The
// repository's primary checkout is never mutated.
func (s *Service) ApplyPatch(ctx context.Context, req models.PatchRequest) (*models.PatchResult, error) {
	if strings.TrimSpace(req.RepoID) == "" {
		return nil, errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	if strings.TrimSpace(req.Patch) == "" {
		return nil, errors.InvalidRequest("patch is required").WithDetail("field", "patch")
	}
	repo, err := s.repo(ctx, req.RepoID)
	if err != nil {
		return nil, err
	}
	return s.applier.Apply(ctx, repo.LocalPath, req)
}
