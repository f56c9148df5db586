package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/graph"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/storage"

	stderrors "errors"
)

// IndexRepository queues an index job and runs it in the background.
// The returned job is in queued status; poll JobStatus for progress.
// One active job per repository: a second request while one is queued
// or running is a conflict.
func (s *Service) IndexRepository(ctx context.Context, repoID string) (*models.Job, error) {
	repo, err := s.repo(ctx, repoID)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:     uuid.NewString(),
		RepoID: repo.ID,
		Status: models.JobQueued,
	}
	if err := s.jobs.Create(job); err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return nil, errors.Conflictf("repository %q already has an active index job", repo.ID)
		}
		return nil, errors.Internal(err, "job create failed")
	}

	// The job must outlive this request, so it runs on a fresh context.
	// Its outcome lands in the job row either way.
	go s.orch.Run(context.Background(), repo, job.ID)

	return job, nil
}

// JobStatus returns one job by id.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*models.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.InvalidRequest("job_id is required").WithDetail("field", "job_id")
	}
	job, err := s.jobs.Get(jobID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFoundf("job %q not found", jobID)
		}
		return nil, errors.Internal(err, "job lookup failed")
	}
	return job, nil
}

// ListJobs returns jobs newest first, filtered by repository when
// repoID is non-empty.
func (s *Service) ListJobs(ctx context.Context, repoID string) ([]*models.Job, error) {
	jobs, err := s.jobs.List(repoID)
	if err != nil {
		return nil, errors.Internal(err, "job list failed")
	}
	return jobs, nil
}

// MergeTrace folds a dynamic execution trace into the repository's
// call graph, publishing a new snapshot version. The trace is the
// {nodes, edges} JSON produced by runtime tracers.
func (s *Service) MergeTrace(ctx context.Context, repoID string, traceJSON []byte) (*graph.BuildStats, error) {
	if strings.TrimSpace(repoID) == "" {
		return nil, errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	if len(traceJSON) == 0 || !json.Valid(traceJSON) {
		return nil, errors.InvalidRequest("trace must be a JSON document").WithDetail("field", "trace")
	}
	if _, err := s.repo(ctx, repoID); err != nil {
		return nil, err
	}
	if _, ok := s.registry.Get(repoID); !ok {
		return nil, errors.NotFoundf("repository %q has no published index", repoID)
	}

	stats, err := s.orch.MergeTrace(ctx, repoID, traceJSON)
	if err != nil {
		return nil, errors.Internal(err, "trace merge failed")
	}
	return stats, nil
}
