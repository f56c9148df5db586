package service

import (
	"context"
	"strings"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
)

// RecordFeedback folds relevance feedback into the repository's learned
// ranking weights and returns the adjusted weights. The update reads
// the published snapshot's signals, so an unindexed repository cannot
// accept feedback.
func (s *Service) RecordFeedback(ctx context.Context, fb models.Feedback) (rank.Weights, error) {
	if strings.TrimSpace(fb.RepoID) == "" {
		return rank.Weights{}, errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	if len(fb.RelevantFiles) == 0 && len(fb.IrrelevantFiles) == 0 {
		return rank.Weights{}, errors.InvalidRequest("feedback must name at least one file").
			WithDetail("field", "relevant_files")
	}
	if _, err := s.repo(ctx, fb.RepoID); err != nil {
		return rank.Weights{}, err
	}
	snap, ok := s.registry.Get(fb.RepoID)
	if !ok {
		return rank.Weights{}, errors.NotFoundf("repository %q has no published index", fb.RepoID)
	}

	weights, err := s.weights.Update(fb, rank.Signals{
		Centrality: snap.Centrality,
		History:    snap.History,
		Recency:    snap.Recency,
	})
	if err != nil {
		return rank.Weights{}, errors.Internal(err, "weight update failed")
	}

	s.logger.Info("feedback recorded", "repo", fb.RepoID,
		"relevant", len(fb.RelevantFiles), "irrelevant", len(fb.IrrelevantFiles))
	return weights, nil
}
