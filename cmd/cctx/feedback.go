package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

var (
	feedbackRepo       string
	feedbackRelevant   []string
	feedbackIrrelevant []string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Teach the ranker which files were actually useful",
	Long: `Record which retrieved files helped and which did not. The signal mix
used for ranking shifts toward the signals that favored the helpful files.

Examples:
  cctx feedback --relevant src/auth/session.py --relevant src/auth/tokens.py
  cctx feedback --relevant src/db/pool.py --irrelevant docs/architecture.md`,
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackRepo, "repo", "", "repository id (default: detected from cwd)")
	feedbackCmd.Flags().StringSliceVar(&feedbackRelevant, "relevant", nil, "file that was useful (repeatable)")
	feedbackCmd.Flags().StringSliceVar(&feedbackIrrelevant, "irrelevant", nil, "file that was noise (repeatable)")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(feedbackRelevant) == 0 && len(feedbackIrrelevant) == 0 {
		return fmt.Errorf("nothing to record: pass --relevant and/or --irrelevant files")
	}

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := resolveRepo(ctx, svc, feedbackRepo)
	if err != nil {
		return err
	}

	weights, err := svc.RecordFeedback(ctx, models.Feedback{
		RepoID:          repo.ID,
		RelevantFiles:   feedbackRelevant,
		IrrelevantFiles: feedbackIrrelevant,
	})
	if err != nil {
		return fmt.Errorf("failed to record feedback: %s", cli.FormatError(err))
	}

	fmt.Printf("📝 Recorded feedback for %s (%d relevant, %d irrelevant)\n",
		repo.ID, len(feedbackRelevant), len(feedbackIrrelevant))
	fmt.Printf("  Signal mix: semantic %.2f, dependency %.2f, history %.2f, recency %.2f\n",
		weights.Semantic, weights.Dependency, weights.History, weights.Recency)
	return nil
}
