package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
)

var indexAsync bool

var indexCmd = &cobra.Command{
	Use:   "index [repo-id]",
	Short: "Build or rebuild a repository's context index",
	Long: `Parse the repository, extract entities and chunks, embed them, and publish
a fresh retrieval snapshot. Queries keep working against the previous
snapshot while the new one builds.

Examples:
  # Index the repository you are standing in
  cctx index

  # Index a registered repository by id
  cctx index gin-gonic/gin

  # Queue the job and return immediately
  cctx index gin-gonic/gin --async`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexAsync, "async", false, "queue the job and return without waiting")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newService(ctx, config.ValidationContextIngest)
	if err != nil {
		return err
	}
	defer svc.Close()

	var repoID string
	if len(args) > 0 {
		repoID = args[0]
	} else {
		repo, err := cli.DetectRepo(ctx, svc)
		if err != nil {
			return fmt.Errorf("failed to resolve repository: %s", cli.FormatError(err))
		}
		repoID = repo.ID
	}

	job, err := svc.IndexRepository(ctx, repoID)
	if err != nil {
		return fmt.Errorf("failed to start indexing: %s", cli.FormatError(err))
	}

	if indexAsync {
		fmt.Printf("🚀 Queued index job %s for %s\n", job.ID, repoID)
		fmt.Printf("💡 Watch it with 'cctx jobs status %s'\n", job.ID)
		return nil
	}

	return waitForJob(ctx, svc, job.ID)
}

// waitForJob polls until the job reaches a terminal state, echoing
// progress along the way.
func waitForJob(ctx context.Context, svc *service.Service, jobID string) error {
	fmt.Printf("🔄 Indexing (job %s)...\n", jobID)
	start := time.Now()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastPct := -1.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		job, err := svc.JobStatus(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to poll job: %s", cli.FormatError(err))
		}

		if job.Progress.Total > 0 && job.Progress.Percentage != lastPct {
			lastPct = job.Progress.Percentage
			fmt.Printf("  %3.0f%% (phase %d/%d)\n", job.Progress.Percentage, job.Progress.Current, job.Progress.Total)
		}

		if !job.Status.Terminal() {
			continue
		}

		if job.Status == models.JobFailed {
			return fmt.Errorf("indexing failed: %s", job.Error)
		}

		fmt.Printf("✅ Indexed in %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	}
}
