package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

var jobsRepo string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect index jobs",
	Long:  `Track running index jobs and review past runs.`,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show one job, or the newest job for a repository",
	Long: `Show a job by id. Without an argument the newest job of the detected
(or --repo) repository is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobsStatus,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List index jobs, newest first",
	RunE:  runJobsList,
}

func init() {
	jobsStatusCmd.Flags().StringVar(&jobsRepo, "repo", "", "repository id (default: detected from cwd)")
	jobsListCmd.Flags().StringVar(&jobsRepo, "repo", "", "repository id (default: all repositories)")

	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsListCmd)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	var job *models.Job
	if len(args) > 0 {
		job, err = svc.JobStatus(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load job: %s", cli.FormatError(err))
		}
	} else {
		repo, err := resolveRepo(ctx, svc, jobsRepo)
		if err != nil {
			return err
		}
		jobs, err := svc.ListJobs(ctx, repo.ID)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %s", cli.FormatError(err))
		}
		if len(jobs) == 0 {
			fmt.Printf("No index jobs for %s yet. Run 'cctx index %s'.\n", repo.ID, repo.ID)
			return nil
		}
		job = jobs[0]
	}

	printJob(job)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	jobs, err := svc.ListJobs(ctx, jobsRepo)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %s", cli.FormatError(err))
	}

	if len(jobs) == 0 {
		fmt.Println("No index jobs recorded.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-12s %s\n", "JOB", "REPO", "STATUS", "STARTED")
	for _, job := range jobs {
		started := "-"
		if job.StartedAt != nil {
			started = job.StartedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-38s %-24s %-12s %s\n", job.ID, job.RepoID, job.Status, started)
	}
	return nil
}

func printJob(job *models.Job) {
	fmt.Printf("🧾 Job %s (repo %s)\n", job.ID, job.RepoID)
	fmt.Printf("  Status: %s\n", jobBadge(job.Status))
	if job.Progress.Total > 0 {
		fmt.Printf("  Progress: %.0f%% (phase %d/%d)\n", job.Progress.Percentage, job.Progress.Current, job.Progress.Total)
	}
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil && job.StartedAt != nil {
		fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}
}

func jobBadge(status models.JobStatus) string {
	switch status {
	case models.JobCompleted:
		return "✅ completed"
	case models.JobFailed:
		return "❌ failed"
	case models.JobRunning:
		return "⏳ running"
	default:
		return "📋 queued"
	}
}
