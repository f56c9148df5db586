package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
	"github.com/voyantlabs/codectx/internal/temporal"
)

var (
	repoSourceType string
	repoBranch     string
	repoName       string
	repoAddIndex   bool
	repoRmYes      bool
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage registered repositories",
	Long:  `Register, inspect, and remove the repositories codectx serves context for.`,
}

var repoAddCmd = &cobra.Command{
	Use:   "add [source]",
	Short: "Register a repository",
	Long: `Register a repository so it can be indexed and queried.

The source is a local path, a git URL, or a GitHub repository. Remote
sources are cloned under the codectx data directory before indexing.

Examples:
  # Register the current directory
  cctx repo add .

  # Register a GitHub repository and start indexing right away
  cctx repo add https://github.com/gin-gonic/gin --index

  # Register a git remote on a specific branch
  cctx repo add git@internal:platform/billing.git --type git --branch release`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepoAdd,
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE:  runRepoList,
}

var repoRmCmd = &cobra.Command{
	Use:   "rm [repo-id]",
	Short: "Remove a repository and its index data",
	Long: `Remove a repository: its vector entries, snapshot, learned weights, and
cached responses are all deleted. Fails while an index job is running.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepoRm,
}

var repoStatsCmd = &cobra.Command{
	Use:   "stats [repo-id]",
	Short: "Show repository activity statistics",
	Long: `Display index status plus a year of git activity: commit volume and the
top contributors. Without an argument the repository is detected from the
current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepoStats,
}

func init() {
	repoAddCmd.Flags().StringVar(&repoSourceType, "type", "", "source type: local, git, or github (default: detected)")
	repoAddCmd.Flags().StringVar(&repoBranch, "branch", "", "branch to clone (remote sources)")
	repoAddCmd.Flags().StringVar(&repoName, "name", "", "repository id (default: derived from the source)")
	repoAddCmd.Flags().BoolVar(&repoAddIndex, "index", false, "start indexing immediately after registering")

	repoRmCmd.Flags().BoolVarP(&repoRmYes, "yes", "y", false, "skip the confirmation prompt")

	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoRmCmd)
	repoCmd.AddCommand(repoStatsCmd)
}

func runRepoAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	source := "."
	if len(args) > 0 {
		source = args[0]
	}

	svc, err := newService(ctx, config.ValidationContextIngest)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := svc.AddRepository(ctx, service.AddRepoRequest{
		Name:       repoName,
		Source:     source,
		SourceType: sniffSourceType(source),
		Branch:     repoBranch,
	})
	if err != nil {
		return fmt.Errorf("failed to register repository: %s", cli.FormatError(err))
	}

	fmt.Printf("📦 Registered %s\n", repo.ID)
	fmt.Printf("  Source: %s (%s)\n", repo.LocalPath, repo.SourceType)
	if repo.Branch != "" {
		fmt.Printf("  Branch: %s\n", repo.Branch)
	}

	if !repoAddIndex {
		fmt.Printf("\n💡 Run 'cctx index %s' to build its context index\n", repo.ID)
		return nil
	}

	job, err := svc.IndexRepository(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("failed to start indexing: %s", cli.FormatError(err))
	}
	return waitForJob(ctx, svc, job.ID)
}

func runRepoList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	repos, err := svc.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %s", cli.FormatError(err))
	}

	if len(repos) == 0 {
		fmt.Println("No repositories registered. Run 'cctx repo add' first.")
		return nil
	}

	fmt.Printf("%-28s %-10s %-10s %-20s %s\n", "ID", "TYPE", "STATUS", "LAST INDEXED", "PATH")
	for _, repo := range repos {
		indexed := "never"
		if repo.LastIndexedAt != nil {
			indexed = repo.LastIndexedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-28s %-10s %-10s %-20s %s\n", repo.ID, repo.SourceType, statusBadge(repo.Status), indexed, repo.LocalPath)
	}
	return nil
}

func runRepoRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoID := args[0]

	if !repoRmYes {
		fmt.Printf("Remove %q and all of its index data? (y/N): ", repoID)
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			fmt.Println("Cancelled")
			return nil
		}
	}

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.RemoveRepository(ctx, repoID); err != nil {
		return fmt.Errorf("failed to remove repository: %s", cli.FormatError(err))
	}

	fmt.Printf("🗑️  Removed %s\n", repoID)
	return nil
}

func runRepoStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	var repo *models.Repository
	if len(args) > 0 {
		repo, err = svc.GetRepository(ctx, args[0])
	} else {
		repo, err = cli.DetectRepo(ctx, svc)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve repository: %s", cli.FormatError(err))
	}

	fmt.Printf("🔍 %s\n", repo.ID)
	fmt.Printf("  Source: %s (%s)\n", repo.LocalPath, repo.SourceType)
	if repo.Branch != "" {
		fmt.Printf("  Branch: %s\n", repo.Branch)
	}
	fmt.Printf("  Status: %s\n", statusBadge(repo.Status))
	if repo.LastIndexedAt != nil {
		fmt.Printf("  Last indexed: %s\n", repo.LastIndexedAt.Local().Format("2006-01-02 15:04:05"))
		if hint := cli.CheckIndexFreshness(ctx, repo, *repo.LastIndexedAt); hint != "" {
			fmt.Printf("  ⚠️  %s\n", hint)
		}
	}

	commits, err := temporal.ParseGitHistory(ctx, repo.LocalPath, 365)
	if err != nil {
		fmt.Printf("\n📅 Activity: unavailable (%v)\n", err)
		return nil
	}

	fmt.Printf("\n📅 Activity (last 365 days):\n")
	fmt.Printf("  Commits: %d\n", len(commits))

	developers := temporal.ExtractDevelopers(commits)
	fmt.Printf("  Contributors: %d\n", len(developers))

	if len(developers) == 0 {
		return nil
	}

	sort.Slice(developers, func(i, j int) bool {
		return developers[i].TotalCommits > developers[j].TotalCommits
	})
	if len(developers) > 10 {
		developers = developers[:10]
	}

	fmt.Printf("\n👥 Top contributors:\n")
	for _, dev := range developers {
		fmt.Printf("  %-30s %4d commits  (last: %s)\n", dev.Name, dev.TotalCommits, dev.LastCommit.Format("2006-01-02"))
	}
	return nil
}

// sniffSourceType guesses the source type when --type is not given.
func sniffSourceType(source string) models.SourceType {
	switch repoSourceType {
	case "local":
		return models.SourceLocal
	case "git":
		return models.SourceGit
	case "github":
		return models.SourceGitHubHub
	}

	if strings.Contains(source, "github.com") {
		return models.SourceGitHubHub
	}
	if strings.Contains(source, "://") || strings.HasPrefix(source, "git@") {
		return models.SourceGit
	}
	return models.SourceLocal
}

func statusBadge(status models.RepoStatus) string {
	switch status {
	case models.RepoReady:
		return "✅ ready"
	case models.RepoIndexing:
		return "⏳ indexing"
	case models.RepoFailed:
		return "❌ failed"
	default:
		return "⏸  pending"
	}
}
