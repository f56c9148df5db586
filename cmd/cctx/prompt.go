package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

var (
	promptRepo      string
	promptQuery     string
	promptSystem    string
	promptModel     string
	promptMaxTokens int
	promptMaxChunks int
	promptJSON      bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt [task...]",
	Short: "Assemble a token-budgeted prompt for a task",
	Long: `Retrieve context for the task and pack it into ready-to-send chat
messages. Chunks are included highest-confidence first until the token
budget is spent.

Examples:
  # Assemble with the default budget
  cctx prompt "add rate limiting to the login endpoint"

  # Tight budget for a small model, searched with a separate query
  cctx prompt "fix the retry loop" --query "http client retry backoff" --max-tokens 2000

  # Feed another tool
  cctx prompt "write tests for the parser" --json | jq '.messages'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrompt,
}

func init() {
	promptCmd.Flags().StringVar(&promptRepo, "repo", "", "repository id (default: detected from cwd)")
	promptCmd.Flags().StringVar(&promptQuery, "query", "", "retrieval query (default: the task text)")
	promptCmd.Flags().StringVar(&promptSystem, "system", "", "system prompt override")
	promptCmd.Flags().StringVar(&promptModel, "model", "", "model for token counting")
	promptCmd.Flags().IntVar(&promptMaxTokens, "max-tokens", 0, "token budget (default: config)")
	promptCmd.Flags().IntVar(&promptMaxChunks, "max-chunks", 0, "maximum chunks to retrieve (default: config)")
	promptCmd.Flags().BoolVar(&promptJSON, "json", false, "print the package as JSON")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	task := strings.Join(args, " ")

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := resolveRepo(ctx, svc, promptRepo)
	if err != nil {
		return err
	}
	if err := cli.EnsureIndexed(ctx, svc, repo.ID); err != nil {
		return err
	}

	pkg, err := svc.AssemblePrompt(ctx, models.PromptRequest{
		RepoID:       repo.ID,
		Task:         task,
		Query:        promptQuery,
		SystemPrompt: promptSystem,
		Model:        promptModel,
		MaxTokens:    promptMaxTokens,
		MaxChunks:    promptMaxChunks,
	})
	if err != nil {
		return fmt.Errorf("prompt assembly failed: %s", cli.FormatError(err))
	}

	if promptJSON {
		return printJSON(pkg)
	}

	usage := pkg.TokenUsage
	fmt.Printf("🧩 Assembled %d chunks, ~%d of %d tokens", usage.ChunksIncluded, usage.EstimatedTokens, usage.Budget)
	if usage.Model != "" {
		fmt.Printf(" (%s)", usage.Model)
	}
	fmt.Println()

	for _, msg := range pkg.Messages {
		fmt.Printf("\n── %s ──\n%s\n", msg.Role, msg.Content)
	}
	return nil
}
