package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
)

var (
	retrieveRepo      string
	retrieveMaxChunks int
	retrieveLangs     []string
	retrieveMode      string
	retrieveDepth     int
	retrieveSliceTgt  string
	retrieveSliceDir  string
	retrieveSliceHops int
	retrieveExpand    bool
	retrieveAgentic   bool
	retrieveIters     int
	retrieveJSON      bool
	retrieveDOT       bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query...]",
	Short: "Retrieve ranked code context for a query",
	Long: `Search the repository's published index and print the most relevant code
chunks, ranked by hybrid similarity and repository signals.

Examples:
  # Plain semantic retrieval
  cctx retrieve "where do we validate session tokens"

  # Seed with the call graph around the best matches
  cctx retrieve "token refresh" --mode callgraph --depth 2

  # Follow callers of a function instead of searching
  cctx retrieve "who calls this" --mode slice --slice-target validate_token --slice-direction backward`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveRepo, "repo", "", "repository id (default: detected from cwd)")
	retrieveCmd.Flags().IntVar(&retrieveMaxChunks, "max-chunks", 0, "maximum chunks to return (default: config)")
	retrieveCmd.Flags().StringSliceVar(&retrieveLangs, "lang", nil, "restrict to languages (repeatable)")
	retrieveCmd.Flags().StringVar(&retrieveMode, "mode", "", "retrieval mode: vector, callgraph, or slice")
	retrieveCmd.Flags().IntVar(&retrieveDepth, "depth", 0, "call graph expansion depth (callgraph mode)")
	retrieveCmd.Flags().StringVar(&retrieveSliceTgt, "slice-target", "", "function to slice from (slice mode)")
	retrieveCmd.Flags().StringVar(&retrieveSliceDir, "slice-direction", "", "slice direction: forward or backward")
	retrieveCmd.Flags().IntVar(&retrieveSliceHops, "slice-depth", 0, "slice traversal depth (default: config)")
	retrieveCmd.Flags().BoolVar(&retrieveExpand, "expand", false, "pull in neighboring chunks from the same files")
	retrieveCmd.Flags().BoolVar(&retrieveAgentic, "agentic", false, "let the LLM refine the query when results look weak")
	retrieveCmd.Flags().IntVar(&retrieveIters, "agentic-iters", 0, "refinement iterations (max 2)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print the raw response as JSON")
	retrieveCmd.Flags().BoolVar(&retrieveDOT, "dot", false, "print graph artifacts (DOT) after the chunks")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := resolveRepo(ctx, svc, retrieveRepo)
	if err != nil {
		return err
	}
	if err := cli.EnsureIndexed(ctx, svc, repo.ID); err != nil {
		return err
	}

	resp, err := svc.GetContext(ctx, models.RetrievalRequest{
		RepoID:          repo.ID,
		Query:           query,
		MaxChunks:       retrieveMaxChunks,
		Filters:         models.RetrievalFilters{Languages: retrieveLangs},
		RetrievalMode:   models.RetrievalMode(retrieveMode),
		CallGraphDepth:  retrieveDepth,
		SliceTarget:     retrieveSliceTgt,
		SliceDirection:  models.SliceDirection(retrieveSliceDir),
		SliceDepth:      retrieveSliceHops,
		ExpandNeighbors: retrieveExpand,
		Agentic:         retrieveAgentic,
		MaxAgenticIters: retrieveIters,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %s", cli.FormatError(err))
	}

	if retrieveJSON {
		return printJSON(resp)
	}

	printChunks(resp)

	if retrieveDOT {
		for _, artifact := range resp.Artifacts {
			fmt.Printf("\n── %s (%s) ──\n%s\n", artifact.Type, artifact.Format, artifact.Content)
		}
	}

	if repo.LastIndexedAt != nil {
		if hint := cli.CheckIndexFreshness(ctx, repo, *repo.LastIndexedAt); hint != "" {
			fmt.Printf("\n⚠️  %s\n", hint)
		}
	}
	return nil
}

func printChunks(resp *models.RetrievalResponse) {
	fmt.Printf("🔎 %d chunks (mode: %s, avg confidence: %.0f)\n",
		resp.Summary.Total, resp.Summary.RetrievalMode, resp.Summary.AvgConfidence)
	for _, note := range resp.Summary.Notes {
		fmt.Printf("⚠️  %s\n", note)
	}

	for i, chunk := range resp.Chunks {
		fmt.Printf("\n%d. %s:%d-%d", i+1, chunk.FilePath, chunk.StartLine+1, chunk.EndLine+1)
		if chunk.Name != "" {
			fmt.Printf("  %s", chunk.Name)
		}
		fmt.Printf("  (confidence %d)\n", chunk.Confidence)

		if len(chunk.Reasons) > 0 {
			parts := make([]string, 0, len(chunk.Reasons))
			for _, r := range chunk.Reasons {
				parts = append(parts, fmt.Sprintf("%s %.2f", r.Type, r.Score))
			}
			fmt.Printf("   signals: %s\n", strings.Join(parts, ", "))
		}

		printSnippet(chunk.Snippet)
	}
}

// printSnippet indents the code and truncates long chunks; the chunk_id
// is enough to fetch the rest.
func printSnippet(snippet string) {
	const maxLines = 12
	lines := strings.Split(snippet, "\n")
	shown := lines
	if len(lines) > maxLines {
		shown = lines[:maxLines]
	}
	for _, line := range shown {
		fmt.Printf("   │ %s\n", line)
	}
	if len(lines) > maxLines {
		fmt.Printf("   │ … (%d more lines)\n", len(lines)-maxLines)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// resolveRepo honors an explicit --repo and otherwise detects the
// repository from the working directory.
func resolveRepo(ctx context.Context, svc *service.Service, flag string) (*models.Repository, error) {
	if flag != "" {
		repo, err := svc.GetRepository(ctx, flag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repository: %s", cli.FormatError(err))
		}
		return repo, nil
	}
	repo, err := cli.DetectRepo(ctx, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository: %s", cli.FormatError(err))
	}
	return repo, nil
}
