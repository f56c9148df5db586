package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
)

var traceRepo string

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Merge runtime traces into the call graph",
	Long:  `Enrich the static call graph with edges observed at runtime.`,
}

var traceMergeCmd = &cobra.Command{
	Use:   "merge [trace-file]",
	Short: "Merge a runtime trace into the published call graph",
	Long: `Merge a {nodes, edges} JSON trace into the repository's call graph and
republish the snapshot. Calls seen at runtime strengthen existing edges
and add edges static analysis missed. Reads from stdin when no file is
given.

Examples:
  cctx trace merge profile.json
  pytest --trace-export=- | cctx trace merge --repo billing`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTraceMerge,
}

func init() {
	traceMergeCmd.Flags().StringVar(&traceRepo, "repo", "", "repository id (default: detected from cwd)")

	traceCmd.AddCommand(traceMergeCmd)
}

func runTraceMerge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var trace []byte
	var err error
	if len(args) > 0 && args[0] != "-" {
		trace, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read trace file: %w", err)
		}
	} else {
		trace, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read trace from stdin: %w", err)
		}
	}

	svc, err := newService(ctx, config.ValidationContextRetrieve)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := resolveRepo(ctx, svc, traceRepo)
	if err != nil {
		return err
	}

	stats, err := svc.MergeTrace(ctx, repo.ID, trace)
	if err != nil {
		return fmt.Errorf("trace merge failed: %s", cli.FormatError(err))
	}

	fmt.Printf("🕸️  Merged trace into %s: %d new nodes, %d new edges\n", repo.ID, stats.Nodes, stats.Edges)
	return nil
}
