package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/cli"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

var (
	patchRepo     string
	patchRestrict []string
	patchEnforce  bool

	applyBaseBranch string
	applyNewBranch  string
	applyMessage    string
	applyPush       bool
	applyPR         bool
	applyPRTitle    string
	applyPRBody     string
	applyPRBase     string
	applyPRDraft    bool
	applyDryRun     bool
	applyOpen       bool
	applyJSON       bool
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Validate and apply unified diffs",
	Long:  `Check agent-produced patches and apply them on an isolated branch.`,
}

var patchValidateCmd = &cobra.Command{
	Use:   "validate [patch-file]",
	Short: "Check a unified diff without touching the repository",
	Long: `Parse the patch and report structural problems and restriction
violations. Reads from stdin when no file is given.

Examples:
  cctx patch validate fix.patch
  git diff | cctx patch validate --restrict src/auth.py --enforce`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPatchValidate,
}

var patchApplyCmd = &cobra.Command{
	Use:   "apply [patch-file]",
	Short: "Apply a unified diff on a fresh branch",
	Long: `Apply the patch in an isolated worktree: validate, branch off the base,
commit, and optionally push and open a pull request. The working tree you
are standing in is never modified.

Examples:
  # Apply and commit locally
  cctx patch apply fix.patch --message "fix login redirect"

  # Push, open a PR, and jump to it in the browser
  cctx patch apply fix.patch --push --pr --pr-title "Fix login redirect" --open

  # Rehearse without committing
  git diff | cctx patch apply --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPatchApply,
}

func init() {
	patchValidateCmd.Flags().StringVar(&patchRepo, "repo", "", "repository id (default: detected from cwd)")
	patchValidateCmd.Flags().StringSliceVar(&patchRestrict, "restrict", nil, "files the patch may touch (repeatable)")
	patchValidateCmd.Flags().BoolVar(&patchEnforce, "enforce", false, "treat restriction violations as errors")

	patchApplyCmd.Flags().StringVar(&patchRepo, "repo", "", "repository id (default: detected from cwd)")
	patchApplyCmd.Flags().StringSliceVar(&patchRestrict, "restrict", nil, "files the patch may touch (repeatable)")
	patchApplyCmd.Flags().BoolVar(&patchEnforce, "enforce", false, "treat restriction violations as errors")
	patchApplyCmd.Flags().StringVar(&applyBaseBranch, "base", "", "base branch (default: repository default)")
	patchApplyCmd.Flags().StringVar(&applyNewBranch, "branch", "", "branch to create (default: generated)")
	patchApplyCmd.Flags().StringVarP(&applyMessage, "message", "m", "", "commit message")
	patchApplyCmd.Flags().BoolVar(&applyPush, "push", false, "push the branch to origin")
	patchApplyCmd.Flags().BoolVar(&applyPR, "pr", false, "open a pull request (implies --push)")
	patchApplyCmd.Flags().StringVar(&applyPRTitle, "pr-title", "", "pull request title")
	patchApplyCmd.Flags().StringVar(&applyPRBody, "pr-body", "", "pull request body")
	patchApplyCmd.Flags().StringVar(&applyPRBase, "pr-base", "", "pull request base (default: base branch)")
	patchApplyCmd.Flags().BoolVar(&applyPRDraft, "draft", false, "open the pull request as a draft")
	patchApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "validate and apply in the worktree, commit nothing")
	patchApplyCmd.Flags().BoolVar(&applyOpen, "open", false, "open the created pull request in the browser")
	patchApplyCmd.Flags().BoolVar(&applyJSON, "json", false, "print the result as JSON")

	patchCmd.AddCommand(patchValidateCmd)
	patchCmd.AddCommand(patchApplyCmd)
}

func runPatchValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	patchText, err := readPatch(args)
	if err != nil {
		return err
	}

	svc, err := newService(ctx, config.ValidationContextPatch)
	if err != nil {
		return err
	}
	defer svc.Close()

	verdict, err := svc.ValidatePatch(ctx, models.PatchRequest{
		RepoID:             patchRepo,
		Patch:              patchText,
		RestrictToFiles:    patchRestrict,
		EnforceRestriction: patchEnforce,
	})
	if err != nil {
		return fmt.Errorf("validation failed: %s", cli.FormatError(err))
	}

	if verdict.OK {
		fmt.Printf("✅ Patch is valid (%d files)\n", len(verdict.Files))
	} else {
		fmt.Printf("❌ Patch has %d issues\n", len(verdict.Issues))
		for _, issue := range verdict.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	for _, file := range verdict.Files {
		fmt.Printf("  %s\n", file)
	}

	if !verdict.OK {
		os.Exit(1)
	}
	return nil
}

func runPatchApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	patchText, err := readPatch(args)
	if err != nil {
		return err
	}

	svc, err := newService(ctx, config.ValidationContextPatch)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo, err := resolveRepo(ctx, svc, patchRepo)
	if err != nil {
		return err
	}

	result, err := svc.ApplyPatch(ctx, models.PatchRequest{
		RepoID:             repo.ID,
		Patch:              patchText,
		BaseBranch:         applyBaseBranch,
		NewBranch:          applyNewBranch,
		CommitMessage:      applyMessage,
		Push:               applyPush || applyPR,
		CreatePR:           applyPR,
		PRTitle:            applyPRTitle,
		PRBody:             applyPRBody,
		PRBase:             applyPRBase,
		PRDraft:            applyPRDraft,
		DryRun:             applyDryRun,
		RestrictToFiles:    patchRestrict,
		EnforceRestriction: patchEnforce,
	})
	if err != nil {
		return fmt.Errorf("patch apply failed: %s", cli.FormatError(err))
	}

	if applyJSON {
		return printJSON(result)
	}

	fmt.Printf("🔀 %s\n", result.Summary)
	if result.NewBranch != "" {
		fmt.Printf("  Branch: %s (base %s)\n", result.NewBranch, result.BaseBranch)
	}
	if result.Commit != "" {
		fmt.Printf("  Commit: %s\n", shortSHA(result.Commit))
	}
	if result.Pushed {
		fmt.Printf("  Pushed: origin/%s\n", result.NewBranch)
	}
	if result.PR != nil {
		fmt.Printf("  PR: #%d %s\n", result.PR.Number, result.PR.URL)
	}
	if verbose {
		for _, line := range result.Logs {
			fmt.Printf("  > %s\n", line)
		}
	}

	if applyOpen {
		if result.PR == nil {
			fmt.Println("⚠️  No pull request was created, nothing to open")
			return nil
		}
		if err := browser.OpenURL(result.PR.URL); err != nil {
			fmt.Printf("⚠️  Could not open browser: %v\n", err)
			fmt.Printf("   %s\n", result.PR.URL)
		}
	}
	return nil
}

// readPatch loads the diff from the file argument, or stdin when the
// argument is missing or "-".
func readPatch(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read patch file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read patch from stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no patch given: pass a file or pipe a diff on stdin")
	}
	return string(data), nil
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
