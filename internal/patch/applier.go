package patch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
)

// PROpener opens pull requests on the git host. *github.Client
// satisfies it.
type PROpener interface {
	OpenPullRequest(ctx context.Context, owner, repo string, spec models.PullRequestSpec) (*models.PullRequestInfo, error)
}

// Applier applies validated patches through an isolated worktree. Each
// apply creates a fresh branch off the base, checks the patch before
// touching anything, and commits in the worktree. On failure after
// worktree creation the registration is pruned but the files stay on
// disk for inspection.
type Applier struct {
	cfg    config.PatchConfig
	prs    PROpener
	logger *slog.Logger
}

// NewApplier creates an applier. prs may be nil; apply requests that
// ask for a pull request then fail with an authorization error.
func NewApplier(cfg config.PatchConfig, prs PROpener) *Applier {
	if cfg.WorktreeDir == "" {
		cfg.WorktreeDir = filepath.Join(os.TempDir(), "codectx-worktrees")
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 120 * time.Second
	}
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 240 * time.Second
	}
	return &Applier{
		cfg:    cfg,
		prs:    prs,
		logger: slog.Default().With("component", "patch"),
	}
}

// Apply validates and applies a patch against the repository at
// repoPath. New-branch names always carry a random hex suffix, so
// repeated submissions of the same request land on distinct branches.
// Dry runs stop after the apply check and leave nothing behind.
func (a *Applier) Apply(ctx context.Context, repoPath string, req models.PatchRequest) (*models.PatchResult, error) {
	validation := Validate(req.Patch, req.RestrictToFiles, req.EnforceRestriction)
	if !validation.OK {
		return nil, errors.PatchInvalid("patch failed validation").
			WithDetail("issues", validation.Issues).
			WithDetail("files", validation.Files)
	}

	var logs []string
	logf := func(format string, args ...any) { logs = append(logs, fmt.Sprintf(format, args...)) }

	base := req.BaseBranch
	if base == "" {
		out, err := a.git(ctx, a.cfg.ApplyTimeout, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			return nil, errors.Upstream(err, "failed to resolve base branch")
		}
		base = out
	}

	suffix, err := randomSuffix()
	if err != nil {
		return nil, errors.Internal(err, "failed to generate branch suffix")
	}
	name := req.NewBranch
	if name == "" {
		name = "cctx/patch"
	}
	branch := name + "-" + suffix

	// A repo without remotes fetches nothing and that is fine; a local
	// checkout is still patchable.
	if _, err := a.git(ctx, a.cfg.NetworkTimeout, repoPath, "fetch", "--all", "--prune"); err != nil {
		logf("fetch failed, applying against local state: %v", err)
	} else {
		logf("fetched remotes")
	}

	if err := os.MkdirAll(a.cfg.WorktreeDir, 0o755); err != nil {
		return nil, errors.Internal(err, "failed to create worktree directory")
	}
	worktree := filepath.Join(a.cfg.WorktreeDir, strings.ReplaceAll(branch, "/", "-"))

	if _, err := a.git(ctx, a.cfg.ApplyTimeout, repoPath, "worktree", "add", "-b", branch, worktree, base); err != nil {
		return nil, errors.Upstream(err, "failed to create worktree")
	}
	logf("created worktree on branch %s (base %s)", branch, base)

	fail := func(e *errors.Error) (*models.PatchResult, error) {
		a.abandonWorktree(repoPath, worktree)
		return nil, e.WithDetail("worktree", worktree).WithDetail("logs", logs)
	}

	pArg := "-p1"
	if _, err := a.gitStdin(ctx, a.cfg.ApplyTimeout, worktree, req.Patch, "apply", "--check", "-p1"); err != nil {
		logf("apply --check -p1 failed: %v", err)
		if _, err0 := a.gitStdin(ctx, a.cfg.ApplyTimeout, worktree, req.Patch, "apply", "--check", "-p0"); err0 != nil {
			return fail(errors.PatchInvalid("patch does not apply to the base branch").
				WithDetail("p0_error", err0.Error()))
		}
		pArg = "-p0"
	}
	logf("apply --check %s succeeded", pArg)

	if req.DryRun {
		a.removeWorktree(repoPath, worktree)
		if _, err := a.git(context.Background(), a.cfg.ApplyTimeout, repoPath, "branch", "-D", branch); err != nil {
			a.logger.Warn("failed to delete dry-run branch", "branch", branch, "error", err)
		}
		logf("dry run: worktree and branch removed")
		return &models.PatchResult{
			BaseBranch: base,
			NewBranch:  branch,
			Validation: validation,
			Logs:       logs,
			Summary:    fmt.Sprintf("dry run: %d files apply cleanly to %s", len(validation.Files), base),
		}, nil
	}

	if _, err := a.gitStdin(ctx, a.cfg.ApplyTimeout, worktree, req.Patch, "apply", pArg); err != nil {
		return fail(errors.PatchInvalid("patch check passed but application failed").
			WithDetail("apply_error", err.Error()))
	}
	logf("applied patch with %s", pArg)

	if _, err := a.git(ctx, a.cfg.ApplyTimeout, worktree, "add", "-A"); err != nil {
		return fail(errors.Upstream(err, "failed to stage patched files"))
	}

	message := req.CommitMessage
	if message == "" {
		message = "Apply generated patch"
	}
	commitArgs := []string{"commit", "-m", message}
	if _, err := a.git(ctx, a.cfg.ApplyTimeout, worktree, "config", "user.email"); err != nil {
		// Worktree has no committer identity; commit under a service one.
		commitArgs = append([]string{"-c", "user.name=codectx", "-c", "user.email=codectx@localhost"}, commitArgs...)
	}
	if _, err := a.git(ctx, a.cfg.ApplyTimeout, worktree, commitArgs...); err != nil {
		return fail(errors.Upstream(err, "failed to commit patch"))
	}

	commit, err := a.git(ctx, a.cfg.ApplyTimeout, worktree, "rev-parse", "HEAD")
	if err != nil {
		return fail(errors.Upstream(err, "failed to read commit sha"))
	}
	logf("committed %s", commit)

	result := &models.PatchResult{
		BaseBranch: base,
		NewBranch:  branch,
		Commit:     commit,
		Validation: validation,
	}

	// A pull request needs the branch on the remote, so create_pr
	// implies push.
	if req.Push || req.CreatePR {
		if _, err := a.git(ctx, a.cfg.NetworkTimeout, worktree, "push", "-u", "origin", branch); err != nil {
			return fail(errors.Upstream(err, "failed to push patch branch"))
		}
		result.Pushed = true
		logf("pushed %s to origin", branch)
	}

	if req.CreatePR {
		info, prErr := a.openPullRequest(ctx, repoPath, branch, base, message, req)
		if prErr != nil {
			return fail(prErr)
		}
		result.PRCreated = true
		result.PR = info
		logf("opened pull request #%d", info.Number)
	}

	a.removeWorktree(repoPath, worktree)
	logf("worktree removed, branch %s kept", branch)

	result.Logs = logs
	result.Summary = summarize(result, len(validation.Files))

	a.logger.Info("patch applied",
		"branch", branch,
		"commit", commit,
		"files", len(validation.Files),
		"pushed", result.Pushed,
		"pr_created", result.PRCreated)
	return result, nil
}

func (a *Applier) openPullRequest(ctx context.Context, repoPath, branch, base, message string, req models.PatchRequest) (*models.PullRequestInfo, *errors.Error) {
	if a.prs == nil {
		return nil, errors.Unauthorized("pull request creation requires a configured github token")
	}

	remote, err := a.git(ctx, a.cfg.ApplyTimeout, repoPath, "remote", "get-url", "origin")
	if err != nil {
		return nil, errors.Upstream(err, "failed to read origin remote")
	}
	owner, repo, err := ParseRemoteURL(remote)
	if err != nil {
		return nil, errors.Upstreamf(err, "unsupported remote url %q", remote)
	}

	prBase := req.PRBase
	if prBase == "" {
		prBase = base
	}
	title := req.PRTitle
	if title == "" {
		title = message
	}

	prCtx, cancel := context.WithTimeout(ctx, a.cfg.NetworkTimeout)
	defer cancel()
	info, err := a.prs.OpenPullRequest(prCtx, owner, repo, models.PullRequestSpec{
		Title: title,
		Head:  branch,
		Base:  prBase,
		Body:  req.PRBody,
		Draft: req.PRDraft,
	})
	if err != nil {
		return nil, errors.Upstream(err, "failed to open pull request")
	}
	return info, nil
}

// abandonWorktree deregisters a worktree while leaving its files on
// disk. Used on failure so the partially patched tree stays around for
// inspection.
func (a *Applier) abandonWorktree(repoPath, worktree string) {
	if err := os.Remove(filepath.Join(worktree, ".git")); err != nil {
		a.logger.Warn("failed to detach worktree", "worktree", worktree, "error", err)
	}
	if _, err := a.git(context.Background(), a.cfg.ApplyTimeout, repoPath, "worktree", "prune"); err != nil {
		a.logger.Warn("failed to prune worktree registrations", "error", err)
	}
}

// removeWorktree removes a worktree and its files. The branch created
// for it is untouched.
func (a *Applier) removeWorktree(repoPath, worktree string) {
	if _, err := a.git(context.Background(), a.cfg.ApplyTimeout, repoPath, "worktree", "remove", "--force", worktree); err != nil {
		a.logger.Warn("failed to remove worktree", "worktree", worktree, "error", err)
		a.abandonWorktree(repoPath, worktree)
	}
}

func (a *Applier) git(ctx context.Context, timeout time.Duration, dir string, args ...string) (string, error) {
	return a.gitStdin(ctx, timeout, dir, "", args...)
}

// gitStdin runs one git command under dir with a bounded deadline,
// feeding stdin when non-empty. Output is trimmed; failures carry the
// combined output.
func (a *Applier) gitStdin(ctx context.Context, timeout time.Duration, dir, stdin string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	// The service has no terminal; a credential prompt must fail, not hang.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w (output: %s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func summarize(r *models.PatchResult, files int) string {
	s := fmt.Sprintf("applied %d files to %s (commit %.8s)", files, r.NewBranch, r.Commit)
	if r.Pushed {
		s += ", pushed"
	}
	if r.PR != nil {
		s += fmt.Sprintf(", PR #%d", r.PR.Number)
	}
	return s
}

var (
	httpsRemote = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/]+)`)
	sshRemote   = regexp.MustCompile(`git@[^:]+:([^/]+)/([^/]+)`)
)

// ParseRemoteURL extracts owner and repository name from a git remote
// URL in https or ssh form.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), ".git")

	if m := httpsRemote.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemote.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("unrecognized git remote url: %s", remote)
}
