// Package cli holds helpers shared by the cctx commands: repository
// detection from the working directory, index readiness checks, and
// error rendering with stable codes.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
)

// EnsureIndexed verifies the repository can answer queries and
// otherwise explains what to run next.
func EnsureIndexed(ctx context.Context, svc *service.Service, repoID string) error {
	repo, err := svc.GetRepository(ctx, repoID)
	if err != nil {
		return err
	}

	switch repo.Status {
	case models.RepoReady:
		return nil
	case models.RepoIndexing:
		return fmt.Errorf("repository %q is still indexing; watch it with 'cctx jobs status --repo %s'", repoID, repoID)
	case models.RepoFailed:
		return fmt.Errorf("the last index of %q failed; re-run 'cctx index %s'", repoID, repoID)
	default:
		return fmt.Errorf("repository %q has not been indexed; run 'cctx index %s' first", repoID, repoID)
	}
}

// CheckIndexFreshness reports how far the working tree has moved since
// the index was built. Empty when fresh or when git is unavailable;
// advisory only, never an error for the caller.
func CheckIndexFreshness(ctx context.Context, repo *models.Repository, indexedAt time.Time) string {
	if repo.LocalPath == "" || indexedAt.IsZero() {
		return ""
	}

	cmd := exec.CommandContext(ctx, "git", "rev-list", "--count", "--since="+indexedAt.UTC().Format(time.RFC3339), "HEAD")
	cmd.Dir = repo.LocalPath
	out, err := cmd.Output()
	if err != nil {
		return ""
	}

	count := strings.TrimSpace(string(out))
	if count == "" || count == "0" {
		return ""
	}
	return fmt.Sprintf("index is %s commits behind; re-run 'cctx index %s' to refresh", count, repo.ID)
}

// FormatError renders an error for terminal output: the message, the
// stable code in brackets, and any field details on their own lines.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%v [%s]", err, errors.KindOf(err).Code())

	details := errors.DetailsOf(err)
	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %v", k, details[k])
		}
	}
	return b.String()
}
