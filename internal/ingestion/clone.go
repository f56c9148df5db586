package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CloneRepository shallow-clones url into a content-addressed directory
// under baseDir (the configured data dir; empty falls back to
// ~/.codectx) and returns the checkout path. An existing valid clone is
// reused; branch selects a single branch and defaults to the remote
// head. Clones persist so re-indexing skips the network.
func CloneRepository(ctx context.Context, url, branch, baseDir string) (string, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".codectx")
	}

	key := url
	if branch != "" {
		key += "#" + branch
	}
	repoPath := filepath.Join(baseDir, "repos", repoHash(key))

	if _, err := os.Stat(repoPath); err == nil {
		if isValidGitRepo(repoPath) {
			return repoPath, nil
		}
		// Half-finished or corrupted clone, start over
		os.RemoveAll(repoPath)
	}

	if err := os.MkdirAll(filepath.Dir(repoPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, repoPath)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git clone failed: %w, output: %s", err, string(output))
	}

	return repoPath, nil
}

// repoHash derives a stable directory name from a clone key
func repoHash(key string) string {
	key = strings.TrimSuffix(key, ".git")
	key = strings.TrimSuffix(key, "/")

	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)[:16]
}

func isValidGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ParseRepoURL extracts owner and name from a GitHub URL. Accepted
// forms: https://github.com/org/repo, git@github.com:org/repo.git, and
// the org/repo shorthand.
func ParseRepoURL(url string) (org string, repo string, err error) {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "git@github.com:")
	url = strings.TrimPrefix(url, "https://github.com/")
	url = strings.TrimPrefix(url, "http://github.com/")
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")

	parts := strings.Split(url, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s (expected org/repo)", url)
	}
	return parts[0], parts[1], nil
}

// BuildGitHubURL converts org/repo to a clonable GitHub URL
func BuildGitHubURL(org, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", org, repo)
}
