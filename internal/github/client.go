// Package github wraps the git host API. The patch applier uses it to
// open pull requests; repository registration uses it to resolve
// default branches for github-sourced repos.
package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/voyantlabs/codectx/internal/models"
)

// Client wraps the GitHub API client with rate limiting. Every call
// blocks on the shared limiter so parallel applies stay under the
// host's quota.
type Client struct {
	api     *github.Client
	limiter *rate.Limiter
}

// NewClient creates a rate-limited client. rateLimit is requests per
// second; zero or negative falls back to 10. An empty token leaves the
// client anonymous, which is enough for public-repo reads.
func NewClient(token string, rateLimit int) *Client {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	api := github.NewClient(nil)
	if token != "" {
		api = api.WithAuthToken(token)
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// OpenPullRequest opens a pull request for an already-pushed head
// branch and reports its number and URL.
func (c *Client) OpenPullRequest(ctx context.Context, owner, repo string, spec models.PullRequestSpec) (*models.PullRequestInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	pr, _, err := c.api.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(spec.Title),
		Head:  github.String(spec.Head),
		Base:  github.String(spec.Base),
		Body:  github.String(spec.Body),
		Draft: github.Bool(spec.Draft),
	})
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	return &models.PullRequestInfo{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Title:  pr.GetTitle(),
		State:  pr.GetState(),
	}, nil
}

// DefaultBranch reports the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("fetch repository: %w", err)
	}
	return r.GetDefaultBranch(), nil
}
