package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/ltr"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/storage"
)

type stubRepoStore struct {
	mu    sync.Mutex
	repos map[string]*models.Repository
}

func newStubRepoStore() *stubRepoStore {
	return &stubRepoStore{repos: make(map[string]*models.Repository)}
}

func (s *stubRepoStore) Create(_ context.Context, repo *models.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[repo.ID]; ok {
		return storage.ErrConflict
	}
	cp := *repo
	s.repos[repo.ID] = &cp
	return nil
}

func (s *stubRepoStore) Get(_ context.Context, id string) (*models.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *repo
	return &cp, nil
}

func (s *stubRepoStore) List(_ context.Context) ([]*models.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		cp := *repo
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubRepoStore) UpdateStatus(_ context.Context, id string, status models.RepoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[id]; ok {
		repo.Status = status
		return nil
	}
	return storage.ErrNotFound
}

func (s *stubRepoStore) MarkIndexed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[id]; ok {
		repo.Status = models.RepoReady
		repo.LastIndexedAt = &at
		return nil
	}
	return storage.ErrNotFound
}

func (s *stubRepoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, id)
	return nil
}

func (s *stubRepoStore) Close() error { return nil }

// newTestServer wires just enough service for handlers that fail fast
// on validation or lookups. Nothing here runs an actual index.
func newTestServer(t *testing.T) (*Server, *stubRepoStore, storage.JobStore) {
	t.Helper()

	jobs, err := storage.NewBoltJobStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Close() })

	repos := newStubRepoStore()
	svc := service.New(service.Deps{
		Config:   config.Default(),
		Repos:    repos,
		Jobs:     jobs,
		Registry: snapshot.NewRegistry(),
		Weights:  ltr.NewStore(t.TempDir()),
	})
	return NewServer(svc, "test"), repos, jobs
}

func call(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) *mcp.CallToolResult {
	t.Helper()
	res, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func payload(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "tool results are text content")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestIndexRepositoryToolRequiresRepoOrSource(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleIndexRepository, `{}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_request", payload(t, res)["code"])
}

func TestIndexRepositoryToolUnknownRepo(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleIndexRepository, `{"repo_id": "ghost"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "not_found", payload(t, res)["code"])
}

func TestGetContextToolValidation(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleGetContext, `{"repo_id": "widgets"}`)
	assert.True(t, res.IsError)

	p := payload(t, res)
	assert.Equal(t, "invalid_request", p["code"])
	details, ok := p["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "query", details["field"])
}

func TestGetContextToolUnknownRepo(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleGetContext, `{"repo_id": "ghost", "query": "auth"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "not_found", payload(t, res)["code"])
}

func TestGetContextToolMalformedArguments(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleGetContext, `{"repo_id": 42}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_request", payload(t, res)["code"])
}

func TestValidatePatchToolVerdicts(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleValidatePatch, `{"patch": "not a diff at all"}`)
	assert.False(t, res.IsError, "a failing patch is a verdict, not a tool error")
	p := payload(t, res)
	assert.Equal(t, false, p["ok"])

	good := "--- a/auth.py\n+++ b/auth.py\n@@ -1,1 +1,1 @@\n-x = 1\n+x = 2\n"
	args, err := json.Marshal(map[string]string{"patch": good})
	require.NoError(t, err)
	res = call(t, s.handleValidatePatch, string(args))
	assert.False(t, res.IsError)
	p = payload(t, res)
	assert.Equal(t, true, p["ok"])
}

func TestApplyPatchToolUnknownRepo(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleApplyPatch, `{"repo_id": "ghost", "patch": "--- a/x\n+++ b/x\n"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "not_found", payload(t, res)["code"])
}

func TestRecordFeedbackToolRequiresFiles(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleRecordFeedback, `{"repo_id": "widgets"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_request", payload(t, res)["code"])
}

func TestListRepositoriesTool(t *testing.T) {
	s, repos, _ := newTestServer(t)

	require.NoError(t, repos.Create(context.Background(), &models.Repository{
		ID:         "widgets",
		Name:       "widgets",
		SourceType: models.SourceLocal,
		Status:     models.RepoReady,
	}))

	res := call(t, s.handleListRepositories, `{}`)
	assert.False(t, res.IsError)

	p := payload(t, res)
	list, ok := p["repositories"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	repo := list[0].(map[string]any)
	assert.Equal(t, "widgets", repo["id"])
	assert.Equal(t, "ready", repo["status"])
}

func TestJobStatusToolByID(t *testing.T) {
	s, _, jobs := newTestServer(t)

	require.NoError(t, jobs.Create(&models.Job{ID: "job-1", RepoID: "widgets", Status: models.JobQueued}))

	res := call(t, s.handleJobStatus, `{"job_id": "job-1"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "job-1", payload(t, res)["job_id"])
}

func TestJobStatusToolNewestByRepo(t *testing.T) {
	s, _, jobs := newTestServer(t)

	require.NoError(t, jobs.Create(&models.Job{ID: "job-1", RepoID: "widgets", Status: models.JobQueued}))

	res := call(t, s.handleJobStatus, `{"repo_id": "widgets"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "job-1", payload(t, res)["job_id"])

	res = call(t, s.handleJobStatus, `{"repo_id": "ghost"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "not_found", payload(t, res)["code"])
}

func TestJobStatusToolRequiresAnID(t *testing.T) {
	s, _, _ := newTestServer(t)

	res := call(t, s.handleJobStatus, `{}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_request", payload(t, res)["code"])
}
