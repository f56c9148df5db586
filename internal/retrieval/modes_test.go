package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/vector"
)

// authSnapshot models a small auth flow: login calls hash_pw and
// issue_token, auth_check calls login.
func authSnapshot() *snapshot.Snapshot {
	snap := snapshot.New(testRepo)
	snap.CallGraph.AddEdge("login", "hash_pw", "calls", 1)
	snap.CallGraph.AddEdge("login", "issue_token", "calls", 1)
	snap.CallGraph.AddEdge("auth_check", "login", "calls", 1)
	return snap
}

func authStore() *fakeStore {
	login := fnEntity("login", "auth/login.py", 10, 40)
	hashPw := fnEntity("hash_pw", "crypto/hash.py", 5, 25)
	issueToken := fnEntity("issue_token", "tokens/issue.py", 8, 30)
	authCheck := fnEntity("auth_check", "auth/check.py", 3, 12)

	return &fakeStore{
		functions: []vector.Candidate{hit(login, 0.15)},
		byName: map[string][]*models.Entity{
			"login":       {&login},
			"hash_pw":     {&hashPw},
			"issue_token": {&issueToken},
			"auth_check":  {&authCheck},
		},
		chunks: []vector.Candidate{
			hit(chunkEntity("c-readme", "docs/readme.py", 1, 30, "how login works"), 0.40),
			hit(chunkEntity("c-hash", "crypto/hash.py", 1, 30, "def hash_pw(p): pass"), 0.44),
			hit(chunkEntity("c-token", "tokens/issue.py", 1, 30, "def issue_token(u): pass"), 0.46),
		},
	}
}

func TestRetrieveCallGraphPromotesCalleeFiles(t *testing.T) {
	r := newTestRetriever(authStore())

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:         testRepo,
		Query:          "how does login verify passwords",
		RetrievalMode:  models.ModeCallGraph,
		CallGraphDepth: 2,
	}, authSnapshot())
	require.NoError(t, err)

	// Unpromoted the readme chunk wins on distance alone. The callee
	// files get the 0.07 reduction and overtake it.
	require.Len(t, resp.Chunks, 3)
	assert.Equal(t, "crypto/hash.py", resp.Chunks[0].FilePath)
	assert.Equal(t, "tokens/issue.py", resp.Chunks[1].FilePath)
	assert.Equal(t, "docs/readme.py", resp.Chunks[2].FilePath)

	assert.InDelta(t, 0.37, resp.Chunks[0].Distance, 1e-9)
	assert.Contains(t, reasonTypes(resp.Chunks[0].Reasons), "callgraph")

	require.Len(t, resp.Artifacts, 1)
	art := resp.Artifacts[0]
	assert.Equal(t, "callgraph", art.Type)
	assert.Equal(t, "dot", art.Format)
	assert.Contains(t, art.Content, `"login"`)
	assert.Contains(t, art.Content, `"hash_pw"`)
	assert.Contains(t, art.Content, `"issue_token"`)
	assert.Contains(t, art.Content, `"login" -> "hash_pw"`)
	assert.Contains(t, art.Content, `"login" -> "issue_token"`)

	assert.Equal(t, "callgraph", resp.Summary.RetrievalMode)
}

func TestRetrieveCallGraphEmptyGraphDegrades(t *testing.T) {
	store := authStore()
	store.chunks = append(store.chunks,
		hit(chunkEntity("c-login", "auth/login.py", 1, 30, "def login(u, p): pass"), 0.50))
	r := newTestRetriever(store)

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "how does login verify passwords",
		RetrievalMode: models.ModeCallGraph,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Empty(t, resp.Artifacts)
	assert.Contains(t, resp.Summary.Notes, "call graph is empty; no call-graph expansion applied")

	// The matched function still promotes its own file
	promoted := false
	for _, c := range resp.Chunks {
		if c.FilePath == "auth/login.py" {
			promoted = true
			assert.Contains(t, reasonTypes(c.Reasons), "callgraph")
		}
	}
	assert.True(t, promoted, "login chunk should survive selection with its promotion")
}

func TestRetrieveCallGraphFunctionSearchFailureDegrades(t *testing.T) {
	store := authStore()
	store.fnSearchErr = fmt.Errorf("index offline")
	r := newTestRetriever(store)

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "how does login verify passwords",
		RetrievalMode: models.ModeCallGraph,
	}, authSnapshot())
	require.NoError(t, err)

	assert.Empty(t, resp.Artifacts)
	assert.Contains(t, resp.Summary.Notes, "function search failed; call-graph promotion skipped")
	assert.Len(t, resp.Chunks, 3)
}

func TestRetrieveSliceForward(t *testing.T) {
	r := newTestRetriever(authStore())

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "trace the login flow",
		RetrievalMode: models.ModeSlice,
		SliceTarget:   "login",
	}, authSnapshot())
	require.NoError(t, err)

	require.Len(t, resp.Artifacts, 1)
	art := resp.Artifacts[0]
	assert.Equal(t, "slice", art.Type)
	assert.Equal(t, "dot", art.Format)
	assert.Contains(t, art.Content, `"login" -> "hash_pw"`)
	assert.Contains(t, art.Content, `"login" -> "issue_token"`)
	assert.NotContains(t, art.Content, `"auth_check"`)

	// Only the seed's file is promoted in slice mode
	for _, c := range resp.Chunks {
		if c.FilePath != "auth/login.py" {
			assert.NotContains(t, reasonTypes(c.Reasons), "slice")
		}
	}
}

func TestRetrieveSliceBackward(t *testing.T) {
	r := newTestRetriever(authStore())

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:         testRepo,
		Query:          "who calls login",
		RetrievalMode:  models.ModeSlice,
		SliceTarget:    "login",
		SliceDirection: models.SliceBackward,
		SliceDepth:     1,
	}, authSnapshot())
	require.NoError(t, err)

	require.Len(t, resp.Artifacts, 1)
	art := resp.Artifacts[0]
	assert.Contains(t, art.Content, `"auth_check" -> "login"`)
	assert.NotContains(t, art.Content, `"hash_pw"`)
}

func TestRetrieveSliceSeedFallsBackToSemanticMatch(t *testing.T) {
	store := authStore()
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	r := newTestRetriever(store, withEmbedder(embedder))

	// Target names nothing in the index; resolution embeds the target
	// text and takes the nearest function, which is login.
	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "trace the sign in flow",
		RetrievalMode: models.ModeSlice,
		SliceTarget:   "sign_in",
	}, authSnapshot())
	require.NoError(t, err)

	assert.Contains(t, embedder.texts, "sign_in")
	require.Len(t, resp.Artifacts, 1)
	assert.Contains(t, resp.Artifacts[0].Content, `"login" -> "hash_pw"`)
}

func TestRetrieveSliceSeedUnresolved(t *testing.T) {
	store := authStore()
	store.functions = nil
	store.byName = nil
	r := newTestRetriever(store)

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "trace the login flow",
		RetrievalMode: models.ModeSlice,
	}, authSnapshot())
	require.NoError(t, err)

	assert.Empty(t, resp.Artifacts)
	assert.Contains(t, resp.Summary.Notes, "slice seed not resolved; slice expansion skipped")
	assert.Len(t, resp.Chunks, 3)
}

func TestRetrieveSliceSeedOutsideCallGraph(t *testing.T) {
	store := authStore()
	orphan := fnEntity("orphan", "misc/orphan.py", 1, 5)
	store.byName["orphan"] = []*models.Entity{&orphan}
	r := newTestRetriever(store)

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:        testRepo,
		Query:         "trace the orphan flow",
		RetrievalMode: models.ModeSlice,
		SliceTarget:   "orphan",
	}, authSnapshot())
	require.NoError(t, err)

	assert.Empty(t, resp.Artifacts)
	assert.Contains(t, resp.Summary.Notes, "function orphan is not in the call graph; slice artifact skipped")
}
