package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/vector"
)

func TestParseSuggestions(t *testing.T) {
	response := strings.Join([]string{
		"These would help:",
		"- auth/login.py",
		"* `hash_pw()`",
		"1. tokens/issue.py",
		"• src/db.py",
		"  - \"quoted/path.py\"",
		"not a bullet line",
		"",
	}, "\n")

	got := parseSuggestions(response)
	assert.Equal(t, []string{
		"auth/login.py",
		"hash_pw",
		"tokens/issue.py",
		"src/db.py",
		"quoted/path.py",
	}, got)
}

func TestParseSuggestionsCapsAtTen(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, "- file%d.py\n", i)
	}

	got := parseSuggestions(sb.String())
	assert.Len(t, got, maxSuggestionsPerIter)
	assert.Equal(t, "file0.py", got[0])
}

func TestLooksLikePath(t *testing.T) {
	assert.True(t, looksLikePath("auth/login.py"))
	assert.True(t, looksLikePath("src/pkg/mod.go"))
	assert.False(t, looksLikePath("hash_pw"))
	assert.False(t, looksLikePath("main.py"))
	assert.False(t, looksLikePath("pkg/module"))
}

func agenticStore() *fakeStore {
	issueToken := fnEntity("issue_token", "tokens/issue.py", 8, 30)
	return &fakeStore{
		chunks: []vector.Candidate{
			hit(chunkEntity("c-main", "core/main.py", 1, 30, "def main(): pass"), 0.20),
		},
		byName: map[string][]*models.Entity{
			"issue_token": {&issueToken},
		},
		fileHits: map[string][]vector.Candidate{
			"core/main.py":    {hit(chunkEntity("c-main", "core/main.py", 1, 30, "def main(): pass"), 0.20)},
			"crypto/hash.py":  {hit(chunkEntity("c-hash", "crypto/hash.py", 1, 30, "def hash_pw(p): pass"), 0.30)},
			"tokens/issue.py": {hit(chunkEntity("c-token", "tokens/issue.py", 1, 30, "def issue_token(u): pass"), 0.50)},
			"a/x.py":          {hit(chunkEntity("c-x", "a/x.py", 1, 10, "x = 1"), 0.30)},
			"b/y.py":          {hit(chunkEntity("c-y", "b/y.py", 1, 10, "y = 2"), 0.40)},
		},
	}
}

func TestRetrieveAgenticMergesSuggestions(t *testing.T) {
	chat := &fakeChat{enabled: true, responses: []string{
		"- crypto/hash.py\n- `issue_token()`",
		"No further suggestions.",
	}}
	r := newTestRetriever(agenticStore(), withChat(chat))

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:    testRepo,
		Query:     "q",
		MaxChunks: 3,
		Agentic:   true,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	require.Len(t, resp.Chunks, 3)
	assert.Equal(t, "core/main.py", resp.Chunks[0].FilePath)
	assert.Equal(t, "crypto/hash.py", resp.Chunks[1].FilePath)
	assert.Equal(t, "tokens/issue.py", resp.Chunks[2].FilePath)

	// The boost shaved 0.03 off the suggested chunks' distances
	assert.InDelta(t, 0.27, resp.Chunks[1].Distance, 1e-9)
	assert.InDelta(t, 0.47, resp.Chunks[2].Distance, 1e-9)

	hashReasons := resp.Chunks[1].Reasons
	found := false
	for _, reason := range hashReasons {
		if reason.Type == "agentic" {
			found = true
			assert.Equal(t, "model suggested file crypto/hash.py", reason.Explanation)
		}
	}
	assert.True(t, found, "suggested chunk should carry an agentic reason")

	assert.Equal(t, 2, chat.calls)
}

func TestRetrieveAgenticUnavailableWithoutProvider(t *testing.T) {
	r := newTestRetriever(agenticStore())

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:  testRepo,
		Query:   "q",
		Agentic: true,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Len(t, resp.Chunks, 1)
	assert.Contains(t, resp.Summary.Notes, "agentic expansion unavailable; no llm provider configured")
}

func TestRetrieveAgenticDisabledProvider(t *testing.T) {
	chat := &fakeChat{enabled: false}
	r := newTestRetriever(agenticStore(), withChat(chat))

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:  testRepo,
		Query:   "q",
		Agentic: true,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Equal(t, 0, chat.calls)
	assert.Contains(t, resp.Summary.Notes, "agentic expansion unavailable; no llm provider configured")
}

func TestRetrieveAgenticStopsWhenNothingNew(t *testing.T) {
	chat := &fakeChat{enabled: true, responses: []string{"- core/main.py"}}
	r := newTestRetriever(agenticStore(), withChat(chat))

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:  testRepo,
		Query:   "q",
		Agentic: true,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Len(t, resp.Chunks, 1)
	assert.Equal(t, 1, chat.calls)
}

func TestRetrieveAgenticLLMFailureKeepsSelection(t *testing.T) {
	chat := &fakeChat{enabled: true, err: fmt.Errorf("rate limited")}
	r := newTestRetriever(agenticStore(), withChat(chat))

	resp, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:  testRepo,
		Query:   "q",
		Agentic: true,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Len(t, resp.Chunks, 1)
	assert.Equal(t, 1, chat.calls)
	assert.Contains(t, resp.Summary.Notes, "agentic expansion stopped early; llm unavailable")
}

func TestRetrieveAgenticIterationCapIsHard(t *testing.T) {
	chat := &fakeChat{enabled: true, responses: []string{
		"- a/x.py",
		"- b/y.py",
	}}
	r := newTestRetriever(agenticStore(), withChat(chat))

	_, err := r.Retrieve(context.Background(), models.RetrievalRequest{
		RepoID:          testRepo,
		Query:           "q",
		Agentic:         true,
		MaxAgenticIters: 99,
	}, snapshot.New(testRepo))
	require.NoError(t, err)

	assert.Equal(t, maxAgenticIters, chat.calls)
}

func TestAgenticMessages(t *testing.T) {
	selected := []rank.Candidate{
		candidateFor(chunkEntity("c-1", "a.py", 1, 5, "x")),
		candidateFor(chunkEntity("c-2", "a.py", 6, 9, "y")),
		candidateFor(chunkEntity("c-3", "b.py", 1, 5, "z")),
	}

	msgs := agenticMessages("how does auth work", selected)

	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "how does auth work")
	assert.Equal(t, 1, strings.Count(msgs[1].Content, "- a.py\n"))
	assert.Contains(t, msgs[1].Content, "- b.py\n")
}
