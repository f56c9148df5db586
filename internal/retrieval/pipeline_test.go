package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/rerank"
	"github.com/voyantlabs/codectx/internal/signature"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/vector"
)

func TestNormalizeClampsOutOfRangeDistances(t *testing.T) {
	state := newRequestState(snapshot.New(testRepo), 10)
	hits := []vector.Candidate{
		hit(chunkEntity("c-1", "a.py", 1, 2, "x"), -0.2),
		hit(chunkEntity("c-2", "b.py", 1, 2, "y"), 0.4),
		hit(chunkEntity("c-3", "c.py", 1, 2, "z"), 3.7),
	}

	candidates := normalize(hits, state)

	require.Len(t, candidates, 3)
	assert.Equal(t, 0.0, candidates[0].Distance)
	assert.Equal(t, 0.4, candidates[1].Distance)
	assert.Equal(t, 1.0, candidates[2].Distance)
	assert.Equal(t, []string{"some distances exceeded 1 and were clamped for scoring"}, state.notes)
}

func TestNormalizeNotesOnce(t *testing.T) {
	state := newRequestState(snapshot.New(testRepo), 10)
	hits := []vector.Candidate{
		hit(chunkEntity("c-1", "a.py", 1, 2, "x"), 2.0),
		hit(chunkEntity("c-2", "b.py", 1, 2, "y"), 5.0),
	}

	normalize(hits, state)
	assert.Len(t, state.notes, 1)
}

func TestPromotePreferredFloorsAtZero(t *testing.T) {
	state := newRequestState(snapshot.New(testRepo), 10)
	state.promotion = "callgraph"
	state.preferred["a.py"] = true

	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1", FilePath: "a.py"}, Distance: 0.05},
		{Entity: models.Entity{ID: "c-2", FilePath: "b.py"}, Distance: 0.05},
	}
	promotePreferred(candidates, state)

	assert.Equal(t, 0.0, candidates[0].Distance)
	require.Len(t, candidates[0].Reasons, 1)
	assert.Equal(t, "callgraph", candidates[0].Reasons[0].Type)
	assert.Equal(t, preferredBoost, candidates[0].Reasons[0].Score)

	assert.Equal(t, 0.05, candidates[1].Distance)
	assert.Empty(t, candidates[1].Reasons)
}

func TestDedupBySignatureFirstWins(t *testing.T) {
	code := "def setup():\n    pass"
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1", Name: "setup", Code: code}},
		{Entity: models.Entity{ID: "c-2", Name: "setup", Code: "def setup():  \n\n  pass"}},
		{Entity: models.Entity{ID: "c-3", Name: "other", Code: "def other(): pass"}},
	}

	counts := map[string]int{signature.Compute("setup", code): 3}
	kept := dedupBySignature(candidates, counts)

	require.Len(t, kept, 2)
	assert.Equal(t, "c-1", kept[0].Entity.ID)
	assert.Equal(t, "c-3", kept[1].Entity.ID)

	require.Len(t, kept[0].Reasons, 1)
	assert.Equal(t, "dedup", kept[0].Reasons[0].Type)
	assert.Equal(t, "Deduplicated 2 similar definitions", kept[0].Reasons[0].Explanation)
	assert.Empty(t, kept[1].Reasons)
}

func TestSelectChunksSkipsRepeatedIDs(t *testing.T) {
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "e-1", ChunkID: "c-1"}},
		{Entity: models.Entity{ID: "e-2", ChunkID: "c-1"}},
		{Entity: models.Entity{ID: "e-3", ChunkID: "c-2"}},
		{Entity: models.Entity{ID: "e-4", ChunkID: "c-3"}},
	}

	selected := selectChunks(candidates, 2)

	require.Len(t, selected, 2)
	assert.Equal(t, "c-1", selected[0].Entity.ChunkID)
	assert.Equal(t, "c-2", selected[1].Entity.ChunkID)
}

func TestChunkKeyFallsBackToEntityID(t *testing.T) {
	assert.Equal(t, "c-9", chunkKey(models.Entity{ID: "e-1", ChunkID: "c-9"}))
	assert.Equal(t, "e-1", chunkKey(models.Entity{ID: "e-1"}))
}

func TestCrossEncodeReordersHeadKeepsTail(t *testing.T) {
	rr := &fakeReranker{results: []rerank.Result{
		{Index: 1, Score: 0.9},
		{Index: 0, Score: 0.4},
	}}
	r := newTestRetriever(&fakeStore{}, withReranker(rr), withConfig(Config{
		MaxChunks: 10, HybridAlpha: 0.2, SliceDepth: 2, RerankTopK: 2,
	}))

	state := newRequestState(snapshot.New(testRepo), 10)
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1"}},
		{Entity: models.Entity{ID: "c-2"}},
		{Entity: models.Entity{ID: "c-3"}},
	}

	out := r.crossEncode(context.Background(), "q", candidates, state)

	require.Len(t, out, 3)
	assert.Equal(t, "c-2", out[0].Entity.ID)
	assert.Equal(t, "c-1", out[1].Entity.ID)
	assert.Equal(t, "c-3", out[2].Entity.ID)
	assert.Equal(t, 1, rr.calls)
	assert.Empty(t, state.notes)
}

func TestCrossEncodeFailureKeepsOrder(t *testing.T) {
	rr := &fakeReranker{err: fmt.Errorf("tei timeout")}
	r := newTestRetriever(&fakeStore{}, withReranker(rr))

	state := newRequestState(snapshot.New(testRepo), 10)
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1"}},
		{Entity: models.Entity{ID: "c-2"}},
	}

	out := r.crossEncode(context.Background(), "q", candidates, state)

	require.Len(t, out, 2)
	assert.Equal(t, "c-1", out[0].Entity.ID)
	assert.Contains(t, state.notes, "cross-encoder rerank unavailable; kept hybrid order")
}

func TestCrossEncodeShortResultKeepsOrder(t *testing.T) {
	rr := &fakeReranker{results: []rerank.Result{{Index: 0, Score: 0.5}}}
	r := newTestRetriever(&fakeStore{}, withReranker(rr))

	state := newRequestState(snapshot.New(testRepo), 10)
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1"}},
		{Entity: models.Entity{ID: "c-2"}},
	}

	out := r.crossEncode(context.Background(), "q", candidates, state)

	assert.Equal(t, "c-1", out[0].Entity.ID)
	assert.Contains(t, state.notes, "cross-encoder rerank unavailable; kept hybrid order")
}

func TestCrossEncodeSkipsWhenUnavailable(t *testing.T) {
	r := newTestRetriever(&fakeStore{}, withReranker(rerank.Noop{}))

	state := newRequestState(snapshot.New(testRepo), 10)
	candidates := []rank.Candidate{
		{Entity: models.Entity{ID: "c-1"}},
		{Entity: models.Entity{ID: "c-2"}},
	}

	out := r.crossEncode(context.Background(), "q", candidates, state)

	assert.Equal(t, "c-1", out[0].Entity.ID)
	assert.Empty(t, state.notes)
}
