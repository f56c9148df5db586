// Package retrieval turns a natural-language query into ranked,
// explained context chunks. The pipeline runs fixed stages in a fixed
// order: normalize store hits, apply mode promotions, hybrid rerank,
// cross-encoder rerank, weighted rank, signature dedup, selection, and
// the optional neighbor and agentic expansions. Optional stages degrade
// into summary notes instead of failing the request; only query
// embedding and the chunk search itself are fatal.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/voyantlabs/codectx/internal/embedding"
	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/llm"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/rerank"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/vector"
)

const (
	// preferredBoost is subtracted from the distance of candidates
	// living in files promoted by callgraph or slice mode, floored at 0
	preferredBoost = 0.07

	// agenticBoost is the smaller distance reduction applied to chunks
	// pulled in from agentic suggestions
	agenticBoost = 0.03

	// searchMultiplier overfetches the chunk search so dedup and
	// selection still have headroom after dropping duplicates
	searchMultiplier = 4
	minSearchK       = 20

	// callGraphSeeds caps how many top-ranked functions seed the
	// call-graph expansion
	callGraphSeeds = 5

	// neighborsPerChunk caps same-file neighbors added per selected chunk
	neighborsPerChunk = 2
)

// ChatClient is the slice of the llm gateway agentic expansion needs.
// *llm.Client satisfies it.
type ChatClient interface {
	IsEnabled() bool
	Chat(ctx context.Context, messages []models.Message, opts llm.Options) (string, error)
}

// WeightSource resolves per-repo learned ranking weights. ltr.Store
// satisfies it.
type WeightSource interface {
	Weights(repoID string) rank.Weights
}

// Config carries the retrieval tunables
type Config struct {
	MaxChunks   int
	HybridAlpha float64
	SliceDepth  int
	RerankTopK  int
}

// DefaultConfig returns the untuned pipeline settings
func DefaultConfig() Config {
	return Config{
		MaxChunks:   10,
		HybridAlpha: 0.2,
		SliceDepth:  2,
		RerankTopK:  20,
	}
}

// Retriever executes retrieval requests against published snapshots
type Retriever struct {
	vectors  vector.Store
	embedder embedding.Engine
	reranker rerank.Reranker
	chat     ChatClient
	weights  WeightSource
	cfg      Config
	logger   *slog.Logger
}

// New creates a retriever. reranker, chat, and weights may each be nil
// or disabled; the corresponding stages then degrade into summary notes.
func New(vectors vector.Store, embedder embedding.Engine, reranker rerank.Reranker, chat ChatClient, weights WeightSource, cfg Config) *Retriever {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = DefaultConfig().MaxChunks
	}
	if cfg.HybridAlpha <= 0 {
		cfg.HybridAlpha = DefaultConfig().HybridAlpha
	}
	if cfg.SliceDepth <= 0 {
		cfg.SliceDepth = DefaultConfig().SliceDepth
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = DefaultConfig().RerankTopK
	}
	if reranker == nil {
		reranker = rerank.Noop{}
	}

	return &Retriever{
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		chat:     chat,
		weights:  weights,
		cfg:      cfg,
		logger:   slog.Default().With("component", "retrieval"),
	}
}

// requestState accumulates what one request learns on its way through
// the pipeline: promoted files, rendered artifacts, degradation notes.
type requestState struct {
	snap      *snapshot.Snapshot
	maxChunks int

	preferred map[string]bool
	promotion string // reason type stamped on preferred-file promotions
	artifacts []models.Artifact

	notes     []string
	noteSeen  map[string]bool
}

func newRequestState(snap *snapshot.Snapshot, maxChunks int) *requestState {
	return &requestState{
		snap:      snap,
		maxChunks: maxChunks,
		preferred: make(map[string]bool),
		noteSeen:  make(map[string]bool),
	}
}

// note records a degradation flag once, no matter how many candidates
// trip it
func (s *requestState) note(text string) {
	if s.noteSeen[text] {
		return
	}
	s.noteSeen[text] = true
	s.notes = append(s.notes, text)
}

// Retrieve runs the full pipeline for one request. The snapshot is the
// caller's resolved, published index state; it is read, never written.
func (r *Retriever) Retrieve(ctx context.Context, req models.RetrievalRequest, snap *snapshot.Snapshot) (*models.RetrievalResponse, error) {
	if snap == nil {
		return nil, errors.NotFoundf("repository %s has no published index", req.RepoID)
	}

	maxChunks := req.MaxChunks
	if maxChunks <= 0 {
		maxChunks = r.cfg.MaxChunks
	}
	mode := req.RetrievalMode
	if mode == "" {
		mode = models.ModeVector
	}

	queryVec, err := r.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		return nil, errors.Upstream(err, "failed to embed query")
	}

	state := newRequestState(snap, maxChunks)

	switch mode {
	case models.ModeCallGraph:
		r.prepareCallGraph(ctx, req, queryVec, state)
	case models.ModeSlice:
		r.prepareSlice(ctx, req, queryVec, state)
	}

	k := maxChunks * searchMultiplier
	if k < minSearchK {
		k = minSearchK
	}
	hits, err := r.vectors.Search(ctx, queryVec, k, vector.Filters{
		RepoID:     req.RepoID,
		Languages:  req.Filters.Languages,
		EntityType: string(models.EntityChunk),
	})
	if err != nil {
		return nil, errors.Upstream(err, "vector search failed")
	}

	candidates := normalize(hits, state)
	promotePreferred(candidates, state)
	candidates = rank.HybridRerank(candidates, req.Query, r.cfg.HybridAlpha)
	candidates = r.crossEncode(ctx, req.Query, candidates, state)

	weights := r.resolveWeights(req.RepoID)
	signals := snapshotSignals(snap)
	candidates = rank.Rank(candidates, signals, weights)
	candidates = dedupBySignature(candidates, snap.SignatureCounts)
	selected := selectChunks(candidates, maxChunks)

	if req.ExpandNeighbors {
		selected = r.expandNeighbors(ctx, req.RepoID, selected, state, weights)
	}
	if req.Agentic {
		selected = r.expandAgentic(ctx, req, queryVec, selected, state, weights)
	}

	resp := buildResponse(selected, state, mode)
	r.logger.Debug("retrieval complete",
		"repo_id", req.RepoID,
		"mode", mode,
		"chunks", len(resp.Chunks),
		"notes", len(state.notes))
	return resp, nil
}

func (r *Retriever) resolveWeights(repoID string) rank.Weights {
	if r.weights == nil {
		return rank.DefaultWeights()
	}
	return r.weights.Weights(repoID)
}

func snapshotSignals(snap *snapshot.Snapshot) rank.Signals {
	return rank.Signals{
		Centrality: snap.Centrality,
		History:    snap.History,
		Recency:    snap.Recency,
	}
}

func buildResponse(selected []rank.Candidate, state *requestState, mode models.RetrievalMode) *models.RetrievalResponse {
	chunks := make([]models.ContextChunk, 0, len(selected))
	confidenceSum := 0
	for _, c := range selected {
		chunks = append(chunks, models.ContextChunk{
			FilePath:   c.Entity.FilePath,
			StartLine:  c.Entity.StartLine,
			EndLine:    c.Entity.EndLine,
			Language:   c.Entity.Language,
			Snippet:    c.Entity.Code,
			Confidence: c.Confidence,
			Reasons:    c.Reasons,
			Distance:   c.Distance,
			ChunkID:    chunkKey(c.Entity),
			Name:       c.Entity.Name,
		})
		confidenceSum += c.Confidence
	}

	avg := 0.0
	if len(chunks) > 0 {
		avg = float64(confidenceSum) / float64(len(chunks))
	}

	return &models.RetrievalResponse{
		Chunks: chunks,
		Summary: models.RetrievalSummary{
			Total:         len(chunks),
			AvgConfidence: avg,
			RetrievalMode: string(mode),
			Notes:         state.notes,
		},
		Artifacts: state.artifacts,
	}
}
