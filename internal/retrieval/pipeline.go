package retrieval

import (
	"context"
	"fmt"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/rerank"
	"github.com/voyantlabs/codectx/internal/signature"
	"github.com/voyantlabs/codectx/internal/vector"
)

// normalize converts raw store hits into pipeline candidates with a
// bounded distance. A hit above 1 is a raw distance from a backend
// that skipped normalization; it is clamped and flagged once in the
// summary notes.
func normalize(hits []vector.Candidate, state *requestState) []rank.Candidate {
	candidates := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		d := hit.Distance
		if d > 1 {
			state.note("some distances exceeded 1 and were clamped for scoring")
			d = 1
		}
		if d < 0 {
			d = 0
		}
		candidates = append(candidates, rank.Candidate{Entity: hit.Entity, Distance: d})
	}
	return candidates
}

// promotePreferred reduces the distance of candidates in promoted
// files, flooring at zero, and records the promotion as a reason so
// the response explains why the chunk moved up.
func promotePreferred(candidates []rank.Candidate, state *requestState) {
	if len(state.preferred) == 0 {
		return
	}

	for i := range candidates {
		if !state.preferred[candidates[i].Entity.FilePath] {
			continue
		}
		candidates[i].Distance -= preferredBoost
		if candidates[i].Distance < 0 {
			candidates[i].Distance = 0
		}
		candidates[i].Reasons = append(candidates[i].Reasons, models.Reason{
			Type:        state.promotion,
			Score:       preferredBoost,
			Explanation: fmt.Sprintf("file promoted by %s expansion", state.promotion),
		})
	}
}

// crossEncode reorders the top candidates by cross-encoder score and
// keeps the tail in place. Any failure keeps the incoming order and
// flags the summary; an unconfigured reranker skips silently.
func (r *Retriever) crossEncode(ctx context.Context, query string, candidates []rank.Candidate, state *requestState) []rank.Candidate {
	if !r.reranker.Available() || len(candidates) == 0 {
		return candidates
	}

	topK := r.cfg.RerankTopK
	if topK > len(candidates) {
		topK = len(candidates)
	}
	head := candidates[:topK]

	docs := make([]string, len(head))
	for i, c := range head {
		docs[i] = rerank.PairText(c.Entity.Name, c.Entity.FilePath, c.Entity.Code)
	}

	results, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil {
		r.logger.Warn("cross-encoder rerank failed, keeping hybrid order", "error", err)
		state.note("cross-encoder rerank unavailable; kept hybrid order")
		return candidates
	}
	if len(results) != len(head) {
		r.logger.Warn("cross-encoder returned wrong result count, keeping hybrid order",
			"want", len(head), "got", len(results))
		state.note("cross-encoder rerank unavailable; kept hybrid order")
		return candidates
	}

	reordered := make([]rank.Candidate, 0, len(candidates))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(head) {
			state.note("cross-encoder rerank unavailable; kept hybrid order")
			return candidates
		}
		reordered = append(reordered, head[res.Index])
	}
	return append(reordered, candidates[topK:]...)
}

// dedupBySignature drops candidates whose normalized (name, code)
// signature was already kept, first winner stays. Kept candidates
// whose signature collapsed duplicates at index time carry a dedup
// reason naming how many copies the winner stands for.
func dedupBySignature(candidates []rank.Candidate, counts map[string]int) []rank.Candidate {
	seen := make(map[string]bool, len(candidates))
	kept := make([]rank.Candidate, 0, len(candidates))

	for _, c := range candidates {
		sig := signature.Compute(c.Entity.Name, c.Entity.Code)
		if seen[sig] {
			continue
		}
		seen[sig] = true

		if n := counts[sig]; n > 1 {
			c.Reasons = append(c.Reasons, models.Reason{
				Type:        "dedup",
				Score:       1.0,
				Explanation: fmt.Sprintf("Deduplicated %d similar definitions", n-1),
			})
		}
		kept = append(kept, c)
	}
	return kept
}

// chunkKey identifies a chunk across pipeline stages. Chunk entities
// carry a ChunkID; anything else falls back to the entity id.
func chunkKey(e models.Entity) string {
	if e.ChunkID != "" {
		return e.ChunkID
	}
	return e.ID
}

// selectChunks emits ranked candidates in order up to the limit,
// skipping ids already emitted
func selectChunks(candidates []rank.Candidate, limit int) []rank.Candidate {
	selected := make([]rank.Candidate, 0, limit)
	seen := make(map[string]bool, limit)

	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		key := chunkKey(c.Entity)
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, c)
	}
	return selected
}
