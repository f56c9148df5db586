package retrieval

import (
	"context"
	"fmt"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/vector"
)

// prepareCallGraph seeds the preferred-file set from the call graph:
// the top query-matched functions are expanded through their call
// neighborhood, every file defining a reached function is promoted,
// and the expanded subgraph is attached as a DOT artifact.
func (r *Retriever) prepareCallGraph(ctx context.Context, req models.RetrievalRequest, queryVec []float32, state *requestState) {
	state.promotion = "callgraph"

	funcs := r.searchFunctions(ctx, req, queryVec, state)
	if len(funcs) == 0 {
		return
	}
	if len(funcs) > callGraphSeeds {
		funcs = funcs[:callGraphSeeds]
	}

	seeds := make([]string, 0, len(funcs))
	for _, f := range funcs {
		state.preferred[f.Entity.FilePath] = true
		seeds = append(seeds, f.Entity.Name)
	}

	cg := state.snap.CallGraph
	if cg == nil || cg.Empty() {
		state.note("call graph is empty; no call-graph expansion applied")
		return
	}

	depth := req.CallGraphDepth
	if depth < 1 {
		depth = 1
	}

	sub := cg.Neighborhood(seeds, depth)
	if sub.Empty() {
		state.note("matched functions are not in the call graph; no expansion applied")
		return
	}

	// Every function reached by the expansion promotes its defining
	// file, so callees pulled in by the graph rank alongside the seeds.
	for _, name := range sub.NodeIDs() {
		entities, err := r.vectors.GetByName(ctx, req.RepoID, name, string(models.EntityFunction))
		if err != nil {
			r.logger.Warn("call-graph symbol lookup failed", "symbol", name, "error", err)
			continue
		}
		for _, e := range entities {
			state.preferred[e.FilePath] = true
		}
	}

	state.artifacts = append(state.artifacts, models.Artifact{
		Type:    "callgraph",
		Format:  "dot",
		Content: sub.DOT("callgraph"),
	})
}

// prepareSlice resolves the slice seed function, promotes its file,
// and attaches the slice subgraph as a DOT artifact. Direction
// "backward" follows callers; the default follows callees.
func (r *Retriever) prepareSlice(ctx context.Context, req models.RetrievalRequest, queryVec []float32, state *requestState) {
	state.promotion = "slice"

	seed, ok := r.resolveSliceSeed(ctx, req, queryVec)
	if !ok {
		state.note("slice seed not resolved; slice expansion skipped")
		return
	}

	state.preferred[seed.FilePath] = true

	cg := state.snap.CallGraph
	if cg == nil || cg.Empty() {
		state.note("call graph is empty; slice artifact skipped")
		return
	}

	depth := req.SliceDepth
	if depth < 1 {
		depth = r.cfg.SliceDepth
	}

	sub := cg.Slice(seed.Name, depth, req.SliceDirection == models.SliceBackward)
	if sub.Empty() {
		state.note(fmt.Sprintf("function %s is not in the call graph; slice artifact skipped", seed.Name))
		return
	}

	state.artifacts = append(state.artifacts, models.Artifact{
		Type:    "slice",
		Format:  "dot",
		Content: sub.DOT("slice"),
	})
}

// searchFunctions returns query-matched function candidates in
// cross-encoded order. Failures degrade to a note; callgraph mode then
// behaves like plain vector mode.
func (r *Retriever) searchFunctions(ctx context.Context, req models.RetrievalRequest, queryVec []float32, state *requestState) []rank.Candidate {
	hits, err := r.vectors.Search(ctx, queryVec, r.cfg.RerankTopK, vector.Filters{
		RepoID:     req.RepoID,
		Languages:  req.Filters.Languages,
		EntityType: string(models.EntityFunction),
	})
	if err != nil {
		r.logger.Warn("function search failed", "repo_id", req.RepoID, "error", err)
		state.note("function search failed; call-graph promotion skipped")
		return nil
	}
	if len(hits) == 0 {
		state.note("no functions matched the query; call-graph promotion skipped")
		return nil
	}

	return r.crossEncode(ctx, req.Query, normalize(hits, state), state)
}

// resolveSliceSeed maps the slice target, or the query itself when no
// target is given, to a function entity. An exact name match wins;
// otherwise the nearest function by embedding.
func (r *Retriever) resolveSliceSeed(ctx context.Context, req models.RetrievalRequest, queryVec []float32) (models.Entity, bool) {
	if req.SliceTarget != "" {
		entities, err := r.vectors.GetByName(ctx, req.RepoID, req.SliceTarget, string(models.EntityFunction))
		if err != nil {
			r.logger.Warn("slice target lookup failed", "target", req.SliceTarget, "error", err)
		} else if len(entities) > 0 {
			return *entities[0], true
		}

		// No exact definition; fall back to semantic resolution of the
		// target text.
		if vec, err := r.embedder.EmbedText(ctx, req.SliceTarget); err == nil {
			queryVec = vec
		} else {
			r.logger.Warn("slice target embedding failed", "target", req.SliceTarget, "error", err)
		}
	}

	hits, err := r.vectors.Search(ctx, queryVec, 1, vector.Filters{
		RepoID:     req.RepoID,
		EntityType: string(models.EntityFunction),
	})
	if err != nil {
		r.logger.Warn("slice seed search failed", "repo_id", req.RepoID, "error", err)
		return models.Entity{}, false
	}
	if len(hits) == 0 {
		return models.Entity{}, false
	}
	return hits[0].Entity, true
}
