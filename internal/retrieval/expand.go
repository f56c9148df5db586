package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
)

// expandNeighbors fills remaining selection slots with chunks adjacent
// to the ones already selected: at most two per selected chunk, nearest
// line spans first, never exceeding the selection limit. Neighbors were
// never embedded against the query, so they score on file signals alone.
func (r *Retriever) expandNeighbors(ctx context.Context, repoID string, selected []rank.Candidate, state *requestState, weights rank.Weights) []rank.Candidate {
	if len(selected) >= state.maxChunks {
		return selected
	}

	taken := make(map[string]bool, len(selected))
	for _, c := range selected {
		taken[chunkKey(c.Entity)] = true
	}

	signals := snapshotSignals(state.snap)
	result := selected

	for _, base := range selected {
		if len(result) >= state.maxChunks {
			break
		}
		for _, n := range r.neighborsOf(ctx, repoID, base, taken) {
			if len(result) >= state.maxChunks {
				break
			}
			scored := rank.Rank([]rank.Candidate{n}, signals, weights)
			result = append(result, scored[0])
		}
	}
	return result
}

// neighborsOf returns up to neighborsPerChunk chunks sharing the base
// chunk's file, closest to its line span, that are not already taken.
// Returned neighbors are marked taken.
func (r *Retriever) neighborsOf(ctx context.Context, repoID string, base rank.Candidate, taken map[string]bool) []rank.Candidate {
	entities, err := r.vectors.GetByFile(ctx, repoID, base.Entity.FilePath)
	if err != nil {
		r.logger.Warn("neighbor lookup failed", "file", base.Entity.FilePath, "error", err)
		return nil
	}

	center := (base.Entity.StartLine + base.Entity.EndLine) / 2

	var near []rank.Candidate
	for _, e := range entities {
		if e.EntityType != models.EntityChunk {
			continue
		}
		if taken[chunkKey(*e)] {
			continue
		}
		near = append(near, rank.Candidate{
			Entity:   *e,
			Distance: 1,
			Reasons: []models.Reason{{
				Type:  "neighbor",
				Score: 1.0,
				Explanation: fmt.Sprintf("adjacent to selected chunk %s:%d-%d",
					base.Entity.FilePath, base.Entity.StartLine, base.Entity.EndLine),
			}},
		})
	}

	sort.SliceStable(near, func(i, j int) bool {
		return lineGap(near[i].Entity, center) < lineGap(near[j].Entity, center)
	})

	if len(near) > neighborsPerChunk {
		near = near[:neighborsPerChunk]
	}
	for _, n := range near {
		taken[chunkKey(n.Entity)] = true
	}
	return near
}

// lineGap is the absolute distance between a chunk's line-span center
// and a reference line
func lineGap(e models.Entity, center int) int {
	mid := (e.StartLine + e.EndLine) / 2
	if mid < center {
		return center - mid
	}
	return mid - center
}
