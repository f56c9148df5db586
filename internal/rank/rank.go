// Package rank scores retrieval candidates by blending semantic
// distance with per-file dependency, history, and recency signals, and
// explains every non-zero signal on the candidate it scored.
package rank

import (
	"fmt"
	"math"
	"sort"

	"github.com/voyantlabs/codectx/internal/models"
)

// Weight bounds. Learned weight updates stay inside these so no signal
// can be starved or dominate outright.
const (
	MinWeight = 0.05
	MaxWeight = 0.8
)

// Weights holds the signal mix for the weighted ranker
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Dependency float64 `json:"dependency"`
	History    float64 `json:"history"`
	Recency    float64 `json:"recency"`
}

// DefaultWeights is the untrained signal mix
func DefaultWeights() Weights {
	return Weights{Semantic: 0.4, Dependency: 0.3, History: 0.2, Recency: 0.1}
}

// Clamp bounds every weight to [MinWeight, MaxWeight]
func (w Weights) Clamp() Weights {
	return Weights{
		Semantic:   clampWeight(w.Semantic),
		Dependency: clampWeight(w.Dependency),
		History:    clampWeight(w.History),
		Recency:    clampWeight(w.Recency),
	}
}

// Normalize scales the weights to sum to 1. Degenerate weights fall
// back to the defaults.
func (w Weights) Normalize() Weights {
	sum := w.Semantic + w.Dependency + w.History + w.Recency
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Semantic:   w.Semantic / sum,
		Dependency: w.Dependency / sum,
		History:    w.History / sum,
		Recency:    w.Recency / sum,
	}
}

func clampWeight(v float64) float64 {
	if v < MinWeight {
		return MinWeight
	}
	if v > MaxWeight {
		return MaxWeight
	}
	return v
}

// Signals carries the per-file scores computed at index time. Missing
// files score zero.
type Signals struct {
	Centrality map[string]float64
	History    map[string]float64
	Recency    map[string]float64
}

// Candidate is one scored retrieval result flowing through the pipeline
type Candidate struct {
	Entity   models.Entity
	Distance float64 // bounded cosine distance, smaller is closer
	Hybrid   float64 // blended semantic/lexical score, set by HybridRerank
	Score    float64 // weighted signal score, set by Rank

	Confidence int
	Reasons    []models.Reason
}

// Semantic converts the bounded distance into a similarity in [0,1]
func (c Candidate) Semantic() float64 {
	return 1 - clamp01(c.Distance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rank scores every candidate and returns them sorted by score,
// highest first. The result is a permutation of the input: nothing is
// added or dropped. The sort is stable so earlier pipeline order breaks
// ties. Reasons from other pipeline stages (dedup, promotions) survive
// re-ranking; the four signal reasons are rebuilt each time.
func Rank(candidates []Candidate, signals Signals, weights Weights) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		scoreCandidate(&ranked[i], signals, weights)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

func scoreCandidate(c *Candidate, signals Signals, weights Weights) {
	file := c.Entity.FilePath

	semantic := c.Semantic()
	dependency := signals.Centrality[file]
	history := signals.History[file]
	recency := signals.Recency[file]

	c.Score = weights.Semantic*semantic +
		weights.Dependency*dependency +
		weights.History*history +
		weights.Recency*recency

	c.Confidence = confidenceFor(c.Score)
	c.Reasons = buildReasons(c.Reasons, semantic, dependency, history, recency)
}

// confidenceFor maps a score to a percentage clamped to [0,100]
func confidenceFor(score float64) int {
	confidence := int(math.Round(score * 100))
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}

var signalReasonTypes = map[string]bool{
	"semantic":   true,
	"dependency": true,
	"history":    true,
	"recency":    true,
}

func buildReasons(existing []models.Reason, semantic, dependency, history, recency float64) []models.Reason {
	reasons := make([]models.Reason, 0, len(existing)+4)

	if semantic > 0 {
		reasons = append(reasons, models.Reason{
			Type:        "semantic",
			Score:       semantic,
			Explanation: fmt.Sprintf("semantic similarity %.2f to the query", semantic),
		})
	}
	if dependency > 0 {
		reasons = append(reasons, models.Reason{
			Type:        "dependency",
			Score:       dependency,
			Explanation: fmt.Sprintf("file centrality %.2f in the import graph", dependency),
		})
	}
	if history > 0 {
		reasons = append(reasons, models.Reason{
			Type:        "history",
			Score:       history,
			Explanation: fmt.Sprintf("co-change history score %.2f", history),
		})
	}
	if recency > 0 {
		reasons = append(reasons, models.Reason{
			Type:        "recency",
			Score:       recency,
			Explanation: fmt.Sprintf("recently modified, score %.2f", recency),
		})
	}

	for _, r := range existing {
		if !signalReasonTypes[r.Type] {
			reasons = append(reasons, r)
		}
	}

	return reasons
}
