package rank

import (
	"math"
	"testing"

	"github.com/voyantlabs/codectx/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mkCand(id, file string, distance float64) Candidate {
	return Candidate{
		Entity:   models.Entity{ID: id, FilePath: file, Name: id},
		Distance: distance,
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	sum := w.Semantic + w.Dependency + w.History + w.Recency
	if !approx(sum, 1.0) {
		t.Errorf("Default weights sum to %f, want 1.0", sum)
	}
}

func TestWeightsClamp(t *testing.T) {
	w := Weights{Semantic: 0.01, Dependency: 0.9, History: 0.2, Recency: -1}.Clamp()
	if w.Semantic != MinWeight {
		t.Errorf("Semantic not clamped up: %f", w.Semantic)
	}
	if w.Dependency != MaxWeight {
		t.Errorf("Dependency not clamped down: %f", w.Dependency)
	}
	if w.History != 0.2 {
		t.Errorf("History changed: %f", w.History)
	}
	if w.Recency != MinWeight {
		t.Errorf("Negative recency not clamped: %f", w.Recency)
	}
}

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Semantic: 0.2, Dependency: 0.2, History: 0.2, Recency: 0.2}.Normalize()
	for _, v := range []float64{w.Semantic, w.Dependency, w.History, w.Recency} {
		if !approx(v, 0.25) {
			t.Errorf("Expected uniform 0.25 weights, got %+v", w)
		}
	}

	zero := Weights{}.Normalize()
	if zero != DefaultWeights() {
		t.Errorf("Degenerate weights should fall back to defaults, got %+v", zero)
	}
}

func TestRankComputesScore(t *testing.T) {
	c := mkCand("c1", "a.py", 0.2)
	signals := Signals{
		Centrality: map[string]float64{"a.py": 0.5},
		Recency:    map[string]float64{"a.py": 1.0},
	}

	ranked := Rank([]Candidate{c}, signals, DefaultWeights())
	if len(ranked) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(ranked))
	}

	// 0.4*0.8 + 0.3*0.5 + 0.2*0 + 0.1*1.0
	want := 0.4*0.8 + 0.3*0.5 + 0.1*1.0
	if !approx(ranked[0].Score, want) {
		t.Errorf("Score = %f, want %f", ranked[0].Score, want)
	}
	if ranked[0].Confidence != 57 {
		t.Errorf("Confidence = %d, want 57", ranked[0].Confidence)
	}

	types := reasonTypes(ranked[0].Reasons)
	wantTypes := []string{"semantic", "dependency", "recency"}
	if len(types) != len(wantTypes) {
		t.Fatalf("Reasons = %v, want %v", types, wantTypes)
	}
	for i, w := range wantTypes {
		if types[i] != w {
			t.Errorf("Reason %d = %s, want %s", i, types[i], w)
		}
	}
}

func TestRankClampsDistance(t *testing.T) {
	over := mkCand("over", "a.py", 1.7)
	under := mkCand("under", "b.py", -0.3)

	ranked := Rank([]Candidate{over, under}, Signals{}, DefaultWeights())

	if ranked[0].Entity.ID != "under" {
		t.Errorf("Negative distance should clamp to full similarity, got %s first", ranked[0].Entity.ID)
	}
	if !approx(ranked[0].Score, 0.4) {
		t.Errorf("Clamped similarity score = %f, want 0.4", ranked[0].Score)
	}
	if !approx(ranked[1].Score, 0) {
		t.Errorf("Distance beyond 1 should score 0, got %f", ranked[1].Score)
	}
	if len(ranked[1].Reasons) != 0 {
		t.Errorf("Zero signals should produce no reasons, got %v", ranked[1].Reasons)
	}
}

func TestRankSortsDescendingStable(t *testing.T) {
	a := mkCand("a", "a.py", 0.0)
	b := mkCand("b", "b.py", 1.0)
	c := mkCand("c", "c.py", 0.0)

	signals := Signals{Centrality: map[string]float64{"b.py": 1.0}}
	ranked := Rank([]Candidate{b, a, c}, signals, DefaultWeights())

	// a and c score 0.4; b scores 0.3
	gotOrder := []string{ranked[0].Entity.ID, ranked[1].Entity.ID, ranked[2].Entity.ID}
	wantOrder := []string{"a", "c", "b"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("Order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestRankIsPermutation(t *testing.T) {
	input := []Candidate{
		mkCand("a", "a.py", 0.9),
		mkCand("b", "b.py", 0.1),
		mkCand("c", "c.py", 0.5),
	}

	ranked := Rank(input, Signals{}, DefaultWeights())
	if len(ranked) != len(input) {
		t.Fatalf("Expected %d candidates, got %d", len(input), len(ranked))
	}

	seen := make(map[string]bool)
	for _, c := range ranked {
		seen[c.Entity.ID] = true
	}
	for _, c := range input {
		if !seen[c.Entity.ID] {
			t.Errorf("Candidate %s missing from ranked output", c.Entity.ID)
		}
	}

	// Input slice order must be untouched
	if input[0].Entity.ID != "a" || input[2].Entity.ID != "c" {
		t.Error("Rank mutated its input slice")
	}
}

func TestRankConfidenceClamped(t *testing.T) {
	c := mkCand("c1", "a.py", 0)
	signals := Signals{
		Centrality: map[string]float64{"a.py": 1},
		History:    map[string]float64{"a.py": 1},
		Recency:    map[string]float64{"a.py": 1},
	}
	heavy := Weights{Semantic: 0.8, Dependency: 0.8, History: 0.8, Recency: 0.8}

	ranked := Rank([]Candidate{c}, signals, heavy)
	if ranked[0].Confidence != 100 {
		t.Errorf("Confidence = %d, want clamped 100", ranked[0].Confidence)
	}
}

func TestRankPreservesForeignReasons(t *testing.T) {
	c := mkCand("c1", "a.py", 0.2)
	c.Reasons = []models.Reason{{Type: "dedup", Score: 1.0, Explanation: "Deduplicated 3 similar definitions"}}

	ranked := Rank([]Candidate{c}, Signals{}, DefaultWeights())
	ranked = Rank(ranked, Signals{}, DefaultWeights())

	dedups := 0
	semantics := 0
	for _, r := range ranked[0].Reasons {
		switch r.Type {
		case "dedup":
			dedups++
		case "semantic":
			semantics++
		}
	}
	if dedups != 1 {
		t.Errorf("Expected exactly one dedup reason after re-ranking, got %d", dedups)
	}
	if semantics != 1 {
		t.Errorf("Expected exactly one semantic reason after re-ranking, got %d", semantics)
	}
}

func reasonTypes(reasons []models.Reason) []string {
	types := make([]string, len(reasons))
	for i, r := range reasons {
		types[i] = r.Type
	}
	return types
}
