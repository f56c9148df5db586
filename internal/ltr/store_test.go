package ltr

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
)

func approx(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

func weightSum(w rank.Weights) float64 {
	return w.Semantic + w.Dependency + w.History + w.Recency
}

func TestWeightsUnknownRepo(t *testing.T) {
	store := NewStore(t.TempDir())

	w := store.Weights("never-seen")
	def := rank.DefaultWeights()
	if w != def {
		t.Fatalf("expected default weights for unknown repo, got %+v", w)
	}
}

func TestUpdateShiftsDependency(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Centrality: map[string]float64{
			"core/hub.py": 1.0,
			"docs/faq.md": 0.0,
		},
	}
	feedback := models.Feedback{
		RepoID:          "acme",
		RelevantFiles:   []string{"core/hub.py"},
		IrrelevantFiles: []string{"docs/faq.md"},
	}

	w, err := store.Update(feedback, signals)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Dependency moves from 0.3 to 0.35, then the vector is renormalized.
	dep := 0.3 + 0.05*(1.0-0.0)
	sum := 0.4 + dep + 0.2 + 0.1
	approx(t, w.Dependency, dep/sum, "dependency")
	approx(t, w.Semantic, 0.4/sum, "semantic")
	approx(t, w.History, 0.2/sum, "history")
	approx(t, w.Recency, 0.1/sum, "recency")
	approx(t, weightSum(w), 1.0, "sum")
}

func TestUpdateNegativeFeedbackLowersDependency(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Centrality: map[string]float64{"core/hub.py": 1.0},
	}
	feedback := models.Feedback{
		RepoID:          "acme",
		RelevantFiles:   []string{"scripts/one_off.py"},
		IrrelevantFiles: []string{"core/hub.py"},
	}

	w, err := store.Update(feedback, signals)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Relevant file has no centrality, irrelevant one is a hub.
	dep := 0.3 + 0.05*(0.0-1.0)
	sum := 0.4 + dep + 0.2 + 0.1
	approx(t, w.Dependency, dep/sum, "dependency")
	approx(t, weightSum(w), 1.0, "sum")
}

func TestUpdateShiftsRecency(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Recency: map[string]float64{"api/routes.py": 1.0},
	}
	feedback := models.Feedback{
		RepoID:        "acme",
		RelevantFiles: []string{"api/routes.py"},
	}

	w, err := store.Update(feedback, signals)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec := 0.1 + 0.05*1.0
	sum := 0.4 + 0.3 + 0.2 + rec
	approx(t, w.Recency, rec/sum, "recency")
	approx(t, w.Dependency, 0.3/sum, "dependency unchanged before renormalize")
}

func TestUpdateOppositeFeedbackShiftsBothWeights(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Centrality: map[string]float64{"core/hub.py": 0.9, "scripts/tmp.py": 0.05},
		Recency:    map[string]float64{"core/hub.py": 0.1, "scripts/tmp.py": 0.95},
	}
	feedback := models.Feedback{
		RepoID:          "acme",
		RelevantFiles:   []string{"core/hub.py"},
		IrrelevantFiles: []string{"scripts/tmp.py"},
	}

	w, err := store.Update(feedback, signals)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A central relevant file raises dependency; a fresh irrelevant
	// file lowers recency.
	if w.Dependency <= 0.3 {
		t.Fatalf("dependency should rise above 0.3, got %v", w.Dependency)
	}
	if w.Recency >= 0.1 {
		t.Fatalf("recency should fall below 0.1, got %v", w.Recency)
	}
	for _, v := range []float64{w.Semantic, w.Dependency, w.History, w.Recency} {
		if v < rank.MinWeight || v > rank.MaxWeight {
			t.Fatalf("weight %v out of bounds: %+v", v, w)
		}
	}
	approx(t, weightSum(w), 1.0, "sum")
}

func TestUpdateEmptyFeedbackKeepsDefaults(t *testing.T) {
	store := NewStore(t.TempDir())

	w, err := store.Update(models.Feedback{RepoID: "acme"}, rank.Signals{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	def := rank.DefaultWeights()
	approx(t, w.Semantic, def.Semantic, "semantic")
	approx(t, w.Dependency, def.Dependency, "dependency")
	approx(t, w.History, def.History, "history")
	approx(t, w.Recency, def.Recency, "recency")
}

func TestUpdateClampsRepeatedNegativeFeedback(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Centrality: map[string]float64{"core/hub.py": 1.0},
		Recency:    map[string]float64{"core/hub.py": 1.0},
	}
	feedback := models.Feedback{
		RepoID:          "acme",
		IrrelevantFiles: []string{"core/hub.py"},
	}

	var w rank.Weights
	var err error
	for i := 0; i < 15; i++ {
		w, err = store.Update(feedback, signals)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	if w.Dependency < rank.MinWeight {
		t.Fatalf("dependency %v fell below the floor", w.Dependency)
	}
	if w.Dependency >= rank.DefaultWeights().Dependency {
		t.Fatalf("dependency %v did not decrease", w.Dependency)
	}
	if w.Recency < rank.MinWeight {
		t.Fatalf("recency %v fell below the floor", w.Recency)
	}
	approx(t, weightSum(w), 1.0, "sum")
}

func TestUpdateClampsRepeatedPositiveFeedback(t *testing.T) {
	store := NewStore(t.TempDir())

	signals := rank.Signals{
		Centrality: map[string]float64{"core/hub.py": 1.0},
	}
	feedback := models.Feedback{
		RepoID:        "acme",
		RelevantFiles: []string{"core/hub.py"},
	}

	var w rank.Weights
	var err error
	for i := 0; i < 20; i++ {
		w, err = store.Update(feedback, signals)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	if w.Dependency > rank.MaxWeight {
		t.Fatalf("dependency %v exceeded its ceiling", w.Dependency)
	}
	if w.Dependency < 0.5 {
		t.Fatalf("dependency %v did not grow under sustained positive feedback", w.Dependency)
	}
	if w.Semantic < rank.MinWeight || w.History < rank.MinWeight || w.Recency < rank.MinWeight {
		t.Fatalf("a weight fell below the floor: %+v", w)
	}
	approx(t, weightSum(w), 1.0, "sum")
}

func TestUpdatePersistsAcrossStores(t *testing.T) {
	dir := t.TempDir()

	signals := rank.Signals{
		Centrality: map[string]float64{"core/hub.py": 0.8},
	}
	feedback := models.Feedback{
		RepoID:        "github.com/acme/api",
		RelevantFiles: []string{"core/hub.py"},
	}

	first := NewStore(dir)
	want, err := first.Update(feedback, signals)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Path separators in the repo id must not escape the directory.
	if _, err := os.Stat(filepath.Join(dir, "github.com_acme_api.json")); err != nil {
		t.Fatalf("weight file not written where expected: %v", err)
	}

	second := NewStore(dir)
	got := second.Weights("github.com/acme/api")
	approx(t, got.Dependency, want.Dependency, "dependency")
	approx(t, got.Semantic, want.Semantic, "semantic")
	approx(t, got.History, want.History, "history")
	approx(t, got.Recency, want.Recency, "recency")
}

func TestWeightsCorruptFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acme.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store := NewStore(dir)
	if got := store.Weights("acme"); got != rank.DefaultWeights() {
		t.Fatalf("expected defaults for corrupt file, got %+v", got)
	}
}

func TestWeightsZeroFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acme.json"), []byte(`{"semantic":0,"dependency":0,"history":0,"recency":0}`), 0644); err != nil {
		t.Fatalf("seed zero file: %v", err)
	}

	store := NewStore(dir)
	if got := store.Weights("acme"); got != rank.DefaultWeights() {
		t.Fatalf("expected defaults for zeroed file, got %+v", got)
	}
}

func TestMeanScore(t *testing.T) {
	scores := map[string]float64{"a.py": 1.0, "b.py": 0.5}

	if got := meanScore(scores, nil); got != 0 {
		t.Fatalf("empty file list should score 0, got %v", got)
	}
	approx(t, meanScore(scores, []string{"a.py", "b.py"}), 0.75, "two known files")
	// Unknown files drag the mean toward zero instead of being skipped.
	approx(t, meanScore(scores, []string{"a.py", "missing.py"}), 0.5, "unknown file counts as zero")
}
