package temporal

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"
)

func testAnalyzer(now time.Time) *Analyzer {
	a := NewAnalyzer()
	a.now = func() time.Time { return now }
	return a
}

func commitAt(ts time.Time, paths ...string) Commit {
	changes := make([]FileChange, len(paths))
	for i, p := range paths {
		changes[i] = FileChange{Path: p, Additions: 1}
	}
	return Commit{
		SHA:          fmt.Sprintf("sha-%d-%s", ts.Unix(), paths[0]),
		Author:       "Test User",
		Email:        "test@example.com",
		Timestamp:    ts,
		FilesChanged: changes,
	}
}

func TestRecencyLinearDecay(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	commits := []Commit{
		commitAt(now.Add(-1*time.Hour), "fresh.py"),
		commitAt(now.AddDate(0, 0, -73), "aging.py"), // 73/365 = 0.2 decay
		commitAt(now.AddDate(0, 0, -364), "stale.py"),
	}

	signals := a.fromCommits(commits, nil)

	if got := signals.Recency["fresh.py"]; got < 0.99 {
		t.Errorf("fresh file recency = %f; want near 1.0", got)
	}
	if got := signals.Recency["aging.py"]; math.Abs(got-0.8) > 0.01 {
		t.Errorf("aging file recency = %f; want ~0.8", got)
	}
	if got := signals.Recency["stale.py"]; got > 0.01 {
		t.Errorf("stale file recency = %f; want near 0", got)
	}
}

func TestHistoryNormalizedByMaxCount(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	var commits []Commit
	for i := 0; i < 4; i++ {
		commits = append(commits, commitAt(now.AddDate(0, 0, -i-1), "hot.py"))
	}
	commits = append(commits, commitAt(now.AddDate(0, 0, -5), "cold.py"))

	signals := a.fromCommits(commits, nil)

	if got := signals.History["hot.py"]; got != 1.0 {
		t.Errorf("most-changed file history = %f; want 1.0", got)
	}
	if got := signals.History["cold.py"]; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("cold file history = %f; want 0.25", got)
	}
}

func TestCoModificationBothDirections(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	commits := []Commit{
		commitAt(now.AddDate(0, 0, -1), "a.py", "b.py"),
		commitAt(now.AddDate(0, 0, -2), "a.py", "b.py"),
	}

	signals := a.fromCommits(commits, nil)

	if len(signals.CoModification["a.py"]) != 1 || signals.CoModification["a.py"][0] != "b.py" {
		t.Errorf("a.py partners = %v; want [b.py]", signals.CoModification["a.py"])
	}
	if len(signals.CoModification["b.py"]) != 1 || signals.CoModification["b.py"][0] != "a.py" {
		t.Errorf("b.py partners = %v; want [a.py]", signals.CoModification["b.py"])
	}
}

func TestCoModificationTopTenByFrequency(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	// hub.py changes with partner-i exactly i times
	var commits []Commit
	for i := 1; i <= 12; i++ {
		partner := fmt.Sprintf("partner-%02d.py", i)
		for n := 0; n < i; n++ {
			commits = append(commits, commitAt(now.AddDate(0, 0, -(n + 1)), "hub.py", partner))
		}
	}

	signals := a.fromCommits(commits, nil)

	partners := signals.CoModification["hub.py"]
	if len(partners) != 10 {
		t.Fatalf("expected 10 partners, got %d: %v", len(partners), partners)
	}
	if partners[0] != "partner-12.py" {
		t.Errorf("first partner = %s; want partner-12.py", partners[0])
	}
	for _, p := range partners {
		if p == "partner-01.py" || p == "partner-02.py" {
			t.Errorf("low-frequency partner %s should have been cut", p)
		}
	}
}

func TestCoModificationWindowExcludesOldPairs(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	commits := []Commit{
		// Seven months old: outside the co-mod window, inside history
		commitAt(now.AddDate(0, -7, 0), "a.py", "b.py"),
	}

	signals := a.fromCommits(commits, nil)

	if len(signals.CoModification) != 0 {
		t.Errorf("expected no co-modification outside the window, got %v", signals.CoModification)
	}
	if signals.History["a.py"] != 1.0 {
		t.Errorf("old commit should still count toward history, got %f", signals.History["a.py"])
	}
}

func TestCoModificationSkipsBulkCommits(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	bulk := make([]string, 60)
	for i := range bulk {
		bulk[i] = fmt.Sprintf("renamed-%02d.py", i)
	}

	commits := []Commit{
		commitAt(now.AddDate(0, 0, -1), bulk...),
		commitAt(now.AddDate(0, 0, -2), "a.py", "b.py"),
	}

	signals := a.fromCommits(commits, nil)

	if len(signals.CoModification["renamed-00.py"]) != 0 {
		t.Errorf("bulk commit should not produce pairs, got %v", signals.CoModification["renamed-00.py"])
	}
	if len(signals.CoModification["a.py"]) != 1 {
		t.Errorf("normal commit pairs should survive, got %v", signals.CoModification["a.py"])
	}
	if signals.History["renamed-00.py"] == 0 {
		t.Error("bulk commit should still count toward history")
	}
}

func TestSignalsRestrictedToKnownFiles(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	a := testAnalyzer(now)

	commits := []Commit{
		commitAt(now.AddDate(0, 0, -1), "src/app.py", "README.md"),
	}

	signals := a.fromCommits(commits, []string{"src/app.py"})

	if _, ok := signals.History["README.md"]; ok {
		t.Error("unindexed file should not appear in history")
	}
	if _, ok := signals.Recency["README.md"]; ok {
		t.Error("unindexed file should not appear in recency")
	}
	if len(signals.CoModification["src/app.py"]) != 0 {
		t.Errorf("pairs with unindexed files should be dropped, got %v",
			signals.CoModification["src/app.py"])
	}
}

func TestAnalyzeWithoutGitRepo(t *testing.T) {
	a := NewAnalyzer()

	files := []string{"a.py", "b.py"}
	signals := a.Analyze(context.Background(), t.TempDir(), files)

	for _, f := range files {
		if signals.Recency[f] != 0.5 {
			t.Errorf("recency[%s] = %f; want neutral 0.5", f, signals.Recency[f])
		}
	}
	if len(signals.History) != 0 {
		t.Errorf("expected empty history without git, got %v", signals.History)
	}
}

func TestTopPartnersDeterministicTieBreak(t *testing.T) {
	counts := map[string]int{"z.py": 2, "a.py": 2, "m.py": 5}

	got := topPartners(counts, 10)

	want := []string{"m.py", "a.py", "z.py"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topPartners = %v; want %v", got, want)
		}
	}
}
