package temporal

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

const (
	// historyWindowDays is the change-frequency window (twelve months)
	historyWindowDays = 365
	// coModWindowMonths is the co-modification window
	coModWindowMonths = 6
	// coModTopK caps the co-modified partners kept per file
	coModTopK = 10
	// coModBulkLimit skips pair counting for mass commits (renames,
	// formatting sweeps) whose pairs carry no coupling signal
	coModBulkLimit = 50
	// recencySpanDays is the linear decay span for the recency score
	recencySpanDays = 365.0
	// recencyNeutral is the score every file gets when git is unavailable
	recencyNeutral = 0.5
)

// Analyzer derives per-file ranking signals from a repository's git
// history in a single git log pass.
type Analyzer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyzer creates a git history analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		logger: slog.Default().With("component", "git_analyzer"),
		now:    time.Now,
	}
}

// Analyze reads the last twelve months of history and computes recency,
// change frequency, and co-modification for the given files. A missing
// repository, missing git binary, or empty history is not an error:
// every file falls back to neutral recency and empty history signals.
func (a *Analyzer) Analyze(ctx context.Context, repoPath string, files []string) *Signals {
	commits, err := ParseGitHistory(ctx, repoPath, historyWindowDays)
	if err != nil {
		a.logger.Warn("git history unavailable, using neutral signals",
			"repo_path", repoPath,
			"error", err)
		return neutralSignals(files)
	}
	if len(commits) == 0 {
		return neutralSignals(files)
	}

	signals := a.fromCommits(commits, files)

	a.logger.Debug("git signals computed",
		"commits", len(commits),
		"files_with_history", len(signals.History))

	return signals
}

// fromCommits computes all signals from an already-parsed commit list.
// When files is non-empty, paths outside it are ignored; retrieval can
// only surface indexed files, so signals for anything else are noise.
func (a *Analyzer) fromCommits(commits []Commit, files []string) *Signals {
	now := a.now()
	coModCutoff := now.AddDate(0, -coModWindowMonths, 0)

	var known map[string]bool
	if len(files) > 0 {
		known = make(map[string]bool, len(files))
		for _, f := range files {
			known[f] = true
		}
	}
	keep := func(path string) bool {
		return known == nil || known[path]
	}

	lastTouched := make(map[string]time.Time)
	changeCounts := make(map[string]int)
	pairCounts := make(map[string]map[string]int)

	for _, commit := range commits {
		var changed []string
		for _, fc := range commit.FilesChanged {
			if !keep(fc.Path) {
				continue
			}

			changeCounts[fc.Path]++
			if commit.Timestamp.After(lastTouched[fc.Path]) {
				lastTouched[fc.Path] = commit.Timestamp
			}
			changed = append(changed, fc.Path)
		}

		// Every pair of files changed together contributes +1 in both
		// directions, within the co-modification window only
		if !commit.Timestamp.After(coModCutoff) {
			continue
		}
		if len(changed) >= coModBulkLimit {
			continue
		}
		for i := 0; i < len(changed); i++ {
			for j := i + 1; j < len(changed); j++ {
				left, right := changed[i], changed[j]
				if left == right {
					continue
				}
				if pairCounts[left] == nil {
					pairCounts[left] = make(map[string]int)
				}
				if pairCounts[right] == nil {
					pairCounts[right] = make(map[string]int)
				}
				pairCounts[left][right]++
				pairCounts[right][left]++
			}
		}
	}

	signals := NewSignals()

	// Recency: 1 - min(1, days_since_last_commit / 365)
	for path, t := range lastTouched {
		days := now.Sub(t).Hours() / 24
		score := 1.0 - days/recencySpanDays
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		signals.Recency[path] = score
	}

	// History: change count normalized by the most-changed file
	maxCount := 0
	for _, c := range changeCounts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount > 0 {
		for path, c := range changeCounts {
			signals.History[path] = float64(c) / float64(maxCount)
		}
	}

	// Co-modification: top partners per file, most frequent first
	for path, partners := range pairCounts {
		signals.CoModification[path] = topPartners(partners, coModTopK)
	}

	return signals
}

// topPartners sorts co-change partners by count descending, breaking
// ties by path for deterministic output
func topPartners(counts map[string]int, k int) []string {
	paths := make([]string, 0, len(counts))
	for p := range counts {
		paths = append(paths, p)
	}

	sort.Slice(paths, func(i, j int) bool {
		if counts[paths[i]] != counts[paths[j]] {
			return counts[paths[i]] > counts[paths[j]]
		}
		return paths[i] < paths[j]
	})

	if len(paths) > k {
		paths = paths[:k]
	}
	return paths
}

// neutralSignals fills the recency map with 0.5 for every known file
// and leaves history and co-modification empty
func neutralSignals(files []string) *Signals {
	signals := NewSignals()
	for _, f := range files {
		signals.Recency[f] = recencyNeutral
	}
	return signals
}
