package temporal

import "time"

// Commit represents a git commit
type Commit struct {
	SHA          string
	Author       string
	Email        string
	Timestamp    time.Time
	Message      string
	FilesChanged []FileChange
}

// FileChange represents file modifications in a commit
type FileChange struct {
	Path      string
	Additions int
	Deletions int
}

// Developer represents a code contributor
type Developer struct {
	Email        string
	Name         string
	FirstCommit  time.Time
	LastCommit   time.Time
	TotalCommits int
}

// Signals holds the per-file ranking signals derived from git history.
// Maps are keyed by repo-relative file path.
type Signals struct {
	// Recency scores each file in [0,1] with linear decay over a year.
	// When git history is unavailable every indexed file scores 0.5.
	Recency map[string]float64 `json:"recency"`

	// History scores each file in [0,1]: its change count over the last
	// twelve months divided by the repo's maximum change count.
	History map[string]float64 `json:"history"`

	// CoModification maps each file to the files most often committed
	// with it over the last six months, most frequent first, capped at
	// ten entries.
	CoModification map[string][]string `json:"comodification"`
}

// NewSignals returns an empty signal set with initialized maps
func NewSignals() *Signals {
	return &Signals{
		Recency:        make(map[string]float64),
		History:        make(map[string]float64),
		CoModification: make(map[string][]string),
	}
}
