// Package ltr persists learned per-repo ranking weights. Relevance
// feedback nudges the dependency and recency weights by how central and
// how fresh the files the user marked useful were, compared to the ones
// they rejected.
package ltr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
)

// learningRate bounds how far one feedback event can move a weight
const learningRate = 0.05

// Store reads and writes per-repo weight files under one directory.
// Updates serialize through a mutex; reads go straight to the file,
// which the atomic rename keeps consistent at all times.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a weight store rooted at dir. The directory is
// created lazily on first write.
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "ltr"),
	}
}

// Weights returns the learned weights for a repository, or the default
// mix when none were learned yet.
func (s *Store) Weights(repoID string) rank.Weights {
	return s.load(repoID)
}

// Update applies relevance feedback and persists the adjusted weights
// atomically. Signals carry the per-file centrality and recency maps
// from the repository's index snapshot.
func (s *Store) Update(feedback models.Feedback, signals rank.Signals) (rank.Weights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.load(feedback.RepoID)

	posCent := meanScore(signals.Centrality, feedback.RelevantFiles)
	negCent := meanScore(signals.Centrality, feedback.IrrelevantFiles)
	w.Dependency += learningRate * (posCent - negCent)

	posRec := meanScore(signals.Recency, feedback.RelevantFiles)
	negRec := meanScore(signals.Recency, feedback.IrrelevantFiles)
	w.Recency += learningRate * (posRec - negRec)

	w = settle(w)

	if err := s.persist(feedback.RepoID, w); err != nil {
		return w, err
	}

	s.logger.Debug("updated ranking weights",
		"repo_id", feedback.RepoID,
		"relevant", len(feedback.RelevantFiles),
		"irrelevant", len(feedback.IrrelevantFiles),
		"dependency", w.Dependency,
		"recency", w.Recency,
	)
	return w, nil
}

func (s *Store) load(repoID string) rank.Weights {
	data, err := os.ReadFile(s.path(repoID))
	if err != nil {
		return rank.DefaultWeights()
	}

	var w rank.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn("discarding unreadable weight file", "repo_id", repoID, "error", err)
		return rank.DefaultWeights()
	}
	if w.Semantic+w.Dependency+w.History+w.Recency <= 0 {
		return rank.DefaultWeights()
	}
	return w
}

// Delete removes a repository's learned weights. Missing weights are
// not an error; the defaults apply either way.
func (s *Store) Delete(repoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(repoID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete weights: %w", err)
	}
	return nil
}

func (s *Store) persist(repoID string, w rank.Weights) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create weight directory: %w", err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	return writeAtomic(s.path(repoID), data)
}

func (s *Store) path(repoID string) string {
	return filepath.Join(s.dir, sanitizeRepoID(repoID)+".json")
}

// sanitizeRepoID keeps repo ids usable as file names
func sanitizeRepoID(repoID string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, repoID)
}

// writeAtomic replaces path through a temp file and rename so readers
// never observe a partial write.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".weights-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write weights: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync weights: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace weight file: %w", err)
	}
	return nil
}

// settle applies the weight bounds and renormalizes until both hold
// at once. Renormalizing can push a clamped weight back out of range,
// so the pair runs to a fixed point; four passes always suffice for
// four weights, and the trailing clamp covers the residue.
func settle(w rank.Weights) rank.Weights {
	for i := 0; i < 4; i++ {
		next := w.Clamp().Normalize()
		if next == w {
			return w
		}
		w = next
	}
	return w.Clamp()
}

// meanScore averages the signal over the named files. Files absent
// from the map count as zero. No files means no signal.
func meanScore(scores map[string]float64, files []string) float64 {
	if len(files) == 0 {
		return 0
	}
	var sum float64
	for _, f := range files {
		sum += scores[f]
	}
	return sum / float64(len(files))
}
