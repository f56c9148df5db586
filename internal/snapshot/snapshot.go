// Package snapshot publishes per-repo index state to retrieval. Ingest
// builds a snapshot single-threaded, persists it, and swaps it into the
// registry; readers holding an older snapshot keep a consistent view
// until they drop it.
package snapshot

import (
	"sync"
	"time"

	"github.com/voyantlabs/codectx/internal/graph"
)

// Snapshot is the complete index state of one repository. Treat it as
// immutable after Publish: retrieval reads it from many goroutines.
type Snapshot struct {
	RepoID    string
	Version   uint64
	IndexedAt time.Time

	// Dependency is the file import graph. Call, class, and module
	// graphs are empty when no external graph tool is configured.
	Dependency  *graph.Graph
	CallGraph   *graph.Graph
	ClassGraph  *graph.Graph
	ModuleGraph *graph.Graph

	// Per-file ranking signals, keyed by repo-relative path
	Centrality     map[string]float64
	Recency        map[string]float64
	History        map[string]float64
	CoModification map[string][]string

	// Signature dedup state: signature to occurrence count and to
	// representative entity id
	SignatureCounts map[string]int
	SignatureReps   map[string]string
}

// New returns a snapshot with all graphs and maps initialized, ready
// for an ingest job to fill in.
func New(repoID string) *Snapshot {
	return &Snapshot{
		RepoID:          repoID,
		IndexedAt:       time.Now().UTC(),
		Dependency:      graph.New(),
		CallGraph:       graph.New(),
		ClassGraph:      graph.New(),
		ModuleGraph:     graph.New(),
		Centrality:      make(map[string]float64),
		Recency:         make(map[string]float64),
		History:         make(map[string]float64),
		CoModification:  make(map[string][]string),
		SignatureCounts: make(map[string]int),
		SignatureReps:   make(map[string]string),
	}
}

// Clone returns a copy ready for republishing with swapped fields.
// Version resets so Publish assigns the next one. Maps and graphs are
// shared with the source; callers replace whole fields, never mutate.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Version = 0
	return &c
}

// Registry holds the published snapshot pointer for each repository
type Registry struct {
	mu    sync.RWMutex
	repos map[string]*Snapshot
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		repos: make(map[string]*Snapshot),
	}
}

// Get returns the currently published snapshot for a repository
func (r *Registry) Get(repoID string) (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.repos[repoID]
	return snap, ok
}

// Version returns the published snapshot version, or 0 when the
// repository has never been indexed. Cache keys embed this so a new
// publish invalidates prior entries.
func (r *Registry) Version(repoID string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if snap, ok := r.repos[repoID]; ok {
		return snap.Version
	}
	return 0
}

// Publish swaps the repository's snapshot pointer. A zero Version is
// assigned the next number after the currently published one; restored
// snapshots keep the version they were persisted with.
func (r *Registry) Publish(snap *Snapshot) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.Version == 0 {
		snap.Version = 1
		if prev, ok := r.repos[snap.RepoID]; ok {
			snap.Version = prev.Version + 1
		}
	}
	r.repos[snap.RepoID] = snap
	return snap.Version
}

// Drop removes a repository's snapshot. In-flight readers keep the
// pointer they already hold.
func (r *Registry) Drop(repoID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.repos, repoID)
}

// Repos returns the ids of all repositories with a published snapshot
func (r *Registry) Repos() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.repos))
	for id := range r.repos {
		ids = append(ids, id)
	}
	return ids
}
