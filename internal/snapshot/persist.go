package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voyantlabs/codectx/internal/graph"
)

// metadata is the persisted JSON form of a snapshot. The dependency
// graph is stored as bare [src, dst] pairs; the other graphs keep the
// {nodes, edges} wire form shared with external tooling.
type metadata struct {
	RepoID                  string              `json:"repo_id"`
	Version                 uint64              `json:"version"`
	IndexedAt               time.Time           `json:"indexed_at"`
	Graph                   graphEdges          `json:"graph"`
	Centrality              map[string]float64  `json:"centrality"`
	Recency                 map[string]float64  `json:"recency"`
	History                 map[string]float64  `json:"history"`
	Comodification          map[string][]string `json:"comodification"`
	ClassGraph              *graph.Graph        `json:"class_graph"`
	ModuleGraph             *graph.Graph        `json:"module_graph"`
	CallGraph               *graph.Graph        `json:"call_graph"`
	SignatureCounts         map[string]int      `json:"signature_counts"`
	SignatureRepresentative map[string]string   `json:"signature_representative"`
}

type graphEdges struct {
	Edges [][2]string `json:"edges"`
}

// Store reads and writes per-repo index metadata files
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a metadata store rooted at dir
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "snapshot"),
	}
}

// Path returns the metadata file path for a repository
func (s *Store) Path(repoID string) string {
	return filepath.Join(s.dir, sanitizeRepoID(repoID)+".json")
}

// Save persists a snapshot atomically: write temp, fsync, rename
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(toMetadata(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}

	path := s.Path(snap.RepoID)
	tmp, err := os.CreateTemp(s.dir, ".meta-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync index metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace index metadata: %w", err)
	}

	s.logger.Debug("index metadata persisted",
		"repo_id", snap.RepoID,
		"version", snap.Version,
		"path", path)
	return nil
}

// Load reads one repository's persisted snapshot
func (s *Store) Load(repoID string) (*Snapshot, error) {
	return s.loadFile(s.Path(repoID))
}

// LoadAll restores every persisted snapshot, skipping files that no
// longer parse. A missing directory means nothing was indexed yet.
func (s *Store) LoadAll() ([]*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	var snaps []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		snap, err := s.loadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable index metadata",
				"file", entry.Name(),
				"error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Delete removes a repository's metadata file. Absence is not an error.
func (s *Store) Delete(repoID string) error {
	err := os.Remove(s.Path(repoID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete index metadata: %w", err)
	}
	return nil
}

func (s *Store) loadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse index metadata: %w", err)
	}
	if meta.RepoID == "" {
		return nil, fmt.Errorf("index metadata %s has no repo_id", filepath.Base(path))
	}

	return fromMetadata(meta), nil
}

func toMetadata(snap *Snapshot) metadata {
	meta := metadata{
		RepoID:                  snap.RepoID,
		Version:                 snap.Version,
		IndexedAt:               snap.IndexedAt,
		Graph:                   graphEdges{Edges: [][2]string{}},
		Centrality:              snap.Centrality,
		Recency:                 snap.Recency,
		History:                 snap.History,
		Comodification:          snap.CoModification,
		ClassGraph:              snap.ClassGraph,
		ModuleGraph:             snap.ModuleGraph,
		CallGraph:               snap.CallGraph,
		SignatureCounts:         snap.SignatureCounts,
		SignatureRepresentative: snap.SignatureReps,
	}

	if snap.Dependency != nil {
		meta.Graph.Edges = snap.Dependency.EdgePairs()
	}
	if meta.ClassGraph == nil {
		meta.ClassGraph = graph.New()
	}
	if meta.ModuleGraph == nil {
		meta.ModuleGraph = graph.New()
	}
	if meta.CallGraph == nil {
		meta.CallGraph = graph.New()
	}
	if meta.Centrality == nil {
		meta.Centrality = map[string]float64{}
	}
	if meta.Recency == nil {
		meta.Recency = map[string]float64{}
	}
	if meta.History == nil {
		meta.History = map[string]float64{}
	}
	if meta.Comodification == nil {
		meta.Comodification = map[string][]string{}
	}
	if meta.SignatureCounts == nil {
		meta.SignatureCounts = map[string]int{}
	}
	if meta.SignatureRepresentative == nil {
		meta.SignatureRepresentative = map[string]string{}
	}
	return meta
}

// fromMetadata rebuilds a snapshot. The dependency graph comes back
// from edge pairs, so files without import edges are not reconstructed;
// their ranking signals still are, through the signal maps.
func fromMetadata(meta metadata) *Snapshot {
	snap := New(meta.RepoID)
	snap.Version = meta.Version
	snap.IndexedAt = meta.IndexedAt

	for _, pair := range meta.Graph.Edges {
		snap.Dependency.AddEdge(pair[0], pair[1], "imports", 1)
	}

	if meta.ClassGraph != nil {
		snap.ClassGraph = meta.ClassGraph
	}
	if meta.ModuleGraph != nil {
		snap.ModuleGraph = meta.ModuleGraph
	}
	if meta.CallGraph != nil {
		snap.CallGraph = meta.CallGraph
	}
	if meta.Centrality != nil {
		snap.Centrality = meta.Centrality
	}
	if meta.Recency != nil {
		snap.Recency = meta.Recency
	}
	if meta.History != nil {
		snap.History = meta.History
	}
	if meta.Comodification != nil {
		snap.CoModification = meta.Comodification
	}
	if meta.SignatureCounts != nil {
		snap.SignatureCounts = meta.SignatureCounts
	}
	if meta.SignatureRepresentative != nil {
		snap.SignatureReps = meta.SignatureRepresentative
	}
	return snap
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
