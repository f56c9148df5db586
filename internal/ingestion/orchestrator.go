// Package ingestion runs index jobs. An index job turns a checked-out
// repository into vector rows plus an immutable signal snapshot: parse,
// graph construction, git signal analysis, signature collapse, entity
// assembly, embedding, one vector upsert, metadata persistence, and
// registry publish. Failures before publish leave the previous snapshot
// visible to readers.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyantlabs/codectx/internal/cache"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/embedding"
	"github.com/voyantlabs/codectx/internal/graph"
	"github.com/voyantlabs/codectx/internal/ltr"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/parser"
	"github.com/voyantlabs/codectx/internal/signature"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/storage"
	"github.com/voyantlabs/codectx/internal/temporal"
	"github.com/voyantlabs/codectx/internal/vector"
)

// Job progress is reported in phases, not files: phase boundaries are
// where failures happen, and a monotonic phase counter keeps the job
// store's no-regression rule trivially satisfied.
const (
	phaseParse = iota + 1
	phaseGraphs
	phaseSignals
	phaseEntities
	phaseEmbed
	phaseUpsert
	phasePublish
	phaseCount = phasePublish
)

// Orchestrator coordinates index jobs and repository removal
type Orchestrator struct {
	repos    storage.RepositoryStore
	jobs     storage.JobStore
	vectors  vector.Store
	engine   embedding.Engine
	registry *snapshot.Registry
	meta     *snapshot.Store
	weights  *ltr.Store
	cache    cache.Cache
	builder  *graph.Builder
	analyzer *temporal.Analyzer
	mirror   *graph.Mirror

	parallelism int
	batchSize   int
	logger      *logrus.Logger
}

// Deps carries the orchestrator's collaborators. Vectors, Engine,
// Repos, Jobs, Registry, and Meta are required; Weights and Cache may
// be nil when the deployment runs without feedback learning or caching.
type Deps struct {
	Repos    storage.RepositoryStore
	Jobs     storage.JobStore
	Vectors  vector.Store
	Engine   embedding.Engine
	Registry *snapshot.Registry
	Meta     *snapshot.Store
	Weights  *ltr.Store
	Cache    cache.Cache

	// Mirror pushes published graphs into an optional graph database.
	// Nil disables mirroring; mirror failures never fail a job.
	Mirror *graph.Mirror

	Graph config.GraphConfig
	Index config.IndexConfig
	Embed config.EmbeddingConfig

	Logger *logrus.Logger
}

// NewOrchestrator creates an ingestion orchestrator
func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = logrus.New()
	}
	c := d.Cache
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &Orchestrator{
		repos:       d.Repos,
		jobs:        d.Jobs,
		vectors:     d.Vectors,
		engine:      d.Engine,
		registry:    d.Registry,
		meta:        d.Meta,
		weights:     d.Weights,
		cache:       c,
		builder:     graph.NewBuilder(d.Graph.CallGraphCmd, d.Graph.CmdTimeout),
		analyzer:    temporal.NewAnalyzer(),
		mirror:      d.Mirror,
		parallelism: d.Index.Parallelism,
		batchSize:   d.Embed.BatchSize,
		logger:      logger,
	}
}

// Result summarizes a completed index job
type Result struct {
	RepoID          string
	Files           int
	Functions       int
	Classes         int
	Chunks          int
	DuplicateDefs   int
	Entities        int
	GraphNodes      int
	GraphEdges      int
	SnapshotVersion uint64
	Duration        time.Duration
}

// Run executes the index job recorded under jobID and writes the
// outcome to the job and repository stores. It does not return an
// error: callers launch it in a goroutine, and failures are observable
// through the job row.
func (o *Orchestrator) Run(ctx context.Context, repo *models.Repository, jobID string) {
	if err := o.jobs.Start(jobID); err != nil {
		o.logger.WithError(err).WithField("job_id", jobID).Error("Failed to start job")
		return
	}
	if err := o.repos.UpdateStatus(ctx, repo.ID, models.RepoIndexing); err != nil {
		o.logger.WithError(err).WithField("repo_id", repo.ID).Warn("Failed to mark repository indexing")
	}

	result, err := o.IngestRepository(ctx, repo, jobID)
	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"repo_id": repo.ID,
			"job_id":  jobID,
		}).Error("Index job failed")

		if ferr := o.jobs.Fail(jobID, err.Error()); ferr != nil {
			o.logger.WithError(ferr).WithField("job_id", jobID).Error("Failed to record job failure")
		}
		if serr := o.repos.UpdateStatus(ctx, repo.ID, models.RepoFailed); serr != nil {
			o.logger.WithError(serr).WithField("repo_id", repo.ID).Warn("Failed to mark repository failed")
		}
		return
	}

	if err := o.jobs.Complete(jobID); err != nil {
		o.logger.WithError(err).WithField("job_id", jobID).Error("Failed to record job completion")
	}
	if err := o.repos.MarkIndexed(ctx, repo.ID, time.Now().UTC()); err != nil {
		o.logger.WithError(err).WithField("repo_id", repo.ID).Warn("Failed to mark repository indexed")
	}

	o.logger.WithFields(logrus.Fields{
		"repo_id":  result.RepoID,
		"version":  result.SnapshotVersion,
		"files":    result.Files,
		"entities": result.Entities,
		"duration": result.Duration.String(),
	}).Info("Index job completed")
}

// IngestRepository performs a complete index pass over the repository's
// local checkout. The previous snapshot, if any, stays published until
// the new one replaces it at the end.
func (o *Orchestrator) IngestRepository(ctx context.Context, repo *models.Repository, jobID string) (*Result, error) {
	startTime := time.Now()
	o.logger.WithFields(logrus.Fields{
		"repo_id": repo.ID,
		"path":    repo.LocalPath,
		"branch":  repo.Branch,
	}).Info("Starting repository ingestion")

	result := &Result{RepoID: repo.ID}

	// Phase 1: parse source into entities and chunks
	parsed, err := parser.ParseRepository(ctx, repo.LocalPath, o.parallelism)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	result.Files = len(parsed.Files)
	o.progress(jobID, phaseParse)

	// Phase 2: dependency graph plus optional external graphs
	snap := snapshot.New(repo.ID)
	o.buildGraphs(ctx, repo, parsed, snap)
	result.GraphNodes = snap.Dependency.NodeCount()
	result.GraphEdges = snap.Dependency.EdgeCount()
	o.progress(jobID, phaseGraphs)

	// Phase 3: git signals
	signals := o.analyzer.Analyze(ctx, repo.LocalPath, filePaths(parsed.Files))
	snap.Recency = signals.Recency
	snap.History = signals.History
	snap.CoModification = signals.CoModification
	o.progress(jobID, phaseSignals)

	// Phase 4: signature collapse and entity assembly
	sigs := signature.NewStore()
	entities, stats := buildEntities(repo.ID, parsed.Files, sigs)
	result.Functions = stats.functions
	result.Classes = stats.classes
	result.Chunks = stats.chunks
	result.DuplicateDefs = stats.duplicates
	result.Entities = len(entities)
	snap.SignatureCounts, snap.SignatureReps = sigs.Snapshot()
	o.progress(jobID, phaseEntities)

	// Phase 5: embed in batches
	if err := embedding.EmbedEntities(ctx, o.engine, entities, o.batchSize); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	o.progress(jobID, phaseEmbed)

	// Phase 6: single vector upsert
	if err := o.vectors.Upsert(ctx, entities); err != nil {
		return nil, fmt.Errorf("vector upsert failed: %w", err)
	}
	o.progress(jobID, phaseUpsert)

	// Phase 7: persist metadata, publish, invalidate cached responses.
	// The version is fixed before the save so the file on disk always
	// matches what readers see, restart included.
	snap.Version = o.registry.Version(repo.ID) + 1
	snap.IndexedAt = time.Now().UTC()
	if err := o.meta.Save(snap); err != nil {
		return nil, fmt.Errorf("metadata persist failed: %w", err)
	}
	result.SnapshotVersion = o.registry.Publish(snap)
	if _, err := o.cache.DeletePattern(ctx, cache.RepoPattern(repo.ID)); err != nil {
		o.logger.WithError(err).WithField("repo_id", repo.ID).Warn("Failed to invalidate cached responses")
	}
	if o.mirror != nil {
		if err := o.mirror.MirrorRepo(ctx, repo.ID, snap.Dependency, snap.CallGraph, snap.ClassGraph, snap.ModuleGraph); err != nil {
			o.logger.WithError(err).WithField("repo_id", repo.ID).Warn("Failed to mirror graphs")
		}
	}
	o.progress(jobID, phasePublish)

	result.Duration = time.Since(startTime)

	o.logger.WithFields(logrus.Fields{
		"repo_id":    repo.ID,
		"files":      result.Files,
		"functions":  result.Functions,
		"classes":    result.Classes,
		"chunks":     result.Chunks,
		"duplicates": result.DuplicateDefs,
		"entities":   result.Entities,
		"version":    result.SnapshotVersion,
		"duration":   result.Duration.String(),
	}).Info("Repository ingestion completed")

	return result, nil
}

// buildGraphs fills the snapshot's graph fields. The dependency graph
// comes from parsed imports; call, class, and module graphs come from
// the configured external tool and degrade to empty when it is absent
// or fails. Call edge weights accumulate across ingests so dynamic
// trace merges survive re-indexing.
func (o *Orchestrator) buildGraphs(ctx context.Context, repo *models.Repository, parsed *parser.RepoResult, snap *snapshot.Snapshot) {
	files := filePaths(parsed.Files)
	imports := parser.ResolveImports(parsed.Files)

	snap.Dependency = o.builder.BuildDependencyGraph(files, imports)
	snap.Centrality = snap.Dependency.Centrality()

	if cycles := o.builder.ReportCycles(snap.Dependency); len(cycles) > 0 {
		o.logger.WithFields(logrus.Fields{
			"repo_id": repo.ID,
			"cycles":  len(cycles),
		}).Debug("Dependency graph contains import cycles")
	}

	snap.CallGraph = o.builder.ExternalGraph(ctx, graph.KindCall, repo.LocalPath)
	snap.ClassGraph = o.builder.ExternalGraph(ctx, graph.KindClass, repo.LocalPath)
	snap.ModuleGraph = o.builder.ExternalGraph(ctx, graph.KindModule, repo.LocalPath)

	if prev, ok := o.registry.Get(repo.ID); ok && prev.CallGraph != nil && !prev.CallGraph.Empty() {
		accumulated := graph.New()
		accumulated.Merge(prev.CallGraph)
		accumulated.Merge(snap.CallGraph)
		snap.CallGraph = accumulated
	}
}

// MergeTrace folds a dynamic execution trace into the repository's
// published call graph and persists the result as a new snapshot
// version. The snapshot itself is never mutated in place.
func (o *Orchestrator) MergeTrace(ctx context.Context, repoID string, traceJSON []byte) (*graph.BuildStats, error) {
	prev, ok := o.registry.Get(repoID)
	if !ok {
		return nil, fmt.Errorf("repository %s has no published snapshot", repoID)
	}

	next := prev.Clone()
	merged := graph.New()
	if prev.CallGraph != nil {
		merged.Merge(prev.CallGraph)
	}
	stats, err := o.builder.MergeTrace(merged, traceJSON)
	if err != nil {
		return nil, fmt.Errorf("trace merge failed: %w", err)
	}
	next.CallGraph = merged
	next.Version = prev.Version + 1
	next.IndexedAt = time.Now().UTC()

	if err := o.meta.Save(next); err != nil {
		return nil, fmt.Errorf("metadata persist failed: %w", err)
	}
	version := o.registry.Publish(next)
	if _, err := o.cache.DeletePattern(ctx, cache.RepoPattern(repoID)); err != nil {
		o.logger.WithError(err).WithField("repo_id", repoID).Warn("Failed to invalidate cached responses")
	}

	o.logger.WithFields(logrus.Fields{
		"repo_id":     repoID,
		"version":     version,
		"trace_nodes": stats.Nodes,
		"trace_edges": stats.Edges,
	}).Info("Dynamic trace merged into call graph")

	return stats, nil
}

// RemoveRepository deletes a repository and everything keyed by it:
// vector rows, the snapshot file and registry entry, learned weights,
// cached responses, job history, and finally the repository row. A
// re-added repository therefore starts from version 1 with no stale
// cache entries keyed against the old version counter.
func (o *Orchestrator) RemoveRepository(ctx context.Context, repoID string) error {
	if _, err := o.repos.Get(ctx, repoID); err != nil {
		return err
	}
	if active, err := o.jobs.Active(repoID); err == nil && active != nil {
		return storage.ErrConflict
	}

	if err := o.vectors.DeleteRepository(ctx, repoID); err != nil {
		return fmt.Errorf("vector delete failed: %w", err)
	}
	if err := o.meta.Delete(repoID); err != nil {
		return fmt.Errorf("metadata delete failed: %w", err)
	}
	o.registry.Drop(repoID)

	if o.weights != nil {
		if err := o.weights.Delete(repoID); err != nil {
			o.logger.WithError(err).WithField("repo_id", repoID).Warn("Failed to delete learned weights")
		}
	}
	if _, err := o.cache.DeletePattern(ctx, cache.RepoPattern(repoID)); err != nil {
		o.logger.WithError(err).WithField("repo_id", repoID).Warn("Failed to delete cached responses")
	}
	if err := o.jobs.DeleteByRepo(repoID); err != nil {
		o.logger.WithError(err).WithField("repo_id", repoID).Warn("Failed to delete job history")
	}
	if o.mirror != nil {
		if err := o.mirror.DeleteRepo(ctx, repoID); err != nil {
			o.logger.WithError(err).WithField("repo_id", repoID).Warn("Failed to delete mirrored graphs")
		}
	}

	if err := o.repos.Delete(ctx, repoID); err != nil {
		return fmt.Errorf("repository delete failed: %w", err)
	}

	o.logger.WithField("repo_id", repoID).Info("Repository removed")
	return nil
}

// Restore reloads persisted snapshots into the registry. Called once on
// startup so retrieval works without re-indexing.
func (o *Orchestrator) Restore() (int, error) {
	snaps, err := o.meta.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("snapshot restore failed: %w", err)
	}
	for _, snap := range snaps {
		o.registry.Publish(snap)
	}
	if len(snaps) > 0 {
		o.logger.WithField("snapshots", len(snaps)).Info("Restored index snapshots")
	}
	return len(snaps), nil
}

func (o *Orchestrator) progress(jobID string, phase int) {
	if err := o.jobs.UpdateProgress(jobID, phase, phaseCount); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"job_id": jobID,
			"phase":  phase,
		}).Warn("Failed to record job progress")
	}
}

func filePaths(files []*parser.FileResult) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}
	return paths
}
