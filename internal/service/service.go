// Package service is the single entrypoint behind the CLI and the MCP
// server. It validates requests, assigns request ids, maps storage
// sentinels to typed errors, and wires the cache around retrieval. All
// domain work is delegated to the packages underneath.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/voyantlabs/codectx/internal/cache"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/embedding"
	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/github"
	"github.com/voyantlabs/codectx/internal/graph"
	"github.com/voyantlabs/codectx/internal/ingestion"
	"github.com/voyantlabs/codectx/internal/llm"
	"github.com/voyantlabs/codectx/internal/ltr"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/patch"
	"github.com/voyantlabs/codectx/internal/prompt"
	"github.com/voyantlabs/codectx/internal/rerank"
	"github.com/voyantlabs/codectx/internal/retrieval"
	"github.com/voyantlabs/codectx/internal/snapshot"
	"github.com/voyantlabs/codectx/internal/storage"
	"github.com/voyantlabs/codectx/internal/vector"

	stderrors "errors"
)

// Service owns every long-lived dependency. One instance serves all
// callers; its methods are safe for concurrent use.
type Service struct {
	cfg       *config.Config
	repos     storage.RepositoryStore
	jobs      storage.JobStore
	vectors   vector.Store
	registry  *snapshot.Registry
	weights   *ltr.Store
	cache     cache.Cache
	retriever *retrieval.Retriever
	assembler *prompt.Assembler
	orch      *ingestion.Orchestrator
	applier   *patch.Applier
	github    *github.Client
	logger    *slog.Logger
}

// Deps carries the constructed dependencies. Bootstrap fills it from
// config; tests fill it with fakes. GitHub may be nil when no token is
// configured, in which case github_hub repos fall back to cloning the
// remote HEAD and pull request creation is rejected.
type Deps struct {
	Config    *config.Config
	Repos     storage.RepositoryStore
	Jobs      storage.JobStore
	Vectors   vector.Store
	Registry  *snapshot.Registry
	Weights   *ltr.Store
	Cache     cache.Cache
	Retriever *retrieval.Retriever
	Assembler *prompt.Assembler
	Orch      *ingestion.Orchestrator
	Applier   *patch.Applier
	GitHub    *github.Client
}

// New assembles a Service from pre-built dependencies.
func New(d Deps) *Service {
	c := d.Cache
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &Service{
		cfg:       d.Config,
		repos:     d.Repos,
		jobs:      d.Jobs,
		vectors:   d.Vectors,
		registry:  d.Registry,
		weights:   d.Weights,
		cache:     c,
		retriever: d.Retriever,
		assembler: d.Assembler,
		orch:      d.Orch,
		applier:   d.Applier,
		github:    d.GitHub,
		logger:    slog.Default().With("component", "service"),
	}
}

// Bootstrap builds the full dependency tree from config and republishes
// persisted snapshots so queries work immediately after a restart.
// Optional subsystems that fail to come up (cache, neo4j mirror) are
// logged and dropped rather than blocking startup.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Service, error) {
	logger := slog.Default().With("component", "service")

	engine, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.Embedding.Provider,
		Model:          cfg.Embedding.Model,
		OpenAIKey:      cfg.Embedding.OpenAIKey,
		GeminiKey:      cfg.Embedding.GeminiKey,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding engine init failed: %w", err)
	}

	dims := cfg.Vector.Dimensions
	if dims <= 0 {
		dims = engine.Dimensions()
	}
	vectors, err := vector.NewStore(ctx, vector.Config{
		Backend:     cfg.Vector.Backend,
		Path:        cfg.Vector.Path,
		PostgresDSN: cfg.Vector.PostgresDSN,
		Dimensions:  dims,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}

	repos, err := storage.NewRepositoryStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("repository store init failed: %w", err)
	}
	jobs, err := storage.NewBoltJobStore(cfg.Storage.JobPath)
	if err != nil {
		return nil, fmt.Errorf("job store init failed: %w", err)
	}

	reqCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		logger.Warn("cache unavailable, continuing without one", "error", err)
		reqCache = cache.NewNoopCache()
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm client init failed: %w", err)
	}

	var gh *github.Client
	var opener patch.PROpener
	if cfg.GitHub.Token != "" {
		gh = github.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit)
		opener = gh
	}

	var mirror *graph.Mirror
	if cfg.Graph.Neo4jEnabled {
		backend, err := graph.NewNeo4jBackend(ctx, cfg.Graph.Neo4jURI, cfg.Graph.Neo4jUser, cfg.Graph.Neo4jPassword, "")
		if err != nil {
			logger.Warn("neo4j mirror unavailable, continuing without one", "error", err)
		} else {
			mirror = graph.NewMirror(backend)
		}
	}

	registry := snapshot.NewRegistry()
	meta := snapshot.NewStore(cfg.Index.MetaPath)
	weights := ltr.NewStore(filepath.Join(cfg.Index.DataDir, "ltr"))

	orch := ingestion.NewOrchestrator(ingestion.Deps{
		Repos:    repos,
		Jobs:     jobs,
		Vectors:  vectors,
		Engine:   engine,
		Registry: registry,
		Meta:     meta,
		Weights:  weights,
		Cache:    reqCache,
		Mirror:   mirror,
		Graph:    cfg.Graph,
		Index:    cfg.Index,
		Embed:    cfg.Embedding,
	})
	if restored, err := orch.Restore(); err != nil {
		logger.Warn("snapshot restore incomplete", "restored", restored, "error", err)
	}

	retriever := retrieval.New(vectors, engine, rerank.New(cfg.Rerank), llmClient, weights, retrieval.Config{
		MaxChunks:   cfg.Retrieval.MaxChunks,
		HybridAlpha: cfg.Retrieval.HybridAlpha,
		SliceDepth:  cfg.Retrieval.SliceDepth,
		RerankTopK:  cfg.Rerank.TopK,
	})

	return New(Deps{
		Config:    cfg,
		Repos:     repos,
		Jobs:      jobs,
		Vectors:   vectors,
		Registry:  registry,
		Weights:   weights,
		Cache:     reqCache,
		Retriever: retriever,
		Assembler: prompt.New(vectors, llmClient),
		Orch:      orch,
		Applier:   patch.NewApplier(cfg.Patch, opener),
		GitHub:    gh,
	}), nil
}

// Close releases the stores. Safe to call once after all in-flight
// requests have drained.
func (s *Service) Close() error {
	var firstErr error
	if err := s.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.jobs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.repos.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// repo loads a repository and maps the storage sentinel to the typed
// not-found error every caller expects.
func (s *Service) repo(ctx context.Context, repoID string) (*models.Repository, error) {
	repo, err := s.repos.Get(ctx, repoID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFoundf("repository %q is not registered", repoID)
		}
		return nil, errors.Internal(err, "repository lookup failed")
	}
	return repo, nil
}
