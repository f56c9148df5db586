package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/voyantlabs/codectx/internal/cache"
	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/prompt"
)

// maxChunkCap bounds how many chunks a single request may ask for.
const maxChunkCap = 100

// maxAgenticItersCap bounds the query refinement loop.
const maxAgenticItersCap = 2

// GetContext answers a retrieval request against the repository's
// published snapshot. Responses are cached keyed by repository,
// snapshot version, and request body, so a hit can only serve results
// computed from the currently visible index.
func (s *Service) GetContext(ctx context.Context, req models.RetrievalRequest) (*models.RetrievalResponse, error) {
	if err := validateRetrieval(&req); err != nil {
		return nil, err
	}
	repo, err := s.repo(ctx, req.RepoID)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Internal(err, "retrieval request encode failed")
	}
	key := cache.RequestKey(repo.ID, s.registry.Version(repo.ID), body)

	var cached models.RetrievalResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		cached.RequestID = requestID
		return &cached, nil
	}

	snap, _ := s.registry.Get(repo.ID)
	resp, err := s.retriever.Retrieve(ctx, req, snap)
	if err != nil {
		return nil, err
	}
	resp.RequestID = requestID

	if err := s.cache.Set(ctx, key, resp, s.cfg.Cache.TTL); err != nil {
		s.logger.Warn("response cache write failed", "repo", repo.ID, "error", err)
	}
	return resp, nil
}

// AssemblePrompt retrieves context for the task and packs it into a
// token-budgeted prompt package. Query defaults to the task text;
// budget and header defaults come from config.
func (s *Service) AssemblePrompt(ctx context.Context, req models.PromptRequest) (*models.PromptPackage, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, errors.InvalidRequest("task is required").WithDetail("field", "task")
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = req.Task
	}
	resp, err := s.GetContext(ctx, models.RetrievalRequest{
		RepoID:    req.RepoID,
		Query:     query,
		MaxChunks: req.MaxChunks,
	})
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.Prompt.MaxTokens
	}
	pkg, err := s.assembler.Assemble(ctx, prompt.Request{
		RepoID:         req.RepoID,
		Task:           req.Task,
		SystemPrompt:   req.SystemPrompt,
		Model:          req.Model,
		MaxTokens:      maxTokens,
		IncludeHeaders: s.cfg.Prompt.IncludeHeaders,
		Chunks:         resp.Chunks,
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// validateRetrieval rejects malformed requests before any engine work.
// Zero-valued knobs mean "use the default" and pass through untouched.
func validateRetrieval(req *models.RetrievalRequest) error {
	if strings.TrimSpace(req.RepoID) == "" {
		return errors.InvalidRequest("repo_id is required").WithDetail("field", "repo_id")
	}
	if strings.TrimSpace(req.Query) == "" {
		return errors.InvalidRequest("query is required").WithDetail("field", "query")
	}
	if req.MaxChunks < 0 || req.MaxChunks > maxChunkCap {
		return errors.InvalidRequestf("max_chunks must be between 0 and %d", maxChunkCap).
			WithDetail("field", "max_chunks")
	}
	switch req.RetrievalMode {
	case "", models.ModeVector, models.ModeCallGraph, models.ModeSlice:
	default:
		return errors.InvalidRequestf("unknown retrieval_mode %q", req.RetrievalMode).
			WithDetail("field", "retrieval_mode")
	}
	if req.RetrievalMode == models.ModeSlice && strings.TrimSpace(req.SliceTarget) == "" {
		return errors.InvalidRequest("slice_target is required in slice mode").
			WithDetail("field", "slice_target")
	}
	switch req.SliceDirection {
	case "", models.SliceForward, models.SliceBackward:
	default:
		return errors.InvalidRequestf("unknown slice_direction %q", req.SliceDirection).
			WithDetail("field", "slice_direction")
	}
	if req.CallGraphDepth < 0 {
		return errors.InvalidRequest("call_graph_depth must not be negative").
			WithDetail("field", "call_graph_depth")
	}
	if req.SliceDepth < 0 {
		return errors.InvalidRequest("slice_depth must not be negative").
			WithDetail("field", "slice_depth")
	}
	if req.MaxAgenticIters < 0 || req.MaxAgenticIters > maxAgenticItersCap {
		return errors.InvalidRequestf("max_agentic_iters must be between 0 and %d", maxAgenticItersCap).
			WithDetail("field", "max_agentic_iters")
	}
	return nil
}
