package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voyantlabs/codectx/internal/errors"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/service"
)

type indexParams struct {
	RepoID     string `json:"repo_id,omitempty"`
	Source     string `json:"source,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Name       string `json:"name,omitempty"`
}

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p indexParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("index_repository", err)
	}

	repoID := strings.TrimSpace(p.RepoID)
	if repoID == "" {
		if strings.TrimSpace(p.Source) == "" {
			return errorResult(errors.InvalidRequest("repo_id or source is required").
				WithDetail("field", "repo_id"))
		}
		sourceType := models.SourceType(p.SourceType)
		if p.SourceType == "" {
			sourceType = models.SourceLocal
		}
		repo, err := s.svc.AddRepository(ctx, service.AddRepoRequest{
			Name:       p.Name,
			Source:     p.Source,
			SourceType: sourceType,
			Branch:     p.Branch,
		})
		if err != nil {
			return errorResult(err)
		}
		repoID = repo.ID
	}

	job, err := s.svc.IndexRepository(ctx, repoID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"repo_id": repoID,
		"job":     job,
	})
}

type contextParams struct {
	RepoID          string   `json:"repo_id"`
	Query           string   `json:"query"`
	MaxChunks       int      `json:"max_chunks,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	RetrievalMode   string   `json:"retrieval_mode,omitempty"`
	CallGraphDepth  int      `json:"call_graph_depth,omitempty"`
	SliceTarget     string   `json:"slice_target,omitempty"`
	SliceDirection  string   `json:"slice_direction,omitempty"`
	SliceDepth      int      `json:"slice_depth,omitempty"`
	ExpandNeighbors bool     `json:"expand_neighbors,omitempty"`
	Agentic         bool     `json:"agentic,omitempty"`
	MaxAgenticIters int      `json:"max_agentic_iters,omitempty"`
}

func (s *Server) handleGetContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p contextParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("get_context", err)
	}

	resp, err := s.svc.GetContext(ctx, models.RetrievalRequest{
		RepoID:          p.RepoID,
		Query:           p.Query,
		MaxChunks:       p.MaxChunks,
		Filters:         models.RetrievalFilters{Languages: p.Languages},
		RetrievalMode:   models.RetrievalMode(p.RetrievalMode),
		CallGraphDepth:  p.CallGraphDepth,
		SliceTarget:     p.SliceTarget,
		SliceDirection:  models.SliceDirection(p.SliceDirection),
		SliceDepth:      p.SliceDepth,
		ExpandNeighbors: p.ExpandNeighbors,
		Agentic:         p.Agentic,
		MaxAgenticIters: p.MaxAgenticIters,
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(resp)
}

func (s *Server) handleAssemblePrompt(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p models.PromptRequest
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("assemble_prompt", err)
	}

	pkg, err := s.svc.AssemblePrompt(ctx, p)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(pkg)
}

func (s *Server) handleValidatePatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p models.PatchRequest
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("validate_patch", err)
	}

	verdict, err := s.svc.ValidatePatch(ctx, p)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(verdict)
}

func (s *Server) handleApplyPatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p models.PatchRequest
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("apply_patch", err)
	}

	result, err := s.svc.ApplyPatch(ctx, p)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(result)
}

func (s *Server) handleRecordFeedback(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p models.Feedback
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("record_feedback", err)
	}

	weights, err := s.svc.RecordFeedback(ctx, p)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"repo_id": p.RepoID,
		"weights": weights,
	})
}

func (s *Server) handleListRepositories(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.svc.ListRepositories(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"repositories": repos,
	})
}

type jobStatusParams struct {
	JobID  string `json:"job_id,omitempty"`
	RepoID string `json:"repo_id,omitempty"`
}

func (s *Server) handleJobStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p jobStatusParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return badArguments("job_status", err)
	}

	switch {
	case strings.TrimSpace(p.JobID) != "":
		job, err := s.svc.JobStatus(ctx, p.JobID)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(job)

	case strings.TrimSpace(p.RepoID) != "":
		jobs, err := s.svc.ListJobs(ctx, p.RepoID)
		if err != nil {
			return errorResult(err)
		}
		if len(jobs) == 0 {
			return errorResult(errors.NotFoundf("repository %q has no index jobs", p.RepoID))
		}
		return jsonResult(jobs[0])

	default:
		return errorResult(errors.InvalidRequest("job_id or repo_id is required").
			WithDetail("field", "job_id"))
	}
}
