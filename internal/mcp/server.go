// Package mcp exposes the service over the Model Context Protocol so
// coding agents can pull repository context through their native tool
// interface. Transport is stdio; every tool delegates to the service
// facade and returns JSON text content.
package mcp

import (
	"context"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voyantlabs/codectx/internal/service"
)

// Server wraps the SDK server around the service facade.
type Server struct {
	svc    *service.Service
	server *mcp.Server
	logger *slog.Logger
}

// NewServer builds the tool server. Version shows up in the MCP
// handshake so clients can report what they are talking to.
func NewServer(svc *service.Service, version string) *Server {
	s := &Server{
		svc:    svc,
		logger: slog.Default().With("component", "mcp"),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codectx",
		Version: version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until the context is canceled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Index a repository for retrieval. Pass repo_id for a registered repository, or source (+ source_type) to register and index in one call. Indexing runs in the background; poll job_status with the returned job id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Registered repository id",
				},
				"source": {
					Type:        "string",
					Description: "Directory path or clone URL when registering a new repository",
				},
				"source_type": {
					Type:        "string",
					Description: "One of: local, git, github_hub (default local)",
				},
				"branch": {
					Type:        "string",
					Description: "Branch for remote sources",
				},
				"name": {
					Type:        "string",
					Description: "Repository name override; defaults from the source",
				},
			},
		},
	}, s.handleIndexRepository)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_context",
		Description: "Retrieve ranked code context for a natural-language query. Modes: vector (default), callgraph (promotes callers/callees of matched functions), slice (dependency slice around slice_target).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Repository id",
				},
				"query": {
					Type:        "string",
					Description: "Natural-language or code query",
				},
				"max_chunks": {
					Type:        "integer",
					Description: "Maximum chunks to return (default 10, cap 100)",
				},
				"languages": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Restrict results to these languages (e.g. [\"python\"])",
				},
				"retrieval_mode": {
					Type:        "string",
					Description: "vector, callgraph, or slice",
				},
				"call_graph_depth": {
					Type:        "integer",
					Description: "Neighbor depth for callgraph mode",
				},
				"slice_target": {
					Type:        "string",
					Description: "Function or file the slice is computed around (slice mode)",
				},
				"slice_direction": {
					Type:        "string",
					Description: "forward (dependents) or backward (dependencies)",
				},
				"slice_depth": {
					Type:        "integer",
					Description: "Slice traversal depth",
				},
				"expand_neighbors": {
					Type:        "boolean",
					Description: "Pull in chunks adjacent to top results",
				},
				"agentic": {
					Type:        "boolean",
					Description: "Let the LLM refine the query when results look weak",
				},
				"max_agentic_iters": {
					Type:        "integer",
					Description: "Refinement iterations, 0 to 2",
				},
			},
			Required: []string{"repo_id", "query"},
		},
	}, s.handleGetContext)

	s.server.AddTool(&mcp.Tool{
		Name:        "assemble_prompt",
		Description: "Retrieve context for a task and pack it into a token-budgeted prompt package (messages plus the chunks that made the cut).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Repository id",
				},
				"task": {
					Type:        "string",
					Description: "What the agent is trying to do; becomes the user message",
				},
				"query": {
					Type:        "string",
					Description: "Retrieval query override; defaults to the task text",
				},
				"system_prompt": {
					Type:        "string",
					Description: "System message override",
				},
				"model": {
					Type:        "string",
					Description: "Target model name, recorded in token usage",
				},
				"max_tokens": {
					Type:        "integer",
					Description: "Token budget; defaults from config",
				},
				"max_chunks": {
					Type:        "integer",
					Description: "Retrieval chunk cap before packing",
				},
			},
			Required: []string{"repo_id", "task"},
		},
	}, s.handleAssemblePrompt)

	s.server.AddTool(&mcp.Tool{
		Name:        "validate_patch",
		Description: "Check a unified diff for structural and path-safety problems without applying it. A failing patch returns ok=false with issues, not an error.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Repository id; optional, only checked for existence",
				},
				"patch": {
					Type:        "string",
					Description: "Unified diff text",
				},
				"restrict_to_files": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Allowed target files when enforce_restriction is true",
				},
				"enforce_restriction": {
					Type:        "boolean",
					Description: "Reject targets outside restrict_to_files",
				},
			},
			Required: []string{"patch"},
		},
	}, s.handleValidatePatch)

	s.server.AddTool(&mcp.Tool{
		Name:        "apply_patch",
		Description: "Apply a unified diff in an isolated worktree, then optionally commit, push, and open a pull request. The primary checkout is never touched.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Repository id",
				},
				"patch": {
					Type:        "string",
					Description: "Unified diff text",
				},
				"base_branch": {
					Type:        "string",
					Description: "Branch to base the worktree on; defaults to the repository branch",
				},
				"new_branch": {
					Type:        "string",
					Description: "Branch created for the change; generated when empty",
				},
				"commit_message": {
					Type:        "string",
					Description: "Commit message; a commit only happens when this is set",
				},
				"push": {
					Type:        "boolean",
					Description: "Push the new branch to origin",
				},
				"create_pr": {
					Type:        "boolean",
					Description: "Open a pull request after pushing (requires a GitHub token)",
				},
				"pr_title": {
					Type:        "string",
					Description: "Pull request title",
				},
				"pr_body": {
					Type:        "string",
					Description: "Pull request body",
				},
				"pr_base": {
					Type:        "string",
					Description: "Pull request base branch; defaults to base_branch",
				},
				"pr_draft": {
					Type:        "boolean",
					Description: "Open the pull request as a draft",
				},
				"dry_run": {
					Type:        "boolean",
					Description: "Validate and test-apply only; the worktree is discarded",
				},
				"restrict_to_files": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Allowed target files when enforce_restriction is true",
				},
				"enforce_restriction": {
					Type:        "boolean",
					Description: "Reject targets outside restrict_to_files",
				},
			},
			Required: []string{"repo_id", "patch"},
		},
	}, s.handleApplyPatch)

	s.server.AddTool(&mcp.Tool{
		Name:        "record_feedback",
		Description: "Mark files from a previous get_context call as relevant or irrelevant. Adjusts the repository's learned ranking weights and returns them.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo_id": {
					Type:        "string",
					Description: "Repository id",
				},
				"relevant_files": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Files that were actually useful",
				},
				"irrelevant_files": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Files that wasted context budget",
				},
			},
			Required: []string{"repo_id"},
		},
	}, s.handleRecordFeedback)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_repositories",
		Description: "List registered repositories with status and last index time.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleListRepositories)

	s.server.AddTool(&mcp.Tool{
		Name:        "job_status",
		Description: "Look up an index job by id, or the most recent job for a repository.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"job_id": {
					Type:        "string",
					Description: "Job id returned by index_repository",
				},
				"repo_id": {
					Type:        "string",
					Description: "Repository id; returns its newest job when job_id is empty",
				},
			},
		},
	}, s.handleJobStatus)
}
