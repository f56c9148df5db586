package models

import (
	"time"
)

// SourceType describes where a repository's working copy came from
type SourceType string

const (
	SourceLocal     SourceType = "local"
	SourceGit       SourceType = "git"
	SourceGitHubHub SourceType = "github_hub"
)

// RepoStatus tracks a repository through its lifecycle
type RepoStatus string

const (
	RepoPending  RepoStatus = "pending"
	RepoIndexing RepoStatus = "indexing"
	RepoReady    RepoStatus = "ready"
	RepoFailed   RepoStatus = "failed"
)

// Repository is a registered source repository
type Repository struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	SourceType    SourceType `json:"source_type" db:"source_type"`
	LocalPath     string     `json:"local_path" db:"local_path"`
	Branch        string     `json:"branch" db:"branch"`
	Status        RepoStatus `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	LastIndexedAt *time.Time `json:"last_indexed_at" db:"last_indexed_at"`
}

// EntityType is the kind of indexed unit
type EntityType string

const (
	EntityFile     EntityType = "file"
	EntityClass    EntityType = "class"
	EntityFunction EntityType = "function"
	EntityChunk    EntityType = "chunk"
)

// ChunkKind distinguishes AST-derived chunks from fixed sliding windows
type ChunkKind string

const (
	ChunkASTRegion ChunkKind = "ast_region"
	ChunkFixed     ChunkKind = "fixed"
)

// Entity is a semantic unit indexed in the vector store. Lines are 0-based
// and inclusive. Code is empty for file entities.
type Entity struct {
	ID         string     `json:"id"`
	RepoID     string     `json:"repo_id"`
	FilePath   string     `json:"file_path"`
	EntityType EntityType `json:"entity_type"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Language   string     `json:"language"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	ChunkID    string     `json:"chunk_id,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// JobStatus tracks an index job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobProgress is monotonically non-decreasing within a job
type JobProgress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Job is one index run over a repository. At most one non-terminal job
// exists per repository at any time.
type Job struct {
	ID          string      `json:"job_id"`
	RepoID      string      `json:"repo_id"`
	Status      JobStatus   `json:"status"`
	Progress    JobProgress `json:"progress"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// RetrievalMode selects the retrieval strategy
type RetrievalMode string

const (
	ModeVector    RetrievalMode = "vector"
	ModeCallGraph RetrievalMode = "callgraph"
	ModeSlice     RetrievalMode = "slice"
)

// SliceDirection selects forward (callees) or backward (callers) slicing
type SliceDirection string

const (
	SliceForward  SliceDirection = "forward"
	SliceBackward SliceDirection = "backward"
)

// RetrievalFilters narrows candidate search
type RetrievalFilters struct {
	Languages []string `json:"languages,omitempty"`
}

// RetrievalRequest is the query contract
type RetrievalRequest struct {
	RepoID          string           `json:"repo_id"`
	Query           string           `json:"query"`
	MaxChunks       int              `json:"max_chunks"`
	Filters         RetrievalFilters `json:"filters,omitempty"`
	RetrievalMode   RetrievalMode    `json:"retrieval_mode,omitempty"`
	CallGraphDepth  int              `json:"call_graph_depth,omitempty"`
	SliceTarget     string           `json:"slice_target,omitempty"`
	SliceDirection  SliceDirection   `json:"slice_direction,omitempty"`
	SliceDepth      int              `json:"slice_depth,omitempty"`
	ExpandNeighbors bool             `json:"expand_neighbors,omitempty"`
	Agentic         bool             `json:"agentic,omitempty"`
	MaxAgenticIters int              `json:"max_agentic_iters,omitempty"`
}

// Reason explains one scoring signal on a returned chunk
type Reason struct {
	Type        string  `json:"type"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// ContextChunk is one retrieved code region
type ContextChunk struct {
	FilePath   string   `json:"file_path"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Language   string   `json:"language"`
	Snippet    string   `json:"snippet"`
	Confidence int      `json:"confidence"`
	Reasons    []Reason `json:"reasons"`
	Distance   float64  `json:"distance"`
	ChunkID    string   `json:"chunk_id,omitempty"`
	Name       string   `json:"name,omitempty"`
}

// RetrievalSummary aggregates the response. Notes carry degradation flags
// (missing signal sources, disabled expansions).
type RetrievalSummary struct {
	Total         int      `json:"total"`
	AvgConfidence float64  `json:"avg_confidence"`
	RetrievalMode string   `json:"retrieval_mode"`
	Notes         []string `json:"notes,omitempty"`
}

// Artifact is a rendered diagram in a text format
type Artifact struct {
	Type    string `json:"type"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

// RetrievalResponse is the query result contract
type RetrievalResponse struct {
	Chunks    []ContextChunk   `json:"chunks"`
	Summary   RetrievalSummary `json:"summary"`
	Artifacts []Artifact       `json:"artifacts,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// PatchRequest is the patch apply contract
type PatchRequest struct {
	RepoID             string   `json:"repo_id"`
	Patch              string   `json:"patch"`
	BaseBranch         string   `json:"base_branch,omitempty"`
	NewBranch          string   `json:"new_branch,omitempty"`
	CommitMessage      string   `json:"commit_message,omitempty"`
	Push               bool     `json:"push,omitempty"`
	CreatePR           bool     `json:"create_pr,omitempty"`
	PRTitle            string   `json:"pr_title,omitempty"`
	PRBody             string   `json:"pr_body,omitempty"`
	PRBase             string   `json:"pr_base,omitempty"`
	PRDraft            bool     `json:"pr_draft,omitempty"`
	DryRun             bool     `json:"dry_run,omitempty"`
	RestrictToFiles    []string `json:"restrict_to_files,omitempty"`
	EnforceRestriction bool     `json:"enforce_restriction,omitempty"`
}

// PatchValidation is the validator verdict
type PatchValidation struct {
	OK     bool     `json:"ok"`
	Issues []string `json:"issues"`
	Files  []string `json:"files"`
}

// PullRequestSpec describes a pull request to open on the git host
type PullRequestSpec struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
	Draft bool   `json:"draft,omitempty"`
}

// PullRequestInfo describes a created pull request
type PullRequestInfo struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

// PatchResult is the apply outcome
type PatchResult struct {
	BaseBranch string           `json:"base_branch"`
	NewBranch  string           `json:"new_branch"`
	Commit     string           `json:"commit"`
	Pushed     bool             `json:"pushed"`
	PRCreated  bool             `json:"pr_created"`
	PR         *PullRequestInfo `json:"pr,omitempty"`
	Validation PatchValidation  `json:"validation"`
	Logs       []string         `json:"logs"`
	Summary    string           `json:"summary"`
}

// Message is one chat message for the LLM gateway
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptRequest asks for retrieval plus token-budgeted assembly. Query
// defaults to Task; retrieval knobs beyond MaxChunks use their defaults.
type PromptRequest struct {
	RepoID       string `json:"repo_id"`
	Task         string `json:"task"`
	Query        string `json:"query,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Model        string `json:"model,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
	MaxChunks    int    `json:"max_chunks,omitempty"`
}

// TokenUsage reports prompt assembly accounting
type TokenUsage struct {
	Budget          int    `json:"budget"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Model           string `json:"model,omitempty"`
	ChunksIncluded  int    `json:"chunks_included"`
}

// PromptPackage is the assembled, budgeted prompt
type PromptPackage struct {
	Messages       []Message      `json:"messages"`
	SelectedChunks []ContextChunk `json:"selected_chunks"`
	TokenUsage     TokenUsage     `json:"token_usage"`
}

// Feedback marks files a user judged relevant or irrelevant for a query
type Feedback struct {
	RepoID          string   `json:"repo_id"`
	RelevantFiles   []string `json:"relevant_files"`
	IrrelevantFiles []string `json:"irrelevant_files"`
}

// LanguageStats counts parsed files per language tag
type LanguageStats map[string]int
