package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/voyantlabs/codectx/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextIngest - indexing requires parser, embedding, and vector store
	ValidationContextIngest ValidationContext = "ingest"
	// ValidationContextRetrieve - retrieval requires a readable vector store
	ValidationContextRetrieve ValidationContext = "retrieve"
	// ValidationContextPatch - patch application requires a worktree directory
	ValidationContextPatch ValidationContext = "patch"
	// ValidationContextServe - the MCP server exercises every subsystem
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ✗ %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context with auto-detected mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	mode := DetectMode()
	return c.ValidateWithMode(ctx, mode)
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextIngest:
		c.validateIndex(result)
		c.validateVector(result, mode)
		c.validateStorage(result)
		c.validateEmbedding(result, true)
		c.validateGitHub(result, false) // Only needed for remote sources
	case ValidationContextRetrieve:
		c.validateIndex(result)
		c.validateVector(result, mode)
		c.validateStorage(result)
		c.validateRetrieval(result)
		c.validateRerank(result)
	case ValidationContextPatch:
		c.validateIndex(result)
		c.validatePatch(result)
	case ValidationContextServe, ValidationContextAll:
		c.validateIndex(result)
		c.validateVector(result, mode)
		c.validateStorage(result)
		c.validateEmbedding(result, false)
		c.validateLLM(result)
		c.validateRetrieval(result)
		c.validateRerank(result)
		c.validateCache(result)
		c.validatePatch(result)
		c.validateGitHub(result, false)
		c.validateGraph(result)
	}

	return result
}

// ValidateOrFatal validates configuration and panics if invalid (auto-detects mode)
func (c *Config) ValidateOrFatal(ctx ValidationContext) {
	mode := DetectMode()
	result := c.ValidateWithMode(ctx, mode)
	if result.HasErrors() {
		fmt.Println(result.Error())
		fmt.Printf("\nDeployment mode: %s (%s)\n", mode, mode.Description())
		panic(errors.InvalidRequest(result.Error()))
	}

	if len(result.Warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range result.Warnings {
			fmt.Printf("  ! %s\n", warn)
		}
	}
}

func (c *Config) validateIndex(result *ValidationResult) {
	if c.Index.MetaPath == "" {
		result.AddError("index.meta_path is required but not set (or set INDEX_META_PATH)")
	}

	if c.Index.DataDir == "" {
		result.AddError("index.data_dir is required but not set")
	}

	if c.Index.Parallelism <= 0 {
		result.AddWarning("index.parallelism is invalid, will use default (8)")
	}
}

func (c *Config) validateVector(result *ValidationResult, mode DeploymentMode) {
	switch c.Vector.Backend {
	case "sqlite", "":
		if c.Vector.Path == "" {
			result.AddError("vector.path is required for the sqlite backend")
		}
	case "pgvector":
		if c.Vector.PostgresDSN == "" {
			result.AddError("vector.postgres_dsn is required for the pgvector backend (or set POSTGRES_DSN)")
		} else {
			if !strings.HasPrefix(c.Vector.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Vector.PostgresDSN, "postgresql://") {
				result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
			}

			// Check for disabled SSL - MODE-AWARE
			if strings.Contains(c.Vector.PostgresDSN, "sslmode=disable") {
				if mode.RequiresSecureCredentials() {
					result.AddError("PostgreSQL DSN has sslmode=disable. This is not allowed in %s mode. Use sslmode=require or sslmode=verify-full.", mode)
				} else if mode.AllowsDevelopmentDefaults() {
					result.AddWarning("PostgreSQL DSN has sslmode=disable. Consider enabling SSL even for local development.")
				}
			}
		}
	default:
		result.AddError("vector.backend must be 'sqlite' or 'pgvector', got %q", c.Vector.Backend)
	}

	if c.Vector.Dimensions < 0 {
		result.AddError("vector.dimensions cannot be negative")
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Backend {
	case "sqlite", "":
		if c.Storage.Path == "" {
			result.AddError("storage.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn is required for the postgres backend (or set POSTGRES_DSN)")
		}
	default:
		result.AddError("storage.backend must be 'sqlite' or 'postgres', got %q", c.Storage.Backend)
	}

	if c.Storage.JobPath == "" {
		result.AddError("storage.job_path is required but not set")
	}
}

func (c *Config) validateEmbedding(result *ValidationResult, required bool) {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.OpenAIKey == "" {
			if required {
				result.AddError("OPENAI_API_KEY is required for the openai embedding provider. Set it via environment variable or keychain.")
			} else {
				result.AddWarning("OPENAI_API_KEY is not set. Indexing will fail until it is configured.")
			}
		}
	case "gemini":
		if c.Embedding.GeminiKey == "" {
			if required {
				result.AddError("GEMINI_API_KEY is required for the gemini embedding provider. Set it via environment variable or keychain.")
			} else {
				result.AddWarning("GEMINI_API_KEY is not set. Indexing will fail until it is configured.")
			}
		}
	case "ollama":
		if c.Embedding.OllamaEndpoint == "" {
			result.AddError("embedding.ollama_endpoint is required for the ollama provider")
		} else if _, err := url.Parse(c.Embedding.OllamaEndpoint); err != nil {
			result.AddError("embedding.ollama_endpoint is invalid: %v", err)
		}
	default:
		result.AddError("embedding.provider must be 'openai', 'gemini', or 'ollama', got %q", c.Embedding.Provider)
	}

	if c.Embedding.Model == "" {
		result.AddWarning("embedding.model is not set, will use the provider default")
	}

	if c.Embedding.BatchSize <= 0 {
		result.AddWarning("embedding.batch_size is invalid, will use default (64)")
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			result.AddWarning("OPENAI_API_KEY is not set. Agentic retrieval will be skipped.")
		}
	case "gemini":
		if c.LLM.GeminiKey == "" {
			result.AddWarning("GEMINI_API_KEY is not set. Agentic retrieval will be skipped.")
		}
	case "none", "":
		result.AddWarning("llm.provider is 'none'. Agentic retrieval is disabled.")
	default:
		result.AddError("llm.provider must be 'openai', 'gemini', or 'none', got %q", c.LLM.Provider)
	}

	if c.LLM.FastModel == "" {
		result.AddWarning("llm.fast_model is not set, will use the provider default")
	}
}

func (c *Config) validateRetrieval(result *ValidationResult) {
	if c.Retrieval.MaxChunks <= 0 {
		result.AddWarning("retrieval.max_chunks is invalid, will use default (10)")
	}

	if c.Retrieval.HybridAlpha < 0 || c.Retrieval.HybridAlpha > 1 {
		result.AddError("retrieval.hybrid_alpha must be in [0,1], got %.2f", c.Retrieval.HybridAlpha)
	}

	if c.Retrieval.SliceDepth <= 0 {
		result.AddWarning("retrieval.slice_depth is invalid, will use default (2)")
	}
}

func (c *Config) validateRerank(result *ValidationResult) {
	if c.Rerank.Endpoint == "" {
		result.AddWarning("rerank.endpoint is not set. Retrieval will use weighted ranking only.")
		return
	}

	if _, err := url.Parse(c.Rerank.Endpoint); err != nil {
		result.AddError("rerank.endpoint is invalid: %v", err)
	}

	if c.Rerank.TopK <= 0 {
		result.AddWarning("rerank.topk is invalid, will use default (20)")
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	switch c.Cache.Backend {
	case "redis":
		if c.Cache.RedisAddr == "" {
			result.AddError("cache.redis_addr is required for the redis backend (or set REDIS_ADDR)")
		}
	case "memory", "none", "":
	default:
		result.AddError("cache.backend must be 'redis', 'memory', or 'none', got %q", c.Cache.Backend)
	}

	if c.Cache.TTL < 0 {
		result.AddWarning("cache.ttl is negative, will use default (1h)")
	}
}

func (c *Config) validatePatch(result *ValidationResult) {
	if c.Patch.WorktreeDir == "" {
		result.AddError("patch.worktree_dir is required but not set")
	}

	if c.Patch.ApplyTimeout <= 0 {
		result.AddWarning("patch.apply_timeout is invalid, will use default (120s)")
	}
}

func (c *Config) validateGitHub(result *ValidationResult, required bool) {
	if c.GitHub.Token == "" {
		if required {
			result.AddError("GITHUB_TOKEN is required but not set")
		} else {
			result.AddWarning("GITHUB_TOKEN is not set. Remote ingestion and PR creation will be limited.")
		}
	}

	if c.GitHub.RateLimit <= 0 {
		result.AddWarning("GITHUB_RATE_LIMIT is invalid, will use default (10 req/s)")
	}
}

func (c *Config) validateGraph(result *ValidationResult) {
	if c.Graph.Neo4jEnabled {
		if c.Graph.Neo4jURI == "" {
			result.AddError("graph.neo4j_uri is required when the Neo4j mirror is enabled")
		} else if _, err := url.Parse(c.Graph.Neo4jURI); err != nil {
			result.AddError("graph.neo4j_uri is invalid: %v", err)
		}

		if c.Graph.Neo4jUser == "" {
			result.AddError("graph.neo4j_user is required when the Neo4j mirror is enabled")
		}

		if c.Graph.Neo4jPassword == "" {
			result.AddError("graph.neo4j_password is required when the Neo4j mirror is enabled")
		}
	}
}

// RequireVector checks if vector store configuration is valid and returns error if not
func (c *Config) RequireVector() error {
	result := &ValidationResult{Valid: true}
	mode := DetectMode()
	c.validateVector(result, mode)

	if result.HasErrors() {
		return errors.InvalidRequest(result.Error())
	}

	return nil
}

// RequireEmbedding checks if embedding configuration is valid and returns error if not
func (c *Config) RequireEmbedding() error {
	result := &ValidationResult{Valid: true}
	c.validateEmbedding(result, true)

	if result.HasErrors() {
		return errors.InvalidRequest(result.Error())
	}

	return nil
}

// RequireGitHub checks if GitHub configuration is valid and returns error if not
func (c *Config) RequireGitHub() error {
	result := &ValidationResult{Valid: true}
	c.validateGitHub(result, true)

	if result.HasErrors() {
		return errors.Unauthorized(result.Error())
	}

	return nil
}
