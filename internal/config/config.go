package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Index storage and metadata
	Index IndexConfig `yaml:"index"`

	// Vector store backend
	Vector VectorConfig `yaml:"vector"`

	// Repository and job stores
	Storage StorageConfig `yaml:"storage"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// LLM gateway
	LLM LLMConfig `yaml:"llm"`

	// Cross-encoder reranker
	Rerank RerankConfig `yaml:"rerank"`

	// Retrieval defaults
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Prompt assembly defaults
	Prompt PromptConfig `yaml:"prompt"`

	// Request cache
	Cache CacheConfig `yaml:"cache"`

	// Patch application
	Patch PatchConfig `yaml:"patch"`

	// GitHub integration
	GitHub GitHubConfig `yaml:"github"`

	// Graph tooling and optional mirror
	Graph GraphConfig `yaml:"graph"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type IndexConfig struct {
	// MetaPath is where per-repo index metadata JSON lives (INDEX_META_PATH)
	MetaPath string `yaml:"meta_path"`
	// DataDir holds databases, LTR weights, and worktrees
	DataDir string `yaml:"data_dir"`
	// Parallelism bounds concurrent file parsing and embedding batches
	Parallelism int `yaml:"parallelism"`
}

type VectorConfig struct {
	Backend     string `yaml:"backend"` // "sqlite", "pgvector"
	Path        string `yaml:"path"`    // sqlite database file
	PostgresDSN string `yaml:"postgres_dsn"`
	Dimensions  int    `yaml:"dimensions"` // 0 = take from embedding engine
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // "sqlite", "postgres"
	Path        string `yaml:"path"`    // sqlite database file
	PostgresDSN string `yaml:"postgres_dsn"`
	JobPath     string `yaml:"job_path"` // bbolt job database
}

type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai", "gemini", "ollama"
	Model          string `yaml:"model"`
	OpenAIKey      string `yaml:"openai_key"`
	GeminiKey      string `yaml:"gemini_key"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	BatchSize      int    `yaml:"batch_size"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"` // "openai", "gemini", "none"
	FastModel string        `yaml:"fast_model"`
	DeepModel string        `yaml:"deep_model"`
	OpenAIKey string        `yaml:"openai_key"`
	GeminiKey string        `yaml:"gemini_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

type RerankConfig struct {
	Endpoint string        `yaml:"endpoint"` // TEI server URL; empty disables
	Model    string        `yaml:"model"`
	TopK     int           `yaml:"topk"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	MaxChunks   int     `yaml:"max_chunks"`
	HybridAlpha float64 `yaml:"hybrid_alpha"`
	SliceDepth  int     `yaml:"slice_depth"`
}

type PromptConfig struct {
	MaxTokens      int  `yaml:"max_tokens"` // default budget when a request carries none
	IncludeHeaders bool `yaml:"include_headers"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // "redis", "memory", "none"
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type PatchConfig struct {
	WorktreeDir    string        `yaml:"worktree_dir"`
	ApplyTimeout   time.Duration `yaml:"apply_timeout"`
	NetworkTimeout time.Duration `yaml:"network_timeout"` // fetch/push
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second
}

type GraphConfig struct {
	// CallGraphCmd, when set, is run per repo to produce a call graph as
	// {nodes, edges} JSON on stdout. Empty means no external tooling.
	CallGraphCmd string        `yaml:"callgraph_cmd"`
	CmdTimeout   time.Duration `yaml:"cmd_timeout"`

	Neo4jEnabled  bool   `yaml:"neo4j_enabled"`
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".codectx")
	return &Config{
		Index: IndexConfig{
			MetaPath:    filepath.Join(dataDir, "meta"),
			DataDir:     dataDir,
			Parallelism: 8,
		},
		Vector: VectorConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dataDir, "vectors.db"),
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dataDir, "repos.db"),
			JobPath: filepath.Join(dataDir, "jobs.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			OllamaEndpoint: "http://localhost:11434",
			BatchSize:      64,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			FastModel: "gpt-4o-mini",
			DeepModel: "gpt-4o",
			Timeout:   60 * time.Second,
		},
		Rerank: RerankConfig{
			TopK:    20,
			Timeout: 30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MaxChunks:   10,
			HybridAlpha: 0.2,
			SliceDepth:  2,
		},
		Prompt: PromptConfig{
			MaxTokens:      8000,
			IncludeHeaders: true,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       time.Hour,
		},
		Patch: PatchConfig{
			WorktreeDir:    filepath.Join(dataDir, "worktrees"),
			ApplyTimeout:   120 * time.Second,
			NetworkTimeout: 240 * time.Second,
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		Graph: GraphConfig{
			CmdTimeout: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, environment, and keychain
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("index", cfg.Index)
	v.SetDefault("vector", cfg.Vector)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("embedding", cfg.Embedding)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("rerank", cfg.Rerank)
	v.SetDefault("retrieval", cfg.Retrieval)
	v.SetDefault("prompt", cfg.Prompt)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("patch", cfg.Patch)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("logging", cfg.Logging)

	v.SetEnvPrefix("CODECTX")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codectx")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codectx"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, defaults apply
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".codectx", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides resolves secrets and well-known variables.
// Precedence for keys: environment > keychain > config file.
func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("INDEX_META_PATH"); path != "" {
		cfg.Index.MetaPath = expandPath(path)
	}
	if dir := os.Getenv("CODECTX_DATA_DIR"); dir != "" {
		cfg.Index.DataDir = expandPath(dir)
	}

	km := NewKeyringManager()

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
		cfg.Embedding.OpenAIKey = key
	} else if cfg.LLM.OpenAIKey == "" && km.IsAvailable() {
		if stored, err := km.Get(ItemOpenAIKey); err == nil && stored != "" {
			cfg.LLM.OpenAIKey = stored
			cfg.Embedding.OpenAIKey = stored
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
		cfg.Embedding.GeminiKey = key
	} else if cfg.LLM.GeminiKey == "" && km.IsAvailable() {
		if stored, err := km.Get(ItemGeminiKey); err == nil && stored != "" {
			cfg.LLM.GeminiKey = stored
			cfg.Embedding.GeminiKey = stored
		}
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else if cfg.GitHub.Token == "" && km.IsAvailable() {
		if stored, err := km.Get(ItemGitHubToken); err == nil && stored != "" {
			cfg.GitHub.Token = stored
		}
	}

	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Vector.PostgresDSN = dsn
		cfg.Storage.PostgresDSN = dsn
	}
	if backend := os.Getenv("VECTOR_BACKEND"); backend != "" {
		cfg.Vector.Backend = backend
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
		cfg.Cache.Backend = "redis"
	}

	if endpoint := os.Getenv("TEI_RERANK_URL"); endpoint != "" {
		cfg.Rerank.Endpoint = endpoint
	}

	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		cfg.Embedding.OllamaEndpoint = endpoint
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("index", c.Index)
	v.Set("vector", c.Vector)
	v.Set("storage", c.Storage)
	v.Set("embedding", c.Embedding)
	v.Set("llm", c.LLM)
	v.Set("rerank", c.Rerank)
	v.Set("retrieval", c.Retrieval)
	v.Set("prompt", c.Prompt)
	v.Set("cache", c.Cache)
	v.Set("patch", c.Patch)
	v.Set("github", c.GitHub)
	v.Set("graph", c.Graph)
	v.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
