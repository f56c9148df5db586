// Package embedding generates vector embeddings for indexed code
// entities. Three engines are supported: OpenAI, Gemini, and a local
// Ollama server. Dimensions are fixed per model and every engine
// reports its own.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Engine generates vector embeddings for text
type Engine interface {
	// EmbedText generates an embedding for a single text
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors
	Dimensions() int

	// Name returns the engine name for logging and metadata
	Name() string
}

// Config holds embedding engine configuration
type Config struct {
	// Provider: "openai", "gemini", or "ollama"
	Provider string `json:"provider"`

	// Model defaults per provider when empty
	Model string `json:"model"`

	OpenAIKey      string `json:"openai_key"`
	GeminiKey      string `json:"gemini_key"`
	OllamaEndpoint string `json:"ollama_endpoint"` // Default: "http://localhost:11434"

	// Dimensions overrides the model's default vector size when > 0
	Dimensions int `json:"dimensions"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "openai",
		Model:          "text-embedding-3-small",
		OllamaEndpoint: "http://localhost:11434",
	}
}

// NewEngine creates an embedding engine based on configuration
func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEngine(cfg.OpenAIKey, cfg.Model, cfg.Dimensions)
	case "gemini":
		return NewGeminiEngine(ctx, cfg.GeminiKey, cfg.Model, cfg.Dimensions)
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'openai', 'gemini', or 'ollama')", cfg.Provider)
	}
}

// Known model dimensionalities. Engines fall back to their provider
// default for models not listed here.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"gemini-embedding-001":   768,
	"embeddinggemma":         768,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

func dimensionsFor(model string, fallback int) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return fallback
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// normalizeVector scales a vector to unit length in place
func normalizeVector(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}

	normf := float32(norm)
	for i := range vec {
		vec[i] /= normf
	}
	return vec
}
