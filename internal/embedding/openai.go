package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
)

// OpenAIEngine generates embeddings through the official OpenAI SDK
type OpenAIEngine struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIEngine creates an OpenAI embedding engine
func NewOpenAIEngine(apiKey, model string, dims int) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = dimensionsFor(model, 1536)
	}

	// Set API key in environment for the official SDK
	os.Setenv("OPENAI_API_KEY", apiKey)

	return &OpenAIEngine{
		client: openai.NewClient(),
		model:  model,
		dims:   dims,
	}, nil
}

func (e *OpenAIEngine) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in a single API call
func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.model),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = vec
	}

	return vectors, nil
}

func (e *OpenAIEngine) Dimensions() int {
	return e.dims
}

func (e *OpenAIEngine) Name() string {
	return fmt.Sprintf("openai:%s", e.model)
}
