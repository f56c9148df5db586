package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/voyantlabs/codectx/internal/models"
)

// GeminiClient wraps Google's Generative AI SDK
type GeminiClient struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiClient creates a new Gemini API client. The model is chosen
// per call so fast and deep requests share one client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		logger: slog.Default().With("component", "gemini"),
	}, nil
}

// Chat sends a conversation to Gemini and returns the text response
func (c *GeminiClient) Chat(ctx context.Context, model string, messages []models.Message, opts Options) (string, error) {
	contents, genConfig := buildGeminiRequest(messages, opts)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content parts")
	}

	text := candidate.Content.Parts[0].Text
	c.logger.Debug("gemini completion",
		"model", model,
		"messages", len(messages),
		"response_length", len(text),
	)

	return text, nil
}

// ChatStream sends a conversation and forwards text parts as they
// arrive. The channel closes when the stream ends or fails.
func (c *GeminiClient) ChatStream(ctx context.Context, model string, messages []models.Message, opts Options) (<-chan string, error) {
	contents, genConfig := buildGeminiRequest(messages, opts)

	out := make(chan string)
	go func() {
		defer close(out)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, genConfig) {
			if err != nil {
				c.logger.Warn("gemini stream interrupted", "error", err)
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case out <- part.Text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// CountTokens asks the API for an exact token count. System messages
// are counted as user content, close enough for budget checks.
func (c *GeminiClient) CountTokens(ctx context.Context, model string, messages []models.Message) (int, bool, error) {
	contents := toGeminiContents(messages, true)
	if len(contents) == 0 {
		return 0, true, nil
	}

	resp, err := c.client.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return 0, false, fmt.Errorf("gemini token count failed: %w", err)
	}

	return int(resp.TotalTokens), true, nil
}

// buildGeminiRequest converts a conversation into Gemini contents plus
// a generation config. System messages become the system instruction.
func buildGeminiRequest(messages []models.Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     ptrFloat32(opts.temperature()),
		MaxOutputTokens: int32(opts.maxTokens()),
	}
	if opts.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	if system := systemText(messages); system != "" {
		genConfig.SystemInstruction = genai.Text(system)[0]
	}

	return toGeminiContents(messages, false), genConfig
}

// systemText concatenates system messages in order
func systemText(messages []models.Message) string {
	var system string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system
}

// toGeminiContents maps chat messages to Gemini roles. Assistant turns
// become model turns. System messages are skipped unless includeSystem
// is set, in which case they count as user turns.
func toGeminiContents(messages []models.Message, includeSystem bool) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		switch m.Role {
		case "assistant":
			role = genai.RoleModel
		case "system":
			if !includeSystem {
				continue
			}
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}

// ptrFloat32 is a helper to create float32 pointers
func ptrFloat32(f float32) *float32 {
	return &f
}
