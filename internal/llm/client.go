// Package llm is the multi-provider chat gateway used for agentic
// retrieval, patch generation, and remote token counting. Providers are
// OpenAI, Gemini, or none. A client without a configured provider stays
// usable: every call returns ErrNotEnabled and callers degrade.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

// Provider represents the LLM provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// ErrNotEnabled is returned by every call when no provider is configured
var ErrNotEnabled = errors.New("llm client not enabled (configure a provider and API key)")

const (
	defaultMaxTokens   = 2000
	defaultTemperature = 0.1
)

// Options tunes a single chat call. Zero values select the defaults.
type Options struct {
	// Deep selects the deep model instead of the fast one
	Deep bool

	// JSONMode requests a JSON object response
	JSONMode bool

	// MaxTokens caps the response length, default 2000
	MaxTokens int

	// Temperature defaults to 0.1 for consistent output
	Temperature float32
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return defaultMaxTokens
}

func (o Options) temperature() float32 {
	if o.Temperature > 0 {
		return o.Temperature
	}
	return defaultTemperature
}

// Client provides the multi-provider LLM interface
type Client struct {
	provider     Provider
	openaiClient *openai.Client
	geminiClient *GeminiClient
	limiter      *RateLimiter
	logger       *slog.Logger
	enabled      bool
	fastModel    string
	deepModel    string
}

// NewClient creates a multi-provider LLM client. A missing API key does
// not fail: the client comes back disabled so the rest of the system
// keeps working without agentic features.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	switch Provider(cfg.Provider) {
	case ProviderOpenAI:
		return newOpenAIClient(cfg, logger)
	case ProviderGemini:
		return newGeminiClient(ctx, cfg, logger)
	case ProviderNone, Provider(""):
		logger.Info("llm provider disabled, agentic retrieval and patch generation unavailable")
		return &Client{provider: ProviderNone, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'openai', 'gemini', or 'none')", cfg.Provider)
	}
}

func newOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.OpenAIKey == "" {
		logger.Warn("llm provider is openai but no API key configured")
		logger.Info("set OPENAI_API_KEY or run 'cctx configure'")
		return &Client{provider: ProviderNone, logger: logger}, nil
	}

	fast := cfg.FastModel
	if fast == "" {
		fast = "gpt-4o-mini"
	}
	deep := cfg.DeepModel
	if deep == "" {
		deep = "gpt-4o"
	}

	logger.Info("openai client initialized", "fast_model", fast, "deep_model", deep)
	return &Client{
		provider:     ProviderOpenAI,
		openaiClient: openai.NewClient(cfg.OpenAIKey),
		logger:       logger,
		enabled:      true,
		fastModel:    fast,
		deepModel:    deep,
	}, nil
}

func newGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.GeminiKey == "" {
		logger.Warn("llm provider is gemini but no API key configured")
		logger.Info("set GEMINI_API_KEY or run 'cctx configure'")
		return &Client{provider: ProviderNone, logger: logger}, nil
	}

	// The shared model fields default to OpenAI names, ignore those here
	fast := cfg.FastModel
	if !strings.HasPrefix(fast, "gemini") {
		fast = "gemini-2.0-flash"
	}
	deep := cfg.DeepModel
	if !strings.HasPrefix(deep, "gemini") {
		deep = "gemini-1.5-pro"
	}

	geminiClient, err := NewGeminiClient(ctx, cfg.GeminiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("gemini client initialized", "fast_model", fast, "deep_model", deep)
	return &Client{
		provider:     ProviderGemini,
		geminiClient: geminiClient,
		logger:       logger,
		enabled:      true,
		fastModel:    fast,
		deepModel:    deep,
	}, nil
}

// SetRateLimiter installs a shared quota guard. Without one, calls go
// straight to the provider.
func (c *Client) SetRateLimiter(limiter *RateLimiter) {
	c.limiter = limiter
}

// IsEnabled returns true if an LLM provider is configured and ready
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// GetProvider returns the active LLM provider
func (c *Client) GetProvider() Provider {
	return c.provider
}

func (c *Client) model(opts Options) string {
	if opts.Deep {
		return c.deepModel
	}
	return c.fastModel
}

// Chat sends a conversation to the LLM and returns the full response
func (c *Client) Chat(ctx context.Context, messages []models.Message, opts Options) (string, error) {
	if !c.enabled {
		return "", ErrNotEnabled
	}
	if err := c.throttle(ctx, messages); err != nil {
		return "", err
	}

	switch c.provider {
	case ProviderGemini:
		return c.geminiClient.Chat(ctx, c.model(opts), messages, opts)
	case ProviderOpenAI:
		return c.chatOpenAI(ctx, messages, opts)
	default:
		return "", ErrNotEnabled
	}
}

// ChatStream sends a conversation and returns response text in ordered
// chunks. The channel is finite and closes when the stream ends; a
// stream that fails midway closes early after logging the failure, so
// consumers must validate assembled output before trusting it.
func (c *Client) ChatStream(ctx context.Context, messages []models.Message, opts Options) (<-chan string, error) {
	if !c.enabled {
		return nil, ErrNotEnabled
	}
	if err := c.throttle(ctx, messages); err != nil {
		return nil, err
	}

	switch c.provider {
	case ProviderGemini:
		return c.geminiClient.ChatStream(ctx, c.model(opts), messages, opts)
	case ProviderOpenAI:
		return c.chatStreamOpenAI(ctx, messages, opts)
	default:
		return nil, ErrNotEnabled
	}
}

// CountTokens returns a remote token count for the conversation when
// the provider exposes one. The second return reports whether the count
// is authoritative; (0, false, nil) means the caller should fall back
// to its own estimate.
func (c *Client) CountTokens(ctx context.Context, messages []models.Message) (int, bool, error) {
	if !c.enabled {
		return 0, false, nil
	}

	switch c.provider {
	case ProviderGemini:
		return c.geminiClient.CountTokens(ctx, c.fastModel, messages)
	default:
		// OpenAI has no counting endpoint
		return 0, false, nil
	}
}

func (c *Client) chatOpenAI(ctx context.Context, messages []models.Message, opts Options) (string, error) {
	req := c.buildOpenAIRequest(messages, opts)

	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.Debug("openai completion",
		"model", req.Model,
		"messages", len(messages),
		"response_length", len(response),
		"tokens_used", resp.Usage.TotalTokens,
	)

	return response, nil
}

func (c *Client) chatStreamOpenAI(ctx context.Context, messages []models.Message, opts Options) (<-chan string, error) {
	req := c.buildOpenAIRequest(messages, opts)

	stream, err := c.openaiClient.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				c.logger.Warn("openai stream interrupted", "error", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			chunk := resp.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) buildOpenAIRequest(messages []models.Message, opts Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       c.model(opts),
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.temperature(),
		MaxTokens:   opts.maxTokens(),
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// throttle blocks on the shared rate limiter when one is installed
func (c *Client) throttle(ctx context.Context, messages []models.Message) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, estimateTokens(messages))
}

// estimateTokens approximates with the 4-characters-per-token rule,
// good enough for quota accounting.
func estimateTokens(messages []models.Message) int64 {
	var chars int
	for _, m := range messages {
		chars += len(m.Content)
	}
	return int64(chars/4) + 1
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return converted
}
