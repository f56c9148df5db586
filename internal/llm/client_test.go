package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/models"
)

func TestNewClientDisabledByDefault(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{})
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
	assert.Equal(t, ProviderNone, client.GetProvider())
}

func TestNewClientDisabledWithoutKey(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.False(t, client.IsEnabled(), "Missing key should disable, not fail")

	client, err = NewClient(context.Background(), config.LLMConfig{Provider: "gemini"})
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestNewClientOpenAIModels(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{
		Provider:  "openai",
		OpenAIKey: "sk-test",
	})
	require.NoError(t, err)
	assert.True(t, client.IsEnabled())
	assert.Equal(t, ProviderOpenAI, client.GetProvider())
	assert.Equal(t, "gpt-4o-mini", client.fastModel)
	assert.Equal(t, "gpt-4o", client.deepModel)

	custom, err := NewClient(context.Background(), config.LLMConfig{
		Provider:  "openai",
		OpenAIKey: "sk-test",
		FastModel: "gpt-4.1-mini",
		DeepModel: "gpt-4.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", custom.fastModel)
	assert.Equal(t, "gpt-4.1", custom.deepModel)
}

func TestNewClientGeminiIgnoresOpenAIModelNames(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{
		Provider:  "gemini",
		GeminiKey: "test-key",
		FastModel: "gpt-4o-mini",
		DeepModel: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", client.fastModel)
	assert.Equal(t, "gemini-1.5-pro", client.deepModel)
}

func TestDisabledClientCalls(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{Provider: "none"})
	require.NoError(t, err)

	messages := []models.Message{{Role: "user", Content: "hello"}}

	_, err = client.Chat(context.Background(), messages, Options{})
	assert.True(t, errors.Is(err, ErrNotEnabled))

	_, err = client.ChatStream(context.Background(), messages, Options{})
	assert.True(t, errors.Is(err, ErrNotEnabled))

	count, exact, err := client.CountTokens(context.Background(), messages)
	assert.NoError(t, err, "Disabled token counting is a silent fallback")
	assert.Equal(t, 0, count)
	assert.False(t, exact)
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	assert.Equal(t, defaultMaxTokens, opts.maxTokens())
	assert.Equal(t, float32(defaultTemperature), opts.temperature())

	opts = Options{MaxTokens: 4096, Temperature: 0.7}
	assert.Equal(t, 4096, opts.maxTokens())
	assert.Equal(t, float32(0.7), opts.temperature())
}

func TestModelSelection(t *testing.T) {
	client := &Client{fastModel: "fast", deepModel: "deep"}
	assert.Equal(t, "fast", client.model(Options{}))
	assert.Equal(t, "deep", client.model(Options{Deep: true}))
}

func TestToOpenAIMessages(t *testing.T) {
	messages := []models.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "tool", Content: "unknown roles fall back to user"},
	}

	converted := toOpenAIMessages(messages)
	require.Len(t, converted, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, converted[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, converted[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, converted[2].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, converted[3].Role)
	assert.Equal(t, "question", converted[1].Content)
}

func TestBuildOpenAIRequestJSONMode(t *testing.T) {
	client := &Client{fastModel: "fast", deepModel: "deep"}

	req := client.buildOpenAIRequest([]models.Message{{Role: "user", Content: "x"}}, Options{JSONMode: true})
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)

	req = client.buildOpenAIRequest([]models.Message{{Role: "user", Content: "x"}}, Options{})
	assert.Nil(t, req.ResponseFormat)
}

func TestEstimateTokens(t *testing.T) {
	messages := []models.Message{
		{Role: "user", Content: "12345678"},
		{Role: "assistant", Content: "1234"},
	}
	assert.Equal(t, int64(4), estimateTokens(messages))
	assert.Equal(t, int64(1), estimateTokens(nil))
}

func TestSystemText(t *testing.T) {
	messages := []models.Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "ignored"},
		{Role: "system", Content: "second"},
	}
	assert.Equal(t, "first\n\nsecond", systemText(messages))
	assert.Equal(t, "", systemText(nil))
}

func TestToGeminiContents(t *testing.T) {
	messages := []models.Message{
		{Role: "system", Content: "instruction"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	}

	contents := toGeminiContents(messages, false)
	require.Len(t, contents, 2, "System messages go to the system instruction")
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "model", string(contents[1].Role))

	withSystem := toGeminiContents(messages, true)
	require.Len(t, withSystem, 3)
	assert.Equal(t, "user", string(withSystem[0].Role))
}
