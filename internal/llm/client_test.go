package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/agenthands/storyforge/internal/config"
	"github.com/agenthands/storyforge/internal/errs"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClampTemperature(t *testing.T) {
	assert.Equal(t, 0.0, ClampTemperature(-0.5))
	assert.Equal(t, 0.85, ClampTemperature(0.85))
	assert.Equal(t, 1.0, ClampTemperature(1.7))
	assert.Equal(t, 0.0, ClampTemperature(math.NaN()))
}

func TestClientClampsAndPassesOptions(t *testing.T) {
	mock := &MockProvider{Response: "# Title\nBody"}
	c := NewClient(mock, 0)

	out, err := c.Generate(context.Background(), "sys", "usr", Options{MaxTokens: 2500, Temperature: 1.4})
	require.NoError(t, err)
	assert.Equal(t, "# Title\nBody", out)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "sys", mock.Calls[0].System)
	assert.Equal(t, "usr", mock.Calls[0].User)
	assert.Equal(t, Options{MaxTokens: 2500, Temperature: 1}, mock.Calls[0].Opts)
}

func TestClientEmptyResponse(t *testing.T) {
	for _, resp := range []string{"", "   \n"} {
		c := NewClient(&MockProvider{Response: resp}, 0)
		_, err := c.Generate(context.Background(), "s", "u", Options{})

		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.KindProvider))
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}

	c := NewClient(&MockProvider{Err: ErrEmptyResponse}, 0)
	_, err := c.Generate(context.Background(), "s", "u", Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, errs.Is(err, errs.KindProvider))
}

func TestClientModelNotFound(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		err      error
		example  string
	}{
		{"openai", ProviderOpenAI, &openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "model not found"}, "OPENAI_MODEL="},
		{"gemini", ProviderGemini, &googleapi.Error{Code: http.StatusNotFound}, "GEMINI_MODEL="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&MockProvider{ProviderName: tt.provider, Err: tt.err}, 0)
			_, err := c.Generate(context.Background(), "s", "u", Options{})

			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindProvider))
			assert.Contains(t, errs.Message(err), "AI model unavailable")
			assert.Contains(t, errs.Message(err), tt.example)
			assert.NotErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	c := NewClient(&MockProvider{Err: boom}, 0)

	_, err := c.Generate(context.Background(), "s", "u", Options{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "AI provider request failed", errs.Message(err))
}

func TestClientThrottles(t *testing.T) {
	mock := &MockProvider{Response: "ok"}
	c := NewClient(mock, 1)

	_, err := c.Generate(context.Background(), "s", "u", Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, "s", "u", Options{})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.Equal(t, 1, mock.CallCount())
}

func TestSelect(t *testing.T) {
	base := config.Default().LLM

	tests := []struct {
		name     string
		mutate   func(*config.LLMConfig)
		provider string
		wantErr  bool
	}{
		{"none", func(c *config.LLMConfig) {}, "", true},
		{"gemini only", func(c *config.LLMConfig) { c.GeminiAPIKey = "g" }, ProviderGemini, false},
		{"openai only", func(c *config.LLMConfig) { c.OpenAIAPIKey = "o" }, ProviderOpenAI, false},
		{"anthropic only", func(c *config.LLMConfig) { c.AnthropicAPIKey = "a" }, ProviderAnthropic, false},
		{"gemini wins", func(c *config.LLMConfig) { c.GeminiAPIKey = "g"; c.OpenAIAPIKey = "o" }, ProviderGemini, false},
		{"explicit openai", func(c *config.LLMConfig) {
			c.Provider = "openai"
			c.GeminiAPIKey = "g"
			c.OpenAIAPIKey = "o"
		}, ProviderOpenAI, false},
		{"explicit without key", func(c *config.LLMConfig) { c.Provider = "anthropic"; c.GeminiAPIKey = "g" }, "", true},
		{"openai compatible server", func(c *config.LLMConfig) {
			c.Provider = "openai"
			c.OpenAIBaseURL = "http://localhost:11434/v1"
		}, ProviderOpenAI, false},
		{"unknown", func(c *config.LLMConfig) { c.Provider = "mistral" }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			sel, err := Select(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.KindConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, sel.Provider)
			assert.NotEmpty(t, sel.APIKey)
			assert.NotEmpty(t, sel.Model)
		})
	}
}

func TestSelectNoProviderMessage(t *testing.T) {
	_, err := Select(config.LLMConfig{})
	assert.Equal(t, ErrNoProvider, errs.Message(err))
}
