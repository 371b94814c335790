package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agenthands/storyforge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientSendsSystemAndUser(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"# Dawn\nLight."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(NewOpenAIClient("key", "gpt-4o-mini", srv.URL), 0)
	out, err := c.Generate(context.Background(), "system text", "user text", Options{MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "# Dawn\nLight.", out)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "system text", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "user text", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClientZeroTemperatureIsSent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"x"}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("key", "m", srv.URL).Generate(context.Background(), "s", "u", Options{})
	require.NoError(t, err)
	assert.Contains(t, got, "temperature")
}

func TestOpenAIClientUnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`))
	}))
	defer srv.Close()

	c := NewClient(NewOpenAIClient("key", "gpt-nope", srv.URL), 0)
	_, err := c.Generate(context.Background(), "s", "u", Options{})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.Contains(t, errs.Message(err), "OPENAI_MODEL=")
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(NewOpenAIClient("key", "m", srv.URL), 0)
	_, err := c.Generate(context.Background(), "s", "u", Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
