package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"pliego-extract-go/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_SendsPromptWithZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "gpt-4o-mini", raw["model"])
		assert.Equal(t, float64(0), raw["temperature"])
		assert.Equal(t, false, raw["stream"])
		msgs := raw["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hola", msgs[0].(map[string]any)["content"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"### Criterios de adjudicación\nPrecio"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	answer, err := c.Complete(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "### Criterios de adjudicación\nPrecio", answer)
}

func TestComplete_APIErrorKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "hola")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "hola")
	assert.Error(t, err)
}
