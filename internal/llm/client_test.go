package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/llm"
)

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "extract", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "a bridge", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"reduce\"}"}}]}`))
	}))
	defer server.Close()

	client, err := llm.NewClient(llm.ClientConfig{
		APIKey:     "secret",
		BaseURL:    server.URL + "/v1/",
		Model:      "test-model",
		HTTPClient: http.DefaultClient,
	})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "extract", "a bridge")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"reduce"}`, out)
}

func TestClient_Complete_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`quota exceeded`))
	}))
	defer server.Close()

	client, err := llm.NewClient(llm.ClientConfig{APIKey: "k", BaseURL: server.URL, HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := llm.NewClient(llm.ClientConfig{APIKey: "k", BaseURL: server.URL, HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client, err := llm.NewClient(llm.ClientConfig{
		APIKey:     "k",
		BaseURL:    server.URL,
		Timeout:    50 * time.Millisecond,
		HTTPClient: http.DefaultClient,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := llm.NewClient(llm.ClientConfig{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = llm.NewClient(llm.ClientConfig{APIKey: "   "})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = llm.NewClient(llm.ClientConfig{APIKey: "k", BaseURL: "not a url"})
	assert.ErrorIs(t, err, llm.ErrInvalidBaseURL)

	_, err = llm.NewClient(llm.ClientConfig{APIKey: "k"})
	assert.NoError(t, err)
}
