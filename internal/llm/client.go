// Package llm provides a text-completion client for OpenAI-compatible
// chat completion endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cityview/urbanimpact/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of the Gemini API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// ProviderName identifies this provider.
	ProviderName = "llm"
)

// Client errors.
var (
	ErrMissingAPIKey   = errors.New("llm api key is required")
	ErrInvalidBaseURL  = errors.New("llm base url is invalid")
	ErrEmptyCompletion = errors.New("llm returned no completion")
)

// Completer returns the raw completion text for a system instruction and user text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the completion client.
type ClientConfig struct {
	// APIKey is sent as a bearer token.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Model is the model name (defaults to DefaultModel).
	Model string

	// Temperature controls sampling. Zero keeps extraction deterministic.
	Temperature float64

	// Timeout bounds a single completion call (default: 30s).
	Timeout time.Duration

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client with a single attempt is created.
	HTTPClient HTTPDoer

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry
}

// Client is a chat completion client.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  HTTPDoer
}

// NewClient creates a new completion client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  timeout,
			Retries:  1,
			Backoff:  500 * time.Millisecond,
			Registry: cfg.Registry,
		})
	}

	return &Client{
		endpoint:    strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		httpClient:  httpClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single chat completion request.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d from completion endpoint: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	return result.Choices[0].Message.Content, nil
}
