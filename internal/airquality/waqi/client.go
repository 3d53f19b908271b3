// Package waqi provides a client for the World Air Quality Index feed API.
package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"

	// ProviderName identifies this provider.
	ProviderName = "waqi"
)

// Errors returned by the client.
var (
	ErrMissingToken = errors.New("waqi token is required")
	ErrAPIStatus    = errors.New("waqi returned non-ok status")
)

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Token is the API access token.
	Token string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a WAQI API client.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  timeout,
			Retries:  2,
			Backoff:  200 * time.Millisecond,
			Registry: cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// Name implements airquality.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// API response types.

type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI  json.RawMessage `json:"aqi"`
	Idx  int             `json:"idx"`
	Time feedTime        `json:"time"`
}

type feedTime struct {
	ISO string `json:"iso"`
}

// FetchReading returns the reading of the station nearest to (lat, lon).
func (c *Client) FetchReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	endpoint := fmt.Sprintf("%s/feed/geo:%s;%s/?token=%s",
		c.baseURL,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
		url.QueryEscape(c.token),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from feed endpoint", resp.StatusCode)
	}

	var result feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	if result.Status != "ok" {
		var msg string
		_ = json.Unmarshal(result.Data, &msg)
		return nil, fmt.Errorf("%w: %s", ErrAPIStatus, msg)
	}

	var data feedData
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return nil, fmt.Errorf("decode feed data: %w", err)
	}

	aqi, err := parseAQI(data.AQI)
	if err != nil {
		return nil, err
	}

	measuredAt, err := time.Parse(time.RFC3339, data.Time.ISO)
	if err != nil {
		measuredAt = time.Now()
	}

	return &airquality.Reading{
		StationID:  strconv.Itoa(data.Idx),
		AQI:        aqi,
		MeasuredAt: measuredAt,
	}, nil
}

// parseAQI accepts a numeric AQI. The feed reports "-" when a station has no value.
func parseAQI(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			return v, nil
		}
	}
	return 0, airquality.ErrNoReading
}
