// Package overpass lists road classes around a point using the OpenStreetMap Overpass API.
package overpass

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/serjvanilla/go-overpass"
)

const (
	// DefaultEndpoint is the public Overpass API interpreter.
	DefaultEndpoint = "https://overpass-api.de/api/interpreter"

	// DefaultTimeout bounds a single query.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// Endpoint is the interpreter URL (defaults to DefaultEndpoint).
	Endpoint string

	// Timeout for individual queries (default: 30s).
	Timeout time.Duration

	// MaxParallel caps concurrent queries (default: 2).
	MaxParallel int
}

// Client queries highway ways from Overpass.
type Client struct {
	client *overpass.Client
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 2
	}

	client := overpass.NewWithSettings(endpoint, maxParallel, &http.Client{Timeout: timeout})
	return &Client{client: &client}
}

// HighwayClasses returns the highway tag of every way within radiusMeters of (lat, lon).
func (c *Client) HighwayClasses(ctx context.Context, lat, lon float64, radiusMeters int) ([]string, error) {
	query := fmt.Sprintf(`[out:json][timeout:25];way(around:%d,%s,%s)["highway"];out tags;`,
		radiusMeters,
		strconv.FormatFloat(lat, 'f', 6, 64),
		strconv.FormatFloat(lon, 'f', 6, 64),
	)

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	var result overpass.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		result = o.result
	}

	classes := make([]string, 0, len(result.Ways))
	for _, way := range result.Ways {
		if hw := way.Tags["highway"]; hw != "" {
			classes = append(classes, hw)
		}
	}
	return classes, nil
}
