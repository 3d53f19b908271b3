package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the provider while its breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client defaults.
const (
	DefaultTimeout = 10 * time.Second
	DefaultBackoff = 200 * time.Millisecond
)

// drainLimit bounds how much of a discarded body is read to reuse the connection.
const drainLimit = 64 << 10

// StatusError is a provider response counted as a failure.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether a provider status is worth another attempt:
// rate limiting and server errors.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// ClientConfig holds configuration for a provider client.
type ClientConfig struct {
	// Name labels the breaker, the circuit gauge and the registry entry.
	Name string

	// Timeout bounds one attempt. Default: 10 seconds
	Timeout time.Duration

	// Retries is the number of attempts after the first. Zero disables retries.
	Retries uint64

	// Backoff is the wait before the first retry; later waits double up to 8x.
	// Default: 200ms
	Backoff time.Duration

	// Breaker overrides DefaultCircuitBreakerConfig(Name).
	Breaker *CircuitBreakerConfig

	// Registry, if set, receives the client and every request outcome.
	Registry *Registry
}

// Client sends provider requests through a circuit breaker with retries.
type Client struct {
	name     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	retries  uint64
	wait     time.Duration
	registry *Registry
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}
	breakerCfg := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
		breakerCfg.Name = cfg.Name
	}

	c := &Client{
		name:     cfg.Name,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  NewCircuitBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		retries:  cfg.Retries,
		wait:     cfg.Backoff,
		registry: cfg.Registry,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// State returns the breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Counts returns the breaker counts of the current generation.
func (c *Client) Counts() gobreaker.Counts { return c.breaker.Counts() }

// Do sends req, retrying network errors and retryable statuses. An open
// breaker fails fast with ErrCircuitOpen. When retries run out on a
// retryable status, that last response is returned without an error so the
// caller can read the provider's error body; earlier responses are drained.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	attempt := func() error {
		if last != nil {
			discard(last)
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to the caller
			clone, err := rewind(ctx, req)
			if err != nil {
				return nil, err
			}
			r, err := c.http.Do(clone)
			if err != nil {
				return nil, err
			}
			if Retryable(r.StatusCode) {
				return r, &StatusError{Provider: c.name, StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
		}
		last = resp
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(c.policy(), c.retries), ctx))
	c.record(err)
	if err != nil && last != nil {
		return last, nil
	}
	return last, err
}

func (c *Client) policy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.wait
	bo.MaxInterval = 8 * c.wait
	bo.MaxElapsedTime = 0
	return bo
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

// rewind clones req with a fresh body so POST requests survive retries.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	clone.Body = body
	return clone, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}
