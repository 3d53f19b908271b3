// Package cache stores computed scenario results keyed by a fingerprint of
// their inputs. Entries are pure functions of their key, so they are safe to
// share across requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented result cache.
type Cache interface {
	// Get returns the cached value or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value.
	Set(ctx context.Context, key string, value []byte) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Fingerprint derives the key of a scenario run from its inputs.
// Scenario text is normalized for case and surrounding whitespace.
func Fingerprint(text string, lat, lon float64, horizonMonths int) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%.6f|%.6f|%d|%s", lat, lon, horizonMonths, normalized)))
	return hex.EncodeToString(sum[:])
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte) error { return nil }
func (Nop) Name() string { return "none" }
