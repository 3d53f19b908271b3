// Package coefficients holds the trained model coefficients used at runtime:
// the traffic to AQI coefficient, the traffic regression weights and the
// per-station historical traffic means.
package coefficients

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBeta links a normalized traffic-signal change to a fractional AQI change
// when no trained value is available.
const DefaultBeta = 0.5

// Errors returned by stores.
var (
	ErrNotFound     = errors.New("coefficients not found")
	ErrInvalidValue = errors.New("invalid coefficient value")
)

// Features are the inputs of the traffic regression.
type Features struct {
	Hour    float64
	Weekend float64
	Month   float64
	Signal  float64
}

// FeaturesAt builds regression features for a time and normalized signal.
func FeaturesAt(t time.Time, signal float64) Features {
	var weekend float64
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = 1
	}
	return Features{
		Hour:    float64(t.Hour()),
		Weekend: weekend,
		Month:   float64(t.Month()),
		Signal:  signal,
	}
}

// Regression is a linear model over Features.
type Regression struct {
	Intercept float64 `yaml:"intercept"`
	Hour      float64 `yaml:"hour"`
	Weekend   float64 `yaml:"weekend"`
	Month     float64 `yaml:"month"`
	Signal    float64 `yaml:"signal"`
}

// Predict evaluates the model.
func (r Regression) Predict(f Features) float64 {
	return r.Intercept + r.Hour*f.Hour + r.Weekend*f.Weekend + r.Month*f.Month + r.Signal*f.Signal
}

// Set is an immutable bundle of coefficients. It is safe for concurrent use.
type Set struct {
	beta       float64
	regression Regression
	means      map[string]float64
	source     string
}

// NewSet validates and copies the given coefficients.
func NewSet(beta float64, regression Regression, means map[string]float64, source string) (*Set, error) {
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil, ErrInvalidValue
	}

	copied := make(map[string]float64, len(means))
	for id, m := range means {
		if !(m > 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: traffic mean for %s must be positive", ErrInvalidValue, id)
		}
		copied[id] = m
	}

	return &Set{
		beta:       beta,
		regression: regression,
		means:      copied,
		source:     source,
	}, nil
}

// Beta returns the traffic to AQI coefficient.
func (s *Set) Beta() float64 { return s.beta }

// Regression returns the traffic regression weights.
func (s *Set) Regression() Regression { return s.regression }

// Source names where the set was loaded from.
func (s *Set) Source() string { return s.source }

// Mean returns the historical traffic mean of a station.
func (s *Set) Mean(stationID string) (float64, bool) {
	m, ok := s.means[stationID]
	return m, ok
}

// MeanOfMeans returns the average of all station means, or 0 when there are none.
func (s *Set) MeanOfMeans() float64 {
	if len(s.means) == 0 {
		return 0
	}
	var total float64
	for _, m := range s.means {
		total += m
	}
	return total / float64(len(s.means))
}

// StationIDs returns the stations with a known mean, sorted.
func (s *Set) StationIDs() []string {
	ids := make([]string, 0, len(s.means))
	for id := range s.means {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Defaults returns the built-in coefficients.
func Defaults() *Set {
	set, _ := NewSet(DefaultBeta, Regression{
		Intercept: -0.4,
		Signal:    0.4,
	}, map[string]float64{
		"bopal":      1.2e6,
		"maninagar":  4.1e6,
		"chandkheda": 2.6e6,
		"paldi":      3.2e6,
		"vastrapur":  3.0e6,
		"naroda":     3.6e6,
	}, "default")
	return set
}

// Store loads a coefficient set.
type Store interface {
	Load(ctx context.Context) (*Set, error)
}

// Load reads coefficients from store, falling back to Defaults when the
// store is nil or fails.
func Load(ctx context.Context, store Store, logger zerolog.Logger) *Set {
	if store == nil {
		logger.Info().Msg("no coefficient store configured, using defaults")
		return Defaults()
	}

	set, err := store.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Float64("beta", DefaultBeta).Msg("failed to load coefficients, using defaults")
		return Defaults()
	}

	logger.Info().
		Str("source", set.Source()).
		Float64("beta", set.Beta()).
		Int("stations", len(set.means)).
		Msg("coefficients loaded")
	return set
}
