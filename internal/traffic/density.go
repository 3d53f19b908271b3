package traffic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPopulationDensity is used for locations without a known population.
const DefaultPopulationDensity = 8000

// DefaultRoadRadiusMeters is the radius searched for roads around a point.
const DefaultRoadRadiusMeters = 1000

var defaultPopulations = map[string]float64{
	"bopal":      3500,
	"maninagar":  12000,
	"chandkheda": 8000,
	"paldi":      10000,
	"vastrapur":  10500,
	"naroda":     9000,
}

// PopulationDensity returns residents per km² for a station, falling back
// to DefaultPopulationDensity.
func PopulationDensity(stationID string) float64 {
	if p, ok := defaultPopulations[strings.ToLower(stationID)]; ok {
		return p
	}
	return DefaultPopulationDensity
}

// ActivityDensity scales a static population into time-of-day demand.
func ActivityDensity(population float64, hour int) float64 {
	switch {
	case hour >= 7 && hour <= 10:
		return population * 1.2
	case hour >= 17 && hour <= 20:
		return population * 1.3
	case hour >= 22 || hour <= 5:
		return population * 0.6
	default:
		return population * 0.9
	}
}

// HighwayWeight scores an OpenStreetMap highway class.
func HighwayWeight(class string) float64 {
	switch class {
	case "primary":
		return 3
	case "secondary":
		return 2
	case "tertiary", "residential":
		return 1
	default:
		return 0
	}
}

// RoadScore sums HighwayWeight over a set of road classes.
func RoadScore(classes []string) float64 {
	var score float64
	for _, c := range classes {
		score += HighwayWeight(c)
	}
	return score
}

// RoadSource lists the highway classes of roads within radius of a point.
type RoadSource interface {
	HighwayClasses(ctx context.Context, lat, lon float64, radiusMeters int) ([]string, error)
}

// EstimatorConfig holds configuration for the density estimator.
type EstimatorConfig struct {
	Roads RoadSource

	// Populations overrides population density per station.
	Populations map[string]float64

	// RadiusMeters is the road search radius (default: 1000).
	RadiusMeters int

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Estimator estimates current road density as road score times activity density.
type Estimator struct {
	roads       RoadSource
	populations map[string]float64
	radius      int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewEstimator creates a new density estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = DefaultRoadRadiusMeters
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Estimator{
		roads:       cfg.Roads,
		populations: cfg.Populations,
		radius:      radius,
		now:         now,
		logger:      cfg.Logger,
	}
}

// Estimate returns the density at (lat, lon) for the population of stationID.
func (e *Estimator) Estimate(ctx context.Context, stationID string, lat, lon float64) (float64, error) {
	classes, err := e.roads.HighwayClasses(ctx, lat, lon, e.radius)
	if err != nil {
		return 0, fmt.Errorf("road classes: %w", err)
	}

	population, ok := e.populations[stationID]
	if !ok {
		population = PopulationDensity(stationID)
	}

	score := RoadScore(classes)
	density := score * ActivityDensity(population, e.now().Hour())

	e.logger.Debug().
		Str("station", stationID).
		Int("roads", len(classes)).
		Float64("road_score", score).
		Float64("density", density).
		Msg("estimated road density")

	return density, nil
}
