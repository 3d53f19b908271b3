// Package traffic estimates road traffic density and its air-quality impact
// under what-if scenarios.
package traffic

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/coefficients"
)

// Bounds of the predicted fractional AQI impact.
const (
	MinImpact = -0.3
	MaxImpact = 0.6
)

// exactMatchDegrees is the distance below which a coordinate is treated as the station itself.
const exactMatchDegrees = 1e-4

// capacityNeighbours is the number of stations interpolated for a coordinate.
const capacityNeighbours = 3

// Model errors.
var (
	ErrNoCapacity      = errors.New("no traffic capacity baseline available")
	ErrInvalidCapacity = errors.New("traffic capacity must be positive")
	ErrInvalidDensity  = errors.New("road density must be non-negative")
)

// Location identifies where a capacity is looked up: a station, or a coordinate.
type Location struct {
	StationID string
	Lat       float64
	Lon       float64
	HasPoint  bool
}

// AtStation returns a station location.
func AtStation(id string) Location {
	return Location{StationID: id}
}

// AtPoint returns a coordinate location.
func AtPoint(lat, lon float64) Location {
	return Location{Lat: lat, Lon: lon, HasPoint: true}
}

// ModelConfig holds configuration for the traffic model.
type ModelConfig struct {
	Coefficients *coefficients.Set

	// Stations provide coordinates for capacity interpolation.
	Stations []*airquality.Station

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Model maps road density to a bounded fractional AQI impact.
type Model struct {
	coeffs   *coefficients.Set
	stations []*airquality.Station
	now      func() time.Time
}

// NewModel creates a new traffic model.
func NewModel(cfg ModelConfig) *Model {
	coeffs := cfg.Coefficients
	if coeffs == nil {
		coeffs = coefficients.Defaults()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Model{
		coeffs:   coeffs,
		stations: cfg.Stations,
		now:      now,
	}
}

// BaselineCapacity returns the historical mean traffic signal for a location.
// A station id is looked up directly, falling back to the average of all
// means; its coordinates are not interpolated. A bare coordinate
// interpolates the means of the nearest stations by inverse-square Euclidean
// degree distance.
func (m *Model) BaselineCapacity(loc Location) (float64, error) {
	var capacity float64
	switch {
	case loc.StationID != "":
		mean, ok := m.coeffs.Mean(loc.StationID)
		if !ok {
			mean = m.coeffs.MeanOfMeans()
		}
		capacity = mean
	case loc.HasPoint:
		capacity = m.capacityAt(loc.Lat, loc.Lon)
	default:
		capacity = m.coeffs.MeanOfMeans()
	}

	if !(capacity > 0) {
		return 0, ErrNoCapacity
	}
	return capacity, nil
}

type neighbour struct {
	distance float64
	mean     float64
}

func (m *Model) capacityAt(lat, lon float64) float64 {
	neighbours := make([]neighbour, 0, len(m.stations))
	for _, st := range m.stations {
		mean, ok := m.coeffs.Mean(st.ID)
		if !ok {
			continue
		}
		d := math.Hypot(st.Lat-lat, st.Lon-lon)
		if d < exactMatchDegrees {
			return mean
		}
		neighbours = append(neighbours, neighbour{distance: d, mean: mean})
	}

	if len(neighbours) == 0 {
		return m.coeffs.MeanOfMeans()
	}

	sort.Slice(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})
	if len(neighbours) > capacityNeighbours {
		neighbours = neighbours[:capacityNeighbours]
	}

	var num, den float64
	for _, n := range neighbours {
		w := 1 / (n.distance * n.distance)
		num += w * n.mean
		den += w
	}
	return num / den
}

// Predict returns the clamped fractional AQI impact of a road density at a location.
func (m *Model) Predict(density float64, loc Location) (float64, error) {
	capacity, err := m.BaselineCapacity(loc)
	if err != nil {
		return 0, err
	}
	return m.PredictWithCapacity(density, capacity)
}

// PredictWithCapacity evaluates the regression on density normalized by capacity.
func (m *Model) PredictWithCapacity(density, capacity float64) (float64, error) {
	if !(capacity > 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCapacity, capacity)
	}
	if density < 0 || math.IsNaN(density) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDensity, density)
	}

	features := coefficients.FeaturesAt(m.now(), density/capacity)
	return Clamp(m.coeffs.Regression().Predict(features), MinImpact, MaxImpact), nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
