package airquality

import (
	"errors"
	"math"
	"sort"
)

// Interpolation errors.
var (
	ErrNoSamples        = errors.New("no samples to interpolate")
	ErrInsufficientData = errors.New("insufficient data for interpolation")
)

// ConfidenceLabel represents the confidence level of an interpolated value.
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "LOW"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceHigh   ConfidenceLabel = "HIGH"
)

// InterpolationConfig holds configuration for the interpolation algorithm.
type InterpolationConfig struct {
	// Power is the power parameter for inverse distance weighting. Default: 2.0.
	Power float64

	// MinDistanceKm floors sample distances so a sample on top of the target
	// does not produce an infinite weight. Default: 0.1km.
	MinDistanceKm float64
}

// DefaultInterpolationConfig returns the default configuration.
func DefaultInterpolationConfig() InterpolationConfig {
	return InterpolationConfig{
		Power:         2.0,
		MinDistanceKm: 0.1,
	}
}

// Sample is a located value used as IDW input.
type Sample struct {
	Lat   float64
	Lon   float64
	Value float64
}

// Confidence describes how much an interpolated estimate can be trusted.
type Confidence struct {
	Score       int             `json:"score"`
	Label       ConfidenceLabel `json:"label"`
	Explanation string          `json:"explanation,omitempty"`
}

// StationInfluence describes a station's share of the interpolation weight.
type StationInfluence struct {
	StationID        string  `json:"station"`
	DistanceKm       float64 `json:"distance_km"`
	InfluencePercent float64 `json:"influence_percent"`
}

// Interpolator performs inverse-distance-weighted interpolation of station values.
type Interpolator struct {
	config InterpolationConfig
}

// NewInterpolator creates a new Interpolator with the given configuration.
func NewInterpolator(config InterpolationConfig) *Interpolator {
	if config.Power <= 0 {
		config.Power = DefaultInterpolationConfig().Power
	}
	if config.MinDistanceKm <= 0 {
		config.MinDistanceKm = DefaultInterpolationConfig().MinDistanceKm
	}
	return &Interpolator{config: config}
}

// Interpolate estimates the value at (lat, lon) from the given samples.
// Returns ErrNoSamples when samples is empty.
func (i *Interpolator) Interpolate(lat, lon float64, samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return math.NaN(), ErrNoSamples
	}

	var num, den float64
	for _, s := range samples {
		w := i.weight(Distance(lat, lon, s.Lat, s.Lon))
		num += w * s.Value
		den += w
	}

	return num / den, nil
}

// Influence returns each station's normalized percentage contribution to an
// interpolation at (lat, lon), sorted by influence descending.
func (i *Interpolator) Influence(lat, lon float64, stations []*Station) []StationInfluence {
	if len(stations) == 0 {
		return nil
	}

	weights := make([]float64, len(stations))
	distances := make([]float64, len(stations))
	var total float64
	for idx, s := range stations {
		d := math.Max(Distance(lat, lon, s.Lat, s.Lon), i.config.MinDistanceKm)
		distances[idx] = d
		weights[idx] = i.weight(d)
		total += weights[idx]
	}

	influences := make([]StationInfluence, len(stations))
	for idx, s := range stations {
		influences[idx] = StationInfluence{
			StationID:        s.ID,
			DistanceKm:       distances[idx],
			InfluencePercent: weights[idx] / total * 100,
		}
	}

	sort.SliceStable(influences, func(a, b int) bool {
		return influences[a].InfluencePercent > influences[b].InfluencePercent
	})

	return influences
}

// Confidence scores an estimate at (lat, lon) by nearest-station distance and
// forecast horizon. Returns a LOW zero score when there are no stations.
func (i *Interpolator) Confidence(lat, lon float64, stations []*Station, horizonMonths int) Confidence {
	nearest := math.Inf(1)
	for _, s := range stations {
		if d := Distance(lat, lon, s.Lat, s.Lon); d < nearest {
			nearest = d
		}
	}
	return ScoreConfidence(nearest, horizonMonths)
}

// ScoreConfidence applies the distance and horizon step functions.
func ScoreConfidence(nearestKm float64, horizonMonths int) Confidence {
	var score int
	switch {
	case math.IsInf(nearestKm, 1):
		score = 0
	case nearestKm <= 2:
		score = 90
	case nearestKm <= 5:
		score = 70
	case nearestKm <= 10:
		score = 50
	default:
		score = 30
	}

	switch {
	case horizonMonths <= 1:
	case horizonMonths <= 3:
		score -= 10
	default:
		score -= 20
	}

	var label ConfidenceLabel
	switch {
	case score >= 75:
		label = ConfidenceHigh
	case score >= 50:
		label = ConfidenceMedium
	default:
		label = ConfidenceLow
	}

	return Confidence{
		Score:       score,
		Label:       label,
		Explanation: ExplainConfidence(label, horizonMonths),
	}
}

// ExplainConfidence returns a human-readable reason for a confidence label.
func ExplainConfidence(label ConfidenceLabel, _ int) string {
	switch label {
	case ConfidenceHigh:
		return "High confidence due to proximity to monitoring stations and short forecast horizon."
	case ConfidenceMedium:
		return "Moderate confidence due to distance from stations or longer forecast horizon."
	default:
		return "Low confidence due to limited nearby monitoring data and long-term forecast."
	}
}

// weight returns the IDW weight for a distance in km, applying the distance floor.
func (i *Interpolator) weight(distanceKm float64) float64 {
	d := math.Max(distanceKm, i.config.MinDistanceKm)
	return 1 / math.Pow(d, i.config.Power)
}

// Distance calculates the great-circle distance between two points in km
// using the Haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
