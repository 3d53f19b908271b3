package traffic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/scenario"
)

// Utilization bounds for scaling infrastructure impact.
const (
	MinScale = 0.5
	MaxScale = 1.5
)

// Checkpoint is a point on the adoption curve.
type Checkpoint struct {
	Month    int
	Adoption float64
}

// AdoptionCurve is the share of a structural change in effect after each month.
var AdoptionCurve = []Checkpoint{
	{Month: 1, Adoption: 0.4},
	{Month: 3, Adoption: 0.8},
	{Month: 6, Adoption: 1.0},
}

// ErrNoDensity is returned when no density is given and none can be estimated.
var ErrNoDensity = errors.New("current road density unavailable")

// DensityEstimator estimates current road density.
type DensityEstimator interface {
	Estimate(ctx context.Context, stationID string, lat, lon float64) (float64, error)
}

// IntentParser turns scenario text into a traffic intent.
type IntentParser interface {
	ParseTraffic(ctx context.Context, text string) scenario.Intent
}

// WhatIfRequest is the input of a traffic what-if simulation.
type WhatIfRequest struct {
	Text string

	// Density is the current road density. Zero asks the estimator.
	Density float64

	Location Location
}

// CheckpointForecast is the predicted state at one adoption checkpoint.
type CheckpointForecast struct {
	Month            int     `json:"month"`
	AQIImpact        float64 `json:"aqi_impact"`
	TrafficChangePct float64 `json:"traffic_change_pct"`
	DensityUsed      float64 `json:"density_used"`
}

// WhatIfResult is the outcome of a traffic what-if simulation.
type WhatIfResult struct {
	BaselineAQIImpact float64              `json:"baseline_aqi_impact"`
	Params            scenario.Intent      `json:"parsed_params"`
	Note              string               `json:"note,omitempty"`
	Capacity          float64              `json:"capacity"`
	Density           float64              `json:"density"`
	Forecast          []CheckpointForecast `json:"forecast"`
}

// SimulatorConfig holds configuration for the simulator.
type SimulatorConfig struct {
	Model     *Model
	Parser    IntentParser
	Estimator DensityEstimator
	Logger    zerolog.Logger
}

// Simulator projects a traffic scenario over the adoption curve.
type Simulator struct {
	model     *Model
	parser    IntentParser
	estimator DensityEstimator
	logger    zerolog.Logger
}

// NewSimulator creates a new simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{
		model:     cfg.Model,
		parser:    cfg.Parser,
		estimator: cfg.Estimator,
		logger:    cfg.Logger,
	}
}

// ScaleInfrastructure scales an infrastructure magnitude by utilization
// clamped to [MinScale, MaxScale]. It returns the scaled magnitude and factor.
func ScaleInfrastructure(magnitude, density, capacity float64) (float64, float64) {
	factor := Clamp(density/capacity, MinScale, MaxScale)
	return magnitude * factor, factor
}

// Simulate parses the scenario and predicts impact at every adoption checkpoint.
func (s *Simulator) Simulate(ctx context.Context, req WhatIfRequest) (*WhatIfResult, error) {
	density := req.Density
	if density <= 0 {
		estimated, err := s.estimate(ctx, req.Location)
		if err != nil {
			return nil, err
		}
		density = estimated
	}

	capacity, err := s.model.BaselineCapacity(req.Location)
	if err != nil {
		return nil, err
	}

	params := s.parser.ParseTraffic(ctx, req.Text)
	result := &WhatIfResult{
		Capacity: capacity,
		Density:  density,
	}

	switch params.Action {
	case scenario.ActionAddInfrastructure:
		scaled, factor := ScaleInfrastructure(params.MagnitudePercent, density, capacity)
		params.MagnitudePercent = scaled
		params.TrafficImpact = params.Action.Sign() * scaled
		result.Note = fmt.Sprintf("Dynamic Impact: scaled by %.2fx based on traffic density", factor)
	case scenario.ActionReduce, scenario.ActionIncrease, scenario.ActionNewProject, scenario.ActionEvent, scenario.ActionUnknown:
	}
	result.Params = params

	result.BaselineAQIImpact, err = s.model.PredictWithCapacity(density, capacity)
	if err != nil {
		return nil, err
	}

	targetChange := params.TrafficImpact / 100
	result.Forecast = make([]CheckpointForecast, 0, len(AdoptionCurve))
	for _, cp := range AdoptionCurve {
		effective := targetChange * cp.Adoption
		// Reductions beyond 100% empty the road rather than invert it.
		newDensity := math.Max(density*(1+effective), 0)

		impact, err := s.model.PredictWithCapacity(newDensity, capacity)
		if err != nil {
			return nil, fmt.Errorf("month %d: %w", cp.Month, err)
		}

		result.Forecast = append(result.Forecast, CheckpointForecast{
			Month:            cp.Month,
			AQIImpact:        impact,
			TrafficChangePct: effective * 100,
			DensityUsed:      newDensity,
		})
	}

	s.logger.Debug().
		Str("action", string(params.Action)).
		Float64("density", density).
		Float64("capacity", capacity).
		Msg("traffic what-if simulated")

	return result, nil
}

func (s *Simulator) estimate(ctx context.Context, loc Location) (float64, error) {
	if s.estimator == nil || !loc.HasPoint {
		return 0, ErrNoDensity
	}
	density, err := s.estimator.Estimate(ctx, loc.StationID, loc.Lat, loc.Lon)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoDensity, err)
	}
	if !(density > 0) {
		return 0, ErrNoDensity
	}
	return density, nil
}
