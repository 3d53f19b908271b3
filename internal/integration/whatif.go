package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/construction"
	"github.com/cityview/urbanimpact/internal/scenario"
)

// Forecaster produces the multi-horizon forecast at a coordinate.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*airquality.PointForecast, error)
}

// ConstructionParser extracts a construction intent from a sentence.
type ConstructionParser interface {
	ParseConstruction(ctx context.Context, text string) (scenario.ConstructionIntent, error)
}

// ConstructionRequest asks how a construction project changes the forecast.
// An explicit ConstructionType skips parsing Text and is strictly validated.
type ConstructionRequest struct {
	Lat              float64
	Lon              float64
	Text             string
	ConstructionType string
	DurationMonths   int
	TimelineMonths   int
}

// ScenarioDetails describes the project the curve was applied to.
type ScenarioDetails struct {
	scenario.ConstructionIntent
	Progress      float64 `json:"progress"`
	Phase         string  `json:"phase"`
	ImpactPercent float64 `json:"impact_percent"`
}

// ConstructionResult is the forecast with and without the project.
type ConstructionResult struct {
	TimelineMonths int                   `json:"timeline_months"`
	BaselineAQI    float64               `json:"baseline_aqi"`
	ScenarioAQI    float64               `json:"scenario_aqi"`
	Category       airquality.Category   `json:"category"`
	Confidence     airquality.Confidence `json:"confidence"`
	Details        ScenarioDetails       `json:"scenario_details"`
}

// ScenarioRunnerConfig holds configuration for the scenario runner.
type ScenarioRunnerConfig struct {
	Forecaster Forecaster

	// Parser extracts intents from text. Nil requires an explicit type.
	Parser ConstructionParser

	Logger zerolog.Logger
}

// ScenarioRunner applies the construction curve to the baseline forecast.
type ScenarioRunner struct {
	forecaster Forecaster
	parser     ConstructionParser
	logger     zerolog.Logger
}

// NewScenarioRunner creates a scenario runner.
func NewScenarioRunner(cfg ScenarioRunnerConfig) *ScenarioRunner {
	return &ScenarioRunner{
		forecaster: cfg.Forecaster,
		parser:     cfg.Parser,
		logger:     cfg.Logger,
	}
}

// Run forecasts the baseline at the requested timeline and applies the project.
func (s *ScenarioRunner) Run(ctx context.Context, req ConstructionRequest) (*ConstructionResult, error) {
	intent, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	forecast, err := s.forecaster.Forecast(ctx, req.Lat, req.Lon)
	if err != nil {
		return nil, fmt.Errorf("baseline forecast: %w", err)
	}
	horizon, ok := forecast.At(req.TimelineMonths)
	if !ok {
		return nil, fmt.Errorf("baseline forecast: no %d-month horizon", req.TimelineMonths)
	}

	duration := intent.DurationOrDefault()
	intent.DurationMonths = duration
	progress := construction.Progress(req.TimelineMonths, duration)
	scenarioAQI := construction.Simulate(horizon.AQI, intent.ConstructionType, duration, req.TimelineMonths)

	s.logger.Debug().
		Str("construction_type", intent.ConstructionType).
		Int("duration_months", duration).
		Int("timeline_months", req.TimelineMonths).
		Float64("baseline_aqi", horizon.AQI).
		Float64("scenario_aqi", scenarioAQI).
		Msg("construction scenario simulated")

	return &ConstructionResult{
		TimelineMonths: req.TimelineMonths,
		BaselineAQI:    horizon.AQI,
		ScenarioAQI:    scenarioAQI,
		Category:       airquality.CategoryFor(scenarioAQI),
		Confidence:     horizon.Confidence,
		Details: ScenarioDetails{
			ConstructionIntent: intent,
			Progress:           progress,
			Phase:              construction.Phase(progress),
			ImpactPercent:      construction.Impact(intent.ConstructionType, progress) * 100,
		},
	}, nil
}

func (s *ScenarioRunner) resolve(ctx context.Context, req ConstructionRequest) (scenario.ConstructionIntent, error) {
	if err := ValidateCoordinates(req.Lat, req.Lon); err != nil {
		return scenario.ConstructionIntent{}, err
	}
	if !slices.Contains(airquality.Horizons, req.TimelineMonths) {
		return scenario.ConstructionIntent{}, &ValidationError{Field: "timelineMonths", Reason: "must be 1, 3 or 6"}
	}
	if req.DurationMonths < 0 {
		return scenario.ConstructionIntent{}, &ValidationError{Field: "durationMonths", Reason: "must not be negative"}
	}

	if req.ConstructionType != "" {
		t, err := construction.Validate(req.ConstructionType)
		if err != nil {
			return scenario.ConstructionIntent{}, &ValidationError{Field: "constructionType", Reason: err.Error()}
		}
		return scenario.ConstructionIntent{ConstructionType: t, DurationMonths: req.DurationMonths}, nil
	}

	if req.Text == "" {
		return scenario.ConstructionIntent{}, &ValidationError{Field: "scenario", Reason: "scenario text or constructionType is required"}
	}
	if s.parser == nil {
		return scenario.ConstructionIntent{}, scenario.ErrNoCompleter
	}

	intent, err := s.parser.ParseConstruction(ctx, req.Text)
	if err != nil {
		var perr *scenario.ParseError
		if errors.As(err, &perr) {
			s.logger.Warn().Err(err).Str("stage", string(perr.Stage)).Msg("construction extraction failed")
		}
		return scenario.ConstructionIntent{}, err
	}
	if req.DurationMonths > 0 {
		intent.DurationMonths = req.DurationMonths
	}
	return intent, nil
}
