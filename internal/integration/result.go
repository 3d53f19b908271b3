package integration

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/scenario"
	"github.com/cityview/urbanimpact/internal/traffic"
)

// ErrorCode discriminates results produced without running the pipeline.
type ErrorCode string

const (
	// CodeCredentialMissing marks the fixed fallback result served when no
	// completion credential is configured.
	CodeCredentialMissing ErrorCode = "CREDENTIAL_MISSING"

	// CodeClientInit marks a completion client that could not be created.
	CodeClientInit ErrorCode = "CLIENT_INIT_ERROR"
)

// Pipeline defaults.
const (
	DefaultFallbackAQI    = 150.0
	DefaultHorizonMonths  = 6
	LongTermHorizonMonths = 24
)

// Degradations recorded on a result when a step used a default.
const (
	DegradedTrafficParse      = "traffic_parse_heuristic"
	DegradedConstructionParse = "construction_parse_unavailable"
	DegradedBaseline          = "baseline_fallback"
)

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError rejects a request before any computation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// AQIPrediction is the construction side of a result.
type AQIPrediction struct {
	scenario.ConstructionIntent
	Reasoning string `json:"reasoning,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Error                 ErrorCode           `json:"error,omitempty"`
	Message               string              `json:"message,omitempty"`
	BaselineAQI           float64             `json:"baseline_aqi"`
	FinalAQI              float64             `json:"final_aqi"`
	Category              airquality.Category `json:"category,omitempty"`
	TrafficPrediction     scenario.Intent     `json:"traffic_prediction"`
	AQIPrediction         AQIPrediction       `json:"aqi_prediction"`
	BaseTrafficSignal     float64             `json:"base_traffic_signal"`
	NewTrafficSignal      float64             `json:"new_traffic_signal"`
	TrafficAQIShift       float64             `json:"traffic_aqi_shift"`
	AdjustedBaseAQI       float64             `json:"adjusted_base_aqi"`
	ForecastHorizonMonths int                 `json:"forecast_horizon_months"`
	Degradations          []string            `json:"degradations,omitempty"`
}

// Degraded reports whether any step fell back to a default.
func (r *Result) Degraded() bool {
	return r.Error != "" || len(r.Degradations) > 0
}

// Rounded returns a copy with every numeric output rounded to 2 decimals.
func (r Result) Rounded() Result {
	r.BaselineAQI = round2(r.BaselineAQI)
	r.FinalAQI = round2(r.FinalAQI)
	r.BaseTrafficSignal = round2(r.BaseTrafficSignal)
	r.NewTrafficSignal = round2(r.NewTrafficSignal)
	r.TrafficAQIShift = round2(r.TrafficAQIShift)
	r.AdjustedBaseAQI = round2(r.AdjustedBaseAQI)
	r.TrafficPrediction.MagnitudePercent = round2(r.TrafficPrediction.MagnitudePercent)
	r.TrafficPrediction.TrafficImpact = round2(r.TrafficPrediction.TrafficImpact)
	return r
}

// FallbackResult is served when no completion credential is configured.
func FallbackResult(fallbackAQI float64) *Result {
	return &Result{
		Error:             CodeCredentialMissing,
		BaselineAQI:       fallbackAQI,
		FinalAQI:          fallbackAQI,
		Category:          airquality.CategoryFor(fallbackAQI),
		TrafficPrediction: scenario.DefaultIntent(),
		AQIPrediction: AQIPrediction{
			Reasoning: "API key missing, using defaults",
		},
		BaseTrafficSignal:     traffic.BaseSignal,
		NewTrafficSignal:      traffic.BaseSignal,
		AdjustedBaseAQI:       fallbackAQI,
		ForecastHorizonMonths: DefaultHorizonMonths,
	}
}

// HorizonFor returns the forecast horizon a scenario asks for.
func HorizonFor(text string) int {
	if strings.Contains(strings.ToLower(text), "long term") {
		return LongTermHorizonMonths
	}
	return DefaultHorizonMonths
}

// ValidateInput checks coordinates and scenario text.
func ValidateInput(lat, lon float64, text string) error {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "scenario", Reason: "must not be empty"}
	}
	return nil
}

// ValidateCoordinates checks a latitude and longitude pair.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return &ValidationError{Field: "lon", Reason: "must be between -180 and 180"}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
