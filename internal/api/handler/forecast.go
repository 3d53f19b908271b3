package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/integration"
)

// ConstructionRunner applies a construction project to the forecast.
type ConstructionRunner interface {
	Run(ctx context.Context, req integration.ConstructionRequest) (*integration.ConstructionResult, error)
}

// ForecastHandler handles forecast endpoints.
type ForecastHandler struct {
	forecaster integration.Forecaster
	runner     ConstructionRunner
	logger     zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(forecaster integration.Forecaster, runner ConstructionRunner, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{forecaster: forecaster, runner: runner, logger: logger}
}

// Compute handles POST /v1/forecasts:compute.
func (h *ForecastHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var input models.ForecastComputeRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if err := integration.ValidateCoordinates(input.Point.Lat, input.Point.Lon); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	forecast, err := h.forecaster.Forecast(r.Context(), input.Point.Lat, input.Point.Lon)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, forecastResponse(forecast))
}

// WhatIf handles POST /v1/forecasts/what-if.
func (h *ForecastHandler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var input models.ConstructionWhatIfRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.runner.Run(r.Context(), integration.ConstructionRequest{
		Lat:              input.Lat,
		Lon:              input.Lon,
		Text:             input.Scenario,
		ConstructionType: input.ConstructionType,
		DurationMonths:   input.DurationMonths,
		TimelineMonths:   input.TimelineMonths,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.ConstructionWhatIfResponse{
		TimelineMonths: result.TimelineMonths,
		BaselineAQI:    round2(result.BaselineAQI),
		ScenarioAQI:    round2(result.ScenarioAQI),
		Category:       models.Category(result.Category),
		Confidence:     confidenceDetail(result.Confidence),
		Details: models.ConstructionDetail{
			ConstructionType: result.Details.ConstructionType,
			Location:         result.Details.Location,
			DurationMonths:   result.Details.DurationMonths,
			Progress:         round2(result.Details.Progress),
			Phase:            result.Details.Phase,
			ImpactPercent:    round2(result.Details.ImpactPercent),
		},
	})
}

func forecastResponse(f *airquality.PointForecast) models.ForecastResponse {
	resp := models.ForecastResponse{
		Point:            models.Point{Lat: f.Lat, Lon: f.Lon},
		GeneratedAt:      models.Timestamp(f.GeneratedAt),
		SeasonalFactor:   f.SeasonalFactor,
		StationsUsed:     f.StationsUsed,
		StationsExcluded: f.StationsExcluded,
		Horizons:         make([]models.HorizonForecast, 0, len(f.Horizons)),
		Influence:        make([]models.StationInfluence, 0, len(f.Influence)),
	}
	for _, h := range f.Horizons {
		resp.Horizons = append(resp.Horizons, models.HorizonForecast{
			HorizonMonths: h.HorizonMonths,
			AQI:           round2(h.AQI),
			Category:      models.Category(h.Category),
			Confidence:    confidenceDetail(h.Confidence),
		})
	}
	for _, in := range f.Influence {
		resp.Influence = append(resp.Influence, models.StationInfluence{
			StationID:        in.StationID,
			DistanceKm:       round2(in.DistanceKm),
			InfluencePercent: round2(in.InfluencePercent),
		})
	}
	return resp
}
