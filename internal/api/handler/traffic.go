package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/integration"
	"github.com/cityview/urbanimpact/internal/traffic"
)

// TrafficSimulator projects a traffic scenario over the adoption curve.
type TrafficSimulator interface {
	Simulate(ctx context.Context, req traffic.WhatIfRequest) (*traffic.WhatIfResult, error)
}

// StationLookup resolves station IDs.
type StationLookup interface {
	Station(id string) (*airquality.Station, error)
}

// TrafficHandler handles traffic simulation endpoints.
type TrafficHandler struct {
	simulator TrafficSimulator
	stations  StationLookup
	logger    zerolog.Logger
}

// NewTrafficHandler creates a new TrafficHandler.
func NewTrafficHandler(simulator TrafficSimulator, stations StationLookup, logger zerolog.Logger) *TrafficHandler {
	return &TrafficHandler{simulator: simulator, stations: stations, logger: logger}
}

// WhatIf handles POST /v1/traffic/what-if.
func (h *TrafficHandler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var input models.TrafficWhatIfRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.Scenario == "" {
		response.BadRequest(w, r, "scenario is required", []models.FieldError{{Field: "scenario", Message: "must not be empty"}})
		return
	}
	if input.Density != nil && *input.Density < 0 {
		response.BadRequest(w, r, "density must not be negative", []models.FieldError{{Field: "density", Message: "must be >= 0"}})
		return
	}

	loc, ok := h.location(w, r, input)
	if !ok {
		return
	}

	req := traffic.WhatIfRequest{Text: input.Scenario, Location: loc}
	if input.Density != nil {
		req.Density = *input.Density
	}

	result, err := h.simulator.Simulate(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, trafficResponse(result))
}

// location resolves the request to a station (with its coordinates) or a point.
func (h *TrafficHandler) location(w http.ResponseWriter, r *http.Request, input models.TrafficWhatIfRequest) (traffic.Location, bool) {
	switch {
	case input.StationID != "":
		st, err := h.stations.Station(input.StationID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return traffic.Location{}, false
		}
		loc := traffic.AtPoint(st.Lat, st.Lon)
		loc.StationID = st.ID
		return loc, true
	case input.Point != nil:
		if err := integration.ValidateCoordinates(input.Point.Lat, input.Point.Lon); err != nil {
			writeError(w, r, h.logger, err)
			return traffic.Location{}, false
		}
		return traffic.AtPoint(input.Point.Lat, input.Point.Lon), true
	default:
		response.BadRequest(w, r, "stationId or point is required", []models.FieldError{
			{Field: "stationId", Message: "required if point not provided"},
			{Field: "point", Message: "required if stationId not provided"},
		})
		return traffic.Location{}, false
	}
}

func trafficResponse(res *traffic.WhatIfResult) models.TrafficWhatIfResponse {
	resp := models.TrafficWhatIfResponse{
		BaselineAQIImpact: round2(res.BaselineAQIImpact),
		Density:           round2(res.Density),
		Capacity:          round2(res.Capacity),
		Params: models.TrafficParams{
			Action:           string(res.Params.Action),
			MagnitudePercent: round2(res.Params.MagnitudePercent),
			TrafficImpact:    round2(res.Params.TrafficImpact),
			DurationMonths:   res.Params.DurationMonths,
			Location:         res.Params.Location,
			Source:           string(res.Params.Source),
			Note:             res.Note,
		},
		Forecast: make([]models.TrafficCheckpoint, 0, len(res.Forecast)),
	}
	for _, cp := range res.Forecast {
		resp.Forecast = append(resp.Forecast, models.TrafficCheckpoint{
			Month:            cp.Month,
			AQIImpact:        round2(cp.AQIImpact),
			TrafficChangePct: round2(cp.TrafficChangePct),
			DensityUsed:      round2(cp.DensityUsed),
		})
	}
	return resp
}
