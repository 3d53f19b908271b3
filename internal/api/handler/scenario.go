package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/integration"
)

// ScenarioComputer runs the integrated scenario pipeline.
type ScenarioComputer interface {
	Compute(ctx context.Context, lat, lon float64, text string) (*integration.Result, error)
}

// ScenarioHandler handles integrated scenario endpoints.
type ScenarioHandler struct {
	computer ScenarioComputer
	logger   zerolog.Logger
}

// NewScenarioHandler creates a new ScenarioHandler.
func NewScenarioHandler(computer ScenarioComputer, logger zerolog.Logger) *ScenarioHandler {
	return &ScenarioHandler{computer: computer, logger: logger}
}

// Compute handles POST /v1/scenarios:compute.
// Credential and client-init failures are returned as 200 results carrying
// an error code, so callers always get a usable payload.
func (h *ScenarioHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var input models.ScenarioComputeRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.computer.Compute(r.Context(), input.Lat, input.Lon, input.Scenario)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, result.Rounded())
}
