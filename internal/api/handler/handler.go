// Package handler provides HTTP handlers for the urban impact API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/integration"
	"github.com/cityview/urbanimpact/internal/scenario"
	"github.com/cityview/urbanimpact/internal/traffic"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a size-limited JSON body into v. It writes a 400 and
// returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	return true
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var verr *integration.ValidationError
	var perr *scenario.ParseError

	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, verr.Error(), []models.FieldError{{Field: verr.Field, Message: verr.Reason}})
	case errors.Is(err, integration.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, airquality.ErrStationNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, airquality.ErrInsufficientData),
		errors.Is(err, traffic.ErrNoDensity),
		errors.Is(err, traffic.ErrNoCapacity),
		errors.Is(err, scenario.ErrNoCompleter):
		response.Unprocessable(w, r, err.Error())
	case errors.As(err, &perr):
		log.Warn().Err(err).Str("stage", string(perr.Stage)).Msg("scenario extraction failed")
		response.ServiceUnavailable(w, r, "scenario extraction failed, try again later")
	case errors.Is(err, airquality.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("upstream unavailable")
		response.ServiceUnavailable(w, r, "an upstream provider is unavailable")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		log.Debug().Err(err).Msg("request cancelled")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func confidenceDetail(c airquality.Confidence) models.ConfidenceDetail {
	return models.ConfidenceDetail{
		Score:       c.Score,
		Label:       models.Confidence(c.Label),
		Explanation: c.Explanation,
	}
}
