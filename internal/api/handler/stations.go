package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/construction"
	"github.com/cityview/urbanimpact/internal/scenario"
)

// StationSource lists stations and their cached readings.
type StationSource interface {
	StationLookup
	Stations() []*airquality.Station
	GetSnapshot(ctx context.Context) (*airquality.Snapshot, error)
}

// StationHandler handles station and metadata endpoints.
type StationHandler struct {
	source StationSource
	logger zerolog.Logger
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(source StationSource, logger zerolog.Logger) *StationHandler {
	return &StationHandler{source: source, logger: logger}
}

// List handles GET /v1/stations. Stations are listed without readings when
// the snapshot cannot be fetched.
func (h *StationHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshot(r.Context())

	list := models.StationList{Items: make([]models.Station, 0, len(h.source.Stations()))}
	if snapshot != nil {
		list.Provider = snapshot.Provider
		list.FetchedAt = models.TimestampPtr(snapshot.FetchedAt)
	}
	for _, st := range h.source.Stations() {
		list.Items = append(list.Items, stationModel(st, snapshot))
	}

	response.JSON(w, r, http.StatusOK, list)
}

// Get handles GET /v1/stations/{stationId}.
func (h *StationHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.source.Station(chi.URLParam(r, "stationId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stationModel(st, h.snapshot(r.Context())))
}

// Enums handles GET /v1/metadata/enums.
func (h *StationHandler) Enums(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Enums{
		Actions: []string{
			string(scenario.ActionReduce),
			string(scenario.ActionIncrease),
			string(scenario.ActionAddInfrastructure),
			string(scenario.ActionNewProject),
			string(scenario.ActionEvent),
			string(scenario.ActionUnknown),
		},
		ConstructionTypes: construction.SupportedTypes(),
		HorizonsMonths:    airquality.Horizons,
		Categories: []models.Category{
			models.CategoryGood,
			models.CategoryModerate,
			models.CategoryUnhealthy,
			models.CategorySevere,
			models.CategoryHazardous,
		},
		Confidence: []models.Confidence{models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh},
	})
}

func (h *StationHandler) snapshot(ctx context.Context) *airquality.Snapshot {
	snapshot, err := h.source.GetSnapshot(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("station snapshot unavailable, listing without readings")
		return nil
	}
	return snapshot
}

func stationModel(st *airquality.Station, snapshot *airquality.Snapshot) models.Station {
	m := models.Station{
		StationID:         st.ID,
		Name:              st.Name,
		Point:             models.Point{Lat: st.Lat, Lon: st.Lon},
		PopulationDensity: st.PopulationDensity,
	}
	if snapshot == nil {
		return m
	}
	if reading := snapshot.GetReading(st.ID); reading != nil {
		aqi := round2(reading.AQI)
		m.LatestAQI = &aqi
		m.Category = models.Category(airquality.CategoryFor(reading.AQI))
		m.MeasuredAt = models.TimestampPtr(reading.MeasuredAt)
	}
	return m
}
