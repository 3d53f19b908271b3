package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/api/models"
	"github.com/cityview/urbanimpact/internal/api/response"
	"github.com/cityview/urbanimpact/internal/provider/resilience"
)

// Degradation flags reported by SystemStatus.
const (
	FlagLLMCredentialMissing = "llm_credential_missing"
	FlagReadingsStale        = "reading_snapshot_stale"
	FlagDefaultCoefficients  = "default_coefficients"
)

// ReadingCache reports the state of the station reading snapshot.
type ReadingCache interface {
	CacheStatus() airquality.CacheStatus
}

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies reported by the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry tracks outbound provider health (optional).
	Registry *resilience.Registry

	// Readings is the station reading snapshot (optional).
	Readings ReadingCache

	// Database is checked by readiness when set.
	Database Pinger

	// ResultCache names the scenario result cache backend.
	ResultCache string

	// CoefficientSource names where the coefficients were loaded from.
	CoefficientSource string

	// LLMConfigured reports whether a completion credential is set.
	LLMConfigured bool

	Logger zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails only when the
// database, if configured, is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}

	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cfg.Database.Ping(ctx); err != nil {
			h.cfg.Logger.Warn().Err(err).Msg("readiness: database unreachable")
			health.Status = models.HealthStatusFail
			health.Details = map[string]any{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.subsystems(),
		Providers:  h.providers(),
	}

	if !h.cfg.LLMConfigured {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, FlagLLMCredentialMissing)
	}
	if h.cfg.CoefficientSource == "" || h.cfg.CoefficientSource == "default" {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, FlagDefaultCoefficients)
	}
	if h.cfg.Readings != nil && h.cfg.Readings.CacheStatus().IsStale {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, FlagReadingsStale)
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}
	if status.Status == models.HealthStatusOK && len(status.ActiveDegradationFlags) > 0 {
		status.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems() []models.SubsystemStatus {
	subsystems := []models.SubsystemStatus{
		{Name: "result-cache", Status: models.HealthStatusOK, Detail: strPtr(orDefault(h.cfg.ResultCache, "none"))},
		{Name: "coefficients", Status: models.HealthStatusOK, Detail: strPtr(orDefault(h.cfg.CoefficientSource, "default"))},
	}

	if h.cfg.Readings != nil {
		cs := h.cfg.Readings.CacheStatus()
		s := models.SubsystemStatus{Name: "reading-snapshot", Status: models.HealthStatusOK}
		switch {
		case !cs.HasData:
			s.Status = models.HealthStatusDegraded
			s.Detail = strPtr("no snapshot fetched yet")
		case cs.IsStale:
			s.Status = models.HealthStatusDegraded
			s.Detail = strPtr("snapshot from " + cs.FetchedAt.Format(time.RFC3339) + " is stale")
		default:
			s.Detail = strPtr(cs.Provider)
		}
		subsystems = append(subsystems, s)
	}

	return subsystems
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Registry.GetAllHealth()
	providers := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:     ph.Name,
			Status:       models.HealthStatusOK,
			CircuitState: ph.CircuitState.String(),
		}
		switch ph.CircuitState {
		case gobreaker.StateHalfOpen:
			ps.Status = models.HealthStatusDegraded
		case gobreaker.StateOpen:
			ps.Status = models.HealthStatusFail
		case gobreaker.StateClosed:
		}
		if ph.LastSuccessAt != nil {
			ps.LastSuccessAt = models.TimestampPtr(*ph.LastSuccessAt)
		}
		if ph.LastFailureAt != nil {
			ps.LastFailureAt = models.TimestampPtr(*ph.LastFailureAt)
		}
		if ph.LastError != "" {
			ps.Message = strPtr(ph.LastError)
		}
		providers = append(providers, ps)
	}
	return providers
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}

func strPtr(s string) *string {
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
