// Package metrics exposes Prometheus collectors for the scenario pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// RunsTotal counts orchestrator runs by outcome (ok, degraded, error, cached).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanimpact_runs_total",
			Help: "Total number of scenario pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration tracks how long each pipeline state takes.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urbanimpact_stage_duration_seconds",
			Help:    "Duration of scenario pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ParserFallbacksTotal counts heuristic fallbacks by the stage the LLM path failed at.
	ParserFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanimpact_parser_fallbacks_total",
			Help: "Total number of scenario parses that fell back to the heuristic path",
		},
		[]string{"stage"},
	)

	// ReadingFallbacksTotal counts baseline readings replaced by the default value.
	ReadingFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urbanimpact_reading_fallbacks_total",
			Help: "Total number of baseline AQI fetches that used the fallback value",
		},
	)

	// CacheLookupsTotal counts result cache lookups by backend and result (hit, miss, error).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbanimpact_cache_lookups_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"backend", "result"},
	)

	// StationForecastAQI is the latest forecast AQI per station and horizon.
	StationForecastAQI = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urbanimpact_station_forecast_aqi",
			Help: "Forecast AQI at a station for a horizon in months",
		},
		[]string{"station", "horizon_months"},
	)

	// StationRoadDensity is the latest estimated road density per station.
	StationRoadDensity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urbanimpact_station_road_density",
			Help: "Estimated road density around a station",
		},
		[]string{"station"},
	)

	// ProviderCircuitState is the circuit breaker state per provider (0 closed, 1 half-open, 2 open).
	ProviderCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urbanimpact_provider_circuit_state",
			Help: "Circuit breaker state of an upstream provider",
		},
		[]string{"provider"},
	)
)

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun records the outcome of a pipeline run.
func RecordRun(outcome string) {
	RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordParserFallback records a heuristic fallback.
func RecordParserFallback(stage string) {
	ParserFallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordCacheLookup records a result cache lookup.
func RecordCacheLookup(backend, result string) {
	CacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

// SetCircuitState records a provider's circuit breaker state.
func SetCircuitState(provider string, state int) {
	ProviderCircuitState.WithLabelValues(provider).Set(float64(state))
}
