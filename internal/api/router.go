// Package api provides the HTTP API for the urban impact service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/api/handler"
	"github.com/cityview/urbanimpact/internal/api/middleware"
	"github.com/cityview/urbanimpact/internal/integration"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Ops          handler.OpsConfig
	Scenarios    handler.ScenarioComputer
	Forecasts    integration.Forecaster
	Construction handler.ConstructionRunner
	Traffic      handler.TrafficSimulator
	Stations     handler.StationSource

	// PrometheusHandler serves /metrics. Default: promhttp.Handler().
	PrometheusHandler http.Handler
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "urbanimpact-api"
	}
	promHandler := cfg.PrometheusHandler
	if promHandler == nil {
		promHandler = promhttp.Handler()
	}
	cfg.Ops.Logger = cfg.Logger

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Ops)
	scenarioHandler := handler.NewScenarioHandler(cfg.Scenarios, cfg.Logger)
	forecastHandler := handler.NewForecastHandler(cfg.Forecasts, cfg.Construction, cfg.Logger)
	trafficHandler := handler.NewTrafficHandler(cfg.Traffic, cfg.Stations, cfg.Logger)
	stationHandler := handler.NewStationHandler(cfg.Stations, cfg.Logger)

	scenarioRateLimit := middleware.RateLimitByIP(middleware.ScenarioRateLimit)   // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Method(http.MethodGet, "/metrics", promHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/metadata/enums", stationHandler.Enums)
			r.Get("/stations", stationHandler.List)
			r.Get("/stations/{stationId}", stationHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireJSON)

			// Scenario endpoints call the completion service.
			r.With(scenarioRateLimit).Post("/scenarios:compute", scenarioHandler.Compute)
			r.With(scenarioRateLimit).Post("/forecasts/what-if", forecastHandler.WhatIf)

			r.With(expensiveRateLimit).Post("/forecasts:compute", forecastHandler.Compute)
			r.With(expensiveRateLimit).Post("/traffic/what-if", trafficHandler.WhatIf)
		})
	})

	return r
}
