// Package main provides the entrypoint for the station refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/airquality/waqi"
	"github.com/cityview/urbanimpact/internal/config"
	"github.com/cityview/urbanimpact/internal/provider/resilience"
	"github.com/cityview/urbanimpact/internal/telemetry"
	"github.com/cityview/urbanimpact/internal/traffic"
	"github.com/cityview/urbanimpact/internal/traffic/overpass"
	"github.com/cityview/urbanimpact/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "urbanimpact-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting station refresh worker")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	stations, err := config.LoadStations(cfg.StationsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.StationsFile).Msg("failed to load stations")
	}

	registry := resilience.NewRegistry()
	var provider airquality.Provider = airquality.UnavailableProvider{}
	if client, err := waqi.NewClient(waqi.ClientConfig{
		BaseURL:  cfg.Reading.BaseURL,
		Token:    cfg.Reading.Token,
		Timeout:  cfg.Reading.Timeout,
		Registry: registry,
	}); err == nil {
		provider = client
	} else {
		log.Warn().Err(err).Msg("reading provider not configured, refreshes will fail")
	}

	readings := airquality.NewService(airquality.ServiceConfig{
		Provider: provider,
		Stations: stations,
		Logger:   log,
	})

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     worker.DefaultRefreshConfig(),
		Logger:     log,
		Readings:   readings,
		Forecaster: readings,
		Estimator: traffic.NewEstimator(traffic.EstimatorConfig{
			Roads:       overpass.NewClient(overpass.ClientConfig{Endpoint: cfg.OverpassEndpoint}),
			Populations: config.Populations(stations),
			Logger:      log,
		}),
	})

	scheduler, err := worker.NewScheduler(cfg.Worker.RefreshSchedule, job, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	scheduler.Start()
	log.Info().Str("schedule", cfg.Worker.RefreshSchedule).Msg("refresh scheduled")

	var subscriber *worker.PubSubHandler
	if cfg.Worker.PubSubProject != "" {
		subscriber, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProject,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("no pubsub project configured, running on schedule only")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		stats := job.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // best effort health body
			"status":          "OK",
			"version":         Version,
			"runs":            stats.Runs,
			"lastRefreshAt":   stats.LastRefreshAt,
			"stationsFailed":  stats.StationsFailed,
			"snapshotFailure": stats.SnapshotFailures,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if _, err := job.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("initial station refresh failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("scheduled refresh still running at shutdown")
	}

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
