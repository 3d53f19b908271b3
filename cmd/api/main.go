// Package main provides the entrypoint for the urban impact API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/airquality/waqi"
	"github.com/cityview/urbanimpact/internal/api"
	"github.com/cityview/urbanimpact/internal/api/handler"
	"github.com/cityview/urbanimpact/internal/api/middleware"
	"github.com/cityview/urbanimpact/internal/cache"
	"github.com/cityview/urbanimpact/internal/coefficients"
	"github.com/cityview/urbanimpact/internal/config"
	"github.com/cityview/urbanimpact/internal/database"
	"github.com/cityview/urbanimpact/internal/integration"
	"github.com/cityview/urbanimpact/internal/llm"
	"github.com/cityview/urbanimpact/internal/provider/resilience"
	"github.com/cityview/urbanimpact/internal/scenario"
	"github.com/cityview/urbanimpact/internal/telemetry"
	"github.com/cityview/urbanimpact/internal/traffic"
	"github.com/cityview/urbanimpact/internal/traffic/overpass"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = telemetry.DefaultServiceName

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting urban impact API")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()

	stations, err := config.LoadStations(cfg.StationsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.StationsFile).Msg("failed to load stations")
	}

	readings := airquality.NewService(airquality.ServiceConfig{
		Provider: readingProvider(cfg, registry, log),
		Stations: stations,
		Logger:   log,
	})

	var pool *pgxpool.Pool
	var store coefficients.Store
	switch cfg.Coefficients.Source {
	case config.CoefficientsFile:
		store = coefficients.FileStore{Path: cfg.Coefficients.File}
	case config.CoefficientsPostgres:
		pool, err = database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		store = coefficients.NewPostgresStore(pool)
	}
	coeffs := coefficients.Load(ctx, store, log)

	resultCache := newResultCache(ctx, cfg.Cache, log)

	completer, completerErr := newCompleter(cfg, registry)
	if completerErr != nil {
		log.Warn().Err(completerErr).Msg("completion client unavailable, scenario parsing uses heuristics")
	}

	locations := config.StationNames(stations)
	populations := config.Populations(stations)

	parser := scenario.NewParser(scenario.ParserConfig{
		Completer: completer,
		Locations: locations,
		Logger:    log,
	})

	orchestrator := integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) { return completer, completerErr },
		Locations:    locations,
		Baseline:     readings,
		Coefficients: coeffs,
		Cache:        resultCache,
		Logger:       log,
	})

	runnerCfg := integration.ScenarioRunnerConfig{Forecaster: readings, Logger: log}
	if completer != nil {
		runnerCfg.Parser = parser
	}
	runner := integration.NewScenarioRunner(runnerCfg)

	simulator := traffic.NewSimulator(traffic.SimulatorConfig{
		Model: traffic.NewModel(traffic.ModelConfig{
			Coefficients: coeffs,
			Stations:     stations,
		}),
		Parser: parser,
		Estimator: traffic.NewEstimator(traffic.EstimatorConfig{
			Roads:       overpass.NewClient(overpass.ClientConfig{Endpoint: cfg.OverpassEndpoint}),
			Populations: populations,
			Logger:      log,
		}),
		Logger: log,
	})

	ops := handler.OpsConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Registry:          registry,
		Readings:          readings,
		ResultCache:       resultCache.Name(),
		CoefficientSource: coeffs.Source(),
		LLMConfigured:     completer != nil,
	}
	if pool != nil {
		ops.Database = pool
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      httpMetrics,
		RequireTLS:   cfg.Environment == "production",
		Ops:          ops,
		Scenarios:    orchestrator,
		Forecasts:    readings,
		Construction: runner,
		Traffic:      simulator,
		Stations:     readings,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("stations", len(stations)).
			Str("coefficients", coeffs.Source()).
			Str("result_cache", resultCache.Name()).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func readingProvider(cfg config.Config, registry *resilience.Registry, log zerolog.Logger) airquality.Provider {
	client, err := waqi.NewClient(waqi.ClientConfig{
		BaseURL:  cfg.Reading.BaseURL,
		Token:    cfg.Reading.Token,
		Timeout:  cfg.Reading.Timeout,
		Registry: registry,
	})
	if err != nil {
		log.Warn().Err(err).Msg("reading provider not configured, baselines use the fallback AQI")
		return airquality.UnavailableProvider{}
	}
	return client
}

// newCompleter returns a nil Completer with the construction error when no
// client can be built.
func newCompleter(cfg config.Config, registry *resilience.Registry) (llm.Completer, error) {
	client, err := llm.NewClient(llm.ClientConfig{
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
		Registry: registry,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewPaced(client, cfg.LLM.MinInterval), nil
}

func newResultCache(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) cache.Cache {
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		if err == nil {
			return redisCache
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-process result cache")
	}
	if cfg.Size <= 0 {
		return cache.Nop{}
	}
	return cache.NewMemory(cache.MemoryConfig{Size: cfg.Size, TTL: cfg.TTL})
}
