// Package config loads process configuration from the environment and the
// optional station file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Coefficient sources.
const (
	CoefficientsDefault  = "default"
	CoefficientsFile     = "file"
	CoefficientsPostgres = "postgres"
)

// Config is the process configuration.
type Config struct {
	Port        string
	Environment string

	LLM          LLMConfig
	Reading      ReadingConfig
	Coefficients CoefficientsConfig
	Cache        CacheConfig
	Telemetry    TelemetryConfig
	Worker       WorkerConfig

	StationsFile     string
	OverpassEndpoint string
}

// LLMConfig configures the text-completion client.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MinInterval time.Duration
}

// ReadingConfig configures the current-reading provider.
type ReadingConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// CoefficientsConfig selects the coefficient store.
type CoefficientsConfig struct {
	Source string
	File   string
}

// CacheConfig configures the result cache. A Redis address takes precedence
// over the in-process cache; a zero size disables the in-process cache.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Size          int
	TTL           time.Duration
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// WorkerConfig configures the refresh worker.
type WorkerConfig struct {
	PubSubProject      string
	PubSubSubscription string
	RefreshSchedule    string
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (Config, error) {
	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnvOrDefault(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	integer := func(key, def string) int {
		n, err := strconv.Atoi(getEnvOrDefault(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}

	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		LLM: LLMConfig{
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Model:       os.Getenv("LLM_MODEL"),
			Timeout:     duration("LLM_TIMEOUT", "30s"),
			MinInterval: duration("LLM_MIN_INTERVAL", "2s"),
		},
		Reading: ReadingConfig{
			Token:   os.Getenv("WAQI_TOKEN"),
			BaseURL: os.Getenv("WAQI_BASE_URL"),
			Timeout: duration("READING_TIMEOUT", "10s"),
		},
		Coefficients: CoefficientsConfig{
			Source: strings.ToLower(getEnvOrDefault("COEFFICIENTS_SOURCE", CoefficientsDefault)),
			File:   getEnvOrDefault("COEFFICIENTS_FILE", "coefficients.yaml"),
		},
		Cache: CacheConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       integer("REDIS_DB", "0"),
			Size:          integer("RESULT_CACHE_SIZE", "256"),
			TTL:           duration("RESULT_CACHE_TTL", "1h"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Worker: WorkerConfig{
			PubSubProject:      os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "station-refresh"),
			RefreshSchedule:    getEnvOrDefault("REFRESH_SCHEDULE", "*/15 * * * *"),
		},
		StationsFile:     os.Getenv("STATIONS_FILE"),
		OverpassEndpoint: os.Getenv("OVERPASS_ENDPOINT"),
	}

	switch cfg.Coefficients.Source {
	case CoefficientsDefault, CoefficientsFile, CoefficientsPostgres:
	default:
		errs = append(errs, fmt.Sprintf("COEFFICIENTS_SOURCE: unknown source %q", cfg.Coefficients.Source))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// HasLLMCredential reports whether a completion credential is configured.
func (c Config) HasLLMCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
