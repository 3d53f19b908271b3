// Command simulate runs the integrated scenario pipeline for one sentence
// and prints the result as JSON.
//
//	simulate [-lat 23.03] [-lon 72.58] Build a bridge on SG Highway
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/airquality/waqi"
	"github.com/cityview/urbanimpact/internal/coefficients"
	"github.com/cityview/urbanimpact/internal/config"
	"github.com/cityview/urbanimpact/internal/database"
	"github.com/cityview/urbanimpact/internal/integration"
	"github.com/cityview/urbanimpact/internal/llm"
)

func main() {
	lat := flag.Float64("lat", 23.03, "latitude of the scenario")
	lon := flag.Float64("lon", 72.58, "longitude of the scenario")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	verbose := flag.Bool("v", false, "log pipeline progress to stderr")
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate [-lat N] [-lon N] <scenario text>")
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if err := run(*lat, *lon, text, *timeout, log); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}
}

func run(lat, lon float64, text string, timeout time.Duration, log zerolog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var provider airquality.Provider = airquality.UnavailableProvider{}
	if client, err := waqi.NewClient(waqi.ClientConfig{
		BaseURL: cfg.Reading.BaseURL,
		Token:   cfg.Reading.Token,
		Timeout: cfg.Reading.Timeout,
	}); err == nil {
		provider = client
	}

	stations, err := config.LoadStations(cfg.StationsFile)
	if err != nil {
		return err
	}
	locations := config.StationNames(stations)

	store, closeStore, err := coefficientStore(ctx, cfg.Coefficients)
	if err != nil {
		return err
	}
	defer closeStore()

	orchestrator := integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) { return newCompleter(cfg.LLM) },
		Locations:    locations,
		Baseline: airquality.NewService(airquality.ServiceConfig{
			Provider: provider,
			Stations: stations,
			Logger:   log,
		}),
		Coefficients: coefficients.Load(ctx, store, log),
		Logger:       log,
	})

	result, err := orchestrator.Compute(ctx, lat, lon, text)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Rounded())
}

// coefficientStore opens the configured store. The returned func releases it.
func coefficientStore(ctx context.Context, cfg config.CoefficientsConfig) (coefficients.Store, func(), error) {
	switch cfg.Source {
	case config.CoefficientsFile:
		return coefficients.FileStore{Path: cfg.File}, func() {}, nil
	case config.CoefficientsPostgres:
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, nil, fmt.Errorf("coefficient database: %w", err)
		}
		return coefficients.NewPostgresStore(pool), pool.Close, nil
	default:
		return nil, func() {}, nil
	}
}

// newCompleter builds a paced completion client, so consecutive runs respect
// the configured minimum interval.
func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	client, err := llm.NewClient(llm.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewPaced(client, cfg.MinInterval), nil
}
