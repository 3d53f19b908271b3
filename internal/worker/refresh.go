package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/metrics"
)

// ErrSnapshotFailed is returned when no station reading could be refreshed.
var ErrSnapshotFailed = errors.New("station snapshot refresh failed")

// ReadingSource refreshes the station snapshot and lists the stations.
type ReadingSource interface {
	RefreshSnapshot(ctx context.Context) error
	Stations() []*airquality.Station
}

// Forecaster produces the multi-horizon forecast at a coordinate.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*airquality.PointForecast, error)
}

// DensityEstimator estimates current road density around a station.
type DensityEstimator interface {
	Estimate(ctx context.Context, stationID string, lat, lon float64) (float64, error)
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger

	Readings ReadingSource

	// Forecaster and Estimator are optional.
	Forecaster Forecaster
	Estimator  DensityEstimator
}

// RefreshJob refreshes the reading snapshot and then updates per-station
// forecast and density gauges with a bounded worker pool.
type RefreshJob struct {
	config     RefreshConfig
	logger     zerolog.Logger
	readings   ReadingSource
	forecaster Forecaster
	estimator  DensityEstimator

	mu    sync.RWMutex
	stats RefreshStats
}

// RefreshStats accumulates job statistics across runs.
type RefreshStats struct {
	Runs                int64
	StationsRefreshed   int64
	StationsFailed      int64
	SnapshotFailures    int64
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:     cfg.Config.withDefaults(),
		logger:     cfg.Logger,
		readings:   cfg.Readings,
		forecaster: cfg.Forecaster,
		estimator:  cfg.Estimator,
	}
}

// RefreshResult is the outcome of one run.
type RefreshResult struct {
	StartTime  time.Time
	Duration   time.Duration
	Stations   int
	Successful int
	Failed     int
	Errors     []RefreshError
}

// RefreshError records a failed step for one station.
type RefreshError struct {
	StationID string
	Step      string
	Error     string
}

// Run refreshes the snapshot and every station. It fails only when the
// snapshot itself cannot be refreshed; per-station failures are reported
// in the result.
func (j *RefreshJob) Run(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()
	stations := j.readings.Stations()
	result := &RefreshResult{StartTime: start, Stations: len(stations)}

	j.logger.Info().
		Int("stations", len(stations)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting station refresh")

	if err := j.readings.RefreshSnapshot(ctx); err != nil {
		j.record(result, true)
		return result, fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}

	work := make(chan *airquality.Station)
	results := make(chan stationResult, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for st := range work {
				results <- j.refreshStation(ctx, st)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, st := range stations {
			select {
			case work <- st:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		if len(sr.errors) == 0 {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, sr.errors...)
		}
	}

	result.Duration = time.Since(start)
	j.record(result, false)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("station refresh completed")

	return result, ctx.Err()
}

// CheckSnapshot refreshes the snapshot only.
func (j *RefreshJob) CheckSnapshot(ctx context.Context) error {
	if err := j.readings.RefreshSnapshot(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}
	return nil
}

type stationResult struct {
	errors []RefreshError
}

func (j *RefreshJob) refreshStation(ctx context.Context, st *airquality.Station) stationResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var res stationResult
	fail := func(step string, err error) {
		j.logger.Warn().Err(err).Str("station", st.ID).Str("step", step).Msg("station refresh step failed")
		res.errors = append(res.errors, RefreshError{StationID: st.ID, Step: step, Error: err.Error()})
	}

	if j.config.Forecasts && j.forecaster != nil {
		forecast, err := j.forecaster.Forecast(ctx, st.Lat, st.Lon)
		if err != nil {
			fail("forecast", err)
		} else {
			for _, h := range forecast.Horizons {
				metrics.StationForecastAQI.WithLabelValues(st.ID, strconv.Itoa(h.HorizonMonths)).Set(h.AQI)
			}
		}
	}

	if j.config.Densities && j.estimator != nil {
		density, err := j.estimator.Estimate(ctx, st.ID, st.Lat, st.Lon)
		if err != nil {
			fail("density", err)
		} else {
			metrics.StationRoadDensity.WithLabelValues(st.ID).Set(density)
		}
	}

	return res
}

func (j *RefreshJob) record(result *RefreshResult, snapshotFailed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stats.Runs++
	if snapshotFailed {
		j.stats.SnapshotFailures++
		return
	}
	j.stats.StationsRefreshed += int64(result.Successful)
	j.stats.StationsFailed += int64(result.Failed)
	j.stats.LastRefreshAt = result.StartTime.Add(result.Duration)
	j.stats.LastRefreshDuration = result.Duration
}

// Stats returns a copy of the accumulated statistics.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}
