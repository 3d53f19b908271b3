package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/metrics"
	"github.com/cityview/urbanimpact/internal/worker"
)

type fakeReadings struct {
	stations  []*airquality.Station
	err       error
	refreshed atomic.Int32
}

func (f *fakeReadings) RefreshSnapshot(context.Context) error {
	f.refreshed.Add(1)
	return f.err
}

func (f *fakeReadings) Stations() []*airquality.Station { return f.stations }

type fakeForecaster struct {
	failAt map[float64]bool
}

func (f fakeForecaster) Forecast(_ context.Context, lat, _ float64) (*airquality.PointForecast, error) {
	if f.failAt[lat] {
		return nil, airquality.ErrInsufficientData
	}
	return &airquality.PointForecast{Horizons: []airquality.HorizonForecast{
		{HorizonMonths: 1, AQI: lat * 10},
		{HorizonMonths: 6, AQI: lat * 20},
	}}, nil
}

type fakeEstimator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEstimator) Estimate(_ context.Context, stationID string, _, _ float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stationID)
	if f.err != nil {
		return 0, f.err
	}
	return 1234, nil
}

func testStations() []*airquality.Station {
	return []*airquality.Station{
		{ID: "w-bopal", Lat: 1, Lon: 72},
		{ID: "w-paldi", Lat: 2, Lon: 72},
		{ID: "w-naroda", Lat: 3, Lon: 72},
	}
}

func newJob(readings worker.ReadingSource, forecaster worker.Forecaster, estimator worker.DensityEstimator) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     worker.DefaultRefreshConfig(),
		Logger:     zerolog.New(io.Discard),
		Readings:   readings,
		Forecaster: forecaster,
		Estimator:  estimator,
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.True(t, cfg.Forecasts)
	assert.True(t, cfg.Densities)
}

func TestRefreshJob_Run(t *testing.T) {
	readings := &fakeReadings{stations: testStations()}
	estimator := &fakeEstimator{}
	job := newJob(readings, fakeForecaster{}, estimator)

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), readings.refreshed.Load())
	assert.Equal(t, 3, result.Stations)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.ElementsMatch(t, []string{"w-bopal", "w-paldi", "w-naroda"}, estimator.calls)

	assert.Equal(t, 20.0, testutil.ToFloat64(metrics.StationForecastAQI.WithLabelValues("w-paldi", "1")))
	assert.Equal(t, 60.0, testutil.ToFloat64(metrics.StationForecastAQI.WithLabelValues("w-naroda", "6")))
	assert.Equal(t, 1234.0, testutil.ToFloat64(metrics.StationRoadDensity.WithLabelValues("w-bopal")))

	stats := job.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(3), stats.StationsRefreshed)
	assert.False(t, stats.LastRefreshAt.IsZero())
}

func TestRefreshJob_RunPartialFailure(t *testing.T) {
	job := newJob(&fakeReadings{stations: testStations()}, fakeForecaster{failAt: map[float64]bool{2: true}}, nil)

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "w-paldi", result.Errors[0].StationID)
	assert.Equal(t, "forecast", result.Errors[0].Step)
}

func TestRefreshJob_RunSnapshotFailure(t *testing.T) {
	estimator := &fakeEstimator{}
	job := newJob(&fakeReadings{stations: testStations(), err: airquality.ErrProviderUnavailable}, fakeForecaster{}, estimator)

	_, err := job.Run(context.Background())

	require.ErrorIs(t, err, worker.ErrSnapshotFailed)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
	assert.Empty(t, estimator.calls)
	assert.Equal(t, int64(1), job.Stats().SnapshotFailures)
}

func TestDispatcher(t *testing.T) {
	failing := &fakeEstimator{err: errors.New("overpass down")}

	tests := []struct {
		name      string
		readings  *fakeReadings
		estimator *fakeEstimator
		data      string
		wantErr   error
		anyErr    bool
		refreshes int32
	}{
		{
			name:      "station refresh",
			readings:  &fakeReadings{stations: testStations()},
			estimator: &fakeEstimator{},
			data:      `{"job_type":"station_refresh"}`,
			refreshes: 1,
		},
		{
			name:      "station refresh with most stations failing",
			readings:  &fakeReadings{stations: testStations()},
			estimator: failing,
			data:      `{"job_type":"station_refresh"}`,
			anyErr:    true,
			refreshes: 1,
		},
		{
			name:      "health check",
			readings:  &fakeReadings{stations: testStations()},
			estimator: &fakeEstimator{},
			data:      `{"job_type":"health_check"}`,
			refreshes: 1,
		},
		{
			name:      "health check with provider down",
			readings:  &fakeReadings{err: airquality.ErrProviderUnavailable},
			estimator: &fakeEstimator{},
			data:      `{"job_type":"health_check"}`,
			wantErr:   worker.ErrSnapshotFailed,
			refreshes: 1,
		},
		{
			name:      "unknown job",
			readings:  &fakeReadings{},
			estimator: &fakeEstimator{},
			data:      `{"job_type":"rebuild_index"}`,
		},
		{
			name:      "malformed",
			readings:  &fakeReadings{},
			estimator: &fakeEstimator{},
			data:      `not json`,
			wantErr:   worker.ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newJob(tt.readings, fakeForecaster{}, tt.estimator)
			d := worker.NewDispatcher(job, zerolog.New(io.Discard))

			err := d.Dispatch(context.Background(), []byte(tt.data))

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.refreshes, tt.readings.refreshed.Load())
		})
	}
}

func TestNewScheduler(t *testing.T) {
	job := newJob(&fakeReadings{}, nil, nil)

	s, err := worker.NewScheduler("*/15 * * * *", job, zerolog.New(io.Discard))
	require.NoError(t, err)
	s.Start()
	<-s.Stop().Done()

	_, err = worker.NewScheduler("every now and then", job, zerolog.New(io.Discard))
	assert.ErrorContains(t, err, "invalid refresh schedule")
}
