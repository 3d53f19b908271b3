package airquality_test

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/airquality"
)

func constantSeries(id string, n int, value float64, end time.Time) *airquality.StationSeries {
	points := make([]airquality.Point, n)
	for i := range points {
		points[i] = airquality.Point{Time: end.AddDate(0, 0, i-(n-1)), Value: value}
	}
	return &airquality.StationSeries{StationID: id, Points: points}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSeasonalMultiplier(t *testing.T) {
	tests := map[time.Month]float64{
		time.January:   1.10,
		time.February:  1.00,
		time.March:     0.95,
		time.April:     0.95,
		time.May:       0.95,
		time.June:      1.00,
		time.July:      0.90,
		time.August:    0.90,
		time.September: 1.00,
		time.October:   1.00,
		time.November:  1.10,
		time.December:  1.10,
	}

	for month, want := range tests {
		assert.Equal(t, want, airquality.SeasonalMultiplier(month), month.String())
	}
}

func TestTrendSeasonalFitter_Constant(t *testing.T) {
	series := constantSeries("s1", 60, 120, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	model, err := airquality.TrendSeasonalFitter{}.Fit(series)
	require.NoError(t, err)

	for _, days := range []int{1, 30, 90, 180} {
		assert.InDelta(t, 120.0, model.Predict(days), 1e-6)
	}
}

func TestTrendSeasonalFitter_LinearTrend(t *testing.T) {
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	series := constantSeries("s1", 100, 0, end)
	for i := range series.Points {
		series.Points[i].Value = 50 + float64(i)
	}

	model, err := airquality.TrendSeasonalFitter{}.Fit(series)
	require.NoError(t, err)

	// Last index is 99, so 30 days ahead is index 129.
	assert.InDelta(t, 179.0, model.Predict(30), 1e-6)
}

func TestTrendSeasonalFitter_FloorsAtZero(t *testing.T) {
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	series := constantSeries("s1", 40, 0, end)
	for i := range series.Points {
		series.Points[i].Value = 100 - 2*float64(i)
	}

	model, err := airquality.TrendSeasonalFitter{}.Fit(series)
	require.NoError(t, err)
	assert.Equal(t, 0.0, model.Predict(180))
}

func TestTrendSeasonalFitter_Empty(t *testing.T) {
	_, err := airquality.TrendSeasonalFitter{}.Fit(&airquality.StationSeries{StationID: "s1"})
	assert.ErrorIs(t, err, airquality.ErrEmptySeries)
}

func TestForecaster_StationForecasts(t *testing.T) {
	f := airquality.NewForecaster(airquality.ForecasterConfig{Logger: zerolog.New(io.Discard)})

	results, err := f.StationForecasts(constantSeries("bopal", 180, 110, time.Now()))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].HorizonMonths)
	assert.Equal(t, 3, results[1].HorizonMonths)
	assert.Equal(t, 6, results[2].HorizonMonths)
	for _, r := range results {
		assert.Equal(t, "bopal", r.StationID)
		assert.InDelta(t, 110.0, r.Value, 1e-6)
	}
}

func TestForecaster_StationForecasts_ShortSeries(t *testing.T) {
	f := airquality.NewForecaster(airquality.ForecasterConfig{Logger: zerolog.New(io.Discard)})

	_, err := f.StationForecasts(constantSeries("bopal", 29, 110, time.Now()))
	assert.ErrorIs(t, err, airquality.ErrInsufficientHistory)

	_, err = f.StationForecasts(nil)
	assert.ErrorIs(t, err, airquality.ErrInsufficientHistory)
}

func TestForecaster_ForecastAt_SeasonalMultiplier(t *testing.T) {
	now := time.Date(2026, 12, 10, 9, 0, 0, 0, time.UTC)
	f := airquality.NewForecaster(airquality.ForecasterConfig{
		Logger: zerolog.New(io.Discard),
		Now:    fixedClock(now),
	})

	stations := testStations()
	history := map[string]*airquality.StationSeries{}
	for _, st := range stations {
		history[st.ID] = constantSeries(st.ID, 180, 100, now)
	}

	forecast, err := f.ForecastAt(23.03, 72.58, stations, history)
	require.NoError(t, err)
	require.Len(t, forecast.Horizons, 3)

	assert.Equal(t, 1.10, forecast.SeasonalFactor)
	assert.Equal(t, 4, forecast.StationsUsed)
	assert.Empty(t, forecast.StationsExcluded)
	for _, h := range forecast.Horizons {
		assert.InDelta(t, 110.0, h.AQI, 1e-6)
		assert.Equal(t, airquality.CategoryUnhealthy, h.Category)
	}
	assert.Len(t, forecast.Influence, 4)

	h6, ok := forecast.At(6)
	require.True(t, ok)
	h1, _ := forecast.At(1)
	assert.LessOrEqual(t, h6.Confidence.Score, h1.Confidence.Score)

	_, ok = forecast.At(12)
	assert.False(t, ok)
}

func TestForecaster_ForecastAt_ExcludesShortHistory(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	f := airquality.NewForecaster(airquality.ForecasterConfig{
		Logger: zerolog.New(io.Discard),
		Now:    fixedClock(now),
	})

	stations := testStations()
	history := map[string]*airquality.StationSeries{
		"bopal":     constantSeries("bopal", 180, 80, now),
		"maninagar": constantSeries("maninagar", 10, 300, now),
	}

	forecast, err := f.ForecastAt(23.03, 72.58, stations, history)
	require.NoError(t, err)

	assert.Equal(t, 1, forecast.StationsUsed)
	assert.ElementsMatch(t, []string{"maninagar", "chandkheda", "paldi"}, forecast.StationsExcluded)
	for _, h := range forecast.Horizons {
		assert.InDelta(t, 80.0, h.AQI, 1e-6)
	}
}

func TestForecaster_ForecastAt_NoUsableStations(t *testing.T) {
	f := airquality.NewForecaster(airquality.ForecasterConfig{Logger: zerolog.New(io.Discard)})

	_, err := f.ForecastAt(23.03, 72.58, testStations(), map[string]*airquality.StationSeries{})
	assert.ErrorIs(t, err, airquality.ErrInsufficientData)
}

func TestGenerateHistory(t *testing.T) {
	end := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	cfg := airquality.DefaultHistoryConfig()

	series := airquality.GenerateHistory("paldi", 150, end, cfg)
	require.Equal(t, 180, series.Len())
	assert.Equal(t, "paldi", series.StationID)

	last := series.Points[series.Len()-1]
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), last.Time)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -179), series.Points[0].Time)

	for _, p := range series.Points {
		assert.GreaterOrEqual(t, p.Value, 50.0)
		assert.LessOrEqual(t, p.Value, 300.0)
	}
}

func TestGenerateHistory_Deterministic(t *testing.T) {
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	cfg := airquality.DefaultHistoryConfig()

	a := airquality.GenerateHistory("paldi", 150, end, cfg)
	b := airquality.GenerateHistory("paldi", 150, end, cfg)
	assert.Equal(t, a, b)
}

func TestGenerateHistory_Clipped(t *testing.T) {
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	cfg := airquality.DefaultHistoryConfig()

	high := airquality.GenerateHistory("s", 1000, end, cfg)
	for _, v := range high.Values() {
		assert.Equal(t, 300.0, v)
	}

	low := airquality.GenerateHistory("s", -100, end, cfg)
	for _, v := range low.Values() {
		assert.Equal(t, 50.0, v)
	}
}
