package traffic_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/coefficients"
	"github.com/cityview/urbanimpact/internal/traffic"
)

var testStations = []*airquality.Station{
	{ID: "a", Lat: 23.00, Lon: 72.50},
	{ID: "b", Lat: 23.00, Lon: 72.60},
	{ID: "c", Lat: 23.10, Lon: 72.55},
	{ID: "far", Lat: 24.00, Lon: 73.50},
}

func testCoefficients(t *testing.T) *coefficients.Set {
	t.Helper()
	set, err := coefficients.NewSet(0.5, coefficients.Regression{Intercept: -0.4, Signal: 0.4}, map[string]float64{
		"a":   1000,
		"b":   2000,
		"c":   3000,
		"far": 1e9,
	}, "test")
	require.NoError(t, err)
	return set
}

func newTestModel(t *testing.T) *traffic.Model {
	t.Helper()
	return traffic.NewModel(traffic.ModelConfig{
		Coefficients: testCoefficients(t),
		Stations:     testStations,
		Now:          func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
	})
}

func TestModel_BaselineCapacity_Station(t *testing.T) {
	m := newTestModel(t)

	c, err := m.BaselineCapacity(traffic.AtStation("b"))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, c)

	c, err = m.BaselineCapacity(traffic.AtStation("unknown"))
	require.NoError(t, err)
	assert.InDelta(t, (1000+2000+3000+1e9)/4, c, 1e-6)
}

func TestModel_BaselineCapacity_StationIgnoresCoordinates(t *testing.T) {
	m := newTestModel(t)

	// A station without a stored mean sits next to "b" but still averages.
	loc := traffic.AtPoint(23.00, 72.60)
	loc.StationID = "new-station"

	c, err := m.BaselineCapacity(loc)
	require.NoError(t, err)
	assert.InDelta(t, (1000+2000+3000+1e9)/4, c, 1e-6)

	loc.StationID = "c"
	c, err = m.BaselineCapacity(loc)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, c)
}

func TestModel_BaselineCapacity_ExactPoint(t *testing.T) {
	m := newTestModel(t)

	c, err := m.BaselineCapacity(traffic.AtPoint(23.00, 72.60))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, c)

	c, err = m.BaselineCapacity(traffic.AtPoint(23.00004, 72.60003))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, c)
}

func TestModel_BaselineCapacity_NearestThree(t *testing.T) {
	m := newTestModel(t)
	lat, lon := 23.03, 72.56

	got, err := m.BaselineCapacity(traffic.AtPoint(lat, lon))
	require.NoError(t, err)

	var num, den float64
	for _, st := range testStations[:3] {
		d := math.Hypot(st.Lat-lat, st.Lon-lon)
		w := 1 / (d * d)
		num += w * map[string]float64{"a": 1000, "b": 2000, "c": 3000}[st.ID]
		den += w
	}
	assert.InDelta(t, num/den, got, 1e-6)
	assert.Less(t, got, 3000.0)
	assert.Greater(t, got, 1000.0)
}

func TestModel_BaselineCapacity_NoMeans(t *testing.T) {
	empty, err := coefficients.NewSet(0.5, coefficients.Regression{}, nil, "test")
	require.NoError(t, err)
	m := traffic.NewModel(traffic.ModelConfig{Coefficients: empty, Stations: testStations})

	_, err = m.BaselineCapacity(traffic.AtPoint(23, 72.5))
	assert.ErrorIs(t, err, traffic.ErrNoCapacity)
}

func TestModel_Predict_Clamped(t *testing.T) {
	m := newTestModel(t)

	tests := []struct {
		density float64
		want    float64
	}{
		{density: 0, want: -0.3},
		{density: 100, want: -0.3},
		{density: 1000, want: 0},
		{density: 2000, want: 0.4},
		{density: 1e6, want: 0.6},
	}

	for _, tt := range tests {
		got, err := m.Predict(tt.density, traffic.AtStation("a"))
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "density %v", tt.density)
		assert.GreaterOrEqual(t, got, traffic.MinImpact)
		assert.LessOrEqual(t, got, traffic.MaxImpact)
	}
}

func TestModel_PredictWithCapacity_Invalid(t *testing.T) {
	m := newTestModel(t)

	_, err := m.PredictWithCapacity(100, 0)
	assert.ErrorIs(t, err, traffic.ErrInvalidCapacity)

	_, err = m.PredictWithCapacity(100, -5)
	assert.ErrorIs(t, err, traffic.ErrInvalidCapacity)

	_, err = m.PredictWithCapacity(-1, 100)
	assert.ErrorIs(t, err, traffic.ErrInvalidDensity)
}

func TestModel_Predict_UsesTimeFeatures(t *testing.T) {
	set, err := coefficients.NewSet(0.5, coefficients.Regression{Weekend: 0.1}, map[string]float64{"a": 1}, "test")
	require.NoError(t, err)

	saturday := traffic.NewModel(traffic.ModelConfig{
		Coefficients: set,
		Now:          func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
	})
	monday := traffic.NewModel(traffic.ModelConfig{
		Coefficients: set,
		Now:          func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	})

	sat, err := saturday.Predict(1, traffic.AtStation("a"))
	require.NoError(t, err)
	mon, err := monday.Predict(1, traffic.AtStation("a"))
	require.NoError(t, err)

	assert.InDelta(t, 0.1, sat, 1e-12)
	assert.InDelta(t, 0.0, mon, 1e-12)
}

func TestApplyToSignal(t *testing.T) {
	assert.InDelta(t, 0.5, traffic.ApplyToSignal(0.5, 0), 1e-12)
	assert.InDelta(t, 0.425, traffic.ApplyToSignal(0.5, -15), 1e-12)
	assert.InDelta(t, 0.6, traffic.ApplyToSignal(0.5, 20), 1e-12)
	assert.InDelta(t, 0.35, traffic.ApplyToSignal(0.5, -90), 1e-12, "lower bound -30%")
	assert.InDelta(t, 0.8, traffic.ApplyToSignal(0.5, 500), 1e-12, "upper bound +60%")
	assert.InDelta(t, 1.0, traffic.ApplyToSignal(0.9, 60), 1e-12, "signal capped at 1")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, traffic.Clamp(0.1, 0.5, 1.5))
	assert.Equal(t, 1.5, traffic.Clamp(3, 0.5, 1.5))
	assert.Equal(t, 1.0, traffic.Clamp(1, 0.5, 1.5))
}
