package airquality

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptySeries is returned when fitting a model to a series without points.
var ErrEmptySeries = errors.New("series has no points")

// Model produces a point estimate a number of days past the end of the series it was fitted on.
type Model interface {
	Predict(daysAhead int) float64
}

// Fitter fits a forecasting model to a station series.
type Fitter interface {
	Fit(series *StationSeries) (Model, error)
}

// TrendSeasonalFitter fits an additive linear trend plus day-of-week
// seasonal offsets using ordinary least squares.
type TrendSeasonalFitter struct{}

// Fit implements Fitter.
func (TrendSeasonalFitter) Fit(series *StationSeries) (Model, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrEmptySeries
	}

	n := series.Len()
	xs := make([]float64, n)
	ys := series.Values()
	for i := range xs {
		xs[i] = float64(i)
	}

	var alpha, beta float64
	if n == 1 {
		alpha = ys[0]
	} else {
		alpha, beta = stat.LinearRegression(xs, ys, nil, false)
	}

	var sums, counts [7]float64
	for i, p := range series.Points {
		residual := ys[i] - (alpha + beta*xs[i])
		wd := p.Time.Weekday()
		sums[wd] += residual
		counts[wd]++
	}

	var offsets [7]float64
	for wd := range offsets {
		if counts[wd] > 0 {
			offsets[wd] = sums[wd] / counts[wd]
		}
	}

	return &trendSeasonalModel{
		intercept: alpha,
		slope:     beta,
		lastIndex: n - 1,
		lastTime:  series.Points[n-1].Time,
		offsets:   offsets,
	}, nil
}

type trendSeasonalModel struct {
	intercept float64
	slope     float64
	lastIndex int
	lastTime  time.Time
	offsets   [7]float64
}

// Predict returns the extrapolated value, floored at zero.
func (m *trendSeasonalModel) Predict(daysAhead int) float64 {
	t := float64(m.lastIndex + daysAhead)
	wd := m.lastTime.AddDate(0, 0, daysAhead).Weekday()
	return math.Max(m.intercept+m.slope*t+m.offsets[wd], 0)
}
