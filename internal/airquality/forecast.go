package airquality

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInsufficientHistory is returned when a series is too short to fit.
var ErrInsufficientHistory = errors.New("insufficient history for forecasting")

// Horizons are the forecast lookahead windows in months.
var Horizons = []int{1, 3, 6}

// HorizonDays converts a horizon in months to days ahead.
func HorizonDays(months int) int {
	return months * 30
}

// ForecastResult is a station's point estimate at one horizon.
type ForecastResult struct {
	StationID     string
	HorizonMonths int
	Value         float64
}

// HorizonForecast is an interpolated estimate at one horizon.
type HorizonForecast struct {
	HorizonMonths int
	AQI           float64
	Category      Category
	Confidence    Confidence
}

// PointForecast is the multi-horizon forecast at a coordinate.
type PointForecast struct {
	Lat              float64
	Lon              float64
	Horizons         []HorizonForecast
	Influence        []StationInfluence
	SeasonalFactor   float64
	StationsUsed     int
	StationsExcluded []string
	GeneratedAt      time.Time
}

// At returns the forecast for a horizon.
func (p *PointForecast) At(months int) (HorizonForecast, bool) {
	for _, h := range p.Horizons {
		if h.HorizonMonths == months {
			return h, true
		}
	}
	return HorizonForecast{}, false
}

// ForecasterConfig holds configuration for the forecaster.
type ForecasterConfig struct {
	// Fitter fits a model per station. Default: TrendSeasonalFitter.
	Fitter Fitter

	// Interpolator combines station forecasts. Default: IDW with default config.
	Interpolator *Interpolator

	// MinPoints is the minimum series length for a station to be used. Default: 30.
	MinPoints int

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Forecaster produces per-station and interpolated multi-horizon forecasts.
type Forecaster struct {
	fitter       Fitter
	interpolator *Interpolator
	minPoints    int
	now          func() time.Time
	logger       zerolog.Logger
}

// NewForecaster creates a new forecaster.
func NewForecaster(cfg ForecasterConfig) *Forecaster {
	if cfg.Fitter == nil {
		cfg.Fitter = TrendSeasonalFitter{}
	}
	if cfg.Interpolator == nil {
		cfg.Interpolator = NewInterpolator(DefaultInterpolationConfig())
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Forecaster{
		fitter:       cfg.Fitter,
		interpolator: cfg.Interpolator,
		minPoints:    cfg.MinPoints,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
}

// StationForecasts fits the series and predicts every horizon.
func (f *Forecaster) StationForecasts(series *StationSeries) ([]ForecastResult, error) {
	if series == nil || series.Len() < f.minPoints {
		return nil, ErrInsufficientHistory
	}

	model, err := f.fitter.Fit(series)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", series.StationID, err)
	}

	results := make([]ForecastResult, 0, len(Horizons))
	for _, h := range Horizons {
		results = append(results, ForecastResult{
			StationID:     series.StationID,
			HorizonMonths: h,
			Value:         model.Predict(HorizonDays(h)),
		})
	}
	return results, nil
}

// ForecastAt interpolates station forecasts at (lat, lon) for every horizon
// and applies the seasonal multiplier of the current month. Stations without
// a usable series are excluded; ErrInsufficientData is returned when none remain.
func (f *Forecaster) ForecastAt(lat, lon float64, stations []*Station, history map[string]*StationSeries) (*PointForecast, error) {
	byHorizon := make(map[int][]Sample, len(Horizons))
	var used []*Station
	var excluded []string

	for _, st := range stations {
		results, err := f.StationForecasts(history[st.ID])
		if err != nil {
			f.logger.Warn().Err(err).Str("station", st.ID).Msg("station excluded from forecast")
			excluded = append(excluded, st.ID)
			continue
		}
		used = append(used, st)
		for _, r := range results {
			byHorizon[r.HorizonMonths] = append(byHorizon[r.HorizonMonths], Sample{Lat: st.Lat, Lon: st.Lon, Value: r.Value})
		}
	}

	if len(used) == 0 {
		return nil, ErrInsufficientData
	}

	now := f.now()
	seasonal := SeasonalMultiplier(now.Month())

	forecast := &PointForecast{
		Lat:              lat,
		Lon:              lon,
		Horizons:         make([]HorizonForecast, 0, len(Horizons)),
		Influence:        f.interpolator.Influence(lat, lon, used),
		SeasonalFactor:   seasonal,
		StationsUsed:     len(used),
		StationsExcluded: excluded,
		GeneratedAt:      now,
	}

	for _, h := range Horizons {
		value, err := f.interpolator.Interpolate(lat, lon, byHorizon[h])
		if err != nil {
			return nil, err
		}
		aqi := value * seasonal
		forecast.Horizons = append(forecast.Horizons, HorizonForecast{
			HorizonMonths: h,
			AQI:           aqi,
			Category:      CategoryFor(aqi),
			Confidence:    f.interpolator.Confidence(lat, lon, used, h),
		})
	}

	return forecast, nil
}
