package airquality

import (
	"math"
	"math/rand/v2"
	"time"
)

// HistoryConfig controls synthetic history generation.
type HistoryConfig struct {
	// Days is the number of daily points ending at the reference date. Default: 180.
	Days int

	// Seed makes generation reproducible across runs. Default: 42.
	Seed uint64

	// NoiseStdDev is the standard deviation of the zero-mean noise. Default: 10.
	NoiseStdDev float64

	// TrendStart and TrendEnd bound the linear trend added across the window.
	// Defaults: +5 and -5.
	TrendStart float64
	TrendEnd   float64

	// Min and Max clip every generated value. Defaults: 50 and 300.
	Min float64
	Max float64
}

// DefaultHistoryConfig returns the default synthetic history configuration.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Days:        180,
		Seed:        42,
		NoiseStdDev: 10,
		TrendStart:  5,
		TrendEnd:    -5,
		Min:         50,
		Max:         300,
	}
}

// GenerateHistory builds a daily series around the current reading for a
// station with no recorded history. The last point falls on end's date.
func GenerateHistory(stationID string, current float64, end time.Time, cfg HistoryConfig) *StationSeries {
	if cfg.Days <= 0 {
		cfg = DefaultHistoryConfig()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())

	points := make([]Point, cfg.Days)
	for i := range cfg.Days {
		var trend float64
		if cfg.Days > 1 {
			trend = cfg.TrendStart + (cfg.TrendEnd-cfg.TrendStart)*float64(i)/float64(cfg.Days-1)
		} else {
			trend = cfg.TrendStart
		}

		value := current + rng.NormFloat64()*cfg.NoiseStdDev + trend
		value = math.Min(math.Max(value, cfg.Min), cfg.Max)

		points[i] = Point{
			Time:  endDay.AddDate(0, 0, i-(cfg.Days-1)),
			Value: value,
		}
	}

	return &StationSeries{StationID: stationID, Points: points}
}
