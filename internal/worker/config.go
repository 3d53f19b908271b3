// Package worker refreshes station readings and per-station gauges in the
// background, on a schedule and on demand through Pub/Sub.
package worker

import (
	"time"
)

// Job types accepted on the refresh subscription.
const (
	JobStationRefresh = "station_refresh"
	JobHealthCheck    = "health_check"
)

// RefreshConfig holds configuration for the station refresh job.
type RefreshConfig struct {
	// Concurrency is the number of stations processed in parallel. Default: 3
	Concurrency int

	// Timeout bounds the work for one station. Default: 30 seconds
	Timeout time.Duration

	// Forecasts enables publishing per-station forecast gauges. Default: true
	Forecasts bool

	// Densities enables road density estimation per station. Default: true
	Densities bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
		Forecasts:   true,
		Densities:   true,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
