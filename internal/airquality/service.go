package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider defines the interface for current-reading providers.
type Provider interface {
	// Name identifies the provider.
	Name() string

	// FetchReading returns the most recent AQI reading nearest to (lat, lon).
	FetchReading(ctx context.Context, lat, lon float64) (*Reading, error)
}

// UnavailableProvider is used when no reading provider is configured.
// Every fetch fails with ErrProviderUnavailable.
type UnavailableProvider struct{}

// Name implements Provider.
func (UnavailableProvider) Name() string { return "unavailable" }

// FetchReading implements Provider.
func (UnavailableProvider) FetchReading(context.Context, float64, float64) (*Reading, error) {
	return nil, ErrProviderUnavailable
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the current-reading provider.
	Provider Provider

	// Stations is the static station list. It is not modified after construction.
	Stations []*Station

	// Forecaster produces multi-horizon forecasts. Default: NewForecaster with Logger.
	Forecaster *Forecaster

	// History configures synthetic series generation.
	History HistoryConfig

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache the snapshot (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Service provides station readings with caching, and forecasts built on them.
type Service struct {
	provider        Provider
	stations        []*Station
	forecaster      *Forecaster
	history         HistoryConfig
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	snapshot    *Snapshot
	cacheExpiry time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	forecaster := cfg.Forecaster
	if forecaster == nil {
		forecaster = NewForecaster(ForecasterConfig{Logger: cfg.Logger, Now: now})
	}

	history := cfg.History
	if history.Days <= 0 {
		history = DefaultHistoryConfig()
	}

	return &Service{
		provider:        cfg.Provider,
		stations:        cfg.Stations,
		forecaster:      forecaster,
		history:         history,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		now:             now,
	}
}

// Stations returns the configured stations.
func (s *Service) Stations() []*Station {
	return s.stations
}

// Station looks up a station by ID.
func (s *Service) Station(id string) (*Station, error) {
	for _, st := range s.stations {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, ErrStationNotFound
}

// GetSnapshot returns the current reading snapshot.
// It uses a cached version if available and not expired.
func (s *Service) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Before(s.cacheExpiry) {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	return s.refreshSnapshot(ctx, false)
}

// GetReading retrieves the latest reading for a station.
func (s *Service) GetReading(ctx context.Context, stationID string) (*Reading, error) {
	if _, err := s.Station(stationID); err != nil {
		return nil, err
	}

	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	r := snapshot.GetReading(stationID)
	if r == nil {
		return nil, ErrNoReading
	}
	return r, nil
}

// CurrentAt fetches the current reading at an arbitrary coordinate, bypassing the cache.
func (s *Service) CurrentAt(ctx context.Context, lat, lon float64) (float64, error) {
	r, err := s.provider.FetchReading(ctx, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("fetch reading at %.4f,%.4f: %w", lat, lon, err)
	}
	return r.AQI, nil
}

// BaselineAt returns the most recent value of the series of a virtual
// station at (lat, lon), built around the current reading there.
func (s *Service) BaselineAt(ctx context.Context, lat, lon float64) (float64, error) {
	current, err := s.CurrentAt(ctx, lat, lon)
	if err != nil {
		return 0, err
	}

	series := GenerateHistory("target", current, s.now(), s.history)
	latest, ok := series.Latest()
	if !ok {
		return 0, ErrNoReading
	}
	return latest, nil
}

// History builds a series for every station with a current reading.
func (s *Service) History(ctx context.Context) (map[string]*StationSeries, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	history := make(map[string]*StationSeries, len(s.stations))
	for _, st := range s.stations {
		r := snapshot.GetReading(st.ID)
		if r == nil {
			continue
		}
		history[st.ID] = GenerateHistory(st.ID, r.AQI, s.now(), s.history)
	}
	return history, nil
}

// Forecast returns the multi-horizon forecast at (lat, lon).
func (s *Service) Forecast(ctx context.Context, lat, lon float64) (*PointForecast, error) {
	history, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	return s.forecaster.ForecastAt(lat, lon, s.stations, history)
}

// RefreshSnapshot forces a cache refresh.
func (s *Service) RefreshSnapshot(ctx context.Context) error {
	_, err := s.refreshSnapshot(ctx, true)
	return err
}

// InvalidateCache clears the cached snapshot.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.cacheExpiry = time.Time{}
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return CacheStatus{
			HasData: false,
		}
	}

	now := s.now()
	return CacheStatus{
		HasData:      true,
		FetchedAt:    s.snapshot.FetchedAt,
		ExpiresAt:    s.cacheExpiry,
		IsExpired:    now.After(s.cacheExpiry),
		IsStale:      now.After(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)),
		ReadingCount: len(s.snapshot.Readings),
		Provider:     s.snapshot.Provider,
	}
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData      bool
	FetchedAt    time.Time
	ExpiresAt    time.Time
	IsExpired    bool
	IsStale      bool
	ReadingCount int
	Provider     string
}

// refreshSnapshot fetches fresh readings for every station.
func (s *Service) refreshSnapshot(ctx context.Context, force bool) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine might have refreshed while we waited
	if !force && s.snapshot != nil && s.now().Before(s.cacheExpiry) {
		return s.snapshot, nil
	}

	s.logger.Debug().Int("stations", len(s.stations)).Msg("refreshing station readings")

	snapshot := NewSnapshot(s.provider.Name())
	snapshot.FetchedAt = s.now()
	for _, st := range s.stations {
		snapshot.Stations[st.ID] = st

		r, err := s.provider.FetchReading(ctx, st.Lat, st.Lon)
		if err != nil {
			s.logger.Warn().Err(err).Str("station", st.ID).Msg("failed to fetch station reading")
			continue
		}
		snapshot.SetReading(&Reading{StationID: st.ID, AQI: r.AQI, MeasuredAt: r.MeasuredAt})
	}

	if len(snapshot.Readings) == 0 {
		s.logger.Error().Msg("no station readings available")

		// If we have stale data that's not too old, return it
		if s.snapshot != nil && s.now().Before(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.snapshot.FetchedAt).
				Msg("serving stale station readings due to provider error")
			return s.snapshot, nil
		}

		return nil, ErrProviderUnavailable
	}

	s.snapshot = snapshot
	s.cacheExpiry = s.now().Add(s.cacheTTL)

	s.logger.Info().
		Int("stations", len(snapshot.Stations)).
		Int("readings", len(snapshot.Readings)).
		Time("expires_at", s.cacheExpiry).
		Msg("station readings refreshed")

	return snapshot, nil
}
