// Package airquality provides station readings, spatial interpolation and
// multi-horizon AQI forecasting.
package airquality

import (
	"errors"
	"time"
)

// Provider errors.
var (
	ErrStationNotFound     = errors.New("station not found")
	ErrNoReading           = errors.New("no reading available")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Station represents a physical or virtual air quality/traffic sensor location.
type Station struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64

	// PopulationDensity is the residents per km² around the station. Zero means unknown.
	PopulationDensity float64
}

// Reading is the most recent AQI value reported for a station.
type Reading struct {
	StationID  string
	AQI        float64
	MeasuredAt time.Time
}

// Point is a single (timestamp, value) observation in a station series.
type Point struct {
	Time  time.Time
	Value float64
}

// StationSeries is the ordered daily history of a station.
type StationSeries struct {
	StationID string
	Points    []Point
}

// Len returns the number of points in the series.
func (s *StationSeries) Len() int {
	return len(s.Points)
}

// Latest returns the most recent value of the series.
func (s *StationSeries) Latest() (float64, bool) {
	if len(s.Points) == 0 {
		return 0, false
	}
	return s.Points[len(s.Points)-1].Value, true
}

// Values returns the series values in time order.
func (s *StationSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Snapshot represents a point-in-time set of station readings.
type Snapshot struct {
	// Stations is a map of station ID to station metadata.
	Stations map[string]*Station

	// Readings contains the latest reading per station ID.
	Readings map[string]*Reading

	// FetchedAt is when this snapshot was retrieved from the provider.
	FetchedAt time.Time

	// Provider identifies the data source.
	Provider string
}

// NewSnapshot creates a new empty snapshot.
func NewSnapshot(provider string) *Snapshot {
	return &Snapshot{
		Stations:  make(map[string]*Station),
		Readings:  make(map[string]*Reading),
		FetchedAt: time.Now(),
		Provider:  provider,
	}
}

// GetReading retrieves the reading for a station.
func (s *Snapshot) GetReading(stationID string) *Reading {
	return s.Readings[stationID]
}

// SetReading adds or updates a reading in the snapshot.
func (s *Snapshot) SetReading(r *Reading) {
	s.Readings[r.StationID] = r
}

// StationList returns all stations as a slice.
func (s *Snapshot) StationList() []*Station {
	stations := make([]*Station, 0, len(s.Stations))
	for _, station := range s.Stations {
		stations = append(stations, station)
	}
	return stations
}

// Category is the severity band of an AQI value.
type Category string

const (
	CategoryGood      Category = "good"
	CategoryModerate  Category = "moderate"
	CategoryUnhealthy Category = "unhealthy"
	CategorySevere    Category = "severe"
	CategoryHazardous Category = "hazardous"
)

// CategoryFor returns the severity band for an AQI value.
func CategoryFor(aqi float64) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	case aqi <= 150:
		return CategoryUnhealthy
	case aqi <= 200:
		return CategorySevere
	default:
		return CategoryHazardous
	}
}
