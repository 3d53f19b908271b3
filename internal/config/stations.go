package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cityview/urbanimpact/internal/airquality"
)

// ErrNoStations is returned when a station file lists no stations.
var ErrNoStations = errors.New("station file lists no stations")

type stationFile struct {
	Stations []stationEntry `yaml:"stations"`
}

type stationEntry struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	Lat               float64 `yaml:"lat"`
	Lon               float64 `yaml:"lon"`
	PopulationDensity float64 `yaml:"population_density"`
}

// DefaultStations returns the built-in Ahmedabad monitoring stations.
func DefaultStations() []*airquality.Station {
	return []*airquality.Station{
		{ID: "bopal", Name: "Bopal", Lat: 23.0338, Lon: 72.4633, PopulationDensity: 3500},
		{ID: "maninagar", Name: "Maninagar", Lat: 22.9962, Lon: 72.6029, PopulationDensity: 12000},
		{ID: "chandkheda", Name: "Chandkheda", Lat: 23.1094, Lon: 72.5856, PopulationDensity: 8000},
		{ID: "paldi", Name: "Paldi", Lat: 23.0120, Lon: 72.5620, PopulationDensity: 10000},
		{ID: "vastrapur", Name: "Vastrapur", Lat: 23.0365, Lon: 72.5290, PopulationDensity: 10500},
		{ID: "naroda", Name: "Naroda", Lat: 23.0686, Lon: 72.6536, PopulationDensity: 9000},
	}
}

// LoadStations reads stations from a YAML file. An empty path returns DefaultStations.
func LoadStations(path string) ([]*airquality.Station, error) {
	if path == "" {
		return DefaultStations(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station file %s: %w", path, err)
	}
	return ParseStations(data)
}

// ParseStations decodes and validates a YAML station list.
func ParseStations(data []byte) ([]*airquality.Station, error) {
	var file stationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse station file: %w", err)
	}
	if len(file.Stations) == 0 {
		return nil, ErrNoStations
	}

	seen := make(map[string]bool, len(file.Stations))
	stations := make([]*airquality.Station, 0, len(file.Stations))
	for i, e := range file.Stations {
		if e.ID == "" {
			return nil, fmt.Errorf("station %d: missing id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("station %s: duplicate id", e.ID)
		}
		if e.Lat < -90 || e.Lat > 90 || e.Lon < -180 || e.Lon > 180 {
			return nil, fmt.Errorf("station %s: coordinates out of range", e.ID)
		}
		if e.PopulationDensity < 0 {
			return nil, fmt.Errorf("station %s: negative population density", e.ID)
		}
		seen[e.ID] = true

		name := e.Name
		if name == "" {
			name = e.ID
		}
		stations = append(stations, &airquality.Station{
			ID:                e.ID,
			Name:              name,
			Lat:               e.Lat,
			Lon:               e.Lon,
			PopulationDensity: e.PopulationDensity,
		})
	}
	return stations, nil
}

// Populations returns the configured population density per station,
// omitting stations without one.
func Populations(stations []*airquality.Station) map[string]float64 {
	populations := make(map[string]float64, len(stations))
	for _, st := range stations {
		if st.PopulationDensity > 0 {
			populations[st.ID] = st.PopulationDensity
		}
	}
	return populations
}

// StationNames returns the ids of the stations, in order.
func StationNames(stations []*airquality.Station) []string {
	names := make([]string, 0, len(stations))
	for _, st := range stations {
		names = append(names, st.ID)
	}
	return names
}
