package models

// Station is a monitoring station with its latest reading.
type Station struct {
	StationID         string     `json:"stationId"`
	Name              string     `json:"name"`
	Point             Point      `json:"point"`
	PopulationDensity float64    `json:"populationDensity,omitempty"`
	LatestAQI         *float64   `json:"latestAqi,omitempty"`
	Category          Category   `json:"category,omitempty"`
	MeasuredAt        *Timestamp `json:"measuredAt,omitempty"`
}

// StationList is the list of configured stations.
type StationList struct {
	Items     []Station  `json:"items"`
	Provider  string     `json:"provider,omitempty"`
	FetchedAt *Timestamp `json:"fetchedAt,omitempty"`
}

// Enums lists the closed value sets accepted or returned by the API.
type Enums struct {
	Actions           []string     `json:"actions"`
	ConstructionTypes []string     `json:"constructionTypes"`
	HorizonsMonths    []int        `json:"horizonsMonths"`
	Categories        []Category   `json:"categories"`
	Confidence        []Confidence `json:"confidence"`
}
