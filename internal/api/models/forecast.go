package models

// ForecastComputeRequest is the body of POST /v1/forecasts:compute.
type ForecastComputeRequest struct {
	Point Point `json:"point"`
}

// ConfidenceDetail scores how far an estimate can be trusted.
type ConfidenceDetail struct {
	Score       int        `json:"score"`
	Label       Confidence `json:"label"`
	Explanation string     `json:"explanation,omitempty"`
}

// HorizonForecast is the interpolated AQI at one horizon.
type HorizonForecast struct {
	HorizonMonths int              `json:"horizonMonths"`
	AQI           float64          `json:"aqi"`
	Category      Category         `json:"category"`
	Confidence    ConfidenceDetail `json:"confidence"`
}

// StationInfluence is a station's share of the interpolation weight.
type StationInfluence struct {
	StationID        string  `json:"stationId"`
	DistanceKm       float64 `json:"distanceKm"`
	InfluencePercent float64 `json:"influencePercent"`
}

// ForecastResponse is the multi-horizon forecast at a point.
type ForecastResponse struct {
	Point            Point              `json:"point"`
	GeneratedAt      Timestamp          `json:"generatedAt"`
	SeasonalFactor   float64            `json:"seasonalFactor"`
	StationsUsed     int                `json:"stationsUsed"`
	StationsExcluded []string           `json:"stationsExcluded,omitempty"`
	Horizons         []HorizonForecast  `json:"horizons"`
	Influence        []StationInfluence `json:"influence"`
}
