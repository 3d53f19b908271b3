package models

// TrafficWhatIfRequest is the body of POST /v1/traffic/what-if.
// Either StationID or Point locates the scenario. A missing Density is
// estimated from the road network around the location.
type TrafficWhatIfRequest struct {
	Scenario  string   `json:"scenario"`
	Density   *float64 `json:"density,omitempty"`
	StationID string   `json:"stationId,omitempty"`
	Point     *Point   `json:"point,omitempty"`
}

// TrafficParams is the parsed traffic intent after dynamic scaling.
type TrafficParams struct {
	Action           string  `json:"action"`
	MagnitudePercent float64 `json:"magnitudePercent"`
	TrafficImpact    float64 `json:"trafficImpact"`
	DurationMonths   int     `json:"durationMonths"`
	Location         string  `json:"location"`
	Source           string  `json:"source"`
	Note             string  `json:"note,omitempty"`
}

// TrafficCheckpoint is the predicted state at one adoption checkpoint.
type TrafficCheckpoint struct {
	Month            int     `json:"month"`
	AQIImpact        float64 `json:"aqiImpact"`
	TrafficChangePct float64 `json:"trafficChangePct"`
	DensityUsed      float64 `json:"densityUsed"`
}

// TrafficWhatIfResponse is the traffic simulation outcome.
type TrafficWhatIfResponse struct {
	BaselineAQIImpact float64             `json:"baselineAqiImpact"`
	Density           float64             `json:"density"`
	Capacity          float64             `json:"capacity"`
	Params            TrafficParams       `json:"parsedParams"`
	Forecast          []TrafficCheckpoint `json:"forecast"`
}
