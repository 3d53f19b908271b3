package models

// ScenarioComputeRequest is the body of POST /v1/scenarios:compute.
type ScenarioComputeRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Scenario string  `json:"scenario"`
}

// ConstructionWhatIfRequest is the body of POST /v1/forecasts/what-if.
// ConstructionType skips parsing the scenario text.
type ConstructionWhatIfRequest struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	Scenario         string  `json:"scenario,omitempty"`
	ConstructionType string  `json:"constructionType,omitempty"`
	DurationMonths   int     `json:"durationMonths,omitempty"`
	TimelineMonths   int     `json:"timelineMonths"`
}

// ConstructionWhatIfResponse compares the forecast with and without a project.
type ConstructionWhatIfResponse struct {
	TimelineMonths int                `json:"timelineMonths"`
	BaselineAQI    float64            `json:"baselineAqi"`
	ScenarioAQI    float64            `json:"scenarioAqi"`
	Category       Category           `json:"category"`
	Confidence     ConfidenceDetail   `json:"confidence"`
	Details        ConstructionDetail `json:"scenarioDetails"`
}

// ConstructionDetail describes the project the curve was applied to.
type ConstructionDetail struct {
	ConstructionType string  `json:"constructionType,omitempty"`
	Location         string  `json:"location,omitempty"`
	DurationMonths   int     `json:"durationMonths"`
	Progress         float64 `json:"progress"`
	Phase            string  `json:"phase"`
	ImpactPercent    float64 `json:"impactPercent"`
}
