// Package scenario turns free-text what-if scenarios into typed intents.
package scenario

import "strings"

// Action is the kind of change a traffic scenario describes.
type Action string

// Supported actions. Any other value parses to ActionUnknown.
const (
	ActionReduce            Action = "reduce"
	ActionIncrease          Action = "increase"
	ActionAddInfrastructure Action = "add_infrastructure"
	ActionNewProject        Action = "new_project"
	ActionEvent             Action = "event"
	ActionUnknown           Action = "unknown"
)

// ParseAction maps a raw action string onto the closed set of actions.
func ParseAction(s string) Action {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionReduce, ActionIncrease, ActionAddInfrastructure, ActionNewProject, ActionEvent:
		return a
	default:
		return ActionUnknown
	}
}

// Sign returns the direction an action moves traffic: -1 for actions that
// divert or remove traffic, +1 for increases, 0 when the direction is not implied.
func (a Action) Sign() float64 {
	switch a {
	case ActionReduce, ActionAddInfrastructure:
		return -1
	case ActionIncrease:
		return 1
	case ActionNewProject, ActionEvent, ActionUnknown:
		return 0
	default:
		return 0
	}
}

// Source records which path produced an intent.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

// DefaultDurationMonths is used when a scenario states no duration.
const DefaultDurationMonths = 6

// DefaultLocation is used when a scenario names no known location.
const DefaultLocation = "all"

// Intent is the structured form of a traffic scenario.
// MagnitudePercent is always non-negative; TrafficImpact carries the sign.
type Intent struct {
	Action           Action  `json:"action"`
	MagnitudePercent float64 `json:"magnitude_percent"`
	DurationMonths   int     `json:"duration_months"`
	Location         string  `json:"location"`
	ConstructionType string  `json:"construction_type,omitempty"`
	TrafficImpact    float64 `json:"traffic_impact"`
	Source           Source  `json:"source"`
}

// DefaultIntent returns the intent for a scenario nothing could be extracted from.
func DefaultIntent() Intent {
	return Intent{
		Action:         ActionUnknown,
		DurationMonths: DefaultDurationMonths,
		Location:       DefaultLocation,
		Source:         SourceHeuristic,
	}
}

// ConstructionIntent is the structured form of a construction scenario.
// Empty fields mean the sentence did not state them.
type ConstructionIntent struct {
	ConstructionType   string  `json:"construction_type,omitempty"`
	Location           string  `json:"location,omitempty"`
	DurationMonths     int     `json:"duration_months,omitempty"`
	ConstructionImpact float64 `json:"construction_impact_score"`
	OperationalImpact  float64 `json:"operational_impact_score"`
}

// DurationOrDefault returns the stated duration, or DefaultDurationMonths.
func (c ConstructionIntent) DurationOrDefault() int {
	if c.DurationMonths > 0 {
		return c.DurationMonths
	}
	return DefaultDurationMonths
}
