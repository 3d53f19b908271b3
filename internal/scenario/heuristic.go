package scenario

import (
	"regexp"
	"strconv"
	"strings"
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// Heuristic extracts a traffic intent with fixed keyword rules.
// Keywords are checked in order: bridge, metro, reduce/decrease, increase.
// Locations are matched case-insensitively against text in the given order.
func Heuristic(text string, locations []string) Intent {
	lower := strings.ToLower(text)
	intent := DefaultIntent()

	if m := percentPattern.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.MagnitudePercent = v
		}
	}

	switch {
	case strings.Contains(lower, "bridge"):
		intent.Action = ActionAddInfrastructure
		intent.MagnitudePercent = 15
		intent.TrafficImpact = -15
	case strings.Contains(lower, "metro"):
		intent.Action = ActionAddInfrastructure
		intent.MagnitudePercent = 25
		intent.TrafficImpact = -25
	case strings.Contains(lower, "reduce") || strings.Contains(lower, "decrease"):
		intent.Action = ActionReduce
		intent.TrafficImpact = -intent.MagnitudePercent
	case strings.Contains(lower, "increase"):
		intent.Action = ActionIncrease
		intent.TrafficImpact = intent.MagnitudePercent
	}

	for _, loc := range locations {
		if loc != "" && strings.Contains(lower, strings.ToLower(loc)) {
			intent.Location = strings.ToLower(loc)
			break
		}
	}

	return intent
}
