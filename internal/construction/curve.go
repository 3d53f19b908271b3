// Package construction models the air-quality effect of construction
// projects over their lifetime.
package construction

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Construction types accepted by strict validation.
const (
	TypeBridge   = "bridge"
	TypeRoad     = "road"
	TypeHospital = "hospital"
	TypeSchool   = "school"
)

// ErrUnsupportedType is returned by Validate for types outside the supported set.
var ErrUnsupportedType = errors.New("unsupported construction type")

var supportedTypes = map[string]struct{}{
	TypeBridge:   {},
	TypeRoad:     {},
	TypeHospital: {},
	TypeSchool:   {},
}

// Validate normalizes a construction type and rejects unsupported ones.
func Validate(constructionType string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(constructionType))
	if _, ok := supportedTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, constructionType)
	}
	return t, nil
}

// SupportedTypes returns the types accepted by Validate.
func SupportedTypes() []string {
	return []string{TypeBridge, TypeRoad, TypeHospital, TypeSchool}
}

// BridgeImpact returns the fractional AQI change of a bridge project at the
// given progress in [0, 1]. Dust and diversions add 10% until 0.3, the effect
// ramps down to -5% at 0.7, then eases back to 0 at completion.
func BridgeImpact(progress float64) float64 {
	switch {
	case progress < 0.3:
		return 0.10
	case progress < 0.7:
		return 0.10 - (progress-0.3)*0.375
	default:
		return -0.05 * (1 - progress) / 0.3
	}
}

// Impact returns the fractional AQI change for a construction type.
// Only bridges have a curve; every other type has no effect.
func Impact(constructionType string, progress float64) float64 {
	if constructionType == TypeBridge {
		return BridgeImpact(progress)
	}
	return 0
}

// Progress is the completed fraction of a project after monthsAhead, capped at 1.
func Progress(monthsAhead, durationMonths int) float64 {
	return math.Min(float64(monthsAhead)/float64(durationMonths), 1)
}

// Phase names the stage of a project at a given progress.
func Phase(progress float64) string {
	switch {
	case progress < 0.3:
		return "early"
	case progress < 0.7:
		return "mid"
	case progress < 1:
		return "late"
	default:
		return "complete"
	}
}

// Simulate applies the construction curve to baseAQI, rounded to 2 decimals.
// An empty type or a non-positive duration leaves baseAQI unchanged.
func Simulate(baseAQI float64, constructionType string, durationMonths, monthsAhead int) float64 {
	constructionType = strings.ToLower(strings.TrimSpace(constructionType))
	if constructionType == "" || durationMonths <= 0 {
		return baseAQI
	}

	impact := Impact(constructionType, Progress(monthsAhead, durationMonths))
	return round2(baseAQI * (1 + impact))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
