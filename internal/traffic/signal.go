package traffic

// BaseSignal is the normalized traffic signal of an unchanged city.
const BaseSignal = 0.5

// ApplyToSignal moves a [0,1]-normalized traffic signal by a signed traffic
// impact in percent. The relative change is bounded like model predictions.
func ApplyToSignal(base, trafficImpactPercent float64) float64 {
	delta := Clamp(trafficImpactPercent/100, MinImpact, MaxImpact)
	return Clamp(base*(1+delta), 0, 1)
}
