package airquality

import "time"

// SeasonalMultiplier returns the AQI multiplier for a calendar month.
// Winter inversions raise AQI; pre-monsoon and monsoon months lower it.
func SeasonalMultiplier(month time.Month) float64 {
	switch month {
	case time.November, time.December, time.January:
		return 1.10
	case time.March, time.April, time.May:
		return 0.95
	case time.July, time.August:
		return 0.90
	default:
		return 1.00
	}
}
