package analytics

import "math"

// round2 rounds half-up to two decimal places. All engine values are
// non-negative, so floor(x+0.5) is exact half-up.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// ptr boxes a value for the nullable result fields.
func ptr(v float64) *float64 { return &v }

// Pct returns num/den*100 rounded to two decimals, or nil when the
// denominator is zero. A nil result means insufficient data, never zero.
func Pct(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return ptr(round2(num / den * 100))
}

// Ratio returns num/den rounded to two decimals, or nil when the
// denominator is zero.
func Ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return ptr(round2(num / den))
}

// MeanDays returns the mean of a set of day-durations rounded to two
// decimals, or nil for an empty set.
func MeanDays(days []float64) *float64 {
	if len(days) == 0 {
		return nil
	}
	var sum float64
	for _, d := range days {
		sum += d
	}
	return ptr(round2(sum / float64(len(days))))
}
