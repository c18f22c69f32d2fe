package analytics

import (
	"time"
)

// DefaultMovingAverageWindow is the trailing window size when a request
// does not choose one.
const DefaultMovingAverageWindow = 7

// MovingAverage computes a trailing simple moving average over a dense
// series. Leading indexes with fewer than window points average over what
// is available, so the head of the series is never lost.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// NextPeriodForecast returns the one-step estimate: the mean of the last
// window observations. An empty series has no forecast.
func NextPeriodForecast(values []float64, window int) *float64 {
	if len(values) == 0 {
		return nil
	}
	if window < 1 {
		window = 1
	}
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range values[start:] {
		sum += v
	}
	return ptr(round2(sum / float64(len(values)-start)))
}

// seriesPoint is one day of a dense input series. Observed distinguishes a
// measured zero from a day with no data.
type seriesPoint struct {
	date     time.Time
	value    float64
	observed bool
}

// denseCounts builds a zero-filled daily series for a count metric: every
// date in [from, to] is present, missing dates count as zero.
func denseCounts(counts map[time.Time]float64, from, to time.Time) []seriesPoint {
	var series []seriesPoint
	for d := dayStart(from); !d.After(dayStart(to)); d = d.AddDate(0, 0, 1) {
		series = append(series, seriesPoint{date: d, value: counts[d], observed: true})
	}
	return series
}

// denseRates builds a daily series for a rate metric. Missing dates stay
// in the series to keep it date-complete, but carry observed=false and do
// not contribute to smoothing.
func denseRates(rates map[time.Time]float64, from, to time.Time) []seriesPoint {
	var series []seriesPoint
	for d := dayStart(from); !d.After(dayStart(to)); d = d.AddDate(0, 0, 1) {
		v, ok := rates[d]
		series = append(series, seriesPoint{date: d, value: v, observed: ok})
	}
	return series
}

// Smooth applies the trailing moving average to a dense series and packs
// the one-step forecast. For rate series only observed points feed the
// window; unobserved points carry the running average forward.
func Smooth(metric string, series []seriesPoint, window int) *ForecastResult {
	if window < 1 {
		window = DefaultMovingAverageWindow
	}
	res := &ForecastResult{Metric: metric, Window: window}
	if len(series) == 0 {
		return res
	}

	var observed []float64
	points := make([]ForecastPoint, 0, len(series))
	var last float64
	for _, p := range series {
		fp := ForecastPoint{Period: p.date}
		if p.observed {
			observed = append(observed, p.value)
			v := p.value
			fp.Observed = &v
			start := len(observed) - window
			if start < 0 {
				start = 0
			}
			var sum float64
			for _, o := range observed[start:] {
				sum += o
			}
			last = round2(sum / float64(len(observed)-start))
		}
		fp.Smoothed = last
		points = append(points, fp)
	}
	res.Points = points
	res.NextPeriod = series[len(series)-1].date.AddDate(0, 0, 1)
	res.NextValue = NextPeriodForecast(observed, window)
	return res
}

// ClampForecast caps an occupancy forecast at physical capacity: a
// percentage never exceeds 100, an absolute count never exceeds capacity.
func ClampForecast(res *ForecastResult, max float64) *ForecastResult {
	if res == nil || res.NextValue == nil {
		return res
	}
	if *res.NextValue > max {
		res.NextValue = ptr(max)
	}
	return res
}
