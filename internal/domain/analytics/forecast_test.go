package analytics

import (
	"math"
	"testing"
	"time"
)

func TestMovingAveragePartialLeadingWindows(t *testing.T) {
	got := MovingAverage([]float64{4, 8, 12}, 7)
	want := []float64{4, 6, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMovingAverageTrailingWindow(t *testing.T) {
	series := []float64{10, 10, 10, 10, 10, 10, 10, 20}
	got := MovingAverage(series, 7)
	if math.Abs(got[7]-(10*6+20)/7.0) > 1e-9 {
		t.Fatalf("8th point: got %v, want %v", got[7], (10*6+20)/7.0)
	}
	if got[6] != 10 {
		t.Fatalf("7th point: got %v, want 10", got[6])
	}
}

func TestNextPeriodForecast(t *testing.T) {
	series := []float64{10, 10, 10, 10, 10, 10, 10, 20}
	got := NextPeriodForecast(series, 7)
	if got == nil || *got != 11.43 {
		t.Fatalf("got %v, want 11.43", got)
	}
	if NextPeriodForecast(nil, 7) != nil {
		t.Fatal("empty series must have no forecast")
	}
}

func TestSmoothCountSeriesZeroFills(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	counts := map[time.Time]float64{day(1): 6, day(3): 3}
	res := Smooth("admissions", denseCounts(counts, day(1), day(3)), 7)

	if len(res.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(res.Points))
	}
	if res.Points[1].Observed == nil || *res.Points[1].Observed != 0 {
		t.Fatalf("missing day must be a measured zero for counts, got %v", res.Points[1].Observed)
	}
	if res.Points[1].Smoothed != 3 {
		t.Fatalf("smoothed day 2: got %v, want 3", res.Points[1].Smoothed)
	}
	if !res.NextPeriod.Equal(day(4)) {
		t.Fatalf("next period: got %v, want %v", res.NextPeriod, day(4))
	}
	if res.NextValue == nil || *res.NextValue != 3 {
		t.Fatalf("forecast: got %v, want 3", res.NextValue)
	}
}

func TestSmoothRateSeriesSkipsUnobserved(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	rates := map[time.Time]float64{day(1): 80, day(3): 90}
	res := Smooth(MetricBedOccupancy, denseRates(rates, day(1), day(3)), 7)

	if res.Points[1].Observed != nil {
		t.Fatalf("unobserved day must carry nil observed, got %v", *res.Points[1].Observed)
	}
	if res.Points[1].Smoothed != 80 {
		t.Fatalf("unobserved day carries the running average forward, got %v", res.Points[1].Smoothed)
	}
	// Only the two observed points feed the window: (80+90)/2.
	if res.NextValue == nil || *res.NextValue != 85 {
		t.Fatalf("forecast: got %v, want 85", res.NextValue)
	}
}

func TestClampForecast(t *testing.T) {
	res := &ForecastResult{NextValue: ptr(104.5)}
	if out := ClampForecast(res, 100); *out.NextValue != 100 {
		t.Fatalf("got %v, want 100", *out.NextValue)
	}
	res = &ForecastResult{NextValue: ptr(72.0)}
	if out := ClampForecast(res, 100); *out.NextValue != 72 {
		t.Fatalf("got %v, want 72", *out.NextValue)
	}
	if out := ClampForecast(&ForecastResult{}, 100); out.NextValue != nil {
		t.Fatal("nil forecast stays nil")
	}
}
