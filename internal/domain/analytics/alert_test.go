package analytics

import (
	"testing"
	"time"

	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

func occupancyRow(value float64, hour int) KPIRow {
	h := hour
	d := deptX
	return KPIRow{
		BranchID:     branchA,
		DepartmentID: &d,
		Period:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Hour:         &h,
		Metric:       MetricBedOccupancy,
		Value:        ptr(value),
	}
}

func TestDetectOccupancySurge(t *testing.T) {
	th := DefaultThresholds()
	alerts := DetectOccupancySurge([]KPIRow{occupancyRow(86, 14)}, th)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.RuleID != RuleBedOccupancySurge || a.Severity != SeverityHigh {
		t.Fatalf("wrong rule or severity: %+v", a)
	}
	if a.Observed != 86.00 || a.Threshold != 85 {
		t.Fatalf("observed/threshold wrong: %+v", a)
	}
}

func TestDetectOccupancySurgeDedupKeepsMax(t *testing.T) {
	alerts := DetectOccupancySurge([]KPIRow{occupancyRow(86, 14), occupancyRow(90, 14)}, DefaultThresholds())
	if len(alerts) != 1 {
		t.Fatalf("same bucket must collapse to one alert, got %d", len(alerts))
	}
	if alerts[0].Observed != 90 {
		t.Fatalf("dedup must keep the max, got %v", alerts[0].Observed)
	}
}

func TestDetectOccupancySurgeBoundary(t *testing.T) {
	if got := DetectOccupancySurge([]KPIRow{occupancyRow(85.00, 10)}, DefaultThresholds()); len(got) != 1 {
		t.Fatal("exactly 85.00 must trigger")
	}
	if got := DetectOccupancySurge([]KPIRow{occupancyRow(84.99, 10)}, DefaultThresholds()); len(got) != 0 {
		t.Fatal("84.99 must not trigger")
	}
	if got := DetectOccupancySurge([]KPIRow{{Metric: MetricBedOccupancy, BranchID: branchA}}, DefaultThresholds()); len(got) != 0 {
		t.Fatal("nil value must never trigger")
	}
}

func TestDetectDelayedDischarges(t *testing.T) {
	admitted := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	stays := []*records.StayRecord{
		stay(branchA, deptX, admitted, 16, records.AdmissionScheduled),
		stay(branchA, deptX, admitted, 5, records.AdmissionScheduled),
		stay(branchA, deptX, admitted, -1, records.AdmissionScheduled), // open stay never triggers
	}
	alerts := DetectDelayedDischarges(stays, DefaultThresholds())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != SeverityMedium || alerts[0].Observed != 16.00 {
		t.Fatalf("unexpected alert: %+v", alerts[0])
	}
}

func TestDetectDelayedDischargesDedupPerDay(t *testing.T) {
	admitted := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	stays := []*records.StayRecord{
		stay(branchA, deptX, admitted, 15, records.AdmissionScheduled),
		stay(branchA, deptX, admitted, 21, records.AdmissionScheduled),
	}
	// Different discharge days: two alerts.
	alerts := DetectDelayedDischarges(stays, DefaultThresholds())
	if len(alerts) != 2 {
		t.Fatalf("distinct discharge days must not collapse, got %d", len(alerts))
	}

	// Same discharge day: one alert with the longer stay.
	s2 := stay(branchA, deptX, admitted.AddDate(0, 0, -6), 21, records.AdmissionScheduled)
	alerts = DetectDelayedDischarges([]*records.StayRecord{stays[0], s2}, DefaultThresholds())
	if len(alerts) != 1 {
		t.Fatalf("same discharge day must collapse, got %d", len(alerts))
	}
	if alerts[0].Observed != 21.00 {
		t.Fatalf("dedup must keep the longest stay, got %v", alerts[0].Observed)
	}
}

func TestDetectDoctorOverutilization(t *testing.T) {
	period := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d1, dx := doctor1, deptX
	rows := []KPIRow{
		{BranchID: branchA, DepartmentID: &dx, DoctorID: &d1, Period: period, Metric: MetricDoctorUtilization, Value: ptr(92.5)},
		{BranchID: branchA, DepartmentID: &dx, DoctorID: &d1, Period: period, Metric: MetricDoctorUtilization, Value: ptr(89.99)},
	}
	alerts := DetectDoctorOverutilization(rows[:1], DefaultThresholds())
	if len(alerts) != 1 || alerts[0].Observed != 92.5 {
		t.Fatalf("expected one alert at 92.5, got %+v", alerts)
	}
	if alerts := DetectDoctorOverutilization(rows[1:], DefaultThresholds()); len(alerts) != 0 {
		t.Fatal("below the ceiling must not trigger")
	}
}

func TestDetectEmergencySurge(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var stays []*records.StayRecord
	// Two emergency admissions per day for a week, then eight on day 8.
	for d := 0; d < 7; d++ {
		for i := 0; i < 2; i++ {
			stays = append(stays, stay(branchA, deptX, base.AddDate(0, 0, d), 1, records.AdmissionEmergency))
		}
	}
	for i := 0; i < 8; i++ {
		stays = append(stays, stay(branchA, deptX, base.AddDate(0, 0, 7), 1, records.AdmissionEmergency))
	}

	alerts := DetectEmergencySurge(stays, DefaultThresholds())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 surge alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.RuleID != RuleEmergencySurge || a.Severity != SeverityHigh {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if a.Observed != 8 {
		t.Fatalf("observed must be the day's count, got %v", a.Observed)
	}
	// Trailing 7-day average is 2, multiplier 2 → threshold 4.
	if a.Threshold != 4 {
		t.Fatalf("threshold: got %v, want 4", a.Threshold)
	}
}

func TestDetectEmergencySurgeNeedsHistory(t *testing.T) {
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var stays []*records.StayRecord
	for i := 0; i < 50; i++ {
		stays = append(stays, stay(branchA, deptX, day, 1, records.AdmissionEmergency))
	}
	if alerts := DetectEmergencySurge(stays, DefaultThresholds()); len(alerts) != 0 {
		t.Fatal("a day with no trailing history must never trigger")
	}
}

func TestDetectResourceShortage(t *testing.T) {
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	var allocs []*records.AllocationRecord
	// Four hours at 90% occupancy inside the trailing week.
	for h := 8; h < 12; h++ {
		allocs = append(allocs, &records.AllocationRecord{
			BranchID: branchA, RecordDate: end.AddDate(0, 0, -1), RecordHour: h, BedsOccupied: 90,
		})
	}
	// Hot hours outside the window do not count.
	allocs = append(allocs, &records.AllocationRecord{
		BranchID: branchA, RecordDate: end.AddDate(0, 0, -20), RecordHour: 9, BedsOccupied: 95,
	})

	alerts := DetectResourceShortage(allocs, fixtureBranches(), end, DefaultThresholds())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Observed != 4 || alerts[0].Threshold != 3 {
		t.Fatalf("unexpected alert: %+v", alerts[0])
	}

	// Exactly the allowed count does not trigger.
	alerts = DetectResourceShortage(allocs[:3], fixtureBranches(), end, DefaultThresholds())
	if len(alerts) != 0 {
		t.Fatalf("3 hot hours must not exceed the allowed 3, got %d alerts", len(alerts))
	}
}
