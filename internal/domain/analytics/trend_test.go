package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

func TestBucketStart(t *testing.T) {
	// 2024-03-14 is a Thursday.
	ts := time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		g    Granularity
		want time.Time
	}{
		{GranularityDay, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{GranularityWeek, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{GranularityMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{GranularityQuarter, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := BucketStart(ts, tc.g); !got.Equal(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.g, got, tc.want)
		}
	}

	// A Monday is its own week start; a Sunday belongs to the previous Monday.
	monday := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	if got := BucketStart(monday, GranularityWeek); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monday week start: got %v", got)
	}
	sunday := time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC)
	if got := BucketStart(sunday, GranularityWeek); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday week start: got %v", got)
	}

	// October opens the fourth quarter.
	oct := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	if got := BucketStart(oct, GranularityQuarter); !got.Equal(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("q4 start: got %v", got)
	}
}

func TestAdmissionTrendSumsAcrossDays(t *testing.T) {
	var stays []*records.StayRecord
	d1 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stays = append(stays, stay(branchA, deptX, d1, 1, records.AdmissionScheduled))
	}
	for i := 0; i < 5; i++ {
		stays = append(stays, stay(branchA, deptX, d2, 1, records.AdmissionScheduled))
	}

	points := AdmissionTrend(stays, GranularityMonth)
	if len(points) != 1 {
		t.Fatalf("expected one month bucket, got %d", len(points))
	}
	if points[0].Value == nil || *points[0].Value != 8 {
		t.Fatalf("month re-aggregation must sum day counts: got %v, want 8", points[0].Value)
	}
}

func TestALOSTrendRecomputesFromRawSums(t *testing.T) {
	// Day 1: stays of 1 and 2 days (mean 1.5). Day 2: one stay of 6 days.
	// A naive average of daily means gives (1.5+6)/2 = 3.75; the correct
	// month value divides raw sums: (1+2+6)/3 = 3.
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stays := []*records.StayRecord{
		stay(branchA, deptX, d, 1, records.AdmissionScheduled),
		stay(branchA, deptX, d, 2, records.AdmissionScheduled),
		stay(branchA, deptX, d.AddDate(0, 0, 1), 6, records.AdmissionScheduled),
	}
	points := ALOSTrend(stays, GranularityMonth)
	if len(points) != 1 {
		t.Fatalf("expected one bucket, got %d", len(points))
	}
	if points[0].Value == nil || *points[0].Value != 3.00 {
		t.Fatalf("got %v, want 3.00", points[0].Value)
	}
}

func TestOccupancyTrendDividesOnce(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	allocs := []*records.AllocationRecord{
		{BranchID: branchA, RecordDate: d, RecordHour: 10, BedsOccupied: 50},
		{BranchID: branchA, RecordDate: d, RecordHour: 11, BedsOccupied: 100},
	}
	points := OccupancyTrend(allocs, fixtureBranches(), fixtureDepts(), GranularityMonth)
	if len(points) != 1 {
		t.Fatalf("expected one bucket, got %d", len(points))
	}
	// (50+100)/(100+100) = 75%, identical here to averaging but computed
	// from raw sums.
	if points[0].Value == nil || *points[0].Value != 75.00 {
		t.Fatalf("got %v, want 75.00", points[0].Value)
	}
}

func TestRankComparisonOrdering(t *testing.T) {
	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	idTop := uuid.MustParse("00000000-0000-0000-0000-000000000003")
	values := map[uuid.UUID]*float64{
		idTop:  ptr(9),
		idLow:  ptr(5),
		idHigh: ptr(5),
	}
	names := map[uuid.UUID]string{idLow: "low", idHigh: "high", idTop: "top"}

	rows := RankComparison(values, names)
	if rows[0].DimensionID != idTop || rows[0].Rank != 1 {
		t.Fatalf("highest value must rank first, got %+v", rows[0])
	}
	// Tie on 5: lower id wins.
	if rows[1].DimensionID != idLow || rows[2].DimensionID != idHigh {
		t.Fatalf("ties must break by dimension id ascending, got %v then %v", rows[1].DimensionID, rows[2].DimensionID)
	}
	if rows[2].Rank != 3 {
		t.Fatalf("ranks are positional, got %d", rows[2].Rank)
	}
}

func TestPeakHoursAndWeekdays(t *testing.T) {
	// 2024-03-11 is a Monday.
	stays := []*records.StayRecord{
		stay(branchA, deptX, time.Date(2024, 3, 11, 14, 0, 0, 0, time.UTC), 1, records.AdmissionEmergency),
		stay(branchA, deptX, time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC), 1, records.AdmissionEmergency),
		stay(branchA, deptX, time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC), 1, records.AdmissionScheduled),
	}

	hours := PeakHours(stays)
	if len(hours) != 24 {
		t.Fatalf("expected 24 zero-filled buckets, got %d", len(hours))
	}
	if hours[14].Count != 2 || hours[9].Count != 1 || hours[0].Count != 0 {
		t.Fatalf("hour counts wrong: %+v", hours)
	}

	days := PeakWeekdays(stays)
	if len(days) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(days))
	}
	if days[0].Label != "Monday" || days[0].Count != 1 {
		t.Fatalf("monday bucket wrong: %+v", days[0])
	}
	if days[6].Label != "Sunday" || days[6].Count != 1 {
		t.Fatalf("sunday bucket wrong: %+v", days[6])
	}
}
