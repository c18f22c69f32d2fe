package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hospimetrics/hospimetrics/internal/domain/catalog"
	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BucketStart truncates a timestamp to its bucket boundary. Weeks start
// Monday; quarters are the three-month blocks starting January, April,
// July, and October.
func BucketStart(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	switch g {
	case GranularityDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityQuarter:
		qm := time.Month((int(m-1)/3)*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
}

// NextBucket returns the start of the bucket following the given one.
func NextBucket(bucket time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDay:
		return bucket.AddDate(0, 0, 1)
	case GranularityWeek:
		return bucket.AddDate(0, 0, 7)
	case GranularityQuarter:
		return bucket.AddDate(0, 3, 0)
	default:
		return bucket.AddDate(0, 1, 0)
	}
}

// ratioAccum accumulates a re-bucketed rate metric from its raw numerator
// and denominator. Rates are never averaged from pre-rounded percentages;
// the division happens once per output bucket.
type ratioAccum struct{ num, den float64 }

func sortTrend(points []TrendPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
}

// CountTrend sums event counts per bucket. pick extracts the timestamp to
// bucket on and reports whether the record counts.
func countTrend(metric string, g Granularity, stays []*records.StayRecord, pick func(*records.StayRecord) (time.Time, bool)) []TrendPoint {
	counts := map[time.Time]float64{}
	for _, s := range stays {
		ts, ok := pick(s)
		if !ok {
			continue
		}
		counts[BucketStart(ts, g)]++
	}
	points := make([]TrendPoint, 0, len(counts))
	for period, n := range counts {
		v := n
		points = append(points, TrendPoint{Period: period, Metric: metric, Value: &v})
	}
	sortTrend(points)
	return points
}

// AdmissionTrend counts admissions per bucket.
func AdmissionTrend(stays []*records.StayRecord, g Granularity) []TrendPoint {
	return countTrend("admissions", g, stays, func(s *records.StayRecord) (time.Time, bool) {
		return s.AdmittedAt, true
	})
}

// DischargeTrend counts discharges per bucket of discharge date.
func DischargeTrend(stays []*records.StayRecord, g Granularity) []TrendPoint {
	return countTrend("discharges", g, stays, func(s *records.StayRecord) (time.Time, bool) {
		if s.DischargedAt == nil {
			return time.Time{}, false
		}
		return *s.DischargedAt, true
	})
}

// ALOSTrend re-aggregates average length of stay per bucket of discharge
// date, dividing total stay days by completed stays once per bucket.
func ALOSTrend(stays []*records.StayRecord, g Granularity) []TrendPoint {
	groups := map[time.Time]*ratioAccum{}
	for _, s := range stays {
		days, ok := s.LengthOfStayDays()
		if !ok {
			continue
		}
		period := BucketStart(*s.DischargedAt, g)
		a := groups[period]
		if a == nil {
			a = &ratioAccum{}
			groups[period] = a
		}
		a.num += days
		a.den++
	}
	points := make([]TrendPoint, 0, len(groups))
	for period, a := range groups {
		points = append(points, TrendPoint{Period: period, Metric: MetricAvgLengthOfStay, Value: Ratio(a.num, a.den)})
	}
	sortTrend(points)
	return points
}

// OccupancyTrend re-aggregates bed occupancy per bucket by summing
// occupied beds and capacity over every allocation row in the bucket,
// then dividing once.
func OccupancyTrend(allocs []*records.AllocationRecord, branches map[uuid.UUID]*catalog.Branch, depts map[uuid.UUID]*catalog.Department, g Granularity) []TrendPoint {
	groups := map[time.Time]*ratioAccum{}
	for _, alloc := range allocs {
		var capacity int
		if alloc.DepartmentID != nil {
			d, ok := depts[*alloc.DepartmentID]
			if !ok {
				continue
			}
			capacity = d.BedCount
		} else {
			b, ok := branches[alloc.BranchID]
			if !ok {
				continue
			}
			capacity = b.TotalBedCount
		}
		period := BucketStart(alloc.RecordDate, g)
		a := groups[period]
		if a == nil {
			a = &ratioAccum{}
			groups[period] = a
		}
		a.num += float64(alloc.BedsOccupied)
		a.den += float64(capacity)
	}
	points := make([]TrendPoint, 0, len(groups))
	for period, a := range groups {
		points = append(points, TrendPoint{Period: period, Metric: MetricBedOccupancy, Value: Pct(a.num, a.den)})
	}
	sortTrend(points)
	return points
}

// CostTrend re-aggregates cost per discharge per bucket of discharge date.
func CostTrend(stays []*records.StayRecord, bills []*records.BillingRecord, g Granularity) []TrendPoint {
	bucketOf := make(map[uuid.UUID]time.Time, len(stays))
	groups := map[time.Time]*ratioAccum{}
	for _, s := range stays {
		if !s.Discharged() {
			continue
		}
		period := BucketStart(*s.DischargedAt, g)
		bucketOf[s.AdmissionID] = period
		a := groups[period]
		if a == nil {
			a = &ratioAccum{}
			groups[period] = a
		}
		a.den++
	}
	for _, b := range bills {
		period, ok := bucketOf[b.AdmissionID]
		if !ok {
			continue
		}
		groups[period].num += b.TotalAmount
	}
	points := make([]TrendPoint, 0, len(groups))
	for period, a := range groups {
		points = append(points, TrendPoint{Period: period, Metric: MetricCostPerDischarge, Value: Ratio(a.num, a.den)})
	}
	sortTrend(points)
	return points
}

// RankComparison orders dimension values descending, breaking ties by
// dimension id ascending, and assigns 1-based ranks. Dimensions with a nil
// value sort after every valued one.
func RankComparison(values map[uuid.UUID]*float64, names map[uuid.UUID]string) []ComparisonRow {
	rows := make([]ComparisonRow, 0, len(values))
	for id, v := range values {
		rows = append(rows, ComparisonRow{DimensionID: id, DimensionName: names[id], Value: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.Value == nil && b.Value == nil:
			return a.DimensionID.String() < b.DimensionID.String()
		case a.Value == nil:
			return false
		case b.Value == nil:
			return true
		case *a.Value != *b.Value:
			return *a.Value > *b.Value
		}
		return a.DimensionID.String() < b.DimensionID.String()
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// CompareStays reduces stays to one value per dimension for the requested
// metric. dimension extracts the grouping id; metric selects the formula.
func CompareStays(stays []*records.StayRecord, metric string, dimension func(*records.StayRecord) uuid.UUID) map[uuid.UUID]*float64 {
	acc := map[uuid.UUID]*ratioAccum{}
	add := func(id uuid.UUID, num, den float64) {
		a := acc[id]
		if a == nil {
			a = &ratioAccum{}
			acc[id] = a
		}
		a.num += num
		a.den += den
	}
	for _, s := range stays {
		id := dimension(s)
		switch metric {
		case MetricAvgLengthOfStay:
			if days, ok := s.LengthOfStayDays(); ok {
				add(id, days, 1)
			}
		case MetricAdmissionDischarges:
			if s.Discharged() {
				add(id, 1, 0)
			}
		case MetricEmergencyPct:
			n := 0.0
			if s.AdmissionType == records.AdmissionEmergency {
				n = 1
			}
			add(id, n, 1)
		}
	}
	values := make(map[uuid.UUID]*float64, len(acc))
	for id, a := range acc {
		switch metric {
		case MetricAdmissionDischarges:
			values[id] = ptr(a.num)
		case MetricEmergencyPct:
			values[id] = Pct(a.num, a.den)
		default:
			values[id] = Ratio(a.num, a.den)
		}
	}
	return values
}

var weekdayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// PeakHours counts admissions per hour of day, 0 through 23, irrespective
// of calendar date. Every hour is present, zero-filled.
func PeakHours(stays []*records.StayRecord) []PeakBucket {
	buckets := make([]PeakBucket, 24)
	for h := range buckets {
		buckets[h] = PeakBucket{Bucket: h, Label: time.Date(0, 1, 1, h, 0, 0, 0, time.UTC).Format("15:00")}
	}
	for _, s := range stays {
		buckets[s.AdmittedAt.Hour()].Count++
	}
	return buckets
}

// PeakWeekdays counts admissions per day of week, Monday first. Every day
// is present, zero-filled.
func PeakWeekdays(stays []*records.StayRecord) []PeakBucket {
	buckets := make([]PeakBucket, 7)
	for i := range buckets {
		buckets[i] = PeakBucket{Bucket: i + 1, Label: weekdayLabels[i]}
	}
	for _, s := range stays {
		idx := (int(s.AdmittedAt.Weekday()) + 6) % 7
		buckets[idx].Count++
	}
	return buckets
}
