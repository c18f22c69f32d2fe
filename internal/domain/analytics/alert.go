package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hospimetrics/hospimetrics/internal/domain/catalog"
	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

// Thresholds are the named limits the detector evaluates. Boundary
// semantics are inclusive: a value exactly at the threshold triggers.
type Thresholds struct {
	BedOccupancyPct          float64
	LongStayDays             float64
	DoctorUtilizationPct     float64
	EmergencySurgeMultiplier float64
	ShortageHourCount        int
	MovingAverageWindow      int
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BedOccupancyPct:          85,
		LongStayDays:             14,
		DoctorUtilizationPct:     90,
		EmergencySurgeMultiplier: 2,
		ShortageHourCount:        3,
		MovingAverageWindow:      DefaultMovingAverageWindow,
	}
}

// alertKey dedups alerts within one evaluation: at most one alert per
// (rule, branch, department, bucket).
type alertKey struct {
	rule    string
	branch  uuid.UUID
	dept    uuid.UUID
	hasDept bool
	bucket  time.Time
	extra   string
}

// alertSet collapses repeat violations of one key into a single alert
// carrying the worst observed value.
type alertSet struct {
	alerts map[alertKey]Alert
}

func newAlertSet() *alertSet { return &alertSet{alerts: map[alertKey]Alert{}} }

func (s *alertSet) add(k alertKey, a Alert) {
	if prev, ok := s.alerts[k]; ok && prev.Observed >= a.Observed {
		return
	}
	s.alerts[k] = a
}

func (s *alertSet) list() []Alert {
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.BranchID != b.BranchID {
			return a.BranchID.String() < b.BranchID.String()
		}
		ad, bd := "", ""
		if a.DepartmentID != nil {
			ad = a.DepartmentID.String()
		}
		if b.DepartmentID != nil {
			bd = b.DepartmentID.String()
		}
		if ad != bd {
			return ad < bd
		}
		return a.WindowStart.Before(b.WindowStart)
	})
	return out
}

func deptKey(id *uuid.UUID) (uuid.UUID, bool) {
	if id == nil {
		return uuid.UUID{}, false
	}
	return *id, true
}

// DetectOccupancySurge flags every (branch, department?, date, hour)
// whose bed occupancy meets or exceeds the threshold. Repeat rows for one
// hourly bucket keep only the max.
func DetectOccupancySurge(rows []KPIRow, th Thresholds) []Alert {
	set := newAlertSet()
	for _, r := range rows {
		if r.Metric != MetricBedOccupancy || r.Value == nil || *r.Value < th.BedOccupancyPct {
			continue
		}
		start := r.Period
		if r.Hour != nil {
			start = r.Period.Add(time.Duration(*r.Hour) * time.Hour)
		}
		dept, hasDept := deptKey(r.DepartmentID)
		k := alertKey{rule: RuleBedOccupancySurge, branch: r.BranchID, dept: dept, hasDept: hasDept, bucket: start}
		set.add(k, Alert{
			RuleID:       RuleBedOccupancySurge,
			Severity:     SeverityHigh,
			BranchID:     r.BranchID,
			DepartmentID: r.DepartmentID,
			WindowStart:  start,
			WindowEnd:    start.Add(time.Hour),
			Observed:     *r.Value,
			Threshold:    th.BedOccupancyPct,
		})
	}
	return set.list()
}

// DetectDelayedDischarges flags completed stays at or beyond the long-stay
// limit, one alert per (branch, department, discharge day) keeping the
// longest stay.
func DetectDelayedDischarges(stays []*records.StayRecord, th Thresholds) []Alert {
	set := newAlertSet()
	for _, s := range stays {
		days, ok := s.LengthOfStayDays()
		if !ok || days < th.LongStayDays {
			continue
		}
		day := dayStart(*s.DischargedAt)
		dept := s.DepartmentID
		k := alertKey{rule: RuleDelayedDischarge, branch: s.BranchID, dept: dept, hasDept: true, bucket: day}
		d := dept
		set.add(k, Alert{
			RuleID:       RuleDelayedDischarge,
			Severity:     SeverityMedium,
			BranchID:     s.BranchID,
			DepartmentID: &d,
			WindowStart:  dayStart(s.AdmittedAt),
			WindowEnd:    day,
			Observed:     round2(days),
			Threshold:    th.LongStayDays,
		})
	}
	return set.list()
}

// DetectDoctorOverutilization flags doctors whose booked-slot percentage
// over the period meets or exceeds the ceiling.
func DetectDoctorOverutilization(rows []KPIRow, th Thresholds) []Alert {
	set := newAlertSet()
	for _, r := range rows {
		if r.Metric != MetricDoctorUtilization || r.Value == nil || *r.Value < th.DoctorUtilizationPct {
			continue
		}
		dept, hasDept := deptKey(r.DepartmentID)
		k := alertKey{rule: RuleDoctorOverutilization, branch: r.BranchID, dept: dept, hasDept: hasDept, bucket: r.Period}
		if r.DoctorID != nil {
			k.extra = r.DoctorID.String()
		}
		set.add(k, Alert{
			RuleID:       RuleDoctorOverutilization,
			Severity:     SeverityMedium,
			BranchID:     r.BranchID,
			DepartmentID: r.DepartmentID,
			DoctorID:     r.DoctorID,
			WindowStart:  r.Period,
			WindowEnd:    NextBucket(r.Period, GranularityMonth),
			Observed:     *r.Value,
			Threshold:    th.DoctorUtilizationPct,
		})
	}
	return set.list()
}

// DetectEmergencySurge flags days where a branch's emergency admission
// count reaches the surge multiple of its trailing average over the
// preceding window days. A day is only evaluated once a full window of
// history exists for its branch, so the leading edge never misfires on a
// partial average.
func DetectEmergencySurge(stays []*records.StayRecord, th Thresholds) []Alert {
	window := th.MovingAverageWindow
	if window < 1 {
		window = DefaultMovingAverageWindow
	}
	daily := map[uuid.UUID]map[time.Time]float64{}
	first := map[uuid.UUID]time.Time{}
	for _, s := range stays {
		if s.AdmissionType != records.AdmissionEmergency {
			continue
		}
		day := dayStart(s.AdmittedAt)
		if daily[s.BranchID] == nil {
			daily[s.BranchID] = map[time.Time]float64{}
			first[s.BranchID] = day
		} else if day.Before(first[s.BranchID]) {
			first[s.BranchID] = day
		}
		daily[s.BranchID][day]++
	}

	set := newAlertSet()
	for branch, counts := range daily {
		earliest := first[branch].AddDate(0, 0, window)
		for day, n := range counts {
			if day.Before(earliest) {
				continue
			}
			var sum float64
			for i := 1; i <= window; i++ {
				sum += counts[day.AddDate(0, 0, -i)]
			}
			avg := sum / float64(window)
			if avg == 0 || n < avg*th.EmergencySurgeMultiplier {
				continue
			}
			k := alertKey{rule: RuleEmergencySurge, branch: branch, bucket: day}
			set.add(k, Alert{
				RuleID:      RuleEmergencySurge,
				Severity:    SeverityHigh,
				BranchID:    branch,
				WindowStart: day,
				WindowEnd:   day.AddDate(0, 0, 1),
				Observed:    n,
				Threshold:   round2(avg * th.EmergencySurgeMultiplier),
			})
		}
	}
	return set.list()
}

// DetectResourceShortage flags a branch when, over the trailing window
// days ending at the range end, the number of hours at or above the
// occupancy threshold exceeds the allowed count.
func DetectResourceShortage(allocs []*records.AllocationRecord, branches map[uuid.UUID]*catalog.Branch, rangeEnd time.Time, th Thresholds) []Alert {
	window := th.MovingAverageWindow
	if window < 1 {
		window = DefaultMovingAverageWindow
	}
	windowStart := dayStart(rangeEnd).AddDate(0, 0, -(window - 1))

	type hot struct {
		hours int
		worst float64
	}
	over := map[uuid.UUID]*hot{}
	for _, a := range allocs {
		if a.DepartmentID != nil {
			continue
		}
		day := dayStart(a.RecordDate)
		if day.Before(windowStart) || day.After(dayStart(rangeEnd)) {
			continue
		}
		b, ok := branches[a.BranchID]
		if !ok {
			continue
		}
		pct := Pct(float64(a.BedsOccupied), float64(b.TotalBedCount))
		if pct == nil || *pct < th.BedOccupancyPct {
			continue
		}
		h := over[a.BranchID]
		if h == nil {
			h = &hot{}
			over[a.BranchID] = h
		}
		h.hours++
		if *pct > h.worst {
			h.worst = *pct
		}
	}

	set := newAlertSet()
	for branch, h := range over {
		if h.hours <= th.ShortageHourCount {
			continue
		}
		k := alertKey{rule: RuleResourceShortage, branch: branch, bucket: windowStart}
		set.add(k, Alert{
			RuleID:      RuleResourceShortage,
			Severity:    SeverityHigh,
			BranchID:    branch,
			WindowStart: windowStart,
			WindowEnd:   dayStart(rangeEnd).AddDate(0, 0, 1),
			Observed:    float64(h.hours),
			Threshold:   float64(th.ShortageHourCount),
		})
	}
	return set.list()
}
