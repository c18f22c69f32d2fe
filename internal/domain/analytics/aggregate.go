package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hospimetrics/hospimetrics/internal/domain/catalog"
	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

// groupKey identifies one aggregation group. The zero department id with
// hasDept=false means a branch-level group. extra carries a procedure
// code, outcome code, or doctor id when the metric groups by one.
type groupKey struct {
	branch  uuid.UUID
	dept    uuid.UUID
	hasDept bool
	bucket  time.Time
	hour    int
	extra   string
}

func stayKey(s *records.StayRecord, bucket time.Time) groupKey {
	return groupKey{branch: s.BranchID, dept: s.DepartmentID, hasDept: true, bucket: bucket, hour: -1}
}

func (k groupKey) row(metric string) KPIRow {
	r := KPIRow{BranchID: k.branch, Period: k.bucket, Metric: metric}
	if k.hasDept {
		d := k.dept
		r.DepartmentID = &d
	}
	if k.hour >= 0 {
		h := k.hour
		r.Hour = &h
	}
	return r
}

// sortKPIRows orders output deterministically so aggregation over any
// input ordering produces the same slice.
func sortKPIRows(rows []KPIRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
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
		if !a.Period.Equal(b.Period) {
			return a.Period.Before(b.Period)
		}
		ah, bh := -1, -1
		if a.Hour != nil {
			ah = *a.Hour
		}
		if b.Hour != nil {
			bh = *b.Hour
		}
		if ah != bh {
			return ah < bh
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return rowExtra(a) < rowExtra(b)
	})
}

func rowExtra(r KPIRow) string {
	switch {
	case r.ProcedureCode != nil:
		return *r.ProcedureCode
	case r.OutcomeCode != nil:
		return *r.OutcomeCode
	case r.DoctorID != nil:
		return r.DoctorID.String()
	}
	return ""
}

// AverageLengthOfStay computes mean stay duration in days per
// (branch, department, bucket of discharge date). Open stays are skipped;
// a group forms only when at least one completed stay exists.
func AverageLengthOfStay(stays []*records.StayRecord, g Granularity) []KPIRow {
	groups := map[groupKey][]float64{}
	for _, s := range stays {
		days, ok := s.LengthOfStayDays()
		if !ok {
			continue
		}
		k := stayKey(s, BucketStart(*s.DischargedAt, g))
		groups[k] = append(groups[k], days)
	}
	rows := make([]KPIRow, 0, len(groups))
	for k, days := range groups {
		r := k.row(MetricAvgLengthOfStay)
		r.Value = MeanDays(days)
		r.Counts = map[string]int{"stays": len(days)}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// AdmissionDischargeCounts counts matched admission/discharge pairs per
// (branch, department, bucket of admission date). An admission without a
// discharge is excluded entirely, keeping the two counts equal.
func AdmissionDischargeCounts(stays []*records.StayRecord, g Granularity) []KPIRow {
	groups := map[groupKey]int{}
	for _, s := range stays {
		if !s.Discharged() {
			continue
		}
		groups[stayKey(s, BucketStart(s.AdmittedAt, g))]++
	}
	rows := make([]KPIRow, 0, len(groups))
	for k, n := range groups {
		r := k.row(MetricAdmissionDischarges)
		r.Value = ptr(float64(n))
		r.Counts = map[string]int{"admissions": n, "discharges": n}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// BedOccupancy computes occupancy percentage per allocation row. Capacity
// comes from the department's bed count when the row is department-scoped,
// else the branch total. Zero capacity yields a nil value, never an error.
func BedOccupancy(allocs []*records.AllocationRecord, branches map[uuid.UUID]*catalog.Branch, depts map[uuid.UUID]*catalog.Department) []KPIRow {
	rows := make([]KPIRow, 0, len(allocs))
	for _, a := range allocs {
		k := groupKey{branch: a.BranchID, bucket: dayStart(a.RecordDate), hour: a.RecordHour}
		var capacity int
		if a.DepartmentID != nil {
			d, ok := depts[*a.DepartmentID]
			if !ok {
				continue
			}
			k.dept, k.hasDept = d.ID, true
			capacity = d.BedCount
		} else {
			b, ok := branches[a.BranchID]
			if !ok {
				continue
			}
			capacity = b.TotalBedCount
		}
		r := k.row(MetricBedOccupancy)
		r.Value = Pct(float64(a.BedsOccupied), float64(capacity))
		r.Counts = map[string]int{"beds_occupied": a.BedsOccupied, "total_beds": capacity}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// ReadmissionRate computes the 30-day readmission percentage per
// (branch, bucket of discharge date): distinct previous admissions that
// led to a readmission over distinct discharged admissions.
func ReadmissionRate(stays []*records.StayRecord, links []*records.ReadmissionLink, g Granularity) []KPIRow {
	byAdmission := make(map[uuid.UUID]*records.StayRecord, len(stays))
	denom := map[groupKey]int{}
	for _, s := range stays {
		byAdmission[s.AdmissionID] = s
		if s.Discharged() {
			k := groupKey{branch: s.BranchID, bucket: BucketStart(*s.DischargedAt, g), hour: -1}
			denom[k]++
		}
	}
	numer := map[groupKey]map[uuid.UUID]bool{}
	for _, l := range links {
		s, ok := byAdmission[l.PreviousAdmissionID]
		if !ok || !s.Discharged() {
			continue
		}
		k := groupKey{branch: s.BranchID, bucket: BucketStart(*s.DischargedAt, g), hour: -1}
		if numer[k] == nil {
			numer[k] = map[uuid.UUID]bool{}
		}
		numer[k][l.PreviousAdmissionID] = true
	}
	rows := make([]KPIRow, 0, len(denom))
	for k, d := range denom {
		n := len(numer[k])
		r := k.row(MetricReadmissionRate)
		r.Value = Pct(float64(n), float64(d))
		r.Counts = map[string]int{"readmissions": n, "discharges": d}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// ProcedureVolume counts procedures per (branch, department, bucket,
// procedure code).
func ProcedureVolume(procs []*records.ProcedureRecord, g Granularity) []KPIRow {
	groups := map[groupKey]int{}
	for _, p := range procs {
		k := groupKey{branch: p.BranchID, dept: p.DepartmentID, hasDept: true,
			bucket: BucketStart(p.PerformedAt, g), hour: -1, extra: p.ProcedureCode}
		groups[k]++
	}
	rows := make([]KPIRow, 0, len(groups))
	for k, n := range groups {
		r := k.row(MetricProcedureVolume)
		code := k.extra
		r.ProcedureCode = &code
		r.Value = ptr(float64(n))
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// EmergencyScheduledMix computes the emergency and scheduled percentage of
// admissions per (branch, department, bucket of admission date). Transfer
// admissions count toward scheduled when transferAsScheduled is set;
// percentages need not sum to 100 when other types exist.
func EmergencyScheduledMix(stays []*records.StayRecord, g Granularity, transferAsScheduled bool) []KPIRow {
	type mix struct{ emergency, scheduled, total int }
	groups := map[groupKey]*mix{}
	for _, s := range stays {
		k := stayKey(s, BucketStart(s.AdmittedAt, g))
		m := groups[k]
		if m == nil {
			m = &mix{}
			groups[k] = m
		}
		m.total++
		switch s.AdmissionType {
		case records.AdmissionEmergency:
			m.emergency++
		case records.AdmissionScheduled:
			m.scheduled++
		case records.AdmissionTransfer:
			if transferAsScheduled {
				m.scheduled++
			}
		}
	}
	rows := make([]KPIRow, 0, 2*len(groups))
	for k, m := range groups {
		counts := map[string]int{"emergency": m.emergency, "scheduled": m.scheduled, "total": m.total}
		e := k.row(MetricEmergencyPct)
		e.Value = Pct(float64(m.emergency), float64(m.total))
		e.Counts = counts
		s := k.row(MetricScheduledPct)
		s.Value = Pct(float64(m.scheduled), float64(m.total))
		s.Counts = counts
		rows = append(rows, e, s)
	}
	sortKPIRows(rows)
	return rows
}

// DoctorUtilization computes booked over total schedule slots per
// (doctor, bucket of slot date). Branch and department attribution follows
// the doctor's department; slots for doctors without a master record are
// skipped.
func DoctorUtilization(slots []*records.ScheduleSlot, doctors map[uuid.UUID]*catalog.Doctor, depts map[uuid.UUID]*catalog.Department, g Granularity) []KPIRow {
	type tally struct{ booked, total int }
	groups := map[groupKey]*tally{}
	for _, s := range slots {
		doc, ok := doctors[s.DoctorID]
		if !ok {
			continue
		}
		dep, ok := depts[doc.DepartmentID]
		if !ok {
			continue
		}
		k := groupKey{branch: dep.BranchID, dept: dep.ID, hasDept: true,
			bucket: BucketStart(s.SlotDate, g), hour: -1, extra: doc.ID.String()}
		t := groups[k]
		if t == nil {
			t = &tally{}
			groups[k] = t
		}
		t.total++
		if s.Booked {
			t.booked++
		}
	}
	rows := make([]KPIRow, 0, len(groups))
	for k, t := range groups {
		r := k.row(MetricDoctorUtilization)
		id, err := uuid.Parse(k.extra)
		if err != nil {
			continue
		}
		r.DoctorID = &id
		r.Value = Pct(float64(t.booked), float64(t.total))
		r.Counts = map[string]int{"booked_slots": t.booked, "total_slots": t.total}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// CostPerDischarge divides billed amounts by distinct discharged
// admissions per (branch, department, bucket of discharge date).
func CostPerDischarge(stays []*records.StayRecord, bills []*records.BillingRecord, g Granularity) []KPIRow {
	byAdmission := make(map[uuid.UUID]groupKey, len(stays))
	denom := map[groupKey]int{}
	for _, s := range stays {
		if !s.Discharged() {
			continue
		}
		k := stayKey(s, BucketStart(*s.DischargedAt, g))
		byAdmission[s.AdmissionID] = k
		denom[k]++
	}
	sums := map[groupKey]float64{}
	for _, b := range bills {
		k, ok := byAdmission[b.AdmissionID]
		if !ok {
			continue
		}
		sums[k] += b.TotalAmount
	}
	rows := make([]KPIRow, 0, len(denom))
	for k, d := range denom {
		r := k.row(MetricCostPerDischarge)
		r.Value = Ratio(sums[k], float64(d))
		r.Counts = map[string]int{"discharges": d}
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// OutcomeDistribution counts discharges per (branch, department, bucket of
// discharge date, outcome code). Codes outside the well-known set are
// counted under their raw value.
func OutcomeDistribution(stays []*records.StayRecord, g Granularity) []KPIRow {
	groups := map[groupKey]int{}
	for _, s := range stays {
		if !s.Discharged() || s.OutcomeCode == nil {
			continue
		}
		k := stayKey(s, BucketStart(*s.DischargedAt, g))
		k.extra = *s.OutcomeCode
		groups[k]++
	}
	rows := make([]KPIRow, 0, len(groups))
	for k, n := range groups {
		r := k.row(MetricOutcomeCount)
		code := k.extra
		r.OutcomeCode = &code
		r.Value = ptr(float64(n))
		rows = append(rows, r)
	}
	sortKPIRows(rows)
	return rows
}

// ICUVentilatorUtilization computes ICU and ventilator occupancy
// percentages per (branch, date, hour). Only branch-level allocation rows
// and rows from critical-care departments contribute; multiple qualifying
// rows for one key sum their occupancy against the branch capacity.
func ICUVentilatorUtilization(allocs []*records.AllocationRecord, branches map[uuid.UUID]*catalog.Branch, depts map[uuid.UUID]*catalog.Department) []KPIRow {
	type usage struct{ icu, vents int }
	groups := map[groupKey]*usage{}
	for _, a := range allocs {
		if a.DepartmentID != nil {
			d, ok := depts[*a.DepartmentID]
			if !ok || !d.IsCriticalCare {
				continue
			}
		}
		if _, ok := branches[a.BranchID]; !ok {
			continue
		}
		k := groupKey{branch: a.BranchID, bucket: dayStart(a.RecordDate), hour: a.RecordHour}
		u := groups[k]
		if u == nil {
			u = &usage{}
			groups[k] = u
		}
		u.icu += a.ICUOccupied
		u.vents += a.VentilatorsUsed
	}
	rows := make([]KPIRow, 0, 2*len(groups))
	for k, u := range groups {
		b := branches[k.branch]
		icu := k.row(MetricICUUtilization)
		icu.Value = Pct(float64(u.icu), float64(b.ICUBedCount))
		icu.Counts = map[string]int{"icu_occupied": u.icu, "icu_beds": b.ICUBedCount}
		vent := k.row(MetricVentUtilization)
		vent.Value = Pct(float64(u.vents), float64(b.VentilatorCount))
		vent.Counts = map[string]int{"ventilators_used": u.vents, "ventilator_count": b.VentilatorCount}
		rows = append(rows, icu, vent)
	}
	sortKPIRows(rows)
	return rows
}
