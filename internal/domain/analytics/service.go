package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospimetrics/hospimetrics/internal/domain/catalog"
	"github.com/hospimetrics/hospimetrics/internal/domain/records"
	"github.com/hospimetrics/hospimetrics/internal/platform/cache"
)

// Service orchestrates the engine: it resolves request filters against the
// catalog, fetches record rows, runs the pure computations, and caches
// results keyed on the full filter tuple.
type Service struct {
	records             records.Repository
	catalog             catalog.Lookup
	cache               cache.Store
	cacheTTL            time.Duration
	thresholds          Thresholds
	transferAsScheduled bool
}

// NewService wires the engine. A nil store disables caching.
func NewService(repo records.Repository, lookup catalog.Lookup, store cache.Store, ttl time.Duration, th Thresholds, transferAsScheduled bool) *Service {
	return &Service{
		records:             repo,
		catalog:             lookup,
		cache:               store,
		cacheTTL:            ttl,
		thresholds:          th,
		transferAsScheduled: transferAsScheduled,
	}
}

// dims is the reference data one request needs: id-keyed capacity maps and
// display names.
type dims struct {
	branches map[uuid.UUID]*catalog.Branch
	depts    map[uuid.UUID]*catalog.Department
	doctors  map[uuid.UUID]*catalog.Doctor
}

func (d *dims) branchName(id uuid.UUID) string {
	if b, ok := d.branches[id]; ok {
		return b.Name
	}
	return ""
}

func (d *dims) deptName(id uuid.UUID) string {
	if dep, ok := d.depts[id]; ok {
		return dep.Name
	}
	return ""
}

// resolve normalizes and validates the filter, then drops filter ids with
// no master record. Unknown ids become warnings, never errors.
func (s *Service) resolve(ctx context.Context, f *Filter) (*dims, []Warning, error) {
	f.Normalize(time.Now().UTC())
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}

	branches, err := s.catalog.ListBranches(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list branches: %w", err)
	}
	d := &dims{
		branches: make(map[uuid.UUID]*catalog.Branch, len(branches)),
		depts:    map[uuid.UUID]*catalog.Department{},
		doctors:  map[uuid.UUID]*catalog.Doctor{},
	}
	for _, b := range branches {
		d.branches[b.ID] = b
	}

	var warnings []Warning
	if len(f.BranchIDs) > 0 {
		kept := f.BranchIDs[:0]
		for _, id := range f.BranchIDs {
			if _, ok := d.branches[id]; !ok {
				warnings = append(warnings, Warning{
					Code:    "unknown_branch",
					Message: fmt.Sprintf("branch %s has no master record and was ignored", id),
				})
				continue
			}
			kept = append(kept, id)
		}
		f.BranchIDs = kept
	}

	depts, err := s.catalog.ListDepartments(ctx, f.BranchIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list departments: %w", err)
	}
	for _, dep := range depts {
		d.depts[dep.ID] = dep
	}
	if len(f.DepartmentIDs) > 0 {
		kept := f.DepartmentIDs[:0]
		for _, id := range f.DepartmentIDs {
			if _, ok := d.depts[id]; !ok {
				warnings = append(warnings, Warning{
					Code:    "unknown_department",
					Message: fmt.Sprintf("department %s has no master record and was ignored", id),
				})
				continue
			}
			kept = append(kept, id)
		}
		f.DepartmentIDs = kept
	}

	doctors, err := s.catalog.ListDoctors(ctx, f.BranchIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list doctors: %w", err)
	}
	for _, doc := range doctors {
		d.doctors[doc.ID] = doc
	}
	return d, warnings, nil
}

// cached runs compute unless the store already holds a fresh result for
// the key. Cache failures degrade to recomputation.
func cached[T any](ctx context.Context, s *Service, key string, compute func() (T, error)) (T, error) {
	var zero T
	if s.cache == nil || s.cacheTTL <= 0 {
		return compute()
	}
	if data, ok := s.cache.Get(ctx, key); ok {
		var out T
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		s.cache.Delete(ctx, key)
	}
	out, err := compute()
	if err != nil {
		return zero, err
	}
	if data, err := json.Marshal(out); err == nil {
		s.cache.Set(ctx, key, data, s.cacheTTL)
	} else {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
	}
	return out, nil
}

// decorate fills display names on KPI rows.
func (d *dims) decorate(rows []KPIRow) []KPIRow {
	for i := range rows {
		rows[i].BranchName = d.branchName(rows[i].BranchID)
		if rows[i].DepartmentID != nil {
			name := d.deptName(*rows[i].DepartmentID)
			rows[i].DepartmentName = &name
		}
	}
	return rows
}

// KPISummary is the headline card set for the full requested range. Nil
// values mean insufficient data.
type KPISummary struct {
	TotalAdmissions    int      `json:"total_admissions"`
	TotalDischarges    int      `json:"total_discharges"`
	AvgLengthOfStay    *float64 `json:"avg_length_of_stay"`
	BedOccupancyPct    *float64 `json:"bed_occupancy_pct"`
	ReadmissionRatePct *float64 `json:"readmission_rate_pct"`
	CostPerDischarge   *float64 `json:"cost_per_discharge"`
	EmergencyPct       *float64 `json:"emergency_pct"`
}

// Summary computes the headline KPI cards over the whole range.
func (s *Service) Summary(ctx context.Context, f Filter) (*KPISummary, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	out, err := cached(ctx, s, f.CacheKey("summary"), func() (*KPISummary, error) {
		rf := f.Records()
		stays, err := s.records.Stays(ctx, rf)
		if err != nil {
			return nil, err
		}
		allocs, err := s.records.Allocations(ctx, rf)
		if err != nil {
			return nil, err
		}
		links, err := s.records.Readmissions(ctx, rf)
		if err != nil {
			return nil, err
		}
		bills, err := s.records.Billing(ctx, rf)
		if err != nil {
			return nil, err
		}

		sum := &KPISummary{TotalAdmissions: len(stays)}
		var stayDays []float64
		var emergencies, discharged int
		dischargedIDs := map[uuid.UUID]bool{}
		for _, st := range stays {
			if st.AdmissionType == records.AdmissionEmergency {
				emergencies++
			}
			if days, ok := st.LengthOfStayDays(); ok {
				stayDays = append(stayDays, days)
				discharged++
				dischargedIDs[st.AdmissionID] = true
			}
		}
		sum.TotalDischarges = discharged
		sum.AvgLengthOfStay = MeanDays(stayDays)
		sum.EmergencyPct = Pct(float64(emergencies), float64(len(stays)))

		var occ ratioAccum
		for _, a := range allocs {
			var capacity int
			if a.DepartmentID != nil {
				dep, ok := d.depts[*a.DepartmentID]
				if !ok {
					continue
				}
				capacity = dep.BedCount
			} else {
				b, ok := d.branches[a.BranchID]
				if !ok {
					continue
				}
				capacity = b.TotalBedCount
			}
			occ.num += float64(a.BedsOccupied)
			occ.den += float64(capacity)
		}
		sum.BedOccupancyPct = Pct(occ.num, occ.den)

		readmitted := map[uuid.UUID]bool{}
		for _, l := range links {
			if dischargedIDs[l.PreviousAdmissionID] {
				readmitted[l.PreviousAdmissionID] = true
			}
		}
		sum.ReadmissionRatePct = Pct(float64(len(readmitted)), float64(discharged))

		var billed float64
		for _, b := range bills {
			if dischargedIDs[b.AdmissionID] {
				billed += b.TotalAmount
			}
		}
		sum.CostPerDischarge = Ratio(billed, float64(discharged))
		return sum, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, warnings, nil
}

// KPIs computes every grouped metric row for the filter at its
// granularity. Output is sparse: groups with no rows are absent.
func (s *Service) KPIs(ctx context.Context, f Filter) ([]KPIRow, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	rows, err := cached(ctx, s, f.CacheKey("kpis"), func() ([]KPIRow, error) {
		rf := f.Records()
		stays, err := s.records.Stays(ctx, rf)
		if err != nil {
			return nil, err
		}
		allocs, err := s.records.Allocations(ctx, rf)
		if err != nil {
			return nil, err
		}
		links, err := s.records.Readmissions(ctx, rf)
		if err != nil {
			return nil, err
		}
		bills, err := s.records.Billing(ctx, rf)
		if err != nil {
			return nil, err
		}
		procs, err := s.records.Procedures(ctx, rf)
		if err != nil {
			return nil, err
		}
		slots, err := s.records.ScheduleSlots(ctx, rf)
		if err != nil {
			return nil, err
		}

		g := f.Granularity
		var rows []KPIRow
		rows = append(rows, AverageLengthOfStay(stays, g)...)
		rows = append(rows, AdmissionDischargeCounts(stays, g)...)
		rows = append(rows, BedOccupancy(allocs, d.branches, d.depts)...)
		rows = append(rows, ReadmissionRate(stays, links, g)...)
		rows = append(rows, ProcedureVolume(procs, g)...)
		rows = append(rows, EmergencyScheduledMix(stays, g, s.transferAsScheduled)...)
		rows = append(rows, DoctorUtilization(slots, d.doctors, d.depts, g)...)
		rows = append(rows, CostPerDischarge(stays, bills, g)...)
		rows = append(rows, OutcomeDistribution(stays, g)...)
		rows = append(rows, ICUVentilatorUtilization(allocs, d.branches, d.depts)...)
		return d.decorate(rows), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rows, warnings, nil
}

// Trends re-buckets one metric at the requested granularity.
func (s *Service) Trends(ctx context.Context, f Filter, metric string) ([]TrendPoint, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	points, err := cached(ctx, s, f.CacheKey("trends:"+metric), func() ([]TrendPoint, error) {
		rf := f.Records()
		switch metric {
		case "admissions", "discharges", MetricAvgLengthOfStay:
			stays, err := s.records.Stays(ctx, rf)
			if err != nil {
				return nil, err
			}
			switch metric {
			case "admissions":
				return AdmissionTrend(stays, f.Granularity), nil
			case "discharges":
				return DischargeTrend(stays, f.Granularity), nil
			}
			return ALOSTrend(stays, f.Granularity), nil
		case MetricBedOccupancy:
			allocs, err := s.records.Allocations(ctx, rf)
			if err != nil {
				return nil, err
			}
			return OccupancyTrend(allocs, d.branches, d.depts, f.Granularity), nil
		case MetricCostPerDischarge:
			stays, err := s.records.Stays(ctx, rf)
			if err != nil {
				return nil, err
			}
			bills, err := s.records.Billing(ctx, rf)
			if err != nil {
				return nil, err
			}
			return CostTrend(stays, bills, f.Granularity), nil
		}
		return nil, fmt.Errorf("%w: unknown trend metric %q", ErrInvalidRange, metric)
	})
	if err != nil {
		return nil, nil, err
	}
	return points, warnings, nil
}

// CompareDepartments ranks departments by one metric over the full range.
func (s *Service) CompareDepartments(ctx context.Context, f Filter, metric string) ([]ComparisonRow, []Warning, error) {
	return s.compare(ctx, f, metric, "departments")
}

// CompareBranches ranks branches by one metric over the full range.
func (s *Service) CompareBranches(ctx context.Context, f Filter, metric string) ([]ComparisonRow, []Warning, error) {
	return s.compare(ctx, f, metric, "branches")
}

func (s *Service) compare(ctx context.Context, f Filter, metric, dimension string) ([]ComparisonRow, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	switch metric {
	case MetricAvgLengthOfStay, MetricAdmissionDischarges, MetricEmergencyPct:
	default:
		return nil, nil, fmt.Errorf("%w: unknown comparison metric %q", ErrInvalidRange, metric)
	}
	rows, err := cached(ctx, s, f.CacheKey("compare:"+dimension+":"+metric), func() ([]ComparisonRow, error) {
		stays, err := s.records.Stays(ctx, f.Records())
		if err != nil {
			return nil, err
		}
		pick := func(st *records.StayRecord) uuid.UUID { return st.BranchID }
		names := map[uuid.UUID]string{}
		if dimension == "departments" {
			pick = func(st *records.StayRecord) uuid.UUID { return st.DepartmentID }
			for id := range d.depts {
				names[id] = d.deptName(id)
			}
		} else {
			for id := range d.branches {
				names[id] = d.branchName(id)
			}
		}
		return RankComparison(CompareStays(stays, metric, pick), names), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rows, warnings, nil
}

// PeakHours counts admissions by hour of day across the range.
func (s *Service) PeakHours(ctx context.Context, f Filter) ([]PeakBucket, []Warning, error) {
	return s.peaks(ctx, f, "hours", PeakHours)
}

// PeakWeekdays counts admissions by day of week across the range.
func (s *Service) PeakWeekdays(ctx context.Context, f Filter) ([]PeakBucket, []Warning, error) {
	return s.peaks(ctx, f, "weekdays", PeakWeekdays)
}

func (s *Service) peaks(ctx context.Context, f Filter, kind string, group func([]*records.StayRecord) []PeakBucket) ([]PeakBucket, []Warning, error) {
	_, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	buckets, err := cached(ctx, s, f.CacheKey("peaks:"+kind), func() ([]PeakBucket, error) {
		stays, err := s.records.Stays(ctx, f.Records())
		if err != nil {
			return nil, err
		}
		return group(stays), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return buckets, warnings, nil
}

// ForecastAdmissions smooths the daily admission count series and
// estimates the next day. Missing days count as zero admissions.
func (s *Service) ForecastAdmissions(ctx context.Context, f Filter, window int) (*ForecastResult, []Warning, error) {
	_, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	res, err := cached(ctx, s, fmt.Sprintf("%s:w%d", f.CacheKey("forecast:admissions"), window), func() (*ForecastResult, error) {
		stays, err := s.records.Stays(ctx, f.Records())
		if err != nil {
			return nil, err
		}
		counts := map[time.Time]float64{}
		for _, st := range stays {
			counts[dayStart(st.AdmittedAt)]++
		}
		return Smooth("admissions", denseCounts(counts, f.DateFrom, f.DateTo), window), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, warnings, nil
}

// ForecastOccupancy smooths the daily bed occupancy percentage series and
// estimates the next day, clamped to physical capacity. Days with no
// allocation rows are carried as unobserved, not as zero occupancy.
func (s *Service) ForecastOccupancy(ctx context.Context, f Filter, window int) (*ForecastResult, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	res, err := cached(ctx, s, fmt.Sprintf("%s:w%d", f.CacheKey("forecast:occupancy"), window), func() (*ForecastResult, error) {
		allocs, err := s.records.Allocations(ctx, f.Records())
		if err != nil {
			return nil, err
		}
		daily := map[time.Time]*ratioAccum{}
		for _, a := range allocs {
			var capacity int
			if a.DepartmentID != nil {
				dep, ok := d.depts[*a.DepartmentID]
				if !ok {
					continue
				}
				capacity = dep.BedCount
			} else {
				b, ok := d.branches[a.BranchID]
				if !ok {
					continue
				}
				capacity = b.TotalBedCount
			}
			day := dayStart(a.RecordDate)
			acc := daily[day]
			if acc == nil {
				acc = &ratioAccum{}
				daily[day] = acc
			}
			acc.num += float64(a.BedsOccupied)
			acc.den += float64(capacity)
		}
		rates := make(map[time.Time]float64, len(daily))
		for day, acc := range daily {
			if v := Pct(acc.num, acc.den); v != nil {
				rates[day] = *v
			}
		}
		res := Smooth(MetricBedOccupancy, denseRates(rates, f.DateFrom, f.DateTo), window)
		return ClampForecast(res, 100), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, warnings, nil
}

// ThresholdAlerts evaluates the fixed-threshold rules: occupancy surge,
// delayed discharge, doctor overutilization.
func (s *Service) ThresholdAlerts(ctx context.Context, f Filter) ([]Alert, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	alerts, err := cached(ctx, s, f.CacheKey("alerts:threshold"), func() ([]Alert, error) {
		rf := f.Records()
		stays, err := s.records.Stays(ctx, rf)
		if err != nil {
			return nil, err
		}
		allocs, err := s.records.Allocations(ctx, rf)
		if err != nil {
			return nil, err
		}
		slots, err := s.records.ScheduleSlots(ctx, rf)
		if err != nil {
			return nil, err
		}

		var alerts []Alert
		occupancy := BedOccupancy(allocs, d.branches, d.depts)
		alerts = append(alerts, DetectOccupancySurge(occupancy, s.thresholds)...)
		alerts = append(alerts, DetectDelayedDischarges(stays, s.thresholds)...)
		utilization := DoctorUtilization(slots, d.doctors, d.depts, GranularityMonth)
		alerts = append(alerts, DetectDoctorOverutilization(utilization, s.thresholds)...)
		return alerts, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return alerts, warnings, nil
}

// Bottlenecks evaluates the rolling-window rules: emergency surge and
// resource shortage.
func (s *Service) Bottlenecks(ctx context.Context, f Filter) ([]Alert, []Warning, error) {
	d, warnings, err := s.resolve(ctx, &f)
	if err != nil {
		return nil, nil, err
	}
	alerts, err := cached(ctx, s, f.CacheKey("alerts:bottlenecks"), func() ([]Alert, error) {
		rf := f.Records()
		stays, err := s.records.Stays(ctx, rf)
		if err != nil {
			return nil, err
		}
		allocs, err := s.records.Allocations(ctx, rf)
		if err != nil {
			return nil, err
		}
		var alerts []Alert
		alerts = append(alerts, DetectEmergencySurge(stays, s.thresholds)...)
		alerts = append(alerts, DetectResourceShortage(allocs, d.branches, f.DateTo, s.thresholds)...)
		return alerts, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return alerts, warnings, nil
}
