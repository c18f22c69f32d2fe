// Package analytics is the computation engine that turns raw operational
// records into KPI rows, trend series, comparisons, forecasts, and alerts.
// All computations are pure and request-scoped; nothing here writes to the
// store.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hospimetrics/hospimetrics/internal/domain/records"
)

// Granularity is the time resolution for bucketed output.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
)

// ParseGranularity validates a granularity token from a request.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(s)) {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter:
		return Granularity(strings.ToLower(s)), nil
	case "":
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("%w: unknown granularity %q", ErrInvalidRange, s)
}

// ErrInvalidRange covers request validation failures: an inverted date
// range or an unknown granularity token. Nothing is computed when it is
// returned.
var ErrInvalidRange = errors.New("invalid range")

// Metric identifiers carried on KPI rows and accepted by trend and
// comparison requests.
const (
	MetricAvgLengthOfStay     = "avg_length_of_stay"
	MetricBedOccupancy        = "bed_occupancy_pct"
	MetricAdmissionDischarges = "admission_discharge_counts"
	MetricReadmissionRate     = "readmission_rate_pct"
	MetricProcedureVolume     = "procedure_volume"
	MetricEmergencyPct        = "emergency_pct"
	MetricScheduledPct        = "scheduled_pct"
	MetricDoctorUtilization   = "doctor_utilization_pct"
	MetricCostPerDischarge    = "cost_per_discharge"
	MetricOutcomeCount        = "outcome_count"
	MetricICUUtilization      = "icu_utilization_pct"
	MetricVentUtilization     = "ventilator_utilization_pct"
)

// Filter narrows every engine operation. Empty ID slices mean "all";
// DateTo is inclusive of the whole calendar day.
type Filter struct {
	BranchIDs     []uuid.UUID `json:"branch_ids,omitempty"`
	DepartmentIDs []uuid.UUID `json:"department_ids,omitempty"`
	DateFrom      time.Time   `json:"date_from"`
	DateTo        time.Time   `json:"date_to"`
	Granularity   Granularity `json:"granularity"`
}

// Normalize fills request defaults: trailing 12 months ending today, month
// granularity.
func (f *Filter) Normalize(now time.Time) {
	if f.DateTo.IsZero() {
		y, m, d := now.Date()
		f.DateTo = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if f.DateFrom.IsZero() {
		f.DateFrom = f.DateTo.AddDate(0, -12, 0)
	}
	if f.Granularity == "" {
		f.Granularity = GranularityMonth
	}
}

// Validate rejects inverted ranges before any computation runs.
func (f Filter) Validate() error {
	if f.DateFrom.After(f.DateTo) {
		return fmt.Errorf("%w: date_from %s is after date_to %s",
			ErrInvalidRange, f.DateFrom.Format("2006-01-02"), f.DateTo.Format("2006-01-02"))
	}
	switch f.Granularity {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter:
	default:
		return fmt.Errorf("%w: unknown granularity %q", ErrInvalidRange, f.Granularity)
	}
	return nil
}

// Records converts the filter for the record repository.
func (f Filter) Records() records.Filter {
	return records.Filter{
		BranchIDs:     f.BranchIDs,
		DepartmentIDs: f.DepartmentIDs,
		DateFrom:      f.DateFrom,
		DateTo:        f.DateTo,
	}
}

// CacheKey derives a deterministic cache key from the operation name and
// the full filter tuple. ID sets are sorted so equivalent filters share a
// key.
func (f Filter) CacheKey(op string) string {
	return fmt.Sprintf("analytics:%s:%s:%s:%s:%s:%s",
		op, joinSorted(f.BranchIDs), joinSorted(f.DepartmentIDs),
		f.DateFrom.Format("2006-01-02"), f.DateTo.Format("2006-01-02"), f.Granularity)
}

func joinSorted(ids []uuid.UUID) string {
	if len(ids) == 0 {
		return "all"
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	sort.Strings(ss)
	return strings.Join(ss, ",")
}

// KPIRow is one computed metric value for a grouping key and time bucket.
// Value is nil when the group has insufficient data (zero denominator);
// callers must never read nil as zero.
type KPIRow struct {
	BranchID       uuid.UUID      `json:"branch_id"`
	BranchName     string         `json:"branch_name,omitempty"`
	DepartmentID   *uuid.UUID     `json:"department_id,omitempty"`
	DepartmentName *string        `json:"department_name,omitempty"`
	DoctorID       *uuid.UUID     `json:"doctor_id,omitempty"`
	Period         time.Time      `json:"period"`
	Hour           *int           `json:"hour,omitempty"`
	ProcedureCode  *string        `json:"procedure_code,omitempty"`
	OutcomeCode    *string        `json:"outcome_code,omitempty"`
	Metric         string         `json:"metric_name"`
	Value          *float64       `json:"value"`
	Counts         map[string]int `json:"supporting_counts,omitempty"`
}

// TrendPoint is one bucket of a re-aggregated series.
type TrendPoint struct {
	Period time.Time `json:"period"`
	Metric string    `json:"metric_name"`
	Value  *float64  `json:"value"`
}

// ComparisonRow ranks one dimension value (department or branch) over the
// full requested range. Rank starts at 1 for the highest value.
type ComparisonRow struct {
	DimensionID   uuid.UUID `json:"dimension_id"`
	DimensionName string    `json:"dimension_name"`
	Value         *float64  `json:"value"`
	Rank          int       `json:"rank"`
}

// PeakBucket is one hour-of-day or day-of-week bucket of admission counts.
type PeakBucket struct {
	Bucket int    `json:"bucket"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// ForecastPoint is one smoothed observation of a dense series. Observed is
// nil for rate metrics on days with no measurement.
type ForecastPoint struct {
	Period   time.Time `json:"period"`
	Observed *float64  `json:"observed_value,omitempty"`
	Smoothed float64   `json:"smoothed_value"`
}

// ForecastResult carries the smoothed series plus the one-step estimate
// for the period after the last observation.
type ForecastResult struct {
	Metric     string          `json:"metric_name"`
	Window     int             `json:"window"`
	Points     []ForecastPoint `json:"points"`
	NextPeriod time.Time       `json:"next_period"`
	NextValue  *float64        `json:"forecast_for_next_period"`
}

// Alert severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Alert rule identifiers.
const (
	RuleBedOccupancySurge     = "bed_occupancy_surge"
	RuleDelayedDischarge      = "delayed_discharge"
	RuleDoctorOverutilization = "doctor_overutilization"
	RuleEmergencySurge        = "emergency_surge"
	RuleResourceShortage      = "resource_shortage"
)

// Alert is one deduplicated threshold violation. Alerts are stateless and
// recomputed fresh on every call.
type Alert struct {
	RuleID       string     `json:"rule_id"`
	Severity     string     `json:"severity"`
	BranchID     uuid.UUID  `json:"branch_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	DoctorID     *uuid.UUID `json:"doctor_id,omitempty"`
	WindowStart  time.Time  `json:"window_start"`
	WindowEnd    time.Time  `json:"window_end"`
	Observed     float64    `json:"observed_value"`
	Threshold    float64    `json:"threshold"`
}

// Warning reports a non-fatal request issue, such as a filter id with no
// master record.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
