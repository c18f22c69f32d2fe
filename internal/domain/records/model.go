// Package records gives the analytics engine read-only access to the raw
// operational facts: stays, procedures, schedule slots, billing, resource
// allocation, and readmission links. Rows are append-only; nothing here
// mutates the store.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Admission types.
const (
	AdmissionEmergency = "Emergency"
	AdmissionScheduled = "Scheduled"
	AdmissionTransfer  = "Transfer"
)

// Well-known discharge outcome codes. Rows may carry codes outside this
// list; the engine counts them under their raw code.
const (
	OutcomeRecovered   = "Recovered"
	OutcomeImproved    = "Improved"
	OutcomeTransferred = "Transferred"
	OutcomeDeceased    = "Deceased"
	OutcomeLAMA        = "LAMA"
)

// StayRecord is an admission joined with its discharge, if any. At most one
// discharge exists per admission; an open stay has nil DischargedAt.
type StayRecord struct {
	AdmissionID       uuid.UUID  `db:"admission_id" json:"admission_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	BranchID          uuid.UUID  `db:"branch_id" json:"branch_id"`
	DepartmentID      uuid.UUID  `db:"department_id" json:"department_id"`
	AdmissionType     string     `db:"admission_type" json:"admission_type"`
	DiagnosisCategory string     `db:"diagnosis_category" json:"diagnosis_category"`
	AdmittedAt        time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt      *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	OutcomeCode       *string    `db:"outcome_code" json:"outcome_code,omitempty"`
}

// Discharged reports whether the stay has completed.
func (s *StayRecord) Discharged() bool { return s.DischargedAt != nil }

// LengthOfStayDays returns the stay duration in days for a completed stay,
// and false for an open one.
func (s *StayRecord) LengthOfStayDays() (float64, bool) {
	if s.DischargedAt == nil {
		return 0, false
	}
	return s.DischargedAt.Sub(s.AdmittedAt).Hours() / 24, true
}

// ProcedureRecord is a procedure joined with its admission's grouping keys.
type ProcedureRecord struct {
	AdmissionID     uuid.UUID `db:"admission_id" json:"admission_id"`
	BranchID        uuid.UUID `db:"branch_id" json:"branch_id"`
	DepartmentID    uuid.UUID `db:"department_id" json:"department_id"`
	ProcedureCode   string    `db:"procedure_code" json:"procedure_code"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PerformedAt     time.Time `db:"performed_at" json:"performed_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
}

// ScheduleSlot is one schedulable unit of a doctor's capacity.
type ScheduleSlot struct {
	DoctorID uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotDate time.Time `db:"slot_date" json:"slot_date"`
	SlotType string    `db:"slot_type" json:"slot_type"`
	Booked   bool      `db:"is_booked" json:"is_booked"`
}

// BillingRecord is a bill joined with its admission's grouping keys.
type BillingRecord struct {
	AdmissionID     uuid.UUID `db:"admission_id" json:"admission_id"`
	BranchID        uuid.UUID `db:"branch_id" json:"branch_id"`
	DepartmentID    uuid.UUID `db:"department_id" json:"department_id"`
	TotalAmount     float64   `db:"total_amount" json:"total_amount"`
	InsuranceAmount float64   `db:"insurance_amount" json:"insurance_amount"`
	PatientAmount   float64   `db:"patient_amount" json:"patient_amount"`
	BilledAt        time.Time `db:"billed_at" json:"billed_at"`
}

// AllocationRecord is one resource-occupancy measurement: one row per
// (branch, department-or-null, date, hour).
type AllocationRecord struct {
	BranchID        uuid.UUID  `db:"branch_id" json:"branch_id"`
	DepartmentID    *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	RecordDate      time.Time  `db:"record_date" json:"record_date"`
	RecordHour      int        `db:"record_hour" json:"record_hour"`
	BedsOccupied    int        `db:"beds_occupied" json:"beds_occupied"`
	ICUOccupied     int        `db:"icu_occupied" json:"icu_occupied"`
	VentilatorsUsed int        `db:"ventilators_used" json:"ventilators_used"`
}

// ReadmissionLink ties a new admission back to a previous one discharged at
// most 30 days earlier (by construction of the ingestion window).
type ReadmissionLink struct {
	PreviousAdmissionID uuid.UUID `db:"previous_admission_id" json:"previous_admission_id"`
	NewAdmissionID      uuid.UUID `db:"new_admission_id" json:"new_admission_id"`
	DaysSinceDischarge  int       `db:"days_since_discharge" json:"days_since_discharge"`
}

// Filter narrows record queries. Empty ID slices mean "all"; DateTo is
// inclusive of the full calendar day.
type Filter struct {
	BranchIDs     []uuid.UUID
	DepartmentIDs []uuid.UUID
	DateFrom      time.Time
	DateTo        time.Time
}

// End returns the exclusive upper bound of the filter's time range: the
// start of the day after DateTo.
func (f Filter) End() time.Time {
	y, m, d := f.DateTo.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.DateTo.Location()).AddDate(0, 0, 1)
}
