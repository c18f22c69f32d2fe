package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepositoryPG creates a Postgres-backed Repository.
func NewRepositoryPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// where appends branch/department clauses for the given column aliases.
func where(f Filter, branchCol, deptCol string, args []interface{}) (string, []interface{}) {
	clause := ""
	if len(f.BranchIDs) > 0 {
		args = append(args, f.BranchIDs)
		clause += fmt.Sprintf(" AND %s = ANY($%d)", branchCol, len(args))
	}
	if deptCol != "" && len(f.DepartmentIDs) > 0 {
		args = append(args, f.DepartmentIDs)
		clause += fmt.Sprintf(" AND %s = ANY($%d)", deptCol, len(args))
	}
	return clause, args
}

func (r *repoPG) Stays(ctx context.Context, f Filter) ([]*StayRecord, error) {
	args := []interface{}{f.DateFrom, f.End()}
	clause, args := where(f, "a.branch_id", "a.department_id", args)

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.patient_id, a.branch_id, a.department_id,
		       a.admission_type, a.diagnosis_category, a.admitted_at,
		       d.discharged_at, d.outcome_code
		FROM admissions a
		LEFT JOIN discharges d ON d.admission_id = a.id
		WHERE a.admitted_at >= $1 AND a.admitted_at < $2`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*StayRecord
	for rows.Next() {
		var s StayRecord
		if err := rows.Scan(&s.AdmissionID, &s.PatientID, &s.BranchID, &s.DepartmentID,
			&s.AdmissionType, &s.DiagnosisCategory, &s.AdmittedAt,
			&s.DischargedAt, &s.OutcomeCode); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *repoPG) Procedures(ctx context.Context, f Filter) ([]*ProcedureRecord, error) {
	args := []interface{}{f.DateFrom, f.End()}
	clause, args := where(f, "a.branch_id", "a.department_id", args)

	rows, err := r.pool.Query(ctx, `
		SELECT p.admission_id, a.branch_id, a.department_id,
		       p.procedure_code, p.doctor_id, p.performed_at, p.duration_minutes
		FROM procedures p
		JOIN admissions a ON a.id = p.admission_id
		WHERE p.performed_at >= $1 AND p.performed_at < $2`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ProcedureRecord
	for rows.Next() {
		var p ProcedureRecord
		if err := rows.Scan(&p.AdmissionID, &p.BranchID, &p.DepartmentID,
			&p.ProcedureCode, &p.DoctorID, &p.PerformedAt, &p.DurationMinutes); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *repoPG) ScheduleSlots(ctx context.Context, f Filter) ([]*ScheduleSlot, error) {
	args := []interface{}{f.DateFrom, f.DateTo}
	query := `
		SELECT ds.doctor_id, ds.slot_date, ds.slot_type, ds.is_booked
		FROM doctor_schedules ds
		WHERE ds.slot_date >= $1 AND ds.slot_date <= $2`

	if len(f.BranchIDs) > 0 {
		args = append(args, f.BranchIDs)
		query = `
		SELECT ds.doctor_id, ds.slot_date, ds.slot_type, ds.is_booked
		FROM doctor_schedules ds
		JOIN doctors doc ON doc.id = ds.doctor_id
		JOIN departments dp ON dp.id = doc.department_id
		WHERE ds.slot_date >= $1 AND ds.slot_date <= $2
		  AND dp.branch_id = ANY($3)`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ScheduleSlot
	for rows.Next() {
		var s ScheduleSlot
		if err := rows.Scan(&s.DoctorID, &s.SlotDate, &s.SlotType, &s.Booked); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *repoPG) Billing(ctx context.Context, f Filter) ([]*BillingRecord, error) {
	args := []interface{}{f.DateFrom, f.End()}
	clause, args := where(f, "a.branch_id", "a.department_id", args)

	rows, err := r.pool.Query(ctx, `
		SELECT b.admission_id, a.branch_id, a.department_id,
		       b.total_amount, b.insurance_amount, b.patient_amount, b.billed_at
		FROM billing b
		JOIN admissions a ON a.id = b.admission_id
		WHERE a.admitted_at >= $1 AND a.admitted_at < $2`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BillingRecord
	for rows.Next() {
		var b BillingRecord
		if err := rows.Scan(&b.AdmissionID, &b.BranchID, &b.DepartmentID,
			&b.TotalAmount, &b.InsuranceAmount, &b.PatientAmount, &b.BilledAt); err != nil {
			return nil, err
		}
		items = append(items, &b)
	}
	return items, rows.Err()
}

func (r *repoPG) Allocations(ctx context.Context, f Filter) ([]*AllocationRecord, error) {
	args := []interface{}{f.DateFrom, f.DateTo}
	clause, args := where(f, "ra.branch_id", "ra.department_id", args)

	rows, err := r.pool.Query(ctx, `
		SELECT ra.branch_id, ra.department_id, ra.record_date, ra.record_hour,
		       ra.beds_occupied, ra.icu_occupied, ra.ventilators_used
		FROM resource_allocation ra
		WHERE ra.record_date >= $1 AND ra.record_date <= $2`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AllocationRecord
	for rows.Next() {
		var a AllocationRecord
		if err := rows.Scan(&a.BranchID, &a.DepartmentID, &a.RecordDate, &a.RecordHour,
			&a.BedsOccupied, &a.ICUOccupied, &a.VentilatorsUsed); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

func (r *repoPG) Readmissions(ctx context.Context, f Filter) ([]*ReadmissionLink, error) {
	args := []interface{}{f.DateFrom, f.End()}
	clause, args := where(f, "a.branch_id", "a.department_id", args)

	rows, err := r.pool.Query(ctx, `
		SELECT rl.previous_admission_id, rl.new_admission_id, rl.days_since_discharge
		FROM readmissions rl
		JOIN admissions a ON a.id = rl.previous_admission_id
		WHERE a.admitted_at >= $1 AND a.admitted_at < $2`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ReadmissionLink
	for rows.Next() {
		var l ReadmissionLink
		if err := rows.Scan(&l.PreviousAdmissionID, &l.NewAdmissionID, &l.DaysSinceDischarge); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}
