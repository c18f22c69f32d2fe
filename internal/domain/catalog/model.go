package catalog

import (
	"github.com/google/uuid"
)

// Branch maps to the hospital_branches table. Capacity counts are
// non-negative by schema constraint.
type Branch struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	City            *string   `db:"city" json:"city,omitempty"`
	TotalBedCount   int       `db:"total_bed_count" json:"total_bed_count"`
	ICUBedCount     int       `db:"icu_bed_count" json:"icu_bed_count"`
	VentilatorCount int       `db:"ventilator_count" json:"ventilator_count"`
}

// Department maps to the departments table. A department belongs to exactly
// one branch.
type Department struct {
	ID             uuid.UUID `db:"id" json:"id"`
	BranchID       uuid.UUID `db:"branch_id" json:"branch_id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	BedCount       int       `db:"bed_count" json:"bed_count"`
	IsCriticalCare bool      `db:"is_critical_care" json:"is_critical_care"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
}
