package records

import (
	"context"
)

// Repository is the read-only gateway to the operational store. Every
// method returns raw rows matching the filter; grouping and metric
// evaluation happen in the analytics engine, not in SQL.
type Repository interface {
	// Stays returns admissions admitted within the range, joined with
	// their discharge when one exists.
	Stays(ctx context.Context, f Filter) ([]*StayRecord, error)

	// Procedures returns procedure records whose admission matches the
	// filter and whose performed timestamp falls in the range.
	Procedures(ctx context.Context, f Filter) ([]*ProcedureRecord, error)

	// ScheduleSlots returns doctor schedule slots dated within the range.
	// Branch filtering follows the doctor's department.
	ScheduleSlots(ctx context.Context, f Filter) ([]*ScheduleSlot, error)

	// Billing returns billing rows for admissions matching the filter.
	Billing(ctx context.Context, f Filter) ([]*BillingRecord, error)

	// Allocations returns resource-occupancy rows dated within the range.
	Allocations(ctx context.Context, f Filter) ([]*AllocationRecord, error)

	// Readmissions returns readmission links whose previous admission
	// matches the filter.
	Readmissions(ctx context.Context, f Filter) ([]*ReadmissionLink, error)
}
