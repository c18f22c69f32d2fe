package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested branch, department, or doctor
// has no master record.
var ErrNotFound = errors.New("catalog: not found")

type lookupPG struct{ pool *pgxpool.Pool }

// NewLookupPG creates a Postgres-backed Lookup.
func NewLookupPG(pool *pgxpool.Pool) Lookup { return &lookupPG{pool: pool} }

const branchCols = `id, name, city, total_bed_count, icu_bed_count, ventilator_count`

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.City, &b.TotalBedCount, &b.ICUBedCount, &b.VentilatorCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *lookupPG) Branch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	return scanBranch(r.pool.QueryRow(ctx, `SELECT `+branchCols+` FROM hospital_branches WHERE id = $1`, id))
}

const deptCols = `id, branch_id, code, name, bed_count, is_critical_care`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.BranchID, &d.Code, &d.Name, &d.BedCount, &d.IsCriticalCare)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *lookupPG) Department(ctx context.Context, id uuid.UUID) (*Department, error) {
	return scanDepartment(r.pool.QueryRow(ctx, `SELECT `+deptCols+` FROM departments WHERE id = $1`, id))
}

func (r *lookupPG) Doctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.pool.QueryRow(ctx, `SELECT id, department_id, name FROM doctors WHERE id = $1`, id).
		Scan(&d.ID, &d.DepartmentID, &d.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *lookupPG) ListBranches(ctx context.Context) ([]*Branch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+branchCols+` FROM hospital_branches ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *lookupPG) ListDoctors(ctx context.Context, branchIDs []uuid.UUID) ([]*Doctor, error) {
	query := `SELECT doc.id, doc.department_id, doc.name FROM doctors doc`
	var args []interface{}
	if len(branchIDs) > 0 {
		query += ` JOIN departments dp ON dp.id = doc.department_id WHERE dp.branch_id = ANY($1)`
		args = append(args, branchIDs)
	}
	query += ` ORDER BY doc.name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.DepartmentID, &d.Name); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *lookupPG) ListDepartments(ctx context.Context, branchIDs []uuid.UUID) ([]*Department, error) {
	query := `SELECT ` + deptCols + ` FROM departments`
	var args []interface{}
	if len(branchIDs) > 0 {
		query += ` WHERE branch_id = ANY($1)`
		args = append(args, branchIDs)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
