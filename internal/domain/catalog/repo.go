package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Lookup provides read-only access to hospital reference data. The
// analytics engine receives it by injection so tests can supply fixtures.
type Lookup interface {
	Branch(ctx context.Context, id uuid.UUID) (*Branch, error)
	Department(ctx context.Context, id uuid.UUID) (*Department, error)
	Doctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListBranches(ctx context.Context) ([]*Branch, error)
	ListDepartments(ctx context.Context, branchIDs []uuid.UUID) ([]*Department, error)
	ListDoctors(ctx context.Context, branchIDs []uuid.UUID) ([]*Doctor, error)
}
