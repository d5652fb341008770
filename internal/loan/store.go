package loan

import (
	"context"
)

// Store is the persistence boundary for loans and their rate/disbursement
// children. Implementations return sentinel errors from pkg/platform/sentinel;
// services translate them into domain errors.
type Store interface {
	Create(ctx context.Context, l *Loan) (int64, error)
	GetByID(ctx context.Context, loanID int64) (*Loan, error)
	// List returns loans newest first, optionally filtered by status.
	List(ctx context.Context, status Status) ([]*Loan, error)
	Update(ctx context.Context, l *Loan) error
	// Delete removes the loan; dependent rows cascade.
	Delete(ctx context.Context, loanID int64) error

	AddRateChange(ctx context.Context, rc *RateChange) (int64, error)
	// ListRateChanges returns rate history for a loan ordered by effective_date.
	ListRateChanges(ctx context.Context, loanID int64) ([]*RateChange, error)

	AddDisbursement(ctx context.Context, d *Disbursement) (int64, error)
	// ListDisbursements returns tranches ordered by disbursement_date.
	ListDisbursements(ctx context.Context, loanID int64) ([]*Disbursement, error)
}
