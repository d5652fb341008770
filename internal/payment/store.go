package payment

import (
	"context"

	"loanbook/pkg/date"
)

// Store is the persistence boundary for payments. Implementations return
// sentinel errors; the service translates them to domain errors.
type Store interface {
	Create(ctx context.Context, p *Payment) (int64, error)
	GetByID(ctx context.Context, paymentID int64) (*Payment, error)
	// ListByLoan returns payments ordered by payment_date, oldest first.
	ListByLoan(ctx context.Context, loanID int64) ([]*Payment, error)
	// ListByDateRange bounds the listing; zero dates leave that side open.
	ListByDateRange(ctx context.Context, loanID int64, from, to date.Date) ([]*Payment, error)
	Update(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, paymentID int64) error
	// UpdateBalance rewrites one payment's running balance during a cascade.
	UpdateBalance(ctx context.Context, paymentID int64, balance float64) error
}
