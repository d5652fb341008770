package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"loanbook/internal/audit"
	"loanbook/internal/loan"
	"loanbook/internal/platform/metrics"
	"loanbook/internal/platform/middleware"
	"loanbook/internal/schedule"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
	"loanbook/pkg/money"
	"loanbook/pkg/platform/sentinel"
	txcontext "loanbook/pkg/platform/tx"
)

// LoanSource exposes the loan fields the payment service needs.
type LoanSource interface {
	GetByID(ctx context.Context, loanID int64) (*loan.Loan, error)
}

// Service records payments and maintains the balance invariant: after any
// mutation, every payment's balance_remaining reflects the chronological
// history starting from the loan principal.
type Service struct {
	store   Store
	loans   LoanSource
	runner  txcontext.Runner
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, loans LoanSource, runner txcontext.Runner, pub *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, loans: loans, runner: runner, audit: pub, metrics: m, logger: logger}
}

// Record validates and persists a payment, then cascades balances. When no
// principal/interest split is supplied one is derived from the payment type.
func (s *Service) Record(ctx context.Context, p *Payment) (*Payment, error) {
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, p.LoanID)
		if err != nil {
			return translate(err, "loan")
		}
		if err := s.deriveSplit(ctx, p, l); err != nil {
			return err
		}
		if _, err := s.store.Create(ctx, p); err != nil {
			return translate(err, "payment")
		}
		return s.cascade(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementPaymentsRecorded(string(p.Type))
	s.emit(ctx, audit.ActionPaymentRecorded, p)
	s.logger.Info("payment recorded",
		"payment_id", p.ID, "loan_id", p.LoanID, "type", p.Type, "amount", p.TotalAmount)

	recorded, err := s.store.GetByID(ctx, p.ID)
	if err != nil {
		return nil, translate(err, "payment")
	}
	return recorded, nil
}

func (s *Service) Get(ctx context.Context, paymentID int64) (*Payment, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, translate(err, "payment")
	}
	return p, nil
}

// ListByLoan returns a loan's payments oldest first, optionally bounded by
// payment date.
func (s *Service) ListByLoan(ctx context.Context, loanID int64, from, to date.Date) ([]*Payment, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, translate(err, "loan")
	}
	payments, err := s.store.ListByDateRange(ctx, loanID, from, to)
	if err != nil {
		return nil, translate(err, "payment")
	}
	return payments, nil
}

// Update replaces a payment's mutable fields and cascades. Payments cannot move
// between loans.
func (s *Service) Update(ctx context.Context, p *Payment) (*Payment, error) {
	existing, err := s.store.GetByID(ctx, p.ID)
	if err != nil {
		return nil, translate(err, "payment")
	}
	p.LoanID = existing.LoanID
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, p.LoanID)
		if err != nil {
			return translate(err, "loan")
		}
		if err := s.store.Update(ctx, p); err != nil {
			return translate(err, "payment")
		}
		return s.cascade(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.ActionPaymentUpdated, p)

	updated, err := s.store.GetByID(ctx, p.ID)
	if err != nil {
		return nil, translate(err, "payment")
	}
	return updated, nil
}

// Delete removes a payment and cascades the survivors.
func (s *Service) Delete(ctx context.Context, paymentID int64) error {
	existing, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return translate(err, "payment")
	}

	err = s.runner.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.loans.GetByID(ctx, existing.LoanID)
		if err != nil {
			return translate(err, "loan")
		}
		if err := s.store.Delete(ctx, paymentID); err != nil {
			return translate(err, "payment")
		}
		return s.cascade(ctx, l)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.ActionPaymentDeleted, existing)
	s.logger.Info("payment deleted", "payment_id", paymentID, "loan_id", existing.LoanID)
	return nil
}

// cascade recomputes every payment balance for the loan, oldest first, from
// the loan principal. Only PAID principal reduces the balance; pending and
// missed rows carry the running balance unchanged.
func (s *Service) cascade(ctx context.Context, l *loan.Loan) error {
	payments, err := s.store.ListByLoan(ctx, l.ID)
	if err != nil {
		return translate(err, "payment")
	}

	balance := l.PrincipalAmount
	rewritten := 0
	for _, p := range payments {
		if p.Status == StatusPaid {
			balance -= p.PrincipalComponent
			if balance < 0 {
				balance = 0
			}
			balance = money.Round(balance)
		}
		if !money.Equal(p.BalanceRemaining, balance) {
			if err := s.store.UpdateBalance(ctx, p.ID, balance); err != nil {
				return translate(err, "payment")
			}
			rewritten++
		}
	}
	s.metrics.ObserveCascadeLength(rewritten)
	return nil
}

// deriveSplit fills in zero principal/interest components from the payment
// type. EMI splits against the current outstanding at the loan rate.
func (s *Service) deriveSplit(ctx context.Context, p *Payment, l *loan.Loan) error {
	if p.PrincipalComponent != 0 || p.InterestComponent != 0 {
		return nil
	}
	body := p.TotalAmount - p.Charges
	if body < 0 {
		return dErrors.New(dErrors.CodeValidation, "charges cannot exceed total_amount")
	}

	switch p.Type {
	case TypeCharges:
		p.Charges = p.TotalAmount
	case TypePreEMI:
		// Pre-EMI services interest only; principal is untouched.
		p.InterestComponent = money.Round(body)
	case TypePrepayment, TypePartial:
		p.PrincipalComponent = money.Round(body)
	default:
		outstanding, err := s.currentOutstanding(ctx, l)
		if err != nil {
			return err
		}
		p.PrincipalComponent, p.InterestComponent = schedule.Split(body, outstanding, l.InterestRate)
	}
	return nil
}

// currentOutstanding is the latest PAID balance, or the principal when no
// payment has settled yet.
func (s *Service) currentOutstanding(ctx context.Context, l *loan.Loan) (float64, error) {
	payments, err := s.store.ListByLoan(ctx, l.ID)
	if err != nil {
		return 0, translate(err, "payment")
	}
	outstanding := l.PrincipalAmount
	for _, p := range payments {
		if p.Status == StatusPaid {
			outstanding = p.BalanceRemaining
		}
	}
	return outstanding, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, p *Payment) {
	s.audit.Emit(ctx, audit.Event{
		Action:    action,
		Entity:    "payment",
		EntityID:  p.ID,
		LoanID:    p.LoanID,
		RequestID: middleware.GetRequestID(ctx),
		Details:   fmt.Sprintf("type=%s amount=%.2f status=%s", p.Type, p.TotalAmount, p.Status),
	})
}

func applyDefaults(p *Payment) {
	if p.Type == "" {
		p.Type = TypeEMI
	}
	if p.Status == "" {
		p.Status = StatusPaid
	}
	if p.ScheduledDate.IsZero() {
		p.ScheduledDate = p.PaymentDate
	}
}

func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrForeignKey):
		return dErrors.New(dErrors.CodeNotFound, "loan not found")
	case errors.Is(err, sentinel.ErrCheckViolation):
		return dErrors.New(dErrors.CodeValidation, entity+" violates a storage constraint")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}
