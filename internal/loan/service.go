package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"loanbook/internal/audit"
	"loanbook/internal/platform/metrics"
	"loanbook/internal/platform/middleware"
	"loanbook/internal/schedule"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
	"loanbook/pkg/platform/sentinel"
	txcontext "loanbook/pkg/platform/tx"
)

// Service owns loan lifecycle rules: defaults on create, status transition
// enforcement, and the EMI side effects of rate changes and disbursements.
type Service struct {
	store   Store
	runner  txcontext.Runner
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, runner txcontext.Runner, pub *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, runner: runner, audit: pub, metrics: m, logger: logger}
}

// Create validates and persists a new loan. A zero EMI is derived from the
// reducing-balance formula; a zero sanctioned amount defaults to the principal.
func (s *Service) Create(ctx context.Context, l *Loan) (*Loan, error) {
	if l.Status == "" {
		l.Status = StatusActive
	}
	if l.SanctionedAmount == 0 {
		l.SanctionedAmount = l.PrincipalAmount
	}
	if l.EMIAmount == 0 {
		l.EMIAmount = schedule.EMI(l.PrincipalAmount, l.InterestRate, l.TermMonths)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Create(ctx, l); err != nil {
		return nil, translateStoreErr(err, "loan")
	}

	s.metrics.IncrementLoansCreated()
	s.emit(ctx, audit.ActionLoanCreated, "loan", l.ID, l.ID, fmt.Sprintf("name=%s type=%s", l.Name, l.Type))
	s.logger.Info("loan created", "loan_id", l.ID, "type", l.Type, "principal", l.PrincipalAmount)
	return l, nil
}

func (s *Service) Get(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.store.GetByID(ctx, loanID)
	if err != nil {
		return nil, translateStoreErr(err, "loan")
	}
	return l, nil
}

// List returns loans newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]*Loan, error) {
	if status != "" {
		switch status {
		case StatusPending, StatusActive, StatusClosed:
		default:
			return nil, dErrors.New(dErrors.CodeBadRequest, "status filter must be one of ACTIVE, CLOSED, PENDING")
		}
	}
	loans, err := s.store.List(ctx, status)
	if err != nil {
		return nil, translateStoreErr(err, "loan")
	}
	return loans, nil
}

// Update applies a full replacement of the loan's mutable fields. Status may
// only move forward along PENDING -> ACTIVE -> CLOSED.
func (s *Service) Update(ctx context.Context, l *Loan) (*Loan, error) {
	existing, err := s.store.GetByID(ctx, l.ID)
	if err != nil {
		return nil, translateStoreErr(err, "loan")
	}
	if l.Status == "" {
		l.Status = existing.Status
	}
	if !existing.Status.CanTransition(l.Status) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"status cannot move from %s to %s", existing.Status, l.Status)
	}
	if l.SanctionedAmount == 0 {
		l.SanctionedAmount = existing.SanctionedAmount
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, l); err != nil {
		return nil, translateStoreErr(err, "loan")
	}

	s.emit(ctx, audit.ActionLoanUpdated, "loan", l.ID, l.ID, fmt.Sprintf("status=%s", l.Status))
	return l, nil
}

// Delete removes a loan; payments, rate history, disbursements, and scenarios
// cascade with it.
func (s *Service) Delete(ctx context.Context, loanID int64) error {
	if err := s.store.Delete(ctx, loanID); err != nil {
		return translateStoreErr(err, "loan")
	}
	s.emit(ctx, audit.ActionLoanDeleted, "loan", loanID, loanID, "")
	s.logger.Info("loan deleted", "loan_id", loanID)
	return nil
}

// RecordRateChange appends a rate revision. For FLOATING loans the stored EMI
// is recomputed over the remaining tenure at the new rate, in the same
// transaction as the history row.
func (s *Service) RecordRateChange(ctx context.Context, rc *RateChange) (*RateChange, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.store.GetByID(ctx, rc.LoanID)
		if err != nil {
			return translateStoreErr(err, "loan")
		}
		if _, err := s.store.AddRateChange(ctx, rc); err != nil {
			return translateStoreErr(err, "rate change")
		}
		if l.RateType != RateFloating {
			return nil
		}

		elapsed := date.MonthsBetween(l.StartDate, rc.EffectiveDate)
		remaining := l.TermMonths - elapsed
		if remaining < 1 {
			remaining = 1
		}
		outstanding := schedule.OutstandingAfter(l.PrincipalAmount, l.InterestRate, l.EMIAmount, elapsed)
		l.InterestRate = rc.InterestRate
		l.EMIAmount = schedule.EMI(outstanding, rc.InterestRate, remaining)
		if err := s.store.Update(ctx, l); err != nil {
			return translateStoreErr(err, "loan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.ActionRateChangeRecorded, "rate_change", rc.ID, rc.LoanID,
		fmt.Sprintf("rate=%.2f effective=%s", rc.InterestRate, rc.EffectiveDate))
	return rc, nil
}

func (s *Service) ListRateChanges(ctx context.Context, loanID int64) ([]*RateChange, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	changes, err := s.store.ListRateChanges(ctx, loanID)
	if err != nil {
		return nil, translateStoreErr(err, "rate change")
	}
	return changes, nil
}

// RecordDisbursement releases a tranche of the sanctioned amount. The loan
// principal grows by the tranche and the EMI becomes the caller-provided value
// or, when absent, is recomputed over the remaining tenure.
func (s *Service) RecordDisbursement(ctx context.Context, d *Disbursement) (*Disbursement, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	err := s.runner.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.store.GetByID(ctx, d.LoanID)
		if err != nil {
			return translateStoreErr(err, "loan")
		}

		newPrincipal := l.PrincipalAmount + d.Amount
		if l.SanctionedAmount > 0 && newPrincipal > l.SanctionedAmount {
			return dErrors.Newf(dErrors.CodeUnprocessable,
				"disbursement of %.2f exceeds sanctioned amount %.2f", d.Amount, l.SanctionedAmount)
		}

		if d.NewEMI == 0 {
			elapsed := date.MonthsBetween(l.StartDate, d.DisbursementDate)
			remaining := l.TermMonths - elapsed
			if remaining < 1 {
				remaining = 1
			}
			outstanding := schedule.OutstandingAfter(l.PrincipalAmount, l.InterestRate, l.EMIAmount, elapsed)
			d.NewEMI = schedule.AdjustEMIForDisbursement(outstanding, d.Amount, l.InterestRate, remaining)
		}

		if _, err := s.store.AddDisbursement(ctx, d); err != nil {
			return translateStoreErr(err, "disbursement")
		}

		l.PrincipalAmount = newPrincipal
		l.EMIAmount = d.NewEMI
		if err := s.store.Update(ctx, l); err != nil {
			return translateStoreErr(err, "loan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.ActionDisbursementAdded, "disbursement", d.ID, d.LoanID,
		fmt.Sprintf("amount=%.2f new_emi=%.2f", d.Amount, d.NewEMI))
	return d, nil
}

func (s *Service) ListDisbursements(ctx context.Context, loanID int64) ([]*Disbursement, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	tranches, err := s.store.ListDisbursements(ctx, loanID)
	if err != nil {
		return nil, translateStoreErr(err, "disbursement")
	}
	return tranches, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, entity string, entityID, loanID int64, details string) {
	s.audit.Emit(ctx, audit.Event{
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		LoanID:    loanID,
		RequestID: middleware.GetRequestID(ctx),
		Details:   details,
	})
}

// translateStoreErr maps storage sentinels to coded domain errors.
func translateStoreErr(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrForeignKey):
		return dErrors.New(dErrors.CodeNotFound, "loan not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	case errors.Is(err, sentinel.ErrCheckViolation):
		return dErrors.New(dErrors.CodeValidation, entity+" violates a storage constraint")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}
