package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/audit"
	"loanbook/internal/loan"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
	txcontext "loanbook/pkg/platform/tx"
)

type fixture struct {
	svc    *Service
	loans  *loan.InMemoryStore
	store  *InMemoryStore
	loanID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loans := loan.NewInMemoryStore()
	store := NewInMemoryStore(loans)
	pub := audit.NewPublisher(audit.NewInMemoryStore(), logger)
	svc := NewService(store, loans, txcontext.NopRunner{}, pub, nil, logger)

	l := &loan.Loan{
		Name:             "Home Loan HDFC",
		Type:             loan.TypeHome,
		BankName:         "HDFC",
		PrincipalAmount:  500000,
		SanctionedAmount: 500000,
		InterestRate:     8.5,
		RateType:         loan.RateFixed,
		TermMonths:       240,
		StartDate:        date.New(2024, 1, 1),
		EMIAmount:        4339,
		PaymentFrequency: loan.FrequencyMonthly,
		Status:           loan.StatusActive,
	}
	id, err := loans.Create(context.Background(), l)
	require.NoError(t, err)

	return &fixture{svc: svc, loans: loans, store: store, loanID: id}
}

func emiPayment(loanID int64, day date.Date) *Payment {
	return &Payment{
		LoanID:             loanID,
		PaymentDate:        day,
		PrincipalComponent: 3000,
		InterestComponent:  1339,
		TotalAmount:        4339,
		Type:               TypeEMI,
		Status:             StatusPaid,
	}
}

func TestService_Record_CascadesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 2, 1)))
	require.NoError(t, err)
	assert.Equal(t, 497000.0, first.BalanceRemaining)

	second, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 3, 1)))
	require.NoError(t, err)
	assert.Equal(t, 494000.0, second.BalanceRemaining)
}

func TestService_Record_BackdatedPaymentRewritesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 3, 1)))
	require.NoError(t, err)

	// A backdated prepayment must push every later balance down.
	_, err = f.svc.Record(ctx, &Payment{
		LoanID:      f.loanID,
		PaymentDate: date.New(2024, 2, 1),
		TotalAmount: 100000,
		Type:        TypePrepayment,
		Status:      StatusPaid,
	})
	require.NoError(t, err)

	payments, err := f.svc.ListByLoan(ctx, f.loanID, date.Date{}, date.Date{})
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 400000.0, payments[0].BalanceRemaining)
	assert.Equal(t, 397000.0, payments[1].BalanceRemaining)
}

func TestService_Record_SplitMustReconcile(t *testing.T) {
	f := newFixture(t)

	p := emiPayment(f.loanID, date.New(2024, 2, 1))
	p.PrincipalComponent = 2000 // 2000 + 1339 != 4339

	_, err := f.svc.Record(context.Background(), p)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestService_Record_DerivesEMISplit(t *testing.T) {
	f := newFixture(t)

	p := &Payment{
		LoanID:      f.loanID,
		PaymentDate: date.New(2024, 2, 1),
		TotalAmount: 4339,
		Type:        TypeEMI,
		Status:      StatusPaid,
	}
	recorded, err := f.svc.Record(context.Background(), p)
	require.NoError(t, err)

	// Interest on 500000 at 8.5%/12 is 3541.67; the rest repays principal.
	assert.InDelta(t, 3541.67, recorded.InterestComponent, 0.01)
	assert.InDelta(t, 797.33, recorded.PrincipalComponent, 0.01)
}

func TestService_Record_ChargesConsumeWholeEMI(t *testing.T) {
	f := newFixture(t)

	// Nothing of the total is left for principal or interest; the derived
	// split must stay at zero, never negative, and the balance must not move.
	recorded, err := f.svc.Record(context.Background(), &Payment{
		LoanID:      f.loanID,
		PaymentDate: date.New(2024, 2, 1),
		TotalAmount: 500,
		Charges:     500,
		Type:        TypeEMI,
		Status:      StatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, recorded.PrincipalComponent)
	assert.Equal(t, 0.0, recorded.InterestComponent)
	assert.Equal(t, 500000.0, recorded.BalanceRemaining)
}

func TestService_Record_PreEMIIsAllInterest(t *testing.T) {
	f := newFixture(t)

	recorded, err := f.svc.Record(context.Background(), &Payment{
		LoanID:      f.loanID,
		PaymentDate: date.New(2024, 1, 15),
		TotalAmount: 2500,
		Type:        TypePreEMI,
		Status:      StatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, recorded.InterestComponent)
	assert.Equal(t, 0.0, recorded.PrincipalComponent)
	assert.Equal(t, 500000.0, recorded.BalanceRemaining)
}

func TestService_Record_PendingDoesNotReduceBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 2, 1)))
	require.NoError(t, err)

	pending := emiPayment(f.loanID, date.New(2024, 3, 1))
	pending.Status = StatusPending
	recorded, err := f.svc.Record(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, 497000.0, recorded.BalanceRemaining)
}

func TestService_Record_UnknownLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), emiPayment(999, date.New(2024, 2, 1)))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_Update_Recascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 2, 1)))
	require.NoError(t, err)
	second, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 3, 1)))
	require.NoError(t, err)
	require.Equal(t, 494000.0, second.BalanceRemaining)

	// Marking the first payment missed restores its principal to the balance.
	first.Status = StatusMissed
	_, err = f.svc.Update(ctx, first)
	require.NoError(t, err)

	refreshed, err := f.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 497000.0, refreshed.BalanceRemaining)
}

func TestService_Delete_Recascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 2, 1)))
	require.NoError(t, err)
	second, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 3, 1)))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, first.ID))

	refreshed, err := f.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 497000.0, refreshed.BalanceRemaining)

	err = f.svc.Delete(ctx, first.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_ListByLoan_DateRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, day := range []date.Date{
		date.New(2024, 2, 1), date.New(2024, 3, 1), date.New(2024, 4, 1),
	} {
		_, err := f.svc.Record(ctx, emiPayment(f.loanID, day))
		require.NoError(t, err)
	}

	got, err := f.svc.ListByLoan(ctx, f.loanID, date.New(2024, 3, 1), date.New(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-01", got[0].PaymentDate.String())
}

func TestService_CascadeSurvivesLoanDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recorded, err := f.svc.Record(ctx, emiPayment(f.loanID, date.New(2024, 2, 1)))
	require.NoError(t, err)

	require.NoError(t, f.loans.Delete(ctx, f.loanID))

	_, err = f.svc.Get(ctx, recorded.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
