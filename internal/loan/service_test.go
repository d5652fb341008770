package loan

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/audit"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
	txcontext "loanbook/pkg/platform/tx"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *audit.InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := audit.NewPublisher(auditStore, logger)
	svc := NewService(store, txcontext.NopRunner{}, pub, nil, logger)
	return svc, store, auditStore
}

func validLoan() *Loan {
	return &Loan{
		Name:             "Home Loan HDFC",
		Type:             TypeHome,
		BankName:         "HDFC",
		PrincipalAmount:  500000,
		InterestRate:     8.5,
		RateType:         RateFixed,
		TermMonths:       240,
		StartDate:        date.New(2024, 1, 1),
		PaymentFrequency: FrequencyMonthly,
	}
}

func TestService_Create_DefaultsAndEMI(t *testing.T) {
	svc, _, auditStore := newTestService(t)

	l, err := svc.Create(context.Background(), validLoan())
	require.NoError(t, err)

	assert.Equal(t, int64(1), l.ID)
	assert.Equal(t, StatusActive, l.Status)
	assert.Equal(t, 500000.0, l.SanctionedAmount)
	assert.InDelta(t, 4339, l.EMIAmount, 1) // 500k @ 8.5% over 240 months

	events := auditStore.All()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionLoanCreated, events[0].Action)
}

func TestService_Create_RejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)

	l := validLoan()
	l.PrincipalAmount = 100 // below the floor

	_, err := svc.Create(context.Background(), l)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_List_FiltersByStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	active := validLoan()
	_, err := svc.Create(ctx, active)
	require.NoError(t, err)

	pending := validLoan()
	pending.Name = "Car Loan SBI"
	pending.Status = StatusPending
	_, err = svc.Create(ctx, pending)
	require.NoError(t, err)

	got, err := svc.List(ctx, StatusPending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Car Loan SBI", got[0].Name)

	_, err = svc.List(ctx, Status("BOGUS"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestService_Update_StatusTransitionGuard(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.Status = StatusClosed
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)

	// CLOSED is terminal.
	reopened := *created
	reopened.Status = StatusActive
	_, err = svc.Update(ctx, &reopened)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// Same-status update stays legal.
	renamed := *created
	renamed.Name = "Renamed Loan"
	updated, err := svc.Update(ctx, &renamed)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Loan", updated.Name)
}

func TestService_Update_PendingToActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.Status = StatusPending
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)

	created.Status = StatusActive
	updated, err := svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, updated.Status)
}

func TestService_Delete_EmitsAudit(t *testing.T) {
	svc, store, auditStore := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validLoan())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.False(t, store.Exists(created.ID))

	events, err := auditStore.ListByLoan(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionLoanDeleted, events[1].Action)

	err = svc.Delete(ctx, created.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_RecordRateChange_FixedKeepsEMI(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validLoan())
	require.NoError(t, err)
	originalEMI := created.EMIAmount

	_, err = svc.RecordRateChange(ctx, &RateChange{
		LoanID:        created.ID,
		EffectiveDate: date.New(2025, 1, 1),
		InterestRate:  9.0,
		Reason:        "repo rate hike",
	})
	require.NoError(t, err)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, originalEMI, after.EMIAmount)
	assert.Equal(t, 8.5, after.InterestRate)

	history, err := svc.ListRateChanges(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_RecordRateChange_FloatingRecomputesEMI(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.RateType = RateFloating
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)
	originalEMI := created.EMIAmount

	_, err = svc.RecordRateChange(ctx, &RateChange{
		LoanID:        created.ID,
		EffectiveDate: date.New(2025, 1, 1),
		InterestRate:  9.5,
	})
	require.NoError(t, err)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.5, after.InterestRate)
	assert.Greater(t, after.EMIAmount, originalEMI)
}

func TestService_RecordRateChange_UnknownLoan(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RecordRateChange(context.Background(), &RateChange{
		LoanID:        42,
		EffectiveDate: date.New(2025, 1, 1),
		InterestRate:  9.0,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_RecordDisbursement_GrowsPrincipal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.SanctionedAmount = 1000000
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)

	d, err := svc.RecordDisbursement(ctx, &Disbursement{
		LoanID:           created.ID,
		DisbursementDate: date.New(2024, 6, 1),
		Amount:           200000,
	})
	require.NoError(t, err)
	assert.Greater(t, d.NewEMI, 0.0)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 700000.0, after.PrincipalAmount)
	assert.Equal(t, d.NewEMI, after.EMIAmount)
}

func TestService_RecordDisbursement_ExceedsSanctioned(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.SanctionedAmount = 600000
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)

	_, err = svc.RecordDisbursement(ctx, &Disbursement{
		LoanID:           created.ID,
		DisbursementDate: date.New(2024, 6, 1),
		Amount:           200000,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnprocessable))

	// Failed disbursement leaves the loan untouched.
	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, after.PrincipalAmount)
}

func TestService_RecordDisbursement_ExplicitEMIWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	l := validLoan()
	l.SanctionedAmount = 1000000
	created, err := svc.Create(ctx, l)
	require.NoError(t, err)

	d, err := svc.RecordDisbursement(ctx, &Disbursement{
		LoanID:           created.ID,
		DisbursementDate: date.New(2024, 6, 1),
		Amount:           100000,
		NewEMI:           5555,
	})
	require.NoError(t, err)
	assert.Equal(t, 5555.0, d.NewEMI)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5555.0, after.EMIAmount)
}
