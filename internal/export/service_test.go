package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/audit"
	"loanbook/internal/forecast"
	"loanbook/internal/loan"
	"loanbook/internal/payment"
	"loanbook/pkg/date"
)

type fixture struct {
	svc    *Service
	trail  *audit.InMemoryStore
	dir    string
	loans  *loan.InMemoryStore
	loanID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	loans := loan.NewInMemoryStore()
	payments := payment.NewInMemoryStore(loans)
	scenarios := forecast.NewInMemoryStore(loans)
	trail := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(trail, logger)

	loanID, err := loans.Create(ctx, &loan.Loan{
		Name:             "Home Loan",
		Type:             loan.TypeHome,
		BankName:         "HDFC",
		PrincipalAmount:  500000,
		SanctionedAmount: 500000,
		InterestRate:     8.5,
		RateType:         loan.RateFloating,
		TermMonths:       240,
		StartDate:        date.New(2024, 1, 1),
		EMIAmount:        4339,
		PaymentFrequency: loan.FrequencyMonthly,
		Status:           loan.StatusActive,
	})
	require.NoError(t, err)

	_, err = payments.Create(ctx, &payment.Payment{
		LoanID:             loanID,
		PaymentDate:        date.New(2024, 2, 1),
		PrincipalComponent: 797.33,
		InterestComponent:  3541.67,
		TotalAmount:        4339,
		Type:               payment.TypeEMI,
		Status:             payment.StatusPaid,
		BalanceRemaining:   499202.67,
	})
	require.NoError(t, err)

	_, err = loans.AddRateChange(ctx, &loan.RateChange{
		LoanID:        loanID,
		EffectiveDate: date.New(2024, 6, 1),
		InterestRate:  9.25,
		Reason:        "repo rate revision",
	})
	require.NoError(t, err)

	_, err = loans.AddDisbursement(ctx, &loan.Disbursement{
		LoanID:           loanID,
		DisbursementDate: date.New(2024, 3, 1),
		Amount:           100000,
	})
	require.NoError(t, err)

	_, err = scenarios.Create(ctx, &forecast.Scenario{
		LoanID:          loanID,
		Name:            "yearly bonus",
		PrepaymentType:  forecast.PrepaymentLumpsum,
		PrepaymentValue: 50000,
		StartMonth:      12,
	})
	require.NoError(t, err)

	svc := NewService(loans, payments, scenarios, dir, publisher, logger)
	return &fixture{svc: svc, trail: trail, dir: dir, loans: loans, loanID: loanID}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSnapshot_WritesAllTables(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.SnapshotID)
	assert.Equal(t, f.dir, result.Dir)
	require.Len(t, result.Files, 5)

	loans := readCSV(t, filepath.Join(f.dir, "loans.csv"))
	require.Len(t, loans, 2)
	assert.Equal(t, "loan_id", loans[0][0])
	assert.Equal(t, "Home Loan", loans[1][1])
	assert.Equal(t, "500000.00", loans[1][4])
	assert.Equal(t, "2024-01-01", loans[1][9])

	payments := readCSV(t, filepath.Join(f.dir, "payments.csv"))
	require.Len(t, payments, 2)
	assert.Equal(t, "3541.67", payments[1][5])

	rates := readCSV(t, filepath.Join(f.dir, "interest_rate_history.csv"))
	require.Len(t, rates, 2)
	assert.Equal(t, "9.25", rates[1][3])

	tranches := readCSV(t, filepath.Join(f.dir, "loan_disbursements.csv"))
	require.Len(t, tranches, 2)
	assert.Equal(t, "100000.00", tranches[1][3])

	scenarios := readCSV(t, filepath.Join(f.dir, "forecast_scenarios.csv"))
	require.Len(t, scenarios, 2)
	assert.Equal(t, "yearly bonus", scenarios[1][2])
}

func TestSnapshot_WritesMetadata(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(f.dir, "snapshot.json"))
	require.NoError(t, err)

	var meta Result
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, result.SnapshotID, meta.SnapshotID)
	require.Len(t, meta.Files, 5)
	assert.Equal(t, FileInfo{Name: "loans.csv", Rows: 1}, meta.Files[0])
}

func TestSnapshot_EmitsAuditEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)

	events := f.trail.All()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSnapshotExported, events[0].Action)
	assert.Equal(t, "snapshot", events[0].Entity)
}

func TestSnapshot_EmptyBook(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	loans := loan.NewInMemoryStore()
	svc := NewService(loans, payment.NewInMemoryStore(loans), forecast.NewInMemoryStore(loans), dir,
		audit.NewPublisher(audit.NewInMemoryStore(), logger), logger)

	result, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	for _, file := range result.Files {
		assert.Zero(t, file.Rows)
		records := readCSV(t, filepath.Join(dir, file.Name))
		assert.Len(t, records, 1)
	}
}
