// Package export writes a CSV snapshot of the whole loan book to disk. One
// file per table, fixed names, written in dependency order so the snapshot can
// be reloaded parents-first. Files are overwritten in place; versioning the
// output directory is left to the operator.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"loanbook/internal/audit"
	"loanbook/internal/forecast"
	"loanbook/internal/loan"
	"loanbook/internal/payment"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
)

const (
	fileLoans         = "loans.csv"
	filePayments      = "payments.csv"
	fileRateHistory   = "interest_rate_history.csv"
	fileDisbursements = "loan_disbursements.csv"
	fileScenarios     = "forecast_scenarios.csv"
	fileMetadata      = "snapshot.json"
)

// LoanSource is the slice of loan.Store the snapshot needs.
type LoanSource interface {
	List(ctx context.Context, status loan.Status) ([]*loan.Loan, error)
	ListRateChanges(ctx context.Context, loanID int64) ([]*loan.RateChange, error)
	ListDisbursements(ctx context.Context, loanID int64) ([]*loan.Disbursement, error)
}

// PaymentSource lists payments per loan.
type PaymentSource interface {
	ListByLoan(ctx context.Context, loanID int64) ([]*payment.Payment, error)
}

// ScenarioSource lists saved scenarios per loan.
type ScenarioSource interface {
	ListByLoan(ctx context.Context, loanID int64) ([]*forecast.Scenario, error)
}

// FileInfo describes one written snapshot file.
type FileInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Result summarizes a completed snapshot.
type Result struct {
	SnapshotID uuid.UUID  `json:"snapshot_id"`
	Dir        string     `json:"dir"`
	Files      []FileInfo `json:"files"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Service walks the stores and writes the snapshot files.
type Service struct {
	loans     LoanSource
	payments  PaymentSource
	scenarios ScenarioSource
	dir       string
	audit     *audit.Publisher
	logger    *slog.Logger
}

func NewService(loans LoanSource, payments PaymentSource, scenarios ScenarioSource, dir string, trail *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		loans:     loans,
		payments:  payments,
		scenarios: scenarios,
		dir:       dir,
		audit:     trail,
		logger:    logger,
	}
}

// Snapshot exports all five tables plus a metadata file and returns what was
// written. Child tables iterate the loan list, so a loan created mid-export can
// appear in children but not parents; callers wanting a consistent snapshot
// should quiesce writes first.
func (s *Service) Snapshot(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create export directory")
	}

	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list loans for export")
	}

	result := &Result{SnapshotID: uuid.New(), Dir: s.dir, CreatedAt: time.Now().UTC()}

	writers := []struct {
		name  string
		write func() (int, error)
	}{
		{fileLoans, func() (int, error) { return s.writeLoans(loans) }},
		{filePayments, func() (int, error) { return s.writePayments(ctx, loans) }},
		{fileRateHistory, func() (int, error) { return s.writeRateHistory(ctx, loans) }},
		{fileDisbursements, func() (int, error) { return s.writeDisbursements(ctx, loans) }},
		{fileScenarios, func() (int, error) { return s.writeScenarios(ctx, loans) }},
	}
	for _, w := range writers {
		rows, err := w.write()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("write %s", w.name))
		}
		result.Files = append(result.Files, FileInfo{Name: w.name, Rows: rows})
	}

	if err := s.writeMetadata(result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "write snapshot metadata")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionSnapshotExported,
		Entity:  "snapshot",
		Details: fmt.Sprintf("snapshot %s: %d loans", result.SnapshotID, len(loans)),
	})
	s.logger.InfoContext(ctx, "csv snapshot written",
		"snapshot_id", result.SnapshotID, "dir", s.dir, "loans", len(loans))
	return result, nil
}

func (s *Service) writeCSV(name string, header []string, rows [][]string) (int, error) {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return 0, err
	}
	if err := w.WriteAll(rows); err != nil {
		return 0, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}
	return len(rows), f.Close()
}

func (s *Service) writeLoans(loans []*loan.Loan) (int, error) {
	header := []string{
		"loan_id", "loan_name", "loan_type", "bank_name", "principal_amount",
		"sanctioned_amount", "interest_rate", "rate_type", "loan_term_months",
		"start_date", "emi_amount", "payment_frequency", "status", "created_at",
	}
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []string{
			formatInt(l.ID), l.Name, string(l.Type), l.BankName,
			formatMoney(l.PrincipalAmount), formatMoney(l.SanctionedAmount),
			formatRate(l.InterestRate), string(l.RateType), strconv.Itoa(l.TermMonths),
			formatDate(l.StartDate), formatMoney(l.EMIAmount),
			string(l.PaymentFrequency), string(l.Status), formatTime(l.CreatedAt),
		})
	}
	return s.writeCSV(fileLoans, header, rows)
}

func (s *Service) writePayments(ctx context.Context, loans []*loan.Loan) (int, error) {
	header := []string{
		"payment_id", "loan_id", "payment_date", "scheduled_date",
		"principal_component", "interest_component", "total_amount",
		"payment_type", "payment_method", "charges", "balance_remaining",
		"status", "notes", "created_at",
	}
	var rows [][]string
	for _, l := range loans {
		payments, err := s.payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return 0, err
		}
		for _, p := range payments {
			rows = append(rows, []string{
				formatInt(p.ID), formatInt(p.LoanID),
				formatDate(p.PaymentDate), formatDate(p.ScheduledDate),
				formatMoney(p.PrincipalComponent), formatMoney(p.InterestComponent),
				formatMoney(p.TotalAmount), string(p.Type), p.Method,
				formatMoney(p.Charges), formatMoney(p.BalanceRemaining),
				string(p.Status), p.Notes, formatTime(p.CreatedAt),
			})
		}
	}
	return s.writeCSV(filePayments, header, rows)
}

func (s *Service) writeRateHistory(ctx context.Context, loans []*loan.Loan) (int, error) {
	header := []string{"rate_id", "loan_id", "effective_date", "interest_rate", "reason", "created_at"}
	var rows [][]string
	for _, l := range loans {
		changes, err := s.loans.ListRateChanges(ctx, l.ID)
		if err != nil {
			return 0, err
		}
		for _, rc := range changes {
			rows = append(rows, []string{
				formatInt(rc.ID), formatInt(rc.LoanID), formatDate(rc.EffectiveDate),
				formatRate(rc.InterestRate), rc.Reason, formatTime(rc.CreatedAt),
			})
		}
	}
	return s.writeCSV(fileRateHistory, header, rows)
}

func (s *Service) writeDisbursements(ctx context.Context, loans []*loan.Loan) (int, error) {
	header := []string{"disbursement_id", "loan_id", "disbursement_date", "amount", "new_emi", "created_at"}
	var rows [][]string
	for _, l := range loans {
		tranches, err := s.loans.ListDisbursements(ctx, l.ID)
		if err != nil {
			return 0, err
		}
		for _, d := range tranches {
			rows = append(rows, []string{
				formatInt(d.ID), formatInt(d.LoanID), formatDate(d.DisbursementDate),
				formatMoney(d.Amount), formatMoney(d.NewEMI), formatTime(d.CreatedAt),
			})
		}
	}
	return s.writeCSV(fileDisbursements, header, rows)
}

func (s *Service) writeScenarios(ctx context.Context, loans []*loan.Loan) (int, error) {
	header := []string{"scenario_id", "loan_id", "scenario_name", "prepayment_type", "prepayment_value", "start_month", "created_at"}
	var rows [][]string
	for _, l := range loans {
		scenarios, err := s.scenarios.ListByLoan(ctx, l.ID)
		if err != nil {
			return 0, err
		}
		for _, sc := range scenarios {
			rows = append(rows, []string{
				formatInt(sc.ID), formatInt(sc.LoanID), sc.Name, string(sc.PrepaymentType),
				formatMoney(sc.PrepaymentValue), strconv.Itoa(sc.StartMonth),
				formatTime(sc.CreatedAt),
			})
		}
	}
	return s.writeCSV(fileScenarios, header, rows)
}

func (s *Service) writeMetadata(result *Result) error {
	f, err := os.Create(filepath.Join(s.dir, fileMetadata))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return f.Close()
}

func formatInt(v int64) string      { return strconv.FormatInt(v, 10) }
func formatMoney(v float64) string  { return strconv.FormatFloat(v, 'f', 2, 64) }
func formatRate(v float64) string   { return strconv.FormatFloat(v, 'f', -1, 64) }
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatDate(d date.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}
