package loan

import (
	"context"
	"database/sql"
	"fmt"

	"loanbook/internal/platform/postgres"
	txcontext "loanbook/pkg/platform/tx"
)

// PostgresStore persists loans in PostgreSQL. Enum and cascade rules live in
// the schema; this layer only maps rows and driver errors.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const loanColumns = `loan_id, loan_name, loan_type, bank_name, principal_amount,
	sanctioned_amount, interest_rate, rate_type, loan_term_months, start_date,
	emi_amount, payment_frequency, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, l *Loan) (int64, error) {
	query := `
		INSERT INTO loans (
			loan_name, loan_type, bank_name, principal_amount, sanctioned_amount,
			interest_rate, rate_type, loan_term_months, start_date, emi_amount,
			payment_frequency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING loan_id, created_at, updated_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		l.Name, l.Type, l.BankName, l.PrincipalAmount, l.SanctionedAmount,
		l.InterestRate, l.RateType, l.TermMonths, l.StartDate, l.EMIAmount,
		l.PaymentFrequency, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", postgres.MapError(err))
	}
	return l.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, loanID int64) (*Loan, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE loan_id = $1`, loanID)
	l, err := scanLoan(row)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", postgres.MapError(err))
	}
	return l, nil
}

func (s *PostgresStore) List(ctx context.Context, status Status) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, loan_id DESC`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, l *Loan) error {
	query := `
		UPDATE loans SET
			loan_name = $1, loan_type = $2, bank_name = $3, principal_amount = $4,
			sanctioned_amount = $5, interest_rate = $6, rate_type = $7,
			loan_term_months = $8, start_date = $9, emi_amount = $10,
			payment_frequency = $11, status = $12, updated_at = now()
		WHERE loan_id = $13
		RETURNING updated_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		l.Name, l.Type, l.BankName, l.PrincipalAmount, l.SanctionedAmount,
		l.InterestRate, l.RateType, l.TermMonths, l.StartDate, l.EMIAmount,
		l.PaymentFrequency, l.Status, l.ID,
	).Scan(&l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update loan: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, loanID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM loans WHERE loan_id = $1`, loanID)
	if err != nil {
		return fmt.Errorf("delete loan: %w", postgres.MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete loan rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete loan: %w", postgres.MapError(sql.ErrNoRows))
	}
	return nil
}

func (s *PostgresStore) AddRateChange(ctx context.Context, rc *RateChange) (int64, error) {
	query := `
		INSERT INTO interest_rate_history (loan_id, effective_date, interest_rate, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING rate_id, created_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		rc.LoanID, rc.EffectiveDate, rc.InterestRate, rc.Reason,
	).Scan(&rc.ID, &rc.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert rate change: %w", postgres.MapError(err))
	}
	return rc.ID, nil
}

func (s *PostgresStore) ListRateChanges(ctx context.Context, loanID int64) ([]*RateChange, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT rate_id, loan_id, effective_date, interest_rate, reason, created_at
		FROM interest_rate_history
		WHERE loan_id = $1
		ORDER BY effective_date ASC, rate_id ASC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list rate changes: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []*RateChange
	for rows.Next() {
		var rc RateChange
		if err := rows.Scan(&rc.ID, &rc.LoanID, &rc.EffectiveDate, &rc.InterestRate, &rc.Reason, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rate change: %w", err)
		}
		out = append(out, &rc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddDisbursement(ctx context.Context, d *Disbursement) (int64, error) {
	query := `
		INSERT INTO loan_disbursements (loan_id, disbursement_date, amount, new_emi)
		VALUES ($1, $2, $3, $4)
		RETURNING disbursement_id, created_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		d.LoanID, d.DisbursementDate, d.Amount, d.NewEMI,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert disbursement: %w", postgres.MapError(err))
	}
	return d.ID, nil
}

func (s *PostgresStore) ListDisbursements(ctx context.Context, loanID int64) ([]*Disbursement, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT disbursement_id, loan_id, disbursement_date, amount, new_emi, created_at
		FROM loan_disbursements
		WHERE loan_id = $1
		ORDER BY disbursement_date ASC, disbursement_id ASC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list disbursements: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []*Disbursement
	for rows.Next() {
		var d Disbursement
		if err := rows.Scan(&d.ID, &d.LoanID, &d.DisbursementDate, &d.Amount, &d.NewEMI, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan disbursement: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	var l Loan
	err := row.Scan(
		&l.ID, &l.Name, &l.Type, &l.BankName, &l.PrincipalAmount,
		&l.SanctionedAmount, &l.InterestRate, &l.RateType, &l.TermMonths,
		&l.StartDate, &l.EMIAmount, &l.PaymentFrequency, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
