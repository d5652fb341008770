package payment

import (
	"context"
	"database/sql"
	"fmt"

	"loanbook/internal/platform/postgres"
	"loanbook/pkg/date"
	txcontext "loanbook/pkg/platform/tx"
)

// PostgresStore persists payments. The cascade rewrites rows through the
// transaction carried in context so readers never see a partial cascade.
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

const paymentColumns = `payment_id, loan_id, payment_date, scheduled_date,
	principal_component, interest_component, total_amount, payment_type,
	payment_method, charges, balance_remaining, status, notes, created_at`

func (s *PostgresStore) Create(ctx context.Context, p *Payment) (int64, error) {
	query := `
		INSERT INTO payments (
			loan_id, payment_date, scheduled_date, principal_component,
			interest_component, total_amount, payment_type, payment_method,
			charges, balance_remaining, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING payment_id, created_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		p.LoanID, p.PaymentDate, p.ScheduledDate, p.PrincipalComponent,
		p.InterestComponent, p.TotalAmount, p.Type, p.Method,
		p.Charges, p.BalanceRemaining, p.Status, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", postgres.MapError(err))
	}
	return p.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, paymentID int64) (*Payment, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID)
	p, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", postgres.MapError(err))
	}
	return p, nil
}

func (s *PostgresStore) ListByLoan(ctx context.Context, loanID int64) ([]*Payment, error) {
	return s.ListByDateRange(ctx, loanID, date.Date{}, date.Date{})
}

func (s *PostgresStore) ListByDateRange(ctx context.Context, loanID int64, from, to date.Date) ([]*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1`
	args := []any{loanID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND payment_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND payment_date <= $%d`, len(args))
	}
	query += ` ORDER BY payment_date ASC, payment_id ASC`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p *Payment) error {
	query := `
		UPDATE payments SET
			payment_date = $1, scheduled_date = $2, principal_component = $3,
			interest_component = $4, total_amount = $5, payment_type = $6,
			payment_method = $7, charges = $8, status = $9, notes = $10
		WHERE payment_id = $11
		RETURNING payment_id
	`
	var id int64
	err := s.q(ctx).QueryRowContext(ctx, query,
		p.PaymentDate, p.ScheduledDate, p.PrincipalComponent,
		p.InterestComponent, p.TotalAmount, p.Type,
		p.Method, p.Charges, p.Status, p.Notes, p.ID,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("update payment: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, paymentID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM payments WHERE payment_id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", postgres.MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete payment: %w", postgres.MapError(sql.ErrNoRows))
	}
	return nil
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, paymentID int64, balance float64) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE payments SET balance_remaining = $1 WHERE payment_id = $2`, balance, paymentID)
	if err != nil {
		return fmt.Errorf("update payment balance: %w", postgres.MapError(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.LoanID, &p.PaymentDate, &p.ScheduledDate,
		&p.PrincipalComponent, &p.InterestComponent, &p.TotalAmount, &p.Type,
		&p.Method, &p.Charges, &p.BalanceRemaining, &p.Status, &p.Notes,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
