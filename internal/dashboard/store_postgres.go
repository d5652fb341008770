package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"loanbook/internal/platform/postgres"
	"loanbook/pkg/date"
)

// PostgresStore runs the aggregate queries. Latest-balance derivation uses a
// LATERAL join against the newest PAID payment per loan instead of fetching
// payment lists into the application.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// latestBalance yields one row per loan with its current outstanding.
const latestBalance = `
	SELECT l.loan_id, l.status, l.emi_amount, l.payment_frequency,
	       COALESCE(p.balance_remaining, l.principal_amount) AS outstanding
	FROM loans l
	LEFT JOIN LATERAL (
		SELECT balance_remaining
		FROM payments
		WHERE loan_id = l.loan_id AND status = 'PAID'
		ORDER BY payment_date DESC, payment_id DESC
		LIMIT 1
	) p ON true
`

func (s *PostgresStore) TotalOutstanding(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(outstanding), 0)
		FROM (`+latestBalance+`) lb
		WHERE lb.status IN ('ACTIVE', 'PENDING')
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total outstanding: %w", postgres.MapError(err))
	}
	return total, nil
}

func (s *PostgresStore) MonthlyObligation(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(
			emi_amount / CASE payment_frequency
				WHEN 'QUARTERLY' THEN 3
				WHEN 'ANNUALLY' THEN 12
				ELSE 1
			END), 0)
		FROM loans
		WHERE status = 'ACTIVE'
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("monthly obligation: %w", postgres.MapError(err))
	}
	return total, nil
}

func (s *PostgresStore) InterestPaidInYear(ctx context.Context, year int) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(interest_component), 0)
		FROM payments
		WHERE status = 'PAID' AND EXTRACT(YEAR FROM payment_date) = $1
	`, year).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("interest paid in year: %w", postgres.MapError(err))
	}
	return total, nil
}

func (s *PostgresStore) NextPaymentDue(ctx context.Context, onOrAfter date.Date) (*NextPayment, error) {
	var next NextPayment
	err := s.db.QueryRowContext(ctx, `
		SELECT p.loan_id, l.loan_name, l.bank_name, p.scheduled_date, p.total_amount
		FROM payments p
		JOIN loans l ON l.loan_id = p.loan_id
		WHERE p.status = 'PENDING' AND p.scheduled_date >= $1
		ORDER BY p.scheduled_date ASC, p.payment_id ASC
		LIMIT 1
	`, onOrAfter).Scan(&next.LoanID, &next.LoanName, &next.BankName, &next.DueDate, &next.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next payment due: %w", postgres.MapError(err))
	}
	return &next, nil
}

func (s *PostgresStore) LoanCards(ctx context.Context) ([]LoanCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.loan_id, l.loan_name, l.bank_name, l.loan_type, l.status,
		       l.principal_amount, lb.outstanding, l.emi_amount, l.interest_rate,
		       CASE WHEN l.principal_amount > 0
		            THEN ROUND(((l.principal_amount - lb.outstanding) / l.principal_amount * 100)::numeric, 2)
		            ELSE 0
		       END AS progress
		FROM loans l
		JOIN (`+latestBalance+`) lb ON lb.loan_id = l.loan_id
		ORDER BY l.created_at DESC, l.loan_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("loan cards: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []LoanCard
	for rows.Next() {
		var c LoanCard
		if err := rows.Scan(&c.LoanID, &c.Name, &c.BankName, &c.Type, &c.Status,
			&c.Principal, &c.Outstanding, &c.EMI, &c.InterestRate, &c.ProgressPercent); err != nil {
			return nil, fmt.Errorf("scan loan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PrincipalVsInterest(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(principal_component), 0),
		       COALESCE(SUM(interest_component), 0),
		       COALESCE(SUM(charges), 0)
		FROM payments
		WHERE status = 'PAID'
	`).Scan(&t.PrincipalPaid, &t.InterestPaid, &t.ChargesPaid)
	if err != nil {
		return Totals{}, fmt.Errorf("principal vs interest: %w", postgres.MapError(err))
	}
	return t, nil
}

func (s *PostgresStore) ComparisonRows(ctx context.Context) ([]ComparisonRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.loan_id, l.loan_name, l.interest_rate, l.emi_amount, lb.outstanding,
		       COALESCE(pi.interest_paid, 0)
		FROM loans l
		JOIN (`+latestBalance+`) lb ON lb.loan_id = l.loan_id
		LEFT JOIN (
			SELECT loan_id, SUM(interest_component) AS interest_paid
			FROM payments
			WHERE status = 'PAID'
			GROUP BY loan_id
		) pi ON pi.loan_id = l.loan_id
		WHERE l.status IN ('ACTIVE', 'PENDING')
		ORDER BY l.interest_rate DESC, l.loan_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("comparison rows: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []ComparisonRow
	for rows.Next() {
		var r ComparisonRow
		if err := rows.Scan(&r.LoanID, &r.Name, &r.InterestRate, &r.EMI, &r.Outstanding, &r.TotalInterestPaid); err != nil {
			return nil, fmt.Errorf("scan comparison row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PaymentStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, count(*) FROM payments GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("payment status counts: %w", postgres.MapError(err))
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *PostgresStore) Timeline(ctx context.Context, months int) ([]TimelineBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('month', payment_date), 'YYYY-MM') AS month,
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(principal_component), 0),
		       COALESCE(SUM(interest_component), 0),
		       count(*)
		FROM payments
		WHERE status = 'PAID'
		  AND payment_date >= date_trunc('month', now()) - make_interval(months => $1)
		GROUP BY 1
		ORDER BY 1 ASC
	`, months)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []TimelineBucket
	for rows.Next() {
		var b TimelineBucket
		if err := rows.Scan(&b.Month, &b.TotalPaid, &b.PrincipalPaid, &b.InterestPaid, &b.Count); err != nil {
			return nil, fmt.Errorf("scan timeline bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
