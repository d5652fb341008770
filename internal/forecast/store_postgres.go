package forecast

import (
	"context"
	"database/sql"
	"fmt"

	"loanbook/internal/platform/postgres"
)

// PostgresStore persists scenarios in forecast_scenarios.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scenarioColumns = `scenario_id, loan_id, scenario_name, prepayment_type,
	prepayment_value, start_month, created_at`

func (s *PostgresStore) Create(ctx context.Context, sc *Scenario) (int64, error) {
	query := `
		INSERT INTO forecast_scenarios (loan_id, scenario_name, prepayment_type, prepayment_value, start_month)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING scenario_id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		sc.LoanID, sc.Name, sc.PrepaymentType, sc.PrepaymentValue, sc.StartMonth,
	).Scan(&sc.ID, &sc.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert scenario: %w", postgres.MapError(err))
	}
	return sc.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, scenarioID int64) (*Scenario, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scenarioColumns+` FROM forecast_scenarios WHERE scenario_id = $1`, scenarioID)
	var sc Scenario
	err := row.Scan(&sc.ID, &sc.LoanID, &sc.Name, &sc.PrepaymentType, &sc.PrepaymentValue, &sc.StartMonth, &sc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get scenario: %w", postgres.MapError(err))
	}
	return &sc, nil
}

func (s *PostgresStore) ListByLoan(ctx context.Context, loanID int64) ([]*Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scenarioColumns+`
		FROM forecast_scenarios
		WHERE loan_id = $1
		ORDER BY created_at DESC, scenario_id DESC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []*Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(&sc.ID, &sc.LoanID, &sc.Name, &sc.PrepaymentType, &sc.PrepaymentValue, &sc.StartMonth, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByLoan(ctx context.Context, loanID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM forecast_scenarios WHERE loan_id = $1`, loanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scenarios: %w", postgres.MapError(err))
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, scenarioID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forecast_scenarios WHERE scenario_id = $1`, scenarioID)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", postgres.MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scenario rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete scenario: %w", postgres.MapError(sql.ErrNoRows))
	}
	return nil
}
