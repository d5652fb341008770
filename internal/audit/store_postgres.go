package audit

import (
	"context"
	"database/sql"
	"fmt"

	"loanbook/internal/platform/postgres"
)

// PostgresStore writes events to audit_events. The table has no foreign key to
// loans so the trail outlives the rows it describes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_id, action, entity, entity_id, loan_id, request_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.Action, event.Entity, event.EntityID, event.LoanID, event.RequestID, event.Details, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", postgres.MapError(err))
	}
	return nil
}

func (s *PostgresStore) ListByLoan(ctx context.Context, loanID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, action, entity, entity_id, loan_id, request_id, details, created_at
		FROM audit_events
		WHERE loan_id = $1
		ORDER BY created_at ASC, event_id ASC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.LoanID, &e.RequestID, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
