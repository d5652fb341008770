// Package audit records who changed what. Every mutating operation emits an
// event; the trail is append-only and survives deletion of the rows it
// describes. Emission is fail-open: audit problems are logged, never returned
// to the business operation.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionLoanCreated         Action = "loan.created"
	ActionLoanUpdated         Action = "loan.updated"
	ActionLoanDeleted         Action = "loan.deleted"
	ActionRateChangeRecorded  Action = "loan.rate_change_recorded"
	ActionDisbursementAdded   Action = "loan.disbursement_added"
	ActionPaymentRecorded     Action = "payment.recorded"
	ActionPaymentUpdated      Action = "payment.updated"
	ActionPaymentDeleted      Action = "payment.deleted"
	ActionScenarioSaved       Action = "forecast.scenario_saved"
	ActionScenarioDeleted     Action = "forecast.scenario_deleted"
	ActionSnapshotExported    Action = "export.snapshot_written"
)

// Event is one audit record.
type Event struct {
	ID        uuid.UUID `json:"event_id"`
	Action    Action    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	LoanID    int64     `json:"loan_id"`
	RequestID string    `json:"request_id"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the append-only persistence boundary for events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByLoan(ctx context.Context, loanID int64) ([]Event, error)
}
