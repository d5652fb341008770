package loan

import (
	"time"

	"loanbook/pkg/date"
)

// Type enumerates supported loan categories.
type Type string

const (
	TypeHome     Type = "HOME"
	TypePersonal Type = "PERSONAL"
	TypeAuto     Type = "AUTO"
)

// RateType distinguishes fixed from floating interest.
type RateType string

const (
	RateFixed    RateType = "FIXED"
	RateFloating RateType = "FLOATING"
)

// Frequency is the payment cadence.
type Frequency string

const (
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyAnnually  Frequency = "ANNUALLY"
)

// Status is the loan lifecycle state. The only legal transitions run
// PENDING -> ACTIVE -> CLOSED; the service enforces this, not the schema.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusClosed  Status = "CLOSED"
)

// CanTransition reports whether moving from s to next is allowed. Staying in
// the same state is always fine so partial updates don't trip the guard.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusActive
	case StatusActive:
		return next == StatusClosed
	default:
		return false
	}
}

// Loan is the aggregate root. All child rows cascade-delete with it.
type Loan struct {
	ID               int64     `json:"loan_id"`
	Name             string    `json:"loan_name"`
	Type             Type      `json:"loan_type"`
	BankName         string    `json:"bank_name"`
	PrincipalAmount  float64   `json:"principal_amount"`
	SanctionedAmount float64   `json:"sanctioned_amount"`
	InterestRate     float64   `json:"interest_rate"`
	RateType         RateType  `json:"rate_type"`
	TermMonths       int       `json:"loan_term_months"`
	StartDate        date.Date `json:"start_date"`
	EMIAmount        float64   `json:"emi_amount"`
	PaymentFrequency Frequency `json:"payment_frequency"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RateChange is one interest-rate revision event, ordered by effective date.
type RateChange struct {
	ID            int64     `json:"rate_id"`
	LoanID        int64     `json:"loan_id"`
	EffectiveDate date.Date `json:"effective_date"`
	InterestRate  float64   `json:"interest_rate"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// Disbursement is one tranche release of the sanctioned amount.
type Disbursement struct {
	ID               int64     `json:"disbursement_id"`
	LoanID           int64     `json:"loan_id"`
	DisbursementDate date.Date `json:"disbursement_date"`
	Amount           float64   `json:"amount"`
	NewEMI           float64   `json:"new_emi"`
	CreatedAt        time.Time `json:"created_at"`
}
