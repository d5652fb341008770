// Package payment tracks money paid against a loan and keeps each payment's
// running balance consistent. Any create, update, or delete triggers a balance
// cascade: every payment of the loan is rewritten in chronological order
// starting from the loan principal, inside one transaction.
package payment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
)

// Type classifies what a payment was for.
type Type string

const (
	TypeEMI        Type = "EMI"
	TypePrepayment Type = "PREPAYMENT"
	TypePartial    Type = "PARTIAL"
	TypeCharges    Type = "CHARGES"
	TypePreEMI     Type = "PRE-EMI"
)

// Status is the settlement state of a payment.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusPending Status = "PENDING"
	StatusMissed  Status = "MISSED"
)

// splitTolerance is the largest allowed gap between the component sum and the
// total amount.
const splitTolerance = 0.01

// Payment is one ledger row against a loan. BalanceRemaining is derived by the
// cascade, never trusted from input.
type Payment struct {
	ID                 int64     `json:"payment_id"`
	LoanID             int64     `json:"loan_id"`
	PaymentDate        date.Date `json:"payment_date"`
	ScheduledDate      date.Date `json:"scheduled_date"`
	PrincipalComponent float64   `json:"principal_component"`
	InterestComponent  float64   `json:"interest_component"`
	TotalAmount        float64   `json:"total_amount"`
	Type               Type      `json:"payment_type"`
	Method             string    `json:"payment_method"`
	Charges            float64   `json:"charges"`
	BalanceRemaining   float64   `json:"balance_remaining"`
	Status             Status    `json:"status"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"created_at"`
}

// Validate checks field rules and the split reconciliation invariant.
func (p *Payment) Validate() error {
	var problems []string

	if p.LoanID <= 0 {
		problems = append(problems, "loan_id is required")
	}
	if p.PaymentDate.IsZero() {
		problems = append(problems, "payment_date is required")
	}
	if p.TotalAmount <= 0 {
		problems = append(problems, "total_amount must be positive")
	}
	if p.PrincipalComponent < 0 || p.InterestComponent < 0 || p.Charges < 0 {
		problems = append(problems, "payment components must be non-negative")
	}

	switch p.Type {
	case TypeEMI, TypePrepayment, TypePartial, TypeCharges, TypePreEMI:
	default:
		problems = append(problems, fmt.Sprintf("payment_type %q is not one of EMI, PREPAYMENT, PARTIAL, CHARGES, PRE-EMI", p.Type))
	}
	switch p.Status {
	case StatusPaid, StatusPending, StatusMissed:
	default:
		problems = append(problems, fmt.Sprintf("status %q is not one of PAID, PENDING, MISSED", p.Status))
	}

	if p.PrincipalComponent > 0 || p.InterestComponent > 0 {
		sum := p.PrincipalComponent + p.InterestComponent + p.Charges
		if math.Abs(sum-p.TotalAmount) > splitTolerance {
			problems = append(problems, fmt.Sprintf(
				"principal_component + interest_component + charges (%.2f) must reconcile with total_amount (%.2f)",
				sum, p.TotalAmount))
		}
	}

	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}
