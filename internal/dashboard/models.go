// Package dashboard composes portfolio-wide aggregates. Each figure comes from
// a single scoped query; the composed summary is gathered concurrently and
// cached in Redis for a short TTL, invalidated whenever a write lands.
package dashboard

import (
	"context"
	"time"

	"loanbook/pkg/date"
)

// NextPayment is the soonest scheduled payment across all active loans.
type NextPayment struct {
	LoanID   int64     `json:"loan_id"`
	LoanName string    `json:"loan_name"`
	BankName string    `json:"bank_name"`
	DueDate  date.Date `json:"due_date"`
	Amount   float64   `json:"amount"`
}

// LoanCard is one per-loan summary tile.
type LoanCard struct {
	LoanID          int64   `json:"loan_id"`
	Name            string  `json:"loan_name"`
	BankName        string  `json:"bank_name"`
	Type            string  `json:"loan_type"`
	Status          string  `json:"status"`
	Principal       float64 `json:"principal_amount"`
	Outstanding     float64 `json:"outstanding"`
	EMI             float64 `json:"emi_amount"`
	InterestRate    float64 `json:"interest_rate"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Totals splits everything paid so far into its components.
type Totals struct {
	PrincipalPaid float64 `json:"principal_paid"`
	InterestPaid  float64 `json:"interest_paid"`
	ChargesPaid   float64 `json:"charges_paid"`
}

// ComparisonRow lines loans up side by side.
type ComparisonRow struct {
	LoanID            int64   `json:"loan_id"`
	Name              string  `json:"loan_name"`
	InterestRate      float64 `json:"interest_rate"`
	EMI               float64 `json:"emi_amount"`
	Outstanding       float64 `json:"outstanding"`
	TotalInterestPaid float64 `json:"total_interest_paid"`
}

// TimelineBucket is one month of payment activity.
type TimelineBucket struct {
	Month         string  `json:"month"`
	TotalPaid     float64 `json:"total_paid"`
	PrincipalPaid float64 `json:"principal_paid"`
	InterestPaid  float64 `json:"interest_paid"`
	Count         int     `json:"count"`
}

// Summary is the composed dashboard payload.
type Summary struct {
	TotalOutstanding     float64        `json:"total_outstanding"`
	MonthlyObligation    float64        `json:"monthly_obligation"`
	InterestPaidThisYear float64        `json:"interest_paid_this_year"`
	NextPayment          *NextPayment   `json:"next_payment,omitempty"`
	Cards                []LoanCard     `json:"cards"`
	PrincipalVsInterest  Totals         `json:"principal_vs_interest"`
	Comparison           []ComparisonRow `json:"comparison"`
	StatusCounts         map[string]int `json:"status_counts"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// Store answers the aggregate queries. Each method maps to one SQL statement
// in the postgres implementation; none of them iterate loans client-side.
type Store interface {
	// TotalOutstanding sums the latest payment balance (or principal when
	// unpaid) across ACTIVE and PENDING loans.
	TotalOutstanding(ctx context.Context) (float64, error)
	// MonthlyObligation sums EMI normalized to a monthly figure across ACTIVE
	// loans.
	MonthlyObligation(ctx context.Context) (float64, error)
	// InterestPaidInYear sums PAID interest components for a calendar year.
	InterestPaidInYear(ctx context.Context, year int) (float64, error)
	// NextPaymentDue finds the earliest PENDING payment scheduled on or after
	// the given day, joined with its loan.
	NextPaymentDue(ctx context.Context, onOrAfter date.Date) (*NextPayment, error)
	LoanCards(ctx context.Context) ([]LoanCard, error)
	PrincipalVsInterest(ctx context.Context) (Totals, error)
	ComparisonRows(ctx context.Context) ([]ComparisonRow, error)
	PaymentStatusCounts(ctx context.Context) (map[string]int, error)
	// Timeline buckets PAID payments by month over the trailing window.
	Timeline(ctx context.Context, months int) ([]TimelineBucket, error)
}
