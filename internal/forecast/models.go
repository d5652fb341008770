// Package forecast projects prepayment strategies against a loan's current
// state. Scenarios can be persisted (at most five per loan) and are recomputed
// from live data on every read, so a stored scenario never goes stale.
package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loanbook/internal/schedule"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
)

// PrepaymentType selects the prepayment strategy of a saved scenario.
type PrepaymentType string

const (
	PrepaymentLumpsum          PrepaymentType = "LUMPSUM"
	PrepaymentRecurringPercent PrepaymentType = "RECURRING_PERCENT"
	// PrepaymentCustom is ad-hoc only; it carries an explicit month->amount map
	// and is never persisted.
	PrepaymentCustom PrepaymentType = "CUSTOM"
)

// MaxScenariosPerLoan caps stored scenarios so the dashboard stays scannable.
const MaxScenariosPerLoan = 5

// Scenario is a persisted prepayment strategy.
type Scenario struct {
	ID              int64          `json:"scenario_id"`
	LoanID          int64          `json:"loan_id"`
	Name            string         `json:"scenario_name"`
	PrepaymentType  PrepaymentType `json:"prepayment_type"`
	PrepaymentValue float64        `json:"prepayment_value"`
	StartMonth      int            `json:"start_month"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Validate checks a scenario before it is saved. CUSTOM is rejected here
// because it cannot be expressed as a single value + month pair.
func (s *Scenario) Validate() error {
	var problems []string
	if s.LoanID <= 0 {
		problems = append(problems, "loan_id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "scenario_name is required")
	}
	switch s.PrepaymentType {
	case PrepaymentLumpsum, PrepaymentRecurringPercent:
	default:
		problems = append(problems, fmt.Sprintf("prepayment_type %q is not one of LUMPSUM, RECURRING_PERCENT", s.PrepaymentType))
	}
	if s.PrepaymentValue <= 0 {
		problems = append(problems, "prepayment_value must be positive")
	}
	if s.PrepaymentType == PrepaymentRecurringPercent && s.PrepaymentValue > 100 {
		problems = append(problems, "prepayment_value is a percentage and cannot exceed 100")
	}
	if s.StartMonth < 0 {
		problems = append(problems, "start_month must be non-negative")
	}
	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ComputeRequest is an ad-hoc projection request.
type ComputeRequest struct {
	PrepaymentType  PrepaymentType  `json:"prepayment_type"`
	PrepaymentValue float64         `json:"prepayment_value"`
	StartMonth      int             `json:"start_month"`
	Prepayments     map[int]float64 `json:"prepayments,omitempty"`
}

// Validate checks an ad-hoc request; CUSTOM requires an explicit map.
func (r *ComputeRequest) Validate() error {
	switch r.PrepaymentType {
	case PrepaymentLumpsum, PrepaymentRecurringPercent:
		if r.PrepaymentValue <= 0 {
			return dErrors.New(dErrors.CodeValidation, "prepayment_value must be positive")
		}
		if r.PrepaymentType == PrepaymentRecurringPercent && r.PrepaymentValue > 100 {
			return dErrors.New(dErrors.CodeValidation, "prepayment_value is a percentage and cannot exceed 100")
		}
	case PrepaymentCustom:
		if len(r.Prepayments) == 0 {
			return dErrors.New(dErrors.CodeValidation, "prepayments map is required for CUSTOM")
		}
		for month, amount := range r.Prepayments {
			if month < 1 || amount <= 0 {
				return dErrors.New(dErrors.CodeValidation, "prepayments entries must use positive months and amounts")
			}
		}
	default:
		return dErrors.Newf(dErrors.CodeValidation, "prepayment_type %q is not one of LUMPSUM, RECURRING_PERCENT, CUSTOM", r.PrepaymentType)
	}
	return nil
}

// Savings quantifies a projection against the do-nothing baseline.
type Savings struct {
	InterestSaved        float64   `json:"interest_saved"`
	MonthsSaved          int       `json:"months_saved"`
	InterestSavedPercent float64   `json:"interest_saved_percent"`
	TenureReducedPercent float64   `json:"tenure_reduced_percent"`
	BaselineClosure      date.Date `json:"baseline_closure"`
	ProjectedClosure     date.Date `json:"projected_closure"`
}

// Projection is the full result of running one scenario.
type Projection struct {
	Scenario *Scenario        `json:"scenario,omitempty"`
	Baseline schedule.Summary `json:"baseline"`
	Modified schedule.Summary `json:"modified"`
	Savings  Savings          `json:"savings"`
	Entries  []schedule.Entry `json:"entries,omitempty"`
}

// MonthOption is one candidate in an optimal-month sweep.
type MonthOption struct {
	Month         int     `json:"month"`
	InterestSaved float64 `json:"interest_saved"`
	MonthsSaved   int     `json:"months_saved"`
}

// OptimalResult ranks prepayment timing over a horizon.
type OptimalResult struct {
	Amount      float64       `json:"amount"`
	BestMonth   int           `json:"best_month"`
	BestSavings float64       `json:"best_savings"`
	Options     []MonthOption `json:"options"`
}

// BreakevenResult is the smallest lumpsum that achieves a tenure reduction
// target.
type BreakevenResult struct {
	TargetMonthsSaved int     `json:"target_months_saved"`
	Month             int     `json:"month"`
	Amount            float64 `json:"amount"`
	MonthsSaved       int     `json:"months_saved"`
	InterestSaved     float64 `json:"interest_saved"`
	Achievable        bool    `json:"achievable"`
}

// Store is the persistence boundary for saved scenarios.
type Store interface {
	Create(ctx context.Context, s *Scenario) (int64, error)
	GetByID(ctx context.Context, scenarioID int64) (*Scenario, error)
	// ListByLoan returns scenarios newest first.
	ListByLoan(ctx context.Context, loanID int64) ([]*Scenario, error)
	CountByLoan(ctx context.Context, loanID int64) (int, error)
	Delete(ctx context.Context, scenarioID int64) error
}
