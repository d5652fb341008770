package loan

import (
	"fmt"
	"regexp"
	"strings"

	dErrors "loanbook/pkg/domain-errors"
)

// Validation bounds. Amounts are in whole currency units.
const (
	minNameLen   = 3
	maxNameLen   = 100
	minBankLen   = 2
	maxBankLen   = 100
	MinPrincipal = 1_000.0
	MaxPrincipal = 100_000_000.0
	MinRate      = 0.01
	MaxRate      = 50.0
	MinTerm      = 1
	MaxTerm      = 360
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_()&.]+$`)

// Validate checks field-level rules before a loan reaches a store. The storage
// CHECK constraints repeat the enum rules as a second line of defense.
func (l *Loan) Validate() error {
	var problems []string

	name := strings.TrimSpace(l.Name)
	switch {
	case name == "":
		problems = append(problems, "loan_name is required")
	case len(name) < minNameLen || len(name) > maxNameLen:
		problems = append(problems, fmt.Sprintf("loan_name must be %d-%d characters", minNameLen, maxNameLen))
	case !namePattern.MatchString(name):
		problems = append(problems, "loan_name may only contain letters, numbers, spaces, and - _ ( ) & .")
	}

	bank := strings.TrimSpace(l.BankName)
	if len(bank) < minBankLen || len(bank) > maxBankLen {
		problems = append(problems, fmt.Sprintf("bank_name must be %d-%d characters", minBankLen, maxBankLen))
	}

	switch l.Type {
	case TypeHome, TypePersonal, TypeAuto:
	default:
		problems = append(problems, fmt.Sprintf("loan_type %q is not one of HOME, PERSONAL, AUTO", l.Type))
	}
	switch l.RateType {
	case RateFixed, RateFloating:
	default:
		problems = append(problems, fmt.Sprintf("rate_type %q is not one of FIXED, FLOATING", l.RateType))
	}
	switch l.PaymentFrequency {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
	default:
		problems = append(problems, fmt.Sprintf("payment_frequency %q is not one of MONTHLY, QUARTERLY, ANNUALLY", l.PaymentFrequency))
	}
	switch l.Status {
	case StatusPending, StatusActive, StatusClosed:
	default:
		problems = append(problems, fmt.Sprintf("status %q is not one of ACTIVE, CLOSED, PENDING", l.Status))
	}

	if l.PrincipalAmount < MinPrincipal || l.PrincipalAmount > MaxPrincipal {
		problems = append(problems, fmt.Sprintf("principal_amount must be between %.0f and %.0f", MinPrincipal, MaxPrincipal))
	}
	if l.SanctionedAmount < 0 {
		problems = append(problems, "sanctioned_amount must be non-negative")
	}
	if l.SanctionedAmount > 0 && l.PrincipalAmount > l.SanctionedAmount {
		problems = append(problems, "principal_amount cannot exceed sanctioned_amount")
	}
	if l.InterestRate < MinRate || l.InterestRate > MaxRate {
		problems = append(problems, fmt.Sprintf("interest_rate must be between %.2f and %.0f", MinRate, MaxRate))
	}
	if l.TermMonths < MinTerm || l.TermMonths > MaxTerm {
		problems = append(problems, fmt.Sprintf("loan_term_months must be between %d and %d", MinTerm, MaxTerm))
	}
	if l.StartDate.IsZero() {
		problems = append(problems, "start_date is required")
	}
	if l.EMIAmount < 0 {
		problems = append(problems, "emi_amount must be non-negative")
	}

	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks a rate change event.
func (rc *RateChange) Validate() error {
	var problems []string
	if rc.LoanID <= 0 {
		problems = append(problems, "loan_id is required")
	}
	if rc.EffectiveDate.IsZero() {
		problems = append(problems, "effective_date is required")
	}
	if rc.InterestRate < MinRate || rc.InterestRate > MaxRate {
		problems = append(problems, fmt.Sprintf("interest_rate must be between %.2f and %.0f", MinRate, MaxRate))
	}
	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks a disbursement event.
func (d *Disbursement) Validate() error {
	var problems []string
	if d.LoanID <= 0 {
		problems = append(problems, "loan_id is required")
	}
	if d.DisbursementDate.IsZero() {
		problems = append(problems, "disbursement_date is required")
	}
	if d.Amount <= 0 {
		problems = append(problems, "amount must be positive")
	}
	if d.NewEMI < 0 {
		problems = append(problems, "new_emi must be non-negative")
	}
	if len(problems) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
	}
	return nil
}
