// Package schedule implements reducing-balance loan math: EMI derivation,
// payment splits, amortization schedules, and prepayment/rate-change variants.
// Everything here is pure; persistence and transport live elsewhere.
package schedule

import (
	"math"

	"loanbook/pkg/money"
)

const monthsInYear = 12

// balanceEpsilon treats sub-paisa residue as a closed loan.
const balanceEpsilon = 0.01

// FrequencyMonths returns the number of months between payments. Unknown
// frequencies fall back to monthly.
func FrequencyMonths(frequency string) int {
	switch frequency {
	case "QUARTERLY":
		return 3
	case "ANNUALLY":
		return 12
	default:
		return 1
	}
}

// EMI computes the equated installment with the reducing balance formula
// EMI = P * r * (1+r)^n / ((1+r)^n - 1), r being the monthly rate. The result
// is rounded to whole currency units, matching how banks quote EMIs.
func EMI(principal, annualRate float64, tenureMonths int) float64 {
	if principal <= 0 || tenureMonths <= 0 {
		return 0
	}
	if annualRate == 0 {
		return money.Round(principal / float64(tenureMonths))
	}
	r := annualRate / (monthsInYear * 100)
	pow := math.Pow(1+r, float64(tenureMonths))
	emi := principal * r * pow / (pow - 1)
	return money.RoundWhole(emi)
}

// Split divides one installment into principal and interest components against
// the current outstanding balance. Interest is capped at the installment, so
// the principal component is never negative.
func Split(emi, outstanding, annualRate float64) (principal, interest float64) {
	if outstanding <= 0 {
		return emi, 0
	}
	r := annualRate / (monthsInYear * 100)
	interest = outstanding * r
	if interest > emi {
		interest = emi
	}
	principal = emi - interest
	if principal > outstanding {
		principal = outstanding
	}
	return money.Round(principal), money.Round(interest)
}

// TotalInterest is the naive total interest over a full tenure at a fixed EMI.
func TotalInterest(principal, emi float64, tenureMonths int) float64 {
	return money.Round(emi*float64(tenureMonths) - principal)
}

// OutstandingAfter walks the balance forward the given number of months.
func OutstandingAfter(principal, annualRate, emi float64, monthsElapsed int) float64 {
	if monthsElapsed == 0 {
		return principal
	}
	r := annualRate / (monthsInYear * 100)
	outstanding := principal
	for i := 0; i < monthsElapsed; i++ {
		interest := outstanding * r
		outstanding -= emi - interest
		if outstanding <= 0 {
			return 0
		}
	}
	return money.Round(outstanding)
}

// AdjustEMIForDisbursement recomputes the EMI after a tranche release raises
// the outstanding principal.
func AdjustEMIForDisbursement(currentPrincipal, disbursement, annualRate float64, remainingMonths int) float64 {
	return EMI(currentPrincipal+disbursement, annualRate, remainingMonths)
}

// Impact describes what a single prepayment does to the remaining loan.
type Impact struct {
	NewBalance    float64 `json:"new_balance"`
	NewTenure     int     `json:"new_tenure"`
	MonthsSaved   int     `json:"months_saved"`
	InterestSaved float64 `json:"interest_saved"`
	NewEMI        float64 `json:"new_emi"`
}

// PrepaymentImpact computes the tenure and interest effect of prepaying while
// keeping the EMI unchanged. The new tenure comes from
// n = log(EMI / (EMI - P*r)) / log(1 + r).
func PrepaymentImpact(outstanding, prepayment, annualRate float64, remainingMonths int, currentEMI float64) Impact {
	if prepayment >= outstanding {
		return Impact{MonthsSaved: remainingMonths}
	}

	newPrincipal := outstanding - prepayment
	originalInterest := currentEMI*float64(remainingMonths) - outstanding

	var newTenure int
	if annualRate == 0 {
		newTenure = int(math.Ceil(newPrincipal / currentEMI))
	} else {
		r := annualRate / (monthsInYear * 100)
		if currentEMI <= newPrincipal*r {
			// EMI no longer covers interest; tenure cannot shrink.
			newTenure = remainingMonths
		} else {
			n := math.Log(currentEMI/(currentEMI-newPrincipal*r)) / math.Log(1+r)
			newTenure = int(math.Ceil(n))
		}
	}

	newInterest := currentEMI*float64(newTenure) - newPrincipal
	return Impact{
		NewBalance:    money.Round(newPrincipal),
		NewTenure:     newTenure,
		MonthsSaved:   remainingMonths - newTenure,
		InterestSaved: money.Round(originalInterest - newInterest),
		NewEMI:        EMI(newPrincipal, annualRate, remainingMonths),
	}
}
