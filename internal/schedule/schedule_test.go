package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTerms() Terms {
	return Terms{
		Principal:        100000,
		AnnualRate:       12,
		TenureMonths:     12,
		EMI:              EMI(100000, 12, 12),
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentFrequency: "MONTHLY",
	}
}

func TestEMI(t *testing.T) {
	// 1 lakh at 12% over 12 months is the textbook ₹8,885 case.
	assert.Equal(t, 8885.0, EMI(100000, 12, 12))

	// Zero rate divides evenly.
	assert.Equal(t, 8333.33, EMI(100000, 0, 12))

	// Degenerate inputs.
	assert.Equal(t, 0.0, EMI(0, 10, 12))
	assert.Equal(t, 0.0, EMI(100000, 10, 0))
}

func TestSplit(t *testing.T) {
	principal, interest := Split(8885, 100000, 12)
	assert.Equal(t, 1000.0, interest) // 100000 * 1% monthly
	assert.Equal(t, 7885.0, principal)

	// No outstanding balance: everything is principal.
	principal, interest = Split(5000, 0, 12)
	assert.Equal(t, 5000.0, principal)
	assert.Equal(t, 0.0, interest)

	// Principal component clamped to outstanding.
	principal, _ = Split(8885, 500, 12)
	assert.Equal(t, 500.0, principal)

	// Installment smaller than the accrued interest: interest is capped and
	// principal stays at zero rather than going negative.
	principal, interest = Split(500, 100000, 12)
	assert.Equal(t, 0.0, principal)
	assert.Equal(t, 500.0, interest)

	principal, interest = Split(0, 100000, 12)
	assert.Equal(t, 0.0, principal)
	assert.Equal(t, 0.0, interest)
}

func TestStandardScheduleInvariants(t *testing.T) {
	terms := testTerms()
	entries := terms.Standard()

	require.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), terms.TenureMonths, "schedule never runs past the tenure")

	var principalSum float64
	for i, e := range entries {
		assert.Equal(t, i+1, e.PaymentNumber)
		assert.Equal(t, (i+1), e.Month)
		principalSum += e.Principal
	}
	assert.InDelta(t, terms.Principal, principalSum, 0.05, "principal components must sum to the principal")
	assert.Equal(t, 0.0, entries[len(entries)-1].Balance, "final balance must be zero")

	// Dates advance by one month from the start date.
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), entries[0].Date)
}

func TestQuarterlyScheduleSpacing(t *testing.T) {
	terms := testTerms()
	terms.PaymentFrequency = "QUARTERLY"
	entries := terms.Standard()

	require.NotEmpty(t, entries)
	assert.Equal(t, 3, entries[0].Month)
	if len(entries) > 1 {
		assert.Equal(t, 6, entries[1].Month)
	}
}

func TestWithPrepaymentsShortensLoan(t *testing.T) {
	terms := testTerms()
	base := Summarize(terms.Standard(), terms.Principal)

	withPrepay := terms.WithPrepayments(map[int]float64{3: 20000})
	modified := Summarize(withPrepay, terms.Principal)

	assert.Less(t, modified.TotalInterest, base.TotalInterest)
	assert.Less(t, modified.ActualTenure, base.ActualTenure)
	assert.Equal(t, 20000.0, modified.TotalPrepayment)

	cmp := Compare(base, modified)
	assert.Positive(t, cmp.InterestSaved)
	assert.Positive(t, cmp.MonthsSaved)
}

func TestWithEMIIncreaseShortensLoan(t *testing.T) {
	terms := Terms{
		Principal:        1000000,
		AnnualRate:       9,
		TenureMonths:     120,
		EMI:              EMI(1000000, 9, 120),
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentFrequency: "MONTHLY",
	}
	base := Summarize(terms.Standard(), terms.Principal)

	entries := terms.WithEMIIncrease(10, 12)
	modified := Summarize(entries, terms.Principal)

	assert.Less(t, modified.ActualTenure, base.ActualTenure)
	assert.Less(t, modified.TotalInterest, base.TotalInterest)
	assert.Equal(t, 0.0, entries[len(entries)-1].Balance)

	// Before the step month the EMI is unchanged.
	assert.Equal(t, terms.EMI, entries[0].EMI)
}

func TestWithRateChangesRecomputesEMI(t *testing.T) {
	terms := Terms{
		Principal:        1000000,
		AnnualRate:       9,
		TenureMonths:     120,
		EMI:              EMI(1000000, 9, 120),
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentFrequency: "MONTHLY",
	}

	entries := terms.WithRateChanges([]RateChange{{Month: 13, NewRate: 10.5}})
	require.NotEmpty(t, entries)

	assert.Equal(t, 9.0, entries[0].Rate)
	var post Entry
	for _, e := range entries {
		if e.Month == 13 {
			post = e
		}
	}
	require.NotZero(t, post.Month, "schedule must reach the rate change month")
	assert.Equal(t, 10.5, post.Rate)
	assert.Greater(t, post.EMI, entries[0].EMI, "rate hike raises the EMI")
	assert.Equal(t, 0.0, entries[len(entries)-1].Balance)
}

func TestPrepaymentImpact(t *testing.T) {
	emi := EMI(1000000, 9, 120)
	impact := PrepaymentImpact(1000000, 100000, 9, 120, emi)

	assert.Equal(t, 900000.0, impact.NewBalance)
	assert.Less(t, impact.NewTenure, 120)
	assert.Positive(t, impact.MonthsSaved)
	assert.Positive(t, impact.InterestSaved)
	assert.Less(t, impact.NewEMI, emi)

	// Prepaying the whole balance closes the loan.
	full := PrepaymentImpact(50000, 50000, 9, 24, emi)
	assert.Equal(t, 0.0, full.NewBalance)
	assert.Equal(t, 24, full.MonthsSaved)
}

func TestOutstandingAfter(t *testing.T) {
	terms := testTerms()
	assert.Equal(t, terms.Principal, OutstandingAfter(terms.Principal, terms.AnnualRate, terms.EMI, 0))

	after6 := OutstandingAfter(terms.Principal, terms.AnnualRate, terms.EMI, 6)
	assert.Greater(t, after6, 0.0)
	assert.Less(t, after6, terms.Principal)

	assert.Equal(t, 0.0, OutstandingAfter(terms.Principal, terms.AnnualRate, terms.EMI, 12))
}

func TestFrequencyMonths(t *testing.T) {
	assert.Equal(t, 1, FrequencyMonths("MONTHLY"))
	assert.Equal(t, 3, FrequencyMonths("QUARTERLY"))
	assert.Equal(t, 12, FrequencyMonths("ANNUALLY"))
	assert.Equal(t, 1, FrequencyMonths("unknown"))
}

func TestAdjustEMIForDisbursement(t *testing.T) {
	emi := AdjustEMIForDisbursement(500000, 250000, 8.5, 180)
	assert.Equal(t, EMI(750000, 8.5, 180), emi)
}
