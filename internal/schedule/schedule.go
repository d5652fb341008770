package schedule

import (
	"time"

	"loanbook/pkg/money"
)

// Terms is the projection input: the loan state a schedule starts from.
type Terms struct {
	Principal        float64
	AnnualRate       float64
	TenureMonths     int
	EMI              float64
	StartDate        time.Time
	PaymentFrequency string
}

// Entry is one row of an amortization schedule.
type Entry struct {
	PaymentNumber int       `json:"payment_number"`
	Month         int       `json:"month"`
	Date          time.Time `json:"date"`
	Rate          float64   `json:"interest_rate,omitempty"`
	EMI           float64   `json:"emi"`
	Principal     float64   `json:"principal"`
	Interest      float64   `json:"interest"`
	Prepayment    float64   `json:"prepayment,omitempty"`
	Balance       float64   `json:"balance"`
}

// Summary aggregates a schedule.
type Summary struct {
	Principal       float64 `json:"principal"`
	TotalInterest   float64 `json:"total_interest"`
	TotalAmount     float64 `json:"total_amount"`
	TotalPrepayment float64 `json:"total_prepayment"`
	ActualTenure    int     `json:"actual_tenure"`
	TotalPayments   int     `json:"total_payments"`
}

// RateChange marks a floating-rate revision at a given schedule month.
type RateChange struct {
	Month   int
	NewRate float64
}

// maxScheduledPayments is ceil(tenure/step): a schedule never runs past its
// tenure, so the last scheduled payment absorbs any EMI rounding residue.
func maxScheduledPayments(tenureMonths, step int) int {
	return (tenureMonths + step - 1) / step
}

// Standard generates the plain amortization schedule: fixed EMI until the
// balance reaches zero, final installment clamped to settle the remaining
// principal within the tenure.
func (t Terms) Standard() []Entry {
	return t.withPrepayments(nil)
}

// WithPrepayments applies lump prepayments at the given months (month number ->
// amount) on top of the standard schedule.
func (t Terms) WithPrepayments(prepayments map[int]float64) []Entry {
	return t.withPrepayments(prepayments)
}

func (t Terms) withPrepayments(prepayments map[int]float64) []Entry {
	step := FrequencyMonths(t.PaymentFrequency)
	maxPayments := maxScheduledPayments(t.TenureMonths, step)

	var entries []Entry
	outstanding := t.Principal

	for p := 0; p < maxPayments; p++ {
		if outstanding <= balanceEpsilon {
			break
		}
		month := (p + 1) * step

		principal, interest := Split(t.EMI, outstanding, t.AnnualRate)
		emi := t.EMI
		if principal >= outstanding || p == maxPayments-1 {
			principal = outstanding
			emi = principal + interest
		}
		outstanding -= principal

		var prepay float64
		if amount, ok := prepayments[month]; ok {
			prepay = amount
			if prepay > outstanding {
				prepay = outstanding
			}
			outstanding -= prepay
		}
		if outstanding < balanceEpsilon {
			outstanding = 0
		}

		entries = append(entries, Entry{
			PaymentNumber: p + 1,
			Month:         month,
			Date:          t.StartDate.AddDate(0, month, 0),
			EMI:           money.Round(emi),
			Principal:     money.Round(principal),
			Interest:      money.Round(interest),
			Prepayment:    money.Round(prepay),
			Balance:       money.Round(outstanding),
		})
	}
	return entries
}

// WithEMIIncrease raises the EMI by the given percentage from a schedule month
// onward. The loan closes earlier because the extra payment goes to principal.
func (t Terms) WithEMIIncrease(percent float64, fromMonth int) []Entry {
	step := FrequencyMonths(t.PaymentFrequency)
	maxPayments := maxScheduledPayments(t.TenureMonths, step)

	raised := money.Round(t.EMI * (1 + percent/100))

	var entries []Entry
	outstanding := t.Principal

	for p := 0; p < maxPayments; p++ {
		if outstanding <= balanceEpsilon {
			break
		}
		month := (p + 1) * step

		emi := t.EMI
		if month >= fromMonth {
			emi = raised
		}

		principal, interest := Split(emi, outstanding, t.AnnualRate)
		if principal >= outstanding || p == maxPayments-1 {
			principal = outstanding
			emi = principal + interest
		}
		outstanding -= principal
		if outstanding < balanceEpsilon {
			outstanding = 0
		}

		entries = append(entries, Entry{
			PaymentNumber: p + 1,
			Month:         month,
			Date:          t.StartDate.AddDate(0, month, 0),
			EMI:           money.Round(emi),
			Principal:     money.Round(principal),
			Interest:      money.Round(interest),
			Balance:       money.Round(outstanding),
		})
	}
	return entries
}

// WithRateChanges regenerates the schedule across floating-rate revisions. At
// each change the EMI is recomputed over the remaining tenure at the new rate.
func (t Terms) WithRateChanges(changes []RateChange) []Entry {
	rateAt := make(map[int]float64, len(changes))
	for _, c := range changes {
		rateAt[c.Month] = c.NewRate
	}

	step := FrequencyMonths(t.PaymentFrequency)
	maxPayments := maxScheduledPayments(t.TenureMonths, step)

	var entries []Entry
	outstanding := t.Principal
	rate := t.AnnualRate
	emi := t.EMI

	for p := 0; p < maxPayments; p++ {
		if outstanding <= balanceEpsilon {
			break
		}
		month := (p + 1) * step

		if newRate, ok := rateAt[month]; ok {
			rate = newRate
			if remaining := t.TenureMonths - month; remaining > 0 {
				emi = EMI(outstanding, rate, remaining)
			}
		}

		principal, interest := Split(emi, outstanding, rate)
		actualEMI := emi
		if principal >= outstanding || p == maxPayments-1 {
			principal = outstanding
			actualEMI = principal + interest
		}
		outstanding -= principal
		if outstanding < balanceEpsilon {
			outstanding = 0
		}

		entries = append(entries, Entry{
			PaymentNumber: p + 1,
			Month:         month,
			Date:          t.StartDate.AddDate(0, month, 0),
			Rate:          rate,
			EMI:           money.Round(actualEMI),
			Principal:     money.Round(principal),
			Interest:      money.Round(interest),
			Balance:       money.Round(outstanding),
		})
	}
	return entries
}

// Summarize aggregates a generated schedule against its starting principal.
func Summarize(entries []Entry, principal float64) Summary {
	var s Summary
	s.Principal = money.Round(principal)
	for _, e := range entries {
		s.TotalInterest += e.Interest
		s.TotalAmount += e.EMI + e.Prepayment
		s.TotalPrepayment += e.Prepayment
		if e.Month > s.ActualTenure {
			s.ActualTenure = e.Month
		}
	}
	s.TotalPayments = len(entries)
	s.TotalInterest = money.Round(s.TotalInterest)
	s.TotalAmount = money.Round(s.TotalAmount)
	s.TotalPrepayment = money.Round(s.TotalPrepayment)
	return s
}

// Comparison contrasts a modified schedule against a base one.
type Comparison struct {
	InterestSaved    float64 `json:"interest_saved"`
	MonthsSaved      int     `json:"months_saved"`
	BaseInterest     float64 `json:"base_interest"`
	ModifiedInterest float64 `json:"modified_interest"`
	BaseTenure       int     `json:"base_tenure"`
	ModifiedTenure   int     `json:"modified_tenure"`
}

// Compare reports the savings a modified schedule achieves over the base.
func Compare(base, modified Summary) Comparison {
	return Comparison{
		InterestSaved:    money.Round(base.TotalInterest - modified.TotalInterest),
		MonthsSaved:      base.ActualTenure - modified.ActualTenure,
		BaseInterest:     base.TotalInterest,
		ModifiedInterest: modified.TotalInterest,
		BaseTenure:       base.ActualTenure,
		ModifiedTenure:   modified.ActualTenure,
	}
}
