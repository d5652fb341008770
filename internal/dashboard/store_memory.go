package dashboard

import (
	"context"
	"sort"

	"loanbook/internal/loan"
	"loanbook/internal/payment"
	"loanbook/internal/schedule"
	"loanbook/pkg/date"
	"loanbook/pkg/money"
)

// InMemoryStore computes the aggregates from the in-memory feature stores.
// Used by unit tests and dev mode; results match the SQL implementation.
type InMemoryStore struct {
	loans    *loan.InMemoryStore
	payments *payment.InMemoryStore
}

func NewInMemoryStore(loans *loan.InMemoryStore, payments *payment.InMemoryStore) *InMemoryStore {
	return &InMemoryStore{loans: loans, payments: payments}
}

func (s *InMemoryStore) outstanding(ctx context.Context, l *loan.Loan) float64 {
	payments, _ := s.payments.ListByLoan(ctx, l.ID)
	out := l.PrincipalAmount
	for _, p := range payments {
		if p.Status == payment.StatusPaid {
			out = p.BalanceRemaining
		}
	}
	return out
}

func (s *InMemoryStore) TotalOutstanding(ctx context.Context) (float64, error) {
	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return 0, err
	}
	var total float64
	for _, l := range loans {
		if l.Status == loan.StatusActive || l.Status == loan.StatusPending {
			total += s.outstanding(ctx, l)
		}
	}
	return money.Round(total), nil
}

func (s *InMemoryStore) MonthlyObligation(ctx context.Context) (float64, error) {
	loans, err := s.loans.List(ctx, loan.StatusActive)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, l := range loans {
		total += l.EMIAmount / float64(schedule.FrequencyMonths(string(l.PaymentFrequency)))
	}
	return money.Round(total), nil
}

func (s *InMemoryStore) InterestPaidInYear(ctx context.Context, year int) (float64, error) {
	var total float64
	err := s.eachPayment(ctx, func(p *payment.Payment) {
		if p.Status == payment.StatusPaid && p.PaymentDate.Year() == year {
			total += p.InterestComponent
		}
	})
	return money.Round(total), err
}

func (s *InMemoryStore) NextPaymentDue(ctx context.Context, onOrAfter date.Date) (*NextPayment, error) {
	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var next *NextPayment
	for _, l := range loans {
		payments, err := s.payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			if p.Status != payment.StatusPending || p.ScheduledDate.Before(onOrAfter.Time) {
				continue
			}
			if next == nil || p.ScheduledDate.Before(next.DueDate.Time) {
				next = &NextPayment{
					LoanID:   l.ID,
					LoanName: l.Name,
					BankName: l.BankName,
					DueDate:  p.ScheduledDate,
					Amount:   p.TotalAmount,
				}
			}
		}
	}
	return next, nil
}

func (s *InMemoryStore) LoanCards(ctx context.Context) ([]LoanCard, error) {
	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]LoanCard, 0, len(loans))
	for _, l := range loans {
		outstanding := s.outstanding(ctx, l)
		progress := 0.0
		if l.PrincipalAmount > 0 {
			progress = money.Round((l.PrincipalAmount - outstanding) / l.PrincipalAmount * 100)
		}
		out = append(out, LoanCard{
			LoanID:          l.ID,
			Name:            l.Name,
			BankName:        l.BankName,
			Type:            string(l.Type),
			Status:          string(l.Status),
			Principal:       l.PrincipalAmount,
			Outstanding:     outstanding,
			EMI:             l.EMIAmount,
			InterestRate:    l.InterestRate,
			ProgressPercent: progress,
		})
	}
	return out, nil
}

func (s *InMemoryStore) PrincipalVsInterest(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.eachPayment(ctx, func(p *payment.Payment) {
		if p.Status != payment.StatusPaid {
			return
		}
		t.PrincipalPaid += p.PrincipalComponent
		t.InterestPaid += p.InterestComponent
		t.ChargesPaid += p.Charges
	})
	t.PrincipalPaid = money.Round(t.PrincipalPaid)
	t.InterestPaid = money.Round(t.InterestPaid)
	t.ChargesPaid = money.Round(t.ChargesPaid)
	return t, err
}

func (s *InMemoryStore) ComparisonRows(ctx context.Context) ([]ComparisonRow, error) {
	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []ComparisonRow
	for _, l := range loans {
		if l.Status == loan.StatusClosed {
			continue
		}
		payments, err := s.payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		var interestPaid float64
		for _, p := range payments {
			if p.Status == payment.StatusPaid {
				interestPaid += p.InterestComponent
			}
		}
		out = append(out, ComparisonRow{
			LoanID:            l.ID,
			Name:              l.Name,
			InterestRate:      l.InterestRate,
			EMI:               l.EMIAmount,
			Outstanding:       s.outstanding(ctx, l),
			TotalInterestPaid: money.Round(interestPaid),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InterestRate == out[j].InterestRate {
			return out[i].LoanID < out[j].LoanID
		}
		return out[i].InterestRate > out[j].InterestRate
	})
	return out, nil
}

func (s *InMemoryStore) PaymentStatusCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	err := s.eachPayment(ctx, func(p *payment.Payment) {
		out[string(p.Status)]++
	})
	return out, err
}

func (s *InMemoryStore) Timeline(ctx context.Context, months int) ([]TimelineBucket, error) {
	cutoff := date.Today().AddMonths(-months)
	buckets := make(map[string]*TimelineBucket)

	err := s.eachPayment(ctx, func(p *payment.Payment) {
		if p.Status != payment.StatusPaid || p.PaymentDate.Before(cutoff.Time) {
			return
		}
		key := p.PaymentDate.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &TimelineBucket{Month: key}
			buckets[key] = b
		}
		b.TotalPaid += p.TotalAmount
		b.PrincipalPaid += p.PrincipalComponent
		b.InterestPaid += p.InterestComponent
		b.Count++
	})
	if err != nil {
		return nil, err
	}

	out := make([]TimelineBucket, 0, len(buckets))
	for _, b := range buckets {
		b.TotalPaid = money.Round(b.TotalPaid)
		b.PrincipalPaid = money.Round(b.PrincipalPaid)
		b.InterestPaid = money.Round(b.InterestPaid)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *InMemoryStore) eachPayment(ctx context.Context, fn func(p *payment.Payment)) error {
	loans, err := s.loans.List(ctx, "")
	if err != nil {
		return err
	}
	for _, l := range loans {
		payments, err := s.payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			fn(p)
		}
	}
	return nil
}
