package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"loanbook/internal/loan"
	"loanbook/pkg/date"
	"loanbook/pkg/platform/sentinel"
)

// InMemoryStore keeps payments in maps. Foreign keys and cascade deletes are
// emulated against the loan store it is constructed with.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	payments map[int64]*Payment
	loans    *loan.InMemoryStore
}

func NewInMemoryStore(loans *loan.InMemoryStore) *InMemoryStore {
	s := &InMemoryStore{
		nextID:   1,
		payments: make(map[int64]*Payment),
		loans:    loans,
	}
	if loans != nil {
		loans.OnDelete(s.deleteByLoan)
	}
	return s
}

func (s *InMemoryStore) deleteByLoan(loanID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if p.LoanID == loanID {
			delete(s.payments, id)
		}
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *Payment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loans != nil && !s.loans.Exists(p.LoanID) {
		return 0, sentinel.ErrForeignKey
	}
	cp := *p
	cp.ID = s.nextID
	cp.CreatedAt = time.Now()
	s.nextID++
	s.payments[cp.ID] = &cp

	p.ID = cp.ID
	p.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, paymentID int64) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListByLoan(ctx context.Context, loanID int64) ([]*Payment, error) {
	return s.ListByDateRange(ctx, loanID, date.Date{}, date.Date{})
}

func (s *InMemoryStore) ListByDateRange(_ context.Context, loanID int64, from, to date.Date) ([]*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Payment
	for _, p := range s.payments {
		if p.LoanID != loanID {
			continue
		}
		if !from.IsZero() && p.PaymentDate.Before(from.Time) {
			continue
		}
		if !to.IsZero() && p.PaymentDate.After(to.Time) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaymentDate.Before(out[j].PaymentDate.Time)
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.payments[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	s.payments[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[paymentID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.payments, paymentID)
	return nil
}

func (s *InMemoryStore) UpdateBalance(_ context.Context, paymentID int64, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.BalanceRemaining = balance
	return nil
}
