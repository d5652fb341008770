package forecast

import (
	"context"
	"sort"
	"sync"
	"time"

	"loanbook/internal/loan"
	"loanbook/pkg/platform/sentinel"
)

// InMemoryStore keeps scenarios in a map, cascading with loan deletion.
type InMemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	scenarios map[int64]*Scenario
	loans     *loan.InMemoryStore
}

func NewInMemoryStore(loans *loan.InMemoryStore) *InMemoryStore {
	s := &InMemoryStore{
		nextID:    1,
		scenarios: make(map[int64]*Scenario),
		loans:     loans,
	}
	if loans != nil {
		loans.OnDelete(s.deleteByLoan)
	}
	return s
}

func (s *InMemoryStore) deleteByLoan(loanID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sc := range s.scenarios {
		if sc.LoanID == loanID {
			delete(s.scenarios, id)
		}
	}
}

func (s *InMemoryStore) Create(_ context.Context, sc *Scenario) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loans != nil && !s.loans.Exists(sc.LoanID) {
		return 0, sentinel.ErrForeignKey
	}
	cp := *sc
	cp.ID = s.nextID
	cp.CreatedAt = time.Now()
	s.nextID++
	s.scenarios[cp.ID] = &cp

	sc.ID = cp.ID
	sc.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, scenarioID int64) (*Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *InMemoryStore) ListByLoan(_ context.Context, loanID int64) ([]*Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Scenario
	for _, sc := range s.scenarios {
		if sc.LoanID == loanID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountByLoan(_ context.Context, loanID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sc := range s.scenarios {
		if sc.LoanID == loanID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Delete(_ context.Context, scenarioID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[scenarioID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.scenarios, scenarioID)
	return nil
}
