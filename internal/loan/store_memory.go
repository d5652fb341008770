package loan

import (
	"context"
	"sort"
	"sync"
	"time"

	"loanbook/pkg/platform/sentinel"
)

// InMemoryStore keeps loans in maps. Used by unit tests and dependency-free
// development mode; behavior mirrors the postgres store, including cascades.
type InMemoryStore struct {
	mu            sync.RWMutex
	nextID        int64
	loans         map[int64]*Loan
	rateChanges   map[int64][]*RateChange
	disbursements map[int64][]*Disbursement

	// cascade hooks let sibling feature stores participate in loan deletion.
	onDelete []func(loanID int64)
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:        1,
		loans:         make(map[int64]*Loan),
		rateChanges:   make(map[int64][]*RateChange),
		disbursements: make(map[int64][]*Disbursement),
	}
}

// OnDelete registers a cascade hook invoked with the loan ID after deletion.
func (s *InMemoryStore) OnDelete(fn func(loanID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Exists reports whether a loan is present; sibling stores use it to emulate
// foreign keys.
func (s *InMemoryStore) Exists(loanID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loans[loanID]
	return ok
}

func (s *InMemoryStore) Create(_ context.Context, l *Loan) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *l
	cp.ID = s.nextID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.nextID++
	s.loans[cp.ID] = &cp

	l.ID = cp.ID
	l.CreatedAt = now
	l.UpdatedAt = now
	return cp.ID, nil
}

func (s *InMemoryStore) GetByID(_ context.Context, loanID int64) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loans[loanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context, status Status) ([]*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Loan, 0, len(s.loans))
	for _, l := range s.loans {
		if status != "" && l.Status != status {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, l *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.loans[l.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *l
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.loans[l.ID] = &cp
	l.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, loanID int64) error {
	s.mu.Lock()
	if _, ok := s.loans[loanID]; !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(s.loans, loanID)
	delete(s.rateChanges, loanID)
	delete(s.disbursements, loanID)
	hooks := append([]func(int64){}, s.onDelete...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(loanID)
	}
	return nil
}

func (s *InMemoryStore) AddRateChange(_ context.Context, rc *RateChange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[rc.LoanID]; !ok {
		return 0, sentinel.ErrForeignKey
	}
	cp := *rc
	cp.ID = s.nextID
	cp.CreatedAt = time.Now()
	s.nextID++
	s.rateChanges[rc.LoanID] = append(s.rateChanges[rc.LoanID], &cp)
	rc.ID = cp.ID
	return cp.ID, nil
}

func (s *InMemoryStore) ListRateChanges(_ context.Context, loanID int64) ([]*RateChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := s.rateChanges[loanID]
	out := make([]*RateChange, 0, len(changes))
	for _, rc := range changes {
		cp := *rc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EffectiveDate.Before(out[j].EffectiveDate.Time)
	})
	return out, nil
}

func (s *InMemoryStore) AddDisbursement(_ context.Context, d *Disbursement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[d.LoanID]; !ok {
		return 0, sentinel.ErrForeignKey
	}
	cp := *d
	cp.ID = s.nextID
	cp.CreatedAt = time.Now()
	s.nextID++
	s.disbursements[d.LoanID] = append(s.disbursements[d.LoanID], &cp)
	d.ID = cp.ID
	return cp.ID, nil
}

func (s *InMemoryStore) ListDisbursements(_ context.Context, loanID int64) ([]*Disbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tranches := s.disbursements[loanID]
	out := make([]*Disbursement, 0, len(tranches))
	for _, d := range tranches {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisbursementDate.Before(out[j].DisbursementDate.Time)
	})
	return out, nil
}
