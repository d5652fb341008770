package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, discardLogger())

	pub.Emit(context.Background(), Event{
		Action:   ActionLoanCreated,
		Entity:   "loan",
		EntityID: 7,
		LoanID:   7,
	})

	events := store.All()
	require.Len(t, events, 1)
	assert.Equal(t, ActionLoanCreated, events[0].Action)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, discardLogger(), WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		pub.Emit(context.Background(), Event{Action: ActionPaymentRecorded, LoanID: 1})
	}
	pub.Close()

	assert.Len(t, store.All(), 5)
}

func TestPublisher_BufferFullDropsEvent(t *testing.T) {
	store := &blockingStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	pub := NewPublisher(store, discardLogger(), WithAsyncBuffer(1))

	// First event occupies the worker, second fills the buffer, third drops.
	pub.Emit(context.Background(), Event{Action: ActionLoanCreated, LoanID: 1})
	select {
	case <-store.started:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up first event")
	}
	pub.Emit(context.Background(), Event{Action: ActionLoanCreated, LoanID: 2})
	pub.Emit(context.Background(), Event{Action: ActionLoanCreated, LoanID: 3})

	close(store.release)
	pub.Close()

	assert.Equal(t, 2, store.count())
}

func TestPublisher_ListByLoan(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, discardLogger())

	pub.Emit(context.Background(), Event{Action: ActionLoanCreated, LoanID: 1})
	pub.Emit(context.Background(), Event{Action: ActionPaymentRecorded, LoanID: 2})
	pub.Emit(context.Background(), Event{Action: ActionPaymentDeleted, LoanID: 1})

	events, err := pub.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionLoanCreated, events[0].Action)
	assert.Equal(t, ActionPaymentDeleted, events[1].Action)
}

func TestPublisher_NilReceiverIsSafe(t *testing.T) {
	var pub *Publisher
	pub.Emit(context.Background(), Event{Action: ActionLoanCreated})
	pub.Close()
}

type blockingStore struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once

	mu sync.Mutex
	n  int
}

func (s *blockingStore) Append(_ context.Context, _ Event) error {
	s.startOnce.Do(func() { close(s.started) })
	<-s.release
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

func (s *blockingStore) ListByLoan(_ context.Context, _ int64) ([]Event, error) {
	return nil, nil
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
