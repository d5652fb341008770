package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"loanbook/internal/platform/kafka"
)

// Publisher fans events out to the store and, when configured, Kafka. Emission
// is synchronous by default; WithAsyncBuffer switches to a buffered worker that
// drains on Close.
type Publisher struct {
	store    Store
	producer *kafka.Producer
	logger   *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithKafka adds a Kafka sink. A nil producer is ignored.
func WithKafka(p *kafka.Producer) Option {
	return func(pub *Publisher) { pub.producer = p }
}

// WithAsyncBuffer emits events through a buffered channel. Events beyond the
// buffer are dropped rather than blocking the caller.
func WithAsyncBuffer(size int) Option {
	return func(pub *Publisher) { pub.inbox = make(chan Event, size) }
}

// NewPublisher builds a publisher over the given store.
func NewPublisher(store Store, logger *slog.Logger, opts ...Option) *Publisher {
	pub := &Publisher{store: store, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(pub)
		}
	}
	if pub.inbox != nil {
		pub.wg.Add(1)
		go pub.drain()
	}
	return pub
}

// Emit records an event. Missing IDs and timestamps are filled in. Failures are
// logged and swallowed: the audit trail never fails a business operation.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
		return
	}
	p.deliver(ctx, event)
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("audit append failed", "action", event.Action, "error", err)
	}
	if p.producer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("audit marshal failed", "action", event.Action, "error", err)
		return
	}
	key := strconv.FormatInt(event.LoanID, 10)
	if err := p.producer.Publish(ctx, key, payload); err != nil {
		p.logger.Error("audit publish failed", "action", event.Action, "error", err)
	}
}

// List returns the trail for a loan.
func (p *Publisher) List(ctx context.Context, loanID int64) ([]Event, error) {
	return p.store.ListByLoan(ctx, loanID)
}

// Close drains the async buffer. Safe to call on a sync publisher.
func (p *Publisher) Close() {
	if p == nil || p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		p.wg.Wait()
	})
}
