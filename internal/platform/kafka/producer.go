// Package kafka provides the thin producer used by the audit pipeline. Kafka is
// optional; a nil Producer disables publishing without branching at call sites.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"loanbook/internal/platform/config"
)

// Producer publishes JSON payloads to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers. Returns nil when no brokers
// are configured.
func NewProducer(cfg config.Kafka) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic}, nil
}

// Publish produces one record keyed for per-entity ordering and waits for the
// broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) error {
	if p == nil {
		return nil
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	if p != nil {
		p.client.Close()
	}
}
