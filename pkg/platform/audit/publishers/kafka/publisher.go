// Package kafka publishes audit events to a Kafka topic.
//
// Records are keyed by subject (the owning organization) so every event of one
// organization lands on the same partition in emission order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "cveregistry/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher writes audit events synchronously to Kafka.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a Kafka audit publisher for topic.
func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit encodes event as JSON and produces it, blocking until acknowledged.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return p.Publish(ctx, event.Subject, event.Action, value)
}

// Publish produces an already-encoded event. Used by the outbox relay.
func (p *Publisher) Publish(ctx context.Context, subject, action string, value []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(action)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to publish audit event",
				"topic", p.topic,
				"action", action,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
