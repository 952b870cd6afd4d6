package worker

import (
	"context"
	"log/slog"
	"time"

	"cveregistry/pkg/platform/audit/store/postgres"
)

// Outbox is the relay side of the Postgres audit store.
type Outbox interface {
	RelayBatch(ctx context.Context, limit int, publish func(ctx context.Context, entries []postgres.OutboxEntry) error) (int, error)
}

// Sink receives relayed, already-encoded events.
type Sink interface {
	Publish(ctx context.Context, subject, action string, value []byte) error
}

// Relay drains the audit outbox into a sink on a fixed interval. A failed
// batch stays unpublished and is retried on the next tick.
type Relay struct {
	outbox    Outbox
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRelay(outbox Outbox, sink Sink, interval time.Duration, batchSize int, logger *slog.Logger) *Relay {
	return &Relay{outbox: outbox, sink: sink, interval: interval, batchSize: batchSize, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// Drain relays batches until the outbox is empty and returns the count relayed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.outbox.RelayBatch(ctx, r.batchSize, func(ctx context.Context, entries []postgres.OutboxEntry) error {
			for _, e := range entries {
				if err := r.sink.Publish(ctx, e.Subject, e.Action, e.Payload); err != nil {
					return err
				}
			}
			return nil
		})
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || n < r.batchSize {
			return total, nil
		}
	}
}
