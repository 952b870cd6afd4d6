// Package compliance provides a fail-closed audit publisher for ownership events.
//
// Publisher emits events with synchronous, fail-closed semantics. Events are
// written to the store (the outbox in production) and the caller blocks until
// the write succeeds. If the write fails, an error is returned.
//
// Use for: nonsequential_reservation, nonsequential_reservation_partial, range_provisioned
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "cveregistry/pkg/platform/audit"
)

// Publisher emits audit events with fail-closed semantics.
// All writes are synchronous - the caller blocks until persistence succeeds or fails.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes an event to the audit store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	return nil
}

// Close is a no-op for the synchronous publisher.
func (p *Publisher) Close() error {
	return nil
}
