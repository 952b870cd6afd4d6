// Package pool stages granted numbers as AVAILABLE identifier documents.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cveregistry/internal/cveid/metrics"
	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/ports"
	"cveregistry/pkg/requestcontext"
)

// ErrInvalidWindow is returned for empty or inverted windows.
var ErrInvalidWindow = errors.New("invalid materialization window")

// insertBatch bounds the size of one bulk insert.
const insertBatch = 1000

var tracer = otel.Tracer("cveregistry/internal/cveid/pool")

// Materializer inserts one AVAILABLE document per number of a granted window.
type Materializer struct {
	ids     ports.IdentifierStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Materializer)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Materializer) {
		m.metrics = mt
	}
}

func New(ids ports.IdentifierStore, opts ...Option) (*Materializer, error) {
	if ids == nil {
		return nil, fmt.Errorf("identifier store is required")
	}
	m := &Materializer{ids: ids, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Materialize stages every number in (fromExclusive, toInclusive] of year in
// ascending order and returns how many documents were inserted. Windows must
// come from a just-granted extension; materializing one twice fails with
// sentinel.ErrConflict from the store.
func (m *Materializer) Materialize(ctx context.Context, year int, fromExclusive, toInclusive int64) (int, error) {
	if toInclusive <= fromExclusive {
		return 0, fmt.Errorf("(%d, %d]: %w", fromExclusive, toInclusive, ErrInvalidWindow)
	}

	ctx, span := tracer.Start(ctx, "pool.Materialize")
	defer span.End()
	span.SetAttributes(
		attribute.Int("cve.year", year),
		attribute.Int64("cve.from_exclusive", fromExclusive),
		attribute.Int64("cve.to_inclusive", toInclusive),
	)

	now := requestcontext.Now(ctx)
	inserted := 0
	for start := fromExclusive + 1; start <= toInclusive; start += insertBatch {
		end := min(start+insertBatch-1, toInclusive)
		batch := make([]models.Identifier, 0, end-start+1)
		for n := start; n <= end; n++ {
			batch = append(batch, models.NewAvailable(year, n, now))
		}
		if err := m.ids.InsertAvailable(ctx, batch); err != nil {
			span.RecordError(err)
			m.metrics.AddMaterialized(inserted)
			return inserted, fmt.Errorf("materialize %s..%s: %w", batch[0].ID, batch[len(batch)-1].ID, err)
		}
		inserted += len(batch)
	}

	m.metrics.AddMaterialized(inserted)
	m.logger.DebugContext(ctx, "identifiers materialized",
		"year", year,
		"from_exclusive", fromExclusive,
		"to_inclusive", toInclusive,
		"count", inserted,
	)
	return inserted, nil
}
