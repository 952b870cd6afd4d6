// Package ledger owns the per-year staging high-water mark of the general range.
package ledger

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
	"cveregistry/pkg/platform/sentinel"
)

// ErrNoRange is returned when no range document exists for the year or the
// requested increment is not positive.
var ErrNoRange = errors.New("no range for year")

var tracer = otel.Tracer("cveregistry/internal/cveid/ledger")

// Grant describes a successful extension: numbers in (PrevTopID, NewTopID]
// may now be materialized.
type Grant struct {
	PrevTopID int64
	NewTopID  int64
	End       int64
	// Granted is NewTopID - PrevTopID.
	Granted int64
	// Shortfall is the part of the request the range could not cover.
	Shortfall int64
}

// Full reports whether nothing could be granted.
func (g Grant) Full() bool {
	return g.Granted == 0
}

// Ledger raises TopID monotonically and never beyond End.
type Ledger struct {
	ranges  ports.RangeStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func New(ranges ports.RangeStore, opts ...Option) (*Ledger, error) {
	if ranges == nil {
		return nil, fmt.Errorf("range store is required")
	}
	l := &Ledger{ranges: ranges, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Extend atomically raises the general TopID of year by up to requested.
// A full range yields a Grant with Granted == 0 and no error.
func (l *Ledger) Extend(ctx context.Context, year int, requested int64) (Grant, error) {
	ctx, span := tracer.Start(ctx, "ledger.Extend")
	defer span.End()
	span.SetAttributes(attribute.Int("cve.year", year), attribute.Int64("cve.requested", requested))

	if requested <= 0 {
		return Grant{}, ErrNoRange
	}

	upd, err := l.ranges.ExtendTop(ctx, year, requested)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			l.metrics.ObserveExtension("not_provisioned")
			return Grant{}, ErrNoRange
		}
		span.RecordError(err)
		return Grant{}, fmt.Errorf("extend range %d: %w", year, err)
	}
	if upd.NewTopID > upd.End || upd.NewTopID < upd.PrevTopID {
		return Grant{}, fmt.Errorf("extend range %d: store returned top %d after %d with end %d: %w",
			year, upd.NewTopID, upd.PrevTopID, upd.End, sentinel.ErrInvalidState)
	}

	g := Grant{
		PrevTopID: upd.PrevTopID,
		NewTopID:  upd.NewTopID,
		End:       upd.End,
		Granted:   upd.Granted(),
	}
	g.Shortfall = requested - g.Granted

	if g.Full() {
		l.metrics.ObserveExtension("full")
		l.logger.WarnContext(ctx, "range exhausted", "year", year, "top_id", upd.NewTopID, "end", upd.End)
	} else {
		l.metrics.ObserveExtension("granted")
		l.logger.DebugContext(ctx, "range extended",
			"year", year,
			"prev_top_id", g.PrevTopID,
			"new_top_id", g.NewTopID,
			"shortfall", g.Shortfall,
		)
	}
	span.SetAttributes(attribute.Int64("cve.granted", g.Granted))
	return g, nil
}

// Remaining reports how many numbers of year have not been staged yet.
func (l *Ledger) Remaining(ctx context.Context, year int) (int64, error) {
	yr, err := l.ranges.FindRange(ctx, year)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, ErrNoRange
		}
		return 0, fmt.Errorf("find range %d: %w", year, err)
	}
	return yr.General.Remaining(), nil
}

// Range returns the year's range document.
func (l *Ledger) Range(ctx context.Context, year int) (*models.YearRange, error) {
	yr, err := l.ranges.FindRange(ctx, year)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrNoRange
		}
		return nil, fmt.Errorf("find range %d: %w", year, err)
	}
	return yr, nil
}
