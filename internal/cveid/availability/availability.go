// Package availability keeps a request-local sample of AVAILABLE identifiers.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cveregistry/internal/cveid/metrics"
	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/ports"
)

var tracer = otel.Tracer("cveregistry/internal/cveid/availability")

// Picker returns a uniformly random index in [0, n).
type Picker func(n int) int

// Cache reads AVAILABLE candidates for a year. It holds no state between
// refreshes; each Snapshot is private to one reservation.
type Cache struct {
	ids     ports.IdentifierStore
	pick    Picker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithPicker replaces the random source, mainly for deterministic tests.
func WithPicker(p Picker) Option {
	return func(c *Cache) {
		c.pick = p
	}
}

func New(ids ports.IdentifierStore, opts ...Option) (*Cache, error) {
	if ids == nil {
		return nil, fmt.Errorf("identifier store is required")
	}
	c := &Cache{ids: ids, pick: rand.IntN, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Refresh loads up to limit AVAILABLE identifiers of year. The sample may
// already be stale when it returns; the claim step rechecks state.
func (c *Cache) Refresh(ctx context.Context, year int, limit int) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "availability.Refresh")
	defer span.End()
	span.SetAttributes(attribute.Int("cve.year", year), attribute.Int("cve.limit", limit))

	if limit <= 0 {
		return &Snapshot{pick: c.pick}, nil
	}
	found, err := c.ids.FindAvailable(ctx, year, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh available %d: %w", year, err)
	}
	c.metrics.ObserveRefresh(len(found))
	span.SetAttributes(attribute.Int("cve.returned", len(found)))
	return &Snapshot{items: found, pick: c.pick}, nil
}

// Snapshot is an unordered candidate list owned by a single reservation.
type Snapshot struct {
	items []models.Identifier
	pick  Picker
}

// Len is the number of candidates left.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// Empty reports whether no candidates are left.
func (s *Snapshot) Empty() bool {
	return len(s.items) == 0
}

// Pick returns a random candidate and its index. It panics on an empty
// snapshot.
func (s *Snapshot) Pick() (int, models.Identifier) {
	i := s.pick(len(s.items))
	return i, s.items[i]
}

// Remove drops the candidate at i by swapping in the last element.
func (s *Snapshot) Remove(i int) {
	last := len(s.items) - 1
	s.items[i] = s.items[last]
	s.items[last] = models.Identifier{}
	s.items = s.items[:last]
}

// IDs lists the remaining candidate tokens.
func (s *Snapshot) IDs() []string {
	out := make([]string, len(s.items))
	for i, id := range s.items {
		out[i] = id.ID
	}
	return out
}
