package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"cveregistry/internal/cveid/availability"
	"cveregistry/internal/cveid/claim"
	"cveregistry/internal/cveid/ledger"
	"cveregistry/internal/cveid/metrics"
	"cveregistry/internal/cveid/pool"
	"cveregistry/internal/cveid/ports"
	"cveregistry/pkg/platform/audit"
	"cveregistry/pkg/requestcontext"
)

const (
	// DefaultPoolFloor is the minimum candidate sample fetched per refresh.
	DefaultPoolFloor = 100
	// DefaultMaxAmount caps a single non-sequential request.
	DefaultMaxAmount = 10
	// poolCushion sizes a refresh relative to the outstanding amount so that
	// concurrent requesters rarely pick the same candidate.
	poolCushion = 3
)

var tracer = otel.Tracer("cveregistry/internal/cveid/service")

// Service reserves identifiers and serves range and quota lookups.
type Service struct {
	ranges ports.RangeStore
	ids    ports.IdentifierStore
	orgs   ports.OrgDirectory

	ledger *ledger.Ledger
	pool   *pool.Materializer
	cache  *availability.Cache
	claims *claim.Engine

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
	picker         availability.Picker
	poolFloor      int
	maxAmount      int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithPoolFloor overrides DefaultPoolFloor.
func WithPoolFloor(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.poolFloor = n
		}
	}
}

// WithMaxAmount overrides DefaultMaxAmount.
func WithMaxAmount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAmount = n
		}
	}
}

// WithPicker replaces the candidate random source.
func WithPicker(p availability.Picker) Option {
	return func(s *Service) {
		s.picker = p
	}
}

func New(ranges ports.RangeStore, ids ports.IdentifierStore, orgs ports.OrgDirectory, opts ...Option) (*Service, error) {
	if ranges == nil {
		return nil, fmt.Errorf("range store is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("identifier store is required")
	}
	if orgs == nil {
		return nil, fmt.Errorf("org directory is required")
	}
	s := &Service{
		ranges:    ranges,
		ids:       ids,
		orgs:      orgs,
		logger:    slog.Default(),
		poolFloor: DefaultPoolFloor,
		maxAmount: DefaultMaxAmount,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.ledger, err = ledger.New(ranges, ledger.WithLogger(s.logger), ledger.WithMetrics(s.metrics)); err != nil {
		return nil, err
	}
	if s.pool, err = pool.New(ids, pool.WithLogger(s.logger), pool.WithMetrics(s.metrics)); err != nil {
		return nil, err
	}
	cacheOpts := []availability.Option{availability.WithLogger(s.logger), availability.WithMetrics(s.metrics)}
	if s.picker != nil {
		cacheOpts = append(cacheOpts, availability.WithPicker(s.picker))
	}
	if s.cache, err = availability.New(ids, cacheOpts...); err != nil {
		return nil, err
	}
	if s.claims, err = claim.New(ids, claim.WithLogger(s.logger), claim.WithMetrics(s.metrics)); err != nil {
		return nil, err
	}
	return s, nil
}

// MaxAmount is the largest amount a single reservation may request.
func (s *Service) MaxAmount() int {
	return s.maxAmount
}

// logAudit writes the structured audit log line and emits the event.
// Emission failures are logged, never returned: by the time an event is
// emitted the state change it describes has already happened.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, base audit.Event, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attributes = append(attributes, "trace_id", sc.TraceID().String())
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return
	}
	base.Action = string(event)
	base.Category = event.Category()
	base.RequestID = requestID
	base.Timestamp = requestcontext.Now(ctx)
	if err := s.auditPublisher.Emit(ctx, base); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", string(event),
			"subject", base.Subject,
			"error", err,
		)
	}
}
