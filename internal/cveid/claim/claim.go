// Package claim performs the single-document AVAILABLE to RESERVED transition.
package claim

import (
	"context"
	"fmt"
	"log/slog"

	"cveregistry/internal/cveid/metrics"
	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/ports"
	"cveregistry/pkg/requestcontext"
)

// Result is the outcome of one claim attempt. A lost race is not an error:
// Won is false and the caller moves on to another candidate.
type Result struct {
	Won        bool
	Identifier *models.Identifier
}

// Engine claims identifiers through conditional store updates.
type Engine struct {
	ids     ports.IdentifierStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(ids ports.IdentifierStore, opts ...Option) (*Engine, error) {
	if ids == nil {
		return nil, fmt.Errorf("identifier store is required")
	}
	e := &Engine{ids: ids, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TryClaim reserves id for owningOrg if it is still AVAILABLE.
func (e *Engine) TryClaim(ctx context.Context, id string, requester models.RequestedBy, owningOrg string) (Result, error) {
	claimed, err := e.ids.ClaimAvailable(ctx, id, owningOrg, requester, requestcontext.Now(ctx))
	if err != nil {
		return Result{}, fmt.Errorf("claim %s: %w", id, err)
	}
	if claimed == nil {
		e.metrics.IncClaimLost()
		e.logger.DebugContext(ctx, "claim lost to concurrent request", "cve_id", id)
		return Result{}, nil
	}
	e.metrics.IncClaimWon()
	return Result{Won: true, Identifier: claimed}, nil
}
