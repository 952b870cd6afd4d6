package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cveidhandler "cveregistry/internal/cveid/handler"
	cveidmetrics "cveregistry/internal/cveid/metrics"
	cveidservice "cveregistry/internal/cveid/service"
	orghandler "cveregistry/internal/org/handler"
	orgservice "cveregistry/internal/org/service"
	"cveregistry/internal/platform/config"
	"cveregistry/internal/platform/metrics"
	httptransport "cveregistry/internal/transport/http"
	dErrors "cveregistry/pkg/domain-errors"
)

// app is the assembled registry: services over the selected backend and the
// router that exposes them.
type app struct {
	backend *backend
	orgs    *orgservice.Service
	cveids  *cveidservice.Service
	router  http.Handler
}

func newApp(ctx context.Context, cfg config.Server, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	orgs, err := orgservice.New(b.orgs,
		orgservice.WithLogger(log),
		orgservice.WithDefaultIDQuota(cfg.Allocator.DefaultIDQuota),
	)
	if err != nil {
		b.Close()
		return nil, err
	}

	cveids, err := cveidservice.New(b.ranges, b.ids, orgs,
		cveidservice.WithLogger(log),
		cveidservice.WithMetrics(cveidmetrics.New(reg)),
		cveidservice.WithAuditPublisher(b.audit),
		cveidservice.WithPoolFloor(cfg.Allocator.PoolFloor),
		cveidservice.WithMaxAmount(cfg.Allocator.MaxAmount),
	)
	if err != nil {
		b.Close()
		return nil, err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Callers:  orgs,
		Health:   b.health,
		Routes: []httptransport.Registrar{
			cveidhandler.New(cveids, log),
			orghandler.New(orgs, cveids, log),
		},
	})

	return &app{backend: b, orgs: orgs, cveids: cveids, router: router}, nil
}

// seed applies the seed file's organizations and provisions its years.
// Years that already exist are skipped.
func (a *app) seed(ctx context.Context, seed *orgservice.Seed, log *slog.Logger) error {
	if err := a.orgs.ApplySeed(ctx, seed); err != nil {
		return err
	}
	for _, year := range seed.Years {
		_, err := a.cveids.ProvisionYear(ctx, year)
		if dErrors.HasCode(err, dErrors.CodeRangeExists) {
			log.InfoContext(ctx, "seed year already provisioned", "cve_year", year)
			continue
		}
		if err != nil {
			return fmt.Errorf("provision seed year %d: %w", year, err)
		}
	}
	return nil
}

func (a *app) Close() {
	if a != nil && a.backend != nil {
		a.backend.Close()
	}
}
