package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"cveregistry/internal/cveid/ports"
	cvememory "cveregistry/internal/cveid/store/memory"
	cvepostgres "cveregistry/internal/cveid/store/postgres"
	cveredis "cveregistry/internal/cveid/store/redis"
	orgservice "cveregistry/internal/org/service"
	orgmemory "cveregistry/internal/org/store/memory"
	orgpostgres "cveregistry/internal/org/store/postgres"
	"cveregistry/internal/platform/config"
	"cveregistry/internal/platform/kafka"
	"cveregistry/internal/platform/postgres"
	"cveregistry/internal/platform/redis"
	httptransport "cveregistry/internal/transport/http"
	"cveregistry/pkg/platform/audit/publishers/compliance"
	kafkapublisher "cveregistry/pkg/platform/audit/publishers/kafka"
	auditmemory "cveregistry/pkg/platform/audit/store/memory"
	auditpostgres "cveregistry/pkg/platform/audit/store/postgres"
	"cveregistry/pkg/platform/audit/worker"
)

// backend holds the stores selected by configuration.
type backend struct {
	ranges ports.RangeStore
	ids    ports.IdentifierStore
	orgs   orgservice.Store
	audit  ports.AuditPublisher
	relay  *worker.Relay
	health map[string]httptransport.HealthCheck
	close  []func()
}

func (b *backend) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

// openBackend connects the identifier store named by cfg.Backend. A
// DATABASE_URL also moves organizations and the audit trail into
// PostgreSQL; Kafka brokers receive audit events when configured.
func openBackend(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *backend, err error) {
	b := &backend{health: make(map[string]httptransport.HealthCheck)}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kc != nil {
		b.close = append(b.close, kc.Close)
		b.health["kafka"] = kc.Health
		if err := kc.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1, 1); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.close = append(b.close, pool.Close)
		b.health["postgres"] = pool.Ping
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open organization database: %w", err)
		}
		b.close = append(b.close, func() { _ = db.Close() })
		b.orgs = orgpostgres.NewPostgres(db)

		outbox := auditpostgres.New(pool)
		b.audit = compliance.New(outbox, compliance.WithLogger(log))
		if kc != nil {
			sink := kafkapublisher.New(kc, cfg.Kafka.AuditTopic, kafkapublisher.WithLogger(log))
			b.relay = worker.NewRelay(outbox, sink, cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatch, log)
		}

		if cfg.Backend == config.BackendPostgres {
			store := cvepostgres.NewPostgres(pool)
			b.ranges, b.ids = store, store
		}
	} else {
		b.orgs = orgmemory.New()
		if kc != nil {
			b.audit = kafkapublisher.New(kc, cfg.Kafka.AuditTopic, kafkapublisher.WithLogger(log))
		} else {
			b.audit = compliance.New(auditmemory.NewInMemoryStore(), compliance.WithLogger(log))
		}
	}

	switch cfg.Backend {
	case config.BackendRedis:
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.close = append(b.close, func() { _ = rc.Close() })
		b.health["redis"] = rc.Health
		store := cveredis.NewRedis(rc.Client)
		b.ranges, b.ids = store, store
	case config.BackendMemory:
		store := cvememory.New()
		b.ranges, b.ids = store, store
	}

	log.InfoContext(ctx, "store backend ready",
		"backend", cfg.Backend,
		"persistent_orgs", cfg.DatabaseURL != "",
		"kafka", kc != nil,
	)
	return b, nil
}
