package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "cveregistry/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the audit_outbox table and relayed to Kafka by
// worker.Relay; the table doubles as the queryable audit trail.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// OutboxEntry is one persisted event awaiting relay.
type OutboxEntry struct {
	ID      uuid.UUID
	Subject string
	Action  string
	Payload []byte
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	// Always derive category from action - eventCategories map is the source of truth
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, category, subject, action, request_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Subject,
		event.Action,
		event.RequestID,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns events for one organization, newest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM audit_outbox
		WHERE subject = $1
		ORDER BY created_at DESC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event audit.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// RelayBatch locks up to limit unpublished entries, hands them to publish and
// marks them published when publish succeeds. Concurrent relays skip each
// other's locked rows.
func (s *Store) RelayBatch(ctx context.Context, limit int, publish func(ctx context.Context, entries []OutboxEntry) error) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, subject, action, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("select outbox batch: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxEntry, error) {
		var e OutboxEntry
		err := row.Scan(&e.ID, &e.Subject, &e.Action, &e.Payload)
		return e, err
	})
	if err != nil {
		return 0, fmt.Errorf("scan outbox batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := publish(ctx, entries); err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if _, err := tx.Exec(ctx, `UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return len(entries), nil
}
