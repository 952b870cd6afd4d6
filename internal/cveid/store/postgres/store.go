// Package postgres stores ranges and identifiers in PostgreSQL. Every
// mutation is one conditional statement on one row, so concurrent workers
// never need application-level locks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cveregistry/internal/cveid/models"
	"cveregistry/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore implements ports.RangeStore and ports.IdentifierStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed identifier store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const identifierColumns = `cve_id, cve_year, state, owning_cna, requested_cna, requested_user, reserved`

func (s *PostgresStore) FindRange(ctx context.Context, year int) (*models.YearRange, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT cve_year, priority_start, priority_end, priority_top_id,
		       general_start, general_end, general_top_id
		FROM cve_id_ranges
		WHERE cve_year = $1
	`, year)
	var yr models.YearRange
	err := row.Scan(&yr.Year,
		&yr.Priority.Start, &yr.Priority.End, &yr.Priority.TopID,
		&yr.General.Start, &yr.General.End, &yr.General.TopID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("range %d: %w", year, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find range %d: %w", year, err)
	}
	return &yr, nil
}

func (s *PostgresStore) CreateRange(ctx context.Context, yr *models.YearRange) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cve_id_ranges (cve_year, priority_start, priority_end, priority_top_id,
		                           general_start, general_end, general_top_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, yr.Year,
		yr.Priority.Start, yr.Priority.End, yr.Priority.TopID,
		yr.General.Start, yr.General.End, yr.General.TopID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("range %d: %w", yr.Year, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create range %d: %w", yr.Year, err)
	}
	return nil
}

// ExtendTop reads the previous high-water mark under a row lock inside the
// same statement that raises it.
func (s *PostgresStore) ExtendTop(ctx context.Context, year int, increment int64) (models.TopUpdate, error) {
	if increment > 0 {
		var upd models.TopUpdate
		err := s.pool.QueryRow(ctx, `
			UPDATE cve_id_ranges r
			SET general_top_id = LEAST(r.general_top_id + $2, r.general_end)
			FROM (
				SELECT cve_year, general_top_id AS prev_top_id
				FROM cve_id_ranges
				WHERE cve_year = $1
				FOR UPDATE
			) prev
			WHERE r.cve_year = prev.cve_year AND r.general_top_id < r.general_end
			RETURNING prev.prev_top_id, r.general_top_id, r.general_end
		`, year, increment).Scan(&upd.PrevTopID, &upd.NewTopID, &upd.End)
		if err == nil {
			return upd, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.TopUpdate{}, fmt.Errorf("extend range %d: %w", year, err)
		}
	}

	// No row matched: the year is missing or its general range is full.
	yr, err := s.FindRange(ctx, year)
	if err != nil {
		return models.TopUpdate{}, err
	}
	return models.TopUpdate{
		PrevTopID: yr.General.TopID,
		NewTopID:  yr.General.TopID,
		End:       yr.General.End,
	}, nil
}

// InsertAvailable copies the batch in one statement; a duplicate key aborts
// the whole batch.
func (s *PostgresStore) InsertAvailable(ctx context.Context, ids []models.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"cve_ids"},
		[]string{"cve_id", "cve_year", "state", "owning_cna", "requested_cna", "requested_user", "reserved"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			id := ids[i]
			return []any{
				id.ID, id.Year, string(id.State), id.OwningOrg,
				id.RequestedBy.Org, id.RequestedBy.User, id.ReservedAt.UTC(),
			}, nil
		}),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert identifiers: %w", sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert identifiers: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAvailable(ctx context.Context, year int, limit int) ([]models.Identifier, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+identifierColumns+`
		FROM cve_ids
		WHERE cve_year = $1 AND state = $2
		LIMIT $3
	`, year, string(models.StateAvailable), limit)
	if err != nil {
		return nil, fmt.Errorf("find available %d: %w", year, err)
	}
	ids, err := pgx.CollectRows(rows, scanIdentifier)
	if err != nil {
		return nil, fmt.Errorf("scan available %d: %w", year, err)
	}
	return ids, nil
}

func (s *PostgresStore) ClaimAvailable(ctx context.Context, id string, owningOrg string, requester models.RequestedBy, at time.Time) (*models.Identifier, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE cve_ids
		SET state = $2, owning_cna = $3, requested_cna = $4, requested_user = $5, reserved = $6
		WHERE cve_id = $1 AND state = $7
		RETURNING `+identifierColumns,
		id, string(models.StateReserved), owningOrg, requester.Org, requester.User, at.UTC(),
		string(models.StateAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	claimed, err := pgx.CollectExactlyOneRow(rows, scanIdentifier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	return &claimed, nil
}

func (s *PostgresStore) CountReserved(ctx context.Context, owningOrg string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM cve_ids WHERE owning_cna = $1 AND state = $2
	`, owningOrg, string(models.StateReserved)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reserved for %s: %w", owningOrg, err)
	}
	return n, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Identifier, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+identifierColumns+` FROM cve_ids WHERE cve_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find identifier %s: %w", id, err)
	}
	doc, err := pgx.CollectExactlyOneRow(rows, scanIdentifier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("identifier %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find identifier %s: %w", id, err)
	}
	return &doc, nil
}

func scanIdentifier(row pgx.CollectableRow) (models.Identifier, error) {
	var (
		doc   models.Identifier
		state string
	)
	err := row.Scan(&doc.ID, &doc.Year, &state, &doc.OwningOrg,
		&doc.RequestedBy.Org, &doc.RequestedBy.User, &doc.ReservedAt)
	doc.State = models.State(state)
	return doc, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
