package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cveregistry/internal/org/models"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists organizations and users. Roles are a TEXT[] column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunInTx runs fn in one transaction; store calls made with the ctx passed
// to fn join it.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) CreateOrg(ctx context.Context, org *models.Organization) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO orgs (uuid, short_name, name, roles, id_quota, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, org.UUID, org.ShortName, org.Name, pq.Array(org.RoleNames()), org.IDQuota, org.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %s: %w", org.ShortName, sentinel.ErrConflict)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

const orgColumns = `uuid, short_name, name, roles, id_quota, created_at`

func (s *PostgresStore) FindByShortName(ctx context.Context, shortName string) (*models.Organization, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM orgs WHERE lower(short_name) = lower($1)`, shortName)
	return scanOrg(row, shortName)
}

func (s *PostgresStore) FindByUUID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM orgs WHERE uuid = $1`, id)
	return scanOrg(row, id.String())
}

func scanOrg(row *sql.Row, lookup string) (*models.Organization, error) {
	var (
		org   models.Organization
		roles []string
	)
	err := row.Scan(&org.UUID, &org.ShortName, &org.Name, pq.Array(&roles), &org.IDQuota, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %s: %w", lookup, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	org.Roles = make([]models.Role, len(roles))
	for i, r := range roles {
		org.Roles[i] = models.Role(r)
	}
	return &org, nil
}

func (s *PostgresStore) UpdateQuota(ctx context.Context, shortName string, idQuota int) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `UPDATE orgs SET id_quota = $2 WHERE lower(short_name) = lower($1)`, shortName, idQuota)
	if err != nil {
		return fmt.Errorf("update quota: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quota rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("organization %s: %w", shortName, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO org_users (uuid, org_uuid, username, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.UUID, user.OrgUUID, user.Username, user.Active, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("organization %s: %w", user.OrgUUID, sentinel.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, sentinel.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `uuid, org_uuid, username, active, created_at`

func (s *PostgresStore) FindUser(ctx context.Context, orgUUID uuid.UUID, username string) (*models.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM org_users WHERE org_uuid = $1 AND username = $2`, orgUUID, username)
	return scanUser(row, username)
}

func (s *PostgresStore) FindUserByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM org_users WHERE uuid = $1`, id)
	return scanUser(row, id.String())
}

func scanUser(row *sql.Row, lookup string) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.UUID, &u.OrgUUID, &u.Username, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", lookup, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
