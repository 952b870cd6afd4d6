// Package ports defines the store and collaborator interfaces of the identifier
// allocator. Interfaces live here because the ledger, pool, cache, claim engine
// and orchestrator all consume them.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cveregistry/internal/cveid/models"
	orgmodels "cveregistry/internal/org/models"
	"cveregistry/pkg/platform/audit"
)

// RangeStore persists one YearRange document per year. Every mutation is a
// single-document atomic conditional update.
type RangeStore interface {
	// FindRange returns sentinel.ErrNotFound when the year is not provisioned.
	FindRange(ctx context.Context, year int) (*models.YearRange, error)

	// CreateRange returns sentinel.ErrConflict when the year already exists.
	CreateRange(ctx context.Context, yr *models.YearRange) error

	// ExtendTop raises General.TopID by increment, capped at General.End, in one
	// conditional update on {year, TopID < End}. A full range returns an update
	// with PrevTopID == NewTopID. A missing year returns sentinel.ErrNotFound.
	ExtendTop(ctx context.Context, year int, increment int64) (models.TopUpdate, error)
}

// IdentifierStore persists identifier documents with a secondary index on
// (year, state).
type IdentifierStore interface {
	// InsertAvailable bulk-inserts staged identifiers. Duplicate keys return
	// sentinel.ErrConflict.
	InsertAvailable(ctx context.Context, ids []models.Identifier) error

	// FindAvailable returns up to limit AVAILABLE identifiers of year in no
	// particular order.
	FindAvailable(ctx context.Context, year int, limit int) ([]models.Identifier, error)

	// ClaimAvailable transitions id from AVAILABLE to RESERVED in one conditional
	// update. claimed is nil, with a nil error, when no AVAILABLE document matched.
	ClaimAvailable(ctx context.Context, id string, owningOrg string, requester models.RequestedBy, at time.Time) (claimed *models.Identifier, err error)

	// CountReserved counts RESERVED identifiers owned by owningOrg.
	CountReserved(ctx context.Context, owningOrg string) (int, error)

	// FindByID returns sentinel.ErrNotFound for unknown tokens.
	FindByID(ctx context.Context, id string) (*models.Identifier, error)
}

// OrgDirectory resolves organizations and their quota configuration, and maps
// stored owner UUIDs back to short names and usernames.
type OrgDirectory interface {
	FindByShortName(ctx context.Context, shortName string) (*orgmodels.Organization, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*orgmodels.Organization, error)
	FindUserByUUID(ctx context.Context, id uuid.UUID) (*orgmodels.User, error)
}

// AuditPublisher emits audit events for reservations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
