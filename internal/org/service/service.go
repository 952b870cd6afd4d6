package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"cveregistry/internal/org/models"
	dErrors "cveregistry/pkg/domain-errors"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/requestcontext"
)

// Store persists organizations and their users.
type Store interface {
	CreateOrg(ctx context.Context, org *models.Organization) error
	FindByShortName(ctx context.Context, shortName string) (*models.Organization, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	UpdateQuota(ctx context.Context, shortName string, idQuota int) error
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, orgUUID uuid.UUID, username string) (*models.User, error)
	FindUserByUUID(ctx context.Context, id uuid.UUID) (*models.User, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service resolves callers and serves organization lookups.
type Service struct {
	store          Store
	logger         *slog.Logger
	defaultIDQuota int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaultIDQuota sets the quota given to seeded organizations that do not
// specify one.
func WithDefaultIDQuota(quota int) Option {
	return func(s *Service) {
		s.defaultIDQuota = quota
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("org store is required")
	}
	s := &Service{store: store, logger: slog.Default(), defaultIDQuota: models.DefaultIDQuota}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FindByShortName returns the organization or a sentinel.ErrNotFound chain.
func (s *Service) FindByShortName(ctx context.Context, shortName string) (*models.Organization, error) {
	return s.store.FindByShortName(ctx, shortName)
}

// FindByUUID returns the organization or a sentinel.ErrNotFound chain.
func (s *Service) FindByUUID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.store.FindByUUID(ctx, id)
}

// FindUserByUUID returns the user or a sentinel.ErrNotFound chain.
func (s *Service) FindUserByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.store.FindUserByUUID(ctx, id)
}

// ResolveCaller maps identity headers to stable org and user UUIDs. Unknown
// orgs, unknown users and deactivated users all yield sentinel.ErrNotFound.
func (s *Service) ResolveCaller(ctx context.Context, orgShortName, username string) (requestcontext.Caller, error) {
	org, err := s.store.FindByShortName(ctx, orgShortName)
	if err != nil {
		return requestcontext.Caller{}, err
	}
	user, err := s.store.FindUser(ctx, org.UUID, username)
	if err != nil {
		return requestcontext.Caller{}, err
	}
	if !user.Active {
		return requestcontext.Caller{}, fmt.Errorf("user %s is inactive: %w", username, sentinel.ErrNotFound)
	}
	return requestcontext.Caller{
		OrgShortName: org.ShortName,
		OrgUUID:      org.UUID.String(),
		Username:     user.Username,
		UserUUID:     user.UUID.String(),
		Roles:        org.RoleNames(),
	}, nil
}

// SetQuota changes an organization's identifier quota.
func (s *Service) SetQuota(ctx context.Context, shortName string, idQuota int) error {
	if idQuota < models.MinIDQuota || idQuota > models.MaxIDQuota {
		return dErrors.Newf(dErrors.CodeValidation, "id_quota must be between %d and %d", models.MinIDQuota, models.MaxIDQuota)
	}
	if err := s.store.UpdateQuota(ctx, shortName, idQuota); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "organization %s does not exist", shortName)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update quota")
	}
	s.logger.InfoContext(ctx, "id quota updated",
		"short_name", shortName,
		"id_quota", idQuota,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
