package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"cveregistry/internal/cveid/ledger"
	"cveregistry/internal/cveid/models"
	dErrors "cveregistry/pkg/domain-errors"
	"cveregistry/pkg/platform/audit"
	"cveregistry/pkg/platform/sentinel"
)

// ProvisionYear creates the default range document for year.
func (s *Service) ProvisionYear(ctx context.Context, year int) (*models.YearRange, error) {
	yr, err := models.DefaultYearRange(year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "cve_year must be a four digit year")
	}
	if err := s.ranges.CreateRange(ctx, yr); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeRangeExists, "the cve-id-range for year %d already exists", year)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create year range")
	}
	s.logAudit(ctx, audit.EventRangeProvisioned, audit.Event{Subject: rangeSubject(year), Year: year},
		"year", year, "general_start", yr.General.Start, "general_end", yr.General.End)
	return yr, nil
}

// GetRange returns the range document of year.
func (s *Service) GetRange(ctx context.Context, year int) (*models.YearRange, error) {
	if !models.ValidYear(year) {
		return nil, dErrors.New(dErrors.CodeValidation, "cve_year must be a four digit year")
	}
	yr, err := s.ledger.Range(ctx, year)
	if err != nil {
		if errors.Is(err, ledger.ErrNoRange) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no cve-id-range exists for year %d", year)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load year range")
	}
	return yr, nil
}

// GetIdentifier returns one identifier document with the owning org and the
// requester shown by short name and username.
func (s *Service) GetIdentifier(ctx context.Context, id string) (*models.Identifier, error) {
	if _, _, err := models.ParseID(id); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed cve_id")
	}
	ident, err := s.ids.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s does not exist", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identifier")
	}
	if err := s.withOwnerNames(ctx, ident); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identifier owners")
	}
	return ident, nil
}

// withOwnerNames replaces stored owner UUIDs by names. Values that are not
// UUIDs (N/A) or no longer resolve are left as stored.
func (s *Service) withOwnerNames(ctx context.Context, ident *models.Identifier) error {
	var err error
	if ident.OwningOrg, err = s.orgName(ctx, ident.OwningOrg); err != nil {
		return err
	}
	if ident.RequestedBy.Org, err = s.orgName(ctx, ident.RequestedBy.Org); err != nil {
		return err
	}
	if ident.RequestedBy.User, err = s.username(ctx, ident.RequestedBy.User); err != nil {
		return err
	}
	return nil
}

func (s *Service) orgName(ctx context.Context, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return raw, nil
	}
	org, err := s.orgs.FindByUUID(ctx, id)
	switch {
	case err == nil:
		return org.ShortName, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return raw, nil
	default:
		return "", err
	}
}

func (s *Service) username(ctx context.Context, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return raw, nil
	}
	user, err := s.orgs.FindUserByUUID(ctx, id)
	switch {
	case err == nil:
		return user.Username, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return raw, nil
	default:
		return "", err
	}
}
