package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cveregistry/internal/cveid/availability"
	"cveregistry/internal/cveid/ledger"
	"cveregistry/internal/cveid/models"
	orgmodels "cveregistry/internal/org/models"
	dErrors "cveregistry/pkg/domain-errors"
	"cveregistry/pkg/platform/audit"
	"cveregistry/pkg/platform/sentinel"
)

// ReserveRequest asks for Amount identifiers of Year owned by OwningOrg.
// Requester carries the stable identities recorded as requested_by.
type ReserveRequest struct {
	Year      int
	Amount    int
	OwningOrg string
	Requester models.Requester
}

func (r ReserveRequest) validate(maxAmount int) error {
	if r.Amount < 1 || r.Amount > maxAmount {
		return dErrors.Newf(dErrors.CodeValidation, "amount must be between 1 and %d", maxAmount)
	}
	if !models.ValidYear(r.Year) {
		return dErrors.New(dErrors.CodeValidation, "cve_year must be a four digit year")
	}
	if strings.TrimSpace(r.OwningOrg) == "" {
		return dErrors.New(dErrors.CodeValidation, "short_name is required")
	}
	if r.Requester.Org == "" || r.Requester.User == "" {
		return dErrors.New(dErrors.CodeValidation, "requester is required")
	}
	return nil
}

// fillOutcome is the result of one refresh-and-top-up round.
type fillOutcome struct {
	snap      *availability.Snapshot
	exhausted bool
}

// Reserve claims up to req.Amount AVAILABLE identifiers at random.
//
// Business outcomes are values: quota, provisioning and exhaustion failures
// come back as a Reservation with StatusFailed and a Reason. The error return
// is reserved for invalid input, unknown organizations and store failures.
// Identifiers claimed before a store failure or cancellation stay RESERVED.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "service.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("cve.year", req.Year),
		attribute.Int("cve.amount", req.Amount),
		attribute.String("cve.owning_org", req.OwningOrg),
	)

	if err := req.validate(s.maxAmount); err != nil {
		return nil, err
	}

	org, err := s.findOrg(ctx, req.OwningOrg)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Newf(dErrors.CodeOrgNotFound, "organization %s does not exist", req.OwningOrg)
		}
		return nil, err
	}
	quota, err := s.quotaFor(ctx, org)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		Year:           req.Year,
		Requested:      req.Amount,
		RemainingQuota: quota.Available,
	}

	if req.Amount > quota.Available {
		s.reject(ctx, res, models.ReasonQuotaExceeded, req, started)
		return res, nil
	}
	if _, err := s.ledger.Range(ctx, req.Year); err != nil {
		if errors.Is(err, ledger.ErrNoRange) {
			s.reject(ctx, res, models.ReasonRangeNotProvisioned, req, started)
			return res, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load year range")
	}

	owner := org.UUID.String()
	requester := models.RequestedBy{Org: req.Requester.Org, User: req.Requester.User}
	claimed, exhausted, err := s.claimLoop(ctx, req.Year, req.Amount, owner, requester)
	res.IDs = claimed
	res.ClaimedCount = len(claimed)
	res.RemainingQuota = quota.Available - len(claimed)

	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveReservation("error", "", started)
		if len(claimed) > 0 {
			s.logger.WarnContext(ctx, "reservation aborted after claiming identifiers",
				"year", req.Year,
				"owning_org", req.OwningOrg,
				"claimed", res.Tokens(),
				"error", err,
			)
			s.logAudit(ctx, audit.EventNonsequentialReservationPartial, s.reservationEvent(org, req, res),
				"owning_org", req.OwningOrg, "claimed_count", len(claimed), "interrupted", true)
		}
		if errors.Is(err, ledger.ErrNoRange) {
			return nil, dErrors.Wrap(err, dErrors.CodeRangeNotProvisioned, "year range disappeared during reservation")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve identifiers")
	}

	switch {
	case len(claimed) == req.Amount:
		res.Status = models.StatusSuccess
		s.logAudit(ctx, audit.EventNonsequentialReservation, s.reservationEvent(org, req, res),
			"owning_org", req.OwningOrg, "year", req.Year, "amount", req.Amount)
	case len(claimed) > 0:
		res.Status = models.StatusPartial
		res.Reason = models.ReasonRangeFull
		s.logAudit(ctx, audit.EventNonsequentialReservationPartial, s.reservationEvent(org, req, res),
			"owning_org", req.OwningOrg, "year", req.Year, "amount", req.Amount, "claimed_count", len(claimed))
	default:
		res.Status = models.StatusFailed
		res.Reason = models.ReasonRangeFull
	}
	if exhausted {
		s.logAudit(ctx, audit.EventRangeExhausted, audit.Event{Subject: rangeSubject(req.Year), Year: req.Year, Reason: string(models.ReasonRangeFull)},
			"year", req.Year)
	}

	s.metrics.ObserveReservation(string(res.Status), string(res.Reason), started)
	return res, nil
}

// claimLoop claims until amount identifiers are held or the year is exhausted.
// Candidates that lose a race are discarded, never retried.
func (s *Service) claimLoop(ctx context.Context, year, amount int, owner string, requester models.RequestedBy) ([]models.Identifier, bool, error) {
	claimed := make([]models.Identifier, 0, amount)
	var snap *availability.Snapshot

	for len(claimed) < amount {
		if err := ctx.Err(); err != nil {
			return claimed, false, err
		}
		if snap == nil || snap.Empty() {
			out, err := s.fill(ctx, year, amount-len(claimed))
			if err != nil {
				return claimed, false, err
			}
			if out.exhausted {
				return claimed, true, nil
			}
			snap = out.snap
			if snap.Empty() {
				// everything just staged was taken by concurrent requests
				continue
			}
		}

		i, candidate := snap.Pick()
		snap.Remove(i)
		result, err := s.claims.TryClaim(ctx, candidate.ID, requester, owner)
		if err != nil {
			return claimed, false, err
		}
		if result.Won {
			claimed = append(claimed, *result.Identifier)
		}
	}
	return claimed, false, nil
}

// fill refreshes the candidate sample for outstanding identifiers and stages
// more numbers when the sample is smaller than the pool size.
func (s *Service) fill(ctx context.Context, year, outstanding int) (fillOutcome, error) {
	limit := max(poolCushion*outstanding, s.poolFloor)
	snap, err := s.cache.Refresh(ctx, year, limit)
	if err != nil {
		return fillOutcome{}, err
	}
	returned := snap.Len()
	if returned >= limit {
		return fillOutcome{snap: snap}, nil
	}

	grant, err := s.ledger.Extend(ctx, year, int64(limit-returned+outstanding))
	if err != nil {
		return fillOutcome{}, err
	}
	if grant.Full() {
		if returned < outstanding {
			return fillOutcome{exhausted: true}, nil
		}
		return fillOutcome{snap: snap}, nil
	}
	s.logAudit(ctx, audit.EventPoolExtended, audit.Event{Subject: rangeSubject(year), Year: year},
		"year", year, "prev_top_id", grant.PrevTopID, "new_top_id", grant.NewTopID)

	if _, err := s.pool.Materialize(ctx, year, grant.PrevTopID, grant.NewTopID); err != nil {
		return fillOutcome{}, err
	}
	snap, err = s.cache.Refresh(ctx, year, limit)
	if err != nil {
		return fillOutcome{}, err
	}
	return fillOutcome{snap: snap}, nil
}

func (s *Service) reject(ctx context.Context, res *models.Reservation, reason models.Reason, req ReserveRequest, started time.Time) {
	res.Status = models.StatusFailed
	res.Reason = reason
	s.logAudit(ctx, audit.EventReservationRejected, audit.Event{
		Subject:  req.OwningOrg,
		ActorOrg: req.Requester.Org,
		ActorID:  req.Requester.User,
		Year:     req.Year,
		Reason:   string(reason),
	}, "owning_org", req.OwningOrg, "year", req.Year, "amount", req.Amount, "reason", string(reason))
	s.metrics.ObserveReservation(string(res.Status), string(reason), started)
}

func (s *Service) reservationEvent(org *orgmodels.Organization, req ReserveRequest, res *models.Reservation) audit.Event {
	return audit.Event{
		Subject:     org.ShortName,
		ActorOrg:    req.Requester.Org,
		ActorID:     req.Requester.User,
		Year:        req.Year,
		Reason:      string(res.Reason),
		Identifiers: res.Tokens(),
	}
}

func (s *Service) findOrg(ctx context.Context, shortName string) (*orgmodels.Organization, error) {
	org, err := s.orgs.FindByShortName(ctx, shortName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "organization %s does not exist", shortName)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

func (s *Service) quotaFor(ctx context.Context, org *orgmodels.Organization) (models.QuotaSnapshot, error) {
	reserved, err := s.ids.CountReserved(ctx, org.UUID.String())
	if err != nil {
		return models.QuotaSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count reserved identifiers")
	}
	return models.NewQuotaSnapshot(org.IDQuota, reserved), nil
}

// Quota returns the identifier quota snapshot of an organization.
func (s *Service) Quota(ctx context.Context, shortName string) (models.QuotaSnapshot, error) {
	org, err := s.findOrg(ctx, shortName)
	if err != nil {
		return models.QuotaSnapshot{}, err
	}
	return s.quotaFor(ctx, org)
}

// rangeSubject is the audit subject of namespace events.
func rangeSubject(year int) string {
	return fmt.Sprintf("cve-id-range/%d", year)
}
