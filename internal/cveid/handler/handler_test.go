package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/service"
	cvememory "cveregistry/internal/cveid/store/memory"
	orgservice "cveregistry/internal/org/service"
	orgmemory "cveregistry/internal/org/store/memory"
	"cveregistry/pkg/platform/middleware/auth"
	request "cveregistry/pkg/platform/middleware/request"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *cvememory.InMemoryStore
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orgs, err := orgservice.New(orgmemory.New(), orgservice.WithLogger(logger))
	s.Require().NoError(err)
	small, none := 3, 0
	s.Require().NoError(orgs.ApplySeed(ctx, &orgservice.Seed{Orgs: []orgservice.SeedOrg{
		{ShortName: "mitre", Roles: []string{"CNA", "SECRETARIAT"}, Users: []string{"admin"}},
		{ShortName: "acme", Roles: []string{"CNA"}, Users: []string{"alice"}},
		{ShortName: "tiny", Roles: []string{"CNA"}, IDQuota: &small, Users: []string{"tom"}},
		{ShortName: "reader", Roles: []string{"ADP"}, IDQuota: &none, Users: []string{"rita"}},
	}}))

	s.store = cvememory.New()
	svc, err := service.New(s.store, s.store, orgs, service.WithLogger(logger))
	s.Require().NoError(err)
	yr, err := models.NewYearRange(2030, 1, 5)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRange(ctx, yr))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(auth.RequireCaller(orgs, logger))
	New(svc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, target, org, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if org != "" {
		req.Header.Set(auth.HeaderOrg, org)
		req.Header.Set(auth.HeaderUser, user)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// POST /api/cve-id
// =============================================================================

func (s *HandlerSuite) TestReserve() {
	s.Run("success returns ids and the remaining quota", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=2&batch_type=nonsequential&cve_year=2030&short_name=acme", "acme", "alice")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("998", rec.Header().Get(HeaderRemainingQuota))

		body := decode[reservationResponse](s, rec)
		s.Len(body.CVEIDs, 2)
		for _, id := range body.CVEIDs {
			s.Equal("acme", id.OwningOrg)
			s.Equal("acme", id.RequestedBy.Org)
			s.Equal("alice", id.RequestedBy.User)
			s.Equal("RESERVED", id.State)
			s.Equal("2030", id.Year)
		}
	})

	s.Run("exhaustion returns a partial result", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=5&batch_type=non-sequential&cve_year=2030&short_name=acme", "acme", "alice")
		s.Equal(http.StatusPartialContent, rec.Code)
		s.Equal("995", rec.Header().Get(HeaderRemainingQuota))

		body := decode[reservationResponse](s, rec)
		s.Len(body.CVEIDs, 3)
		s.Contains(body.Message, "Only 3 CVE IDs were reserved")
	})

	s.Run("full range is a 403", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=acme", "acme", "alice")
		s.Equal(http.StatusForbidden, rec.Code)
		body := decode[reservationFailure](s, rec)
		s.Equal("RANGE_FULL", body.Error)
	})
}

func (s *HandlerSuite) TestReserveFailures() {
	s.Run("quota exceeded", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=4&cve_year=2030&short_name=tiny", "tiny", "tom")
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal("3", rec.Header().Get(HeaderRemainingQuota))
		body := decode[reservationFailure](s, rec)
		s.Equal("QUOTA_EXCEEDED", body.Error)
	})

	s.Run("unprovisioned year", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2041&short_name=acme", "acme", "alice")
		s.Equal(http.StatusForbidden, rec.Code)
		body := decode[reservationFailure](s, rec)
		s.Equal("RANGE_NOT_PROVISIONED", body.Error)
	})

	s.Run("sequential batches are unsupported", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&batch_type=sequential&cve_year=2030&short_name=acme", "acme", "alice")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "unsupported")
	})

	s.Run("input validation", func() {
		for _, q := range []string{
			"amount=0&cve_year=2030&short_name=acme",
			"amount=11&cve_year=2030&short_name=acme",
			"amount=x&cve_year=2030&short_name=acme",
			"amount=1&cve_year=30&short_name=acme",
			"amount=1&cve_year=02030&short_name=acme",
			"amount=1&cve_year=2030",
			"amount=1&cve_year=2030&short_name=acme&batch_type=random",
		} {
			rec := s.do(http.MethodPost, "/api/cve-id?"+q, "acme", "alice")
			s.Equal(http.StatusBadRequest, rec.Code, q)
		}
	})

	s.Run("cannot reserve for another org", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=tiny", "acme", "alice")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("non-CNA orgs cannot reserve", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=reader", "reader", "rita")
		s.Equal(http.StatusForbidden, rec.Code)
		s.Contains(rec.Body.String(), "forbidden")
	})

	s.Run("missing identity headers", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=acme", "", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("unknown org", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=acme", "ghost", "casper")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("secretariat reserving for an unknown owner", func() {
		rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=ghost", "mitre", "admin")
		s.Equal(http.StatusForbidden, rec.Code)
		body := decode[reservationFailure](s, rec)
		s.Equal("ORG_DNE", body.Error)
		s.Contains(body.Message, "ghost")
	})
}

func (s *HandlerSuite) TestSecretariatReservesOnBehalf() {
	rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=tiny", "mitre", "admin")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("2", rec.Header().Get(HeaderRemainingQuota))

	body := decode[reservationResponse](s, rec)
	s.Require().Len(body.CVEIDs, 1)
	s.Equal("tiny", body.CVEIDs[0].OwningOrg)
	s.Equal("mitre", body.CVEIDs[0].RequestedBy.Org)
}

// =============================================================================
// GET /api/cve-id/{id}
// =============================================================================

func (s *HandlerSuite) TestGetIdentifier() {
	rec := s.do(http.MethodPost, "/api/cve-id?amount=1&cve_year=2030&short_name=acme", "acme", "alice")
	s.Require().Equal(http.StatusOK, rec.Code)
	id := decode[reservationResponse](s, rec).CVEIDs[0].ID

	s.Run("owner can read", func() {
		rec := s.do(http.MethodGet, "/api/cve-id/"+id, "acme", "alice")
		s.Equal(http.StatusOK, rec.Code)
		body := decode[identifierResponse](s, rec)
		s.Equal(id, body.ID)
		s.Equal("acme", body.OwningOrg)
		s.Equal(models.RequestedBy{Org: "acme", User: "alice"}, body.RequestedBy)
	})

	s.Run("secretariat can read", func() {
		rec := s.do(http.MethodGet, "/api/cve-id/"+id, "mitre", "admin")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("acme", decode[identifierResponse](s, rec).OwningOrg)
	})

	s.Run("other orgs see nothing", func() {
		rec := s.do(http.MethodGet, "/api/cve-id/"+id, "tiny", "tom")
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodGet, "/api/cve-id/CVE-20-1", "acme", "alice")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// /api/cve-id-range/{year}
// =============================================================================

func (s *HandlerSuite) TestRanges() {
	s.Run("secretariat provisions a year", func() {
		rec := s.do(http.MethodPost, "/api/cve-id-range/2031", "mitre", "admin")
		s.Equal(http.StatusOK, rec.Code)
		body := decode[rangeResponse](s, rec)
		s.Equal(2031, body.Year)
		s.Equal(models.DefaultGeneralEnd, body.Ranges.General.End)
	})

	s.Run("existing year", func() {
		rec := s.do(http.MethodPost, "/api/cve-id-range/2031", "mitre", "admin")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("YEAR_RANGE_EXISTS", decode[reservationFailure](s, rec).Error)
	})

	s.Run("CNAs cannot provision", func() {
		rec := s.do(http.MethodPost, "/api/cve-id-range/2032", "acme", "alice")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("anyone can read a range", func() {
		rec := s.do(http.MethodGet, "/api/cve-id-range/2030", "acme", "alice")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(int64(5), decode[rangeResponse](s, rec).Ranges.General.End)
	})

	s.Run("unknown range", func() {
		rec := s.do(http.MethodGet, "/api/cve-id-range/2099", "acme", "alice")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}
