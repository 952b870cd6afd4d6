package claim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"cveregistry/internal/cveid/metrics"
	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/ports/mocks"
	"cveregistry/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ids     *mocks.MockIdentifierStore
	metrics *metrics.Metrics
	engine  *Engine
	ctx     context.Context
	now     time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ids = mocks.NewMockIdentifierStore(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	e, err := New(s.ids, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.engine = e
	s.now = time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *EngineSuite) TestTryClaim() {
	requester := models.RequestedBy{Org: "org-uuid", User: "user-uuid"}

	s.Run("won claim returns the reserved document", func() {
		reserved := &models.Identifier{
			ID:          "CVE-2030-20001",
			Year:        2030,
			State:       models.StateReserved,
			OwningOrg:   "org-uuid",
			RequestedBy: requester,
			ReservedAt:  s.now,
		}
		s.ids.EXPECT().ClaimAvailable(gomock.Any(), "CVE-2030-20001", "org-uuid", requester, s.now).Return(reserved, nil)

		res, err := s.engine.TryClaim(s.ctx, "CVE-2030-20001", requester, "org-uuid")
		s.Require().NoError(err)
		s.True(res.Won)
		s.Equal(reserved, res.Identifier)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ClaimsWon))
	})

	s.Run("lost race is not an error", func() {
		s.ids.EXPECT().ClaimAvailable(gomock.Any(), "CVE-2030-20002", "org-uuid", requester, s.now).Return(nil, nil)

		res, err := s.engine.TryClaim(s.ctx, "CVE-2030-20002", requester, "org-uuid")
		s.Require().NoError(err)
		s.False(res.Won)
		s.Nil(res.Identifier)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ClaimsLost))
	})

	s.Run("store failure propagates", func() {
		boom := errors.New("network partition")
		s.ids.EXPECT().ClaimAvailable(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

		_, err := s.engine.TryClaim(s.ctx, "CVE-2030-20003", requester, "org-uuid")
		s.ErrorIs(err, boom)
	})
}
