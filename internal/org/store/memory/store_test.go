package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"cveregistry/internal/org/models"
	"cveregistry/pkg/platform/sentinel"
)

type OrgStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestOrgStoreSuite(t *testing.T) {
	suite.Run(t, new(OrgStoreSuite))
}

func (s *OrgStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *OrgStoreSuite) newOrg(shortName string) *models.Organization {
	org, err := models.NewOrganization(uuid.New(), shortName, "", []models.Role{models.RoleCNA}, 100, time.Now())
	s.Require().NoError(err)
	return org
}

func (s *OrgStoreSuite) TestOrganizations() {
	org := s.newOrg("mitre")
	s.Require().NoError(s.store.CreateOrg(s.ctx, org))

	s.Run("lookup is case-insensitive", func() {
		found, err := s.store.FindByShortName(s.ctx, "MITRE")
		s.Require().NoError(err)
		s.Equal(org.UUID, found.UUID)
	})

	s.Run("duplicate short name conflicts", func() {
		s.ErrorIs(s.store.CreateOrg(s.ctx, s.newOrg("Mitre")), sentinel.ErrConflict)
	})

	s.Run("unknown org", func() {
		_, err := s.store.FindByShortName(s.ctx, "nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("lookup by UUID", func() {
		found, err := s.store.FindByUUID(s.ctx, org.UUID)
		s.Require().NoError(err)
		s.Equal("mitre", found.ShortName)

		_, err = s.store.FindByUUID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("quota update", func() {
		s.Require().NoError(s.store.UpdateQuota(s.ctx, "mitre", 5))
		found, err := s.store.FindByShortName(s.ctx, "mitre")
		s.Require().NoError(err)
		s.Equal(5, found.IDQuota)
	})

	s.Run("returned copies do not alias the store", func() {
		found, err := s.store.FindByShortName(s.ctx, "mitre")
		s.Require().NoError(err)
		found.IDQuota = 99999
		again, _ := s.store.FindByShortName(s.ctx, "mitre")
		s.Equal(5, again.IDQuota)
	})
}

func (s *OrgStoreSuite) TestUsers() {
	org := s.newOrg("acme")
	s.Require().NoError(s.store.CreateOrg(s.ctx, org))
	user, err := models.NewUser(uuid.New(), org.UUID, "alice", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateUser(s.ctx, user))

	s.Run("find by org and username", func() {
		found, err := s.store.FindUser(s.ctx, org.UUID, "alice")
		s.Require().NoError(err)
		s.Equal(user.UUID, found.UUID)
	})

	s.Run("find by UUID", func() {
		found, err := s.store.FindUserByUUID(s.ctx, user.UUID)
		s.Require().NoError(err)
		s.Equal("alice", found.Username)

		_, err = s.store.FindUserByUUID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("usernames are scoped per org", func() {
		_, err := s.store.FindUser(s.ctx, uuid.New(), "alice")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate username conflicts", func() {
		dup, _ := models.NewUser(uuid.New(), org.UUID, "alice", time.Now())
		s.ErrorIs(s.store.CreateUser(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("user needs an existing org", func() {
		orphan, _ := models.NewUser(uuid.New(), uuid.New(), "bob", time.Now())
		s.ErrorIs(s.store.CreateUser(s.ctx, orphan), sentinel.ErrNotFound)
	})
}
