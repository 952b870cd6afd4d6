//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"cveregistry/internal/org/models"
	"cveregistry/internal/org/service"
	"cveregistry/internal/org/store/postgres"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "org_users", "orgs")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createOrg(shortName string, roles ...models.Role) *models.Organization {
	org, err := models.NewOrganization(uuid.New(), shortName, shortName+" corp", roles, 50, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateOrg(context.Background(), org))
	return org
}

func (s *PostgresStoreSuite) TestOrganizations() {
	ctx := context.Background()
	org := s.createOrg("acme", models.RoleCNA, models.RoleSecretariat)

	s.Run("lookup ignores case and round-trips roles", func() {
		got, err := s.store.FindByShortName(ctx, "ACME")
		s.Require().NoError(err)
		s.Equal(org.UUID, got.UUID)
		s.Equal([]models.Role{models.RoleCNA, models.RoleSecretariat}, got.Roles)
		s.Equal(50, got.IDQuota)
	})

	s.Run("short names are unique regardless of case", func() {
		dup, err := models.NewOrganization(uuid.New(), "Acme", "dup", []models.Role{models.RoleCNA}, 1, time.Now())
		s.Require().NoError(err)
		s.ErrorIs(s.store.CreateOrg(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("quota update", func() {
		s.Require().NoError(s.store.UpdateQuota(ctx, "acme", 75))
		got, err := s.store.FindByShortName(ctx, "acme")
		s.Require().NoError(err)
		s.Equal(75, got.IDQuota)

		s.ErrorIs(s.store.UpdateQuota(ctx, "ghost", 1), sentinel.ErrNotFound)
	})

	s.Run("lookup by UUID", func() {
		got, err := s.store.FindByUUID(ctx, org.UUID)
		s.Require().NoError(err)
		s.Equal("acme", got.ShortName)

		_, err = s.store.FindByUUID(ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown organization", func() {
		_, err := s.store.FindByShortName(ctx, "ghost")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestUsers() {
	ctx := context.Background()
	org := s.createOrg("acme", models.RoleCNA)

	user, err := models.NewUser(uuid.New(), org.UUID, "alice", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateUser(ctx, user))

	got, err := s.store.FindUser(ctx, org.UUID, "alice")
	s.Require().NoError(err)
	s.Equal(user.UUID, got.UUID)
	s.True(got.Active)

	dup, err := models.NewUser(uuid.New(), org.UUID, "alice", time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateUser(ctx, dup), sentinel.ErrConflict)

	orphan, err := models.NewUser(uuid.New(), uuid.New(), "bob", time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateUser(ctx, orphan), sentinel.ErrNotFound)

	_, err = s.store.FindUser(ctx, org.UUID, "bob")
	s.ErrorIs(err, sentinel.ErrNotFound)

	byID, err := s.store.FindUserByUUID(ctx, user.UUID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal(org.UUID, byID.OrgUUID)

	_, err = s.store.FindUserByUUID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestSeedIsIdempotent applies the same seed twice against the database.
func (s *PostgresStoreSuite) TestSeedIsIdempotent() {
	ctx := context.Background()
	svc, err := service.New(s.store)
	s.Require().NoError(err)

	seed := &service.Seed{Orgs: []service.SeedOrg{
		{ShortName: "mitre", Name: "MITRE", Roles: []string{"CNA", "SECRETARIAT"}, Users: []string{"admin"}},
	}}
	s.Require().NoError(svc.ApplySeed(ctx, seed))
	s.Require().NoError(svc.ApplySeed(ctx, seed))

	caller, err := svc.ResolveCaller(ctx, "mitre", "admin")
	s.Require().NoError(err)
	s.Equal("mitre", caller.OrgShortName)
	s.Contains(caller.Roles, "SECRETARIAT")
}
