//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/store/postgres"
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
	s.store = postgres.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "cve_ids", "cve_id_ranges")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) provision(year int, start, end int64) {
	yr, err := models.NewYearRange(year, start, end)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRange(context.Background(), yr))
}

func (s *PostgresStoreSuite) stage(year int, from, to int64) {
	var ids []models.Identifier
	for n := from; n <= to; n++ {
		ids = append(ids, models.NewAvailable(year, n, time.Now()))
	}
	s.Require().NoError(s.store.InsertAvailable(context.Background(), ids))
}

func (s *PostgresStoreSuite) TestRanges() {
	ctx := context.Background()

	s.Run("missing year is not found", func() {
		_, err := s.store.FindRange(ctx, 2099)
		s.ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.ExtendTop(ctx, 2099, 10)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("create twice conflicts", func() {
		s.provision(2030, 1, 10)
		yr, err := models.DefaultYearRange(2030)
		s.Require().NoError(err)
		s.ErrorIs(s.store.CreateRange(ctx, yr), sentinel.ErrConflict)
	})

	s.Run("extend caps at end and then reports full", func() {
		upd, err := s.store.ExtendTop(ctx, 2030, 7)
		s.Require().NoError(err)
		s.Equal(models.TopUpdate{PrevTopID: 0, NewTopID: 7, End: 10}, upd)

		upd, err = s.store.ExtendTop(ctx, 2030, 7)
		s.Require().NoError(err)
		s.Equal(models.TopUpdate{PrevTopID: 7, NewTopID: 10, End: 10}, upd)

		upd, err = s.store.ExtendTop(ctx, 2030, 7)
		s.Require().NoError(err)
		s.Equal(int64(0), upd.Granted())

		yr, err := s.store.FindRange(ctx, 2030)
		s.Require().NoError(err)
		s.Equal(int64(10), yr.General.TopID)
	})
}

// TestConcurrentExtendGrantsDisjointWindows verifies that racing extensions
// never hand out overlapping windows and never exceed the range end.
func (s *PostgresStoreSuite) TestConcurrentExtendGrantsDisjointWindows() {
	ctx := context.Background()
	s.provision(2031, 1, 500)

	const goroutines = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted = make(map[int64]int)
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			upd, err := s.store.ExtendTop(ctx, 2031, 20)
			s.NoError(err)
			mu.Lock()
			defer mu.Unlock()
			for n := upd.PrevTopID + 1; n <= upd.NewTopID; n++ {
				granted[n]++
			}
		}()
	}
	wg.Wait()

	s.Len(granted, 500)
	for n, times := range granted {
		s.Equal(1, times, "number %d granted more than once", n)
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	s.stage(2030, 1, 25)

	s.Run("duplicate batch conflicts and inserts nothing", func() {
		err := s.store.InsertAvailable(ctx, []models.Identifier{
			models.NewAvailable(2030, 26, time.Now()),
			models.NewAvailable(2030, 1, time.Now()),
		})
		s.ErrorIs(err, sentinel.ErrConflict)

		_, err = s.store.FindByID(ctx, models.FormatID(2030, 26))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("find available honours limit and year", func() {
		ids, err := s.store.FindAvailable(ctx, 2030, 10)
		s.Require().NoError(err)
		s.Len(ids, 10)
		for _, id := range ids {
			s.Equal(models.StateAvailable, id.State)
			s.Equal(2030, id.Year)
		}

		ids, err = s.store.FindAvailable(ctx, 2031, 10)
		s.Require().NoError(err)
		s.Empty(ids)
	})

	s.Run("find by id round-trips ownership placeholders", func() {
		doc, err := s.store.FindByID(ctx, "CVE-2030-0005")
		s.Require().NoError(err)
		s.Equal(models.NotApplicable, doc.OwningOrg)
		s.Equal(models.NotApplicable, doc.RequestedBy.User)
	})
}

func (s *PostgresStoreSuite) TestClaim() {
	ctx := context.Background()
	s.stage(2030, 1, 3)
	requester := models.RequestedBy{Org: "org-a", User: "user-a"}
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	claimed, err := s.store.ClaimAvailable(ctx, "CVE-2030-0001", "org-a", requester, at)
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	s.Equal(models.StateReserved, claimed.State)
	s.Equal("org-a", claimed.OwningOrg)
	s.Equal(requester, claimed.RequestedBy)
	s.True(at.Equal(claimed.ReservedAt))

	again, err := s.store.ClaimAvailable(ctx, "CVE-2030-0001", "org-b", requester, at)
	s.Require().NoError(err)
	s.Nil(again)

	missing, err := s.store.ClaimAvailable(ctx, "CVE-2030-9999", "org-a", requester, at)
	s.Require().NoError(err)
	s.Nil(missing)

	n, err := s.store.CountReserved(ctx, "org-a")
	s.Require().NoError(err)
	s.Equal(1, n)

	ids, err := s.store.FindAvailable(ctx, 2030, 10)
	s.Require().NoError(err)
	s.Len(ids, 2)
}

// TestConcurrentClaimsHaveOneWinner verifies the conditional update admits
// exactly one claimant per identifier.
func (s *PostgresStoreSuite) TestConcurrentClaimsHaveOneWinner() {
	ctx := context.Background()
	s.stage(2030, 1, 1)

	const goroutines = 50
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.store.ClaimAvailable(ctx, "CVE-2030-0001", "org-a",
				models.RequestedBy{Org: "org-a", User: "u"}, time.Now())
			s.NoError(err)
			if claimed != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
