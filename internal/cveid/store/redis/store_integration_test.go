//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cveregistry/internal/cveid/models"
	cveredis "cveregistry/internal/cveid/store/redis"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *cveredis.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = cveredis.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func (s *RedisStoreSuite) stage(year int, from, to int64) {
	var ids []models.Identifier
	for n := from; n <= to; n++ {
		ids = append(ids, models.NewAvailable(year, n, time.Now()))
	}
	s.Require().NoError(s.store.InsertAvailable(context.Background(), ids))
}

func (s *RedisStoreSuite) TestRanges() {
	ctx := context.Background()

	_, err := s.store.FindRange(ctx, 2030)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.ExtendTop(ctx, 2030, 5)
	s.ErrorIs(err, sentinel.ErrNotFound)

	yr, err := models.NewYearRange(2030, 1, 10)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateRange(ctx, yr))
	s.ErrorIs(s.store.CreateRange(ctx, yr), sentinel.ErrConflict)

	got, err := s.store.FindRange(ctx, 2030)
	s.Require().NoError(err)
	s.Equal(*yr, *got)

	upd, err := s.store.ExtendTop(ctx, 2030, 8)
	s.Require().NoError(err)
	s.Equal(models.TopUpdate{PrevTopID: 0, NewTopID: 8, End: 10}, upd)

	upd, err = s.store.ExtendTop(ctx, 2030, 8)
	s.Require().NoError(err)
	s.Equal(models.TopUpdate{PrevTopID: 8, NewTopID: 10, End: 10}, upd)

	upd, err = s.store.ExtendTop(ctx, 2030, 8)
	s.Require().NoError(err)
	s.Equal(int64(0), upd.Granted())
}

func (s *RedisStoreSuite) TestInsertFindAndClaim() {
	ctx := context.Background()
	s.stage(2030, 1, 20)

	s.Run("duplicates reject the whole batch", func() {
		err := s.store.InsertAvailable(ctx, []models.Identifier{
			models.NewAvailable(2030, 21, time.Now()),
			models.NewAvailable(2030, 3, time.Now()),
		})
		s.ErrorIs(err, sentinel.ErrConflict)
		_, err = s.store.FindByID(ctx, models.FormatID(2030, 21))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("sample returns distinct available identifiers", func() {
		ids, err := s.store.FindAvailable(ctx, 2030, 50)
		s.Require().NoError(err)
		s.Len(ids, 20)
		seen := make(map[string]bool)
		for _, id := range ids {
			s.False(seen[id.ID])
			seen[id.ID] = true
		}
	})

	s.Run("claim moves the identifier out of the available set", func() {
		requester := models.RequestedBy{Org: "org-a", User: "user-a"}
		claimed, err := s.store.ClaimAvailable(ctx, "CVE-2030-0007", "org-a", requester, time.Now())
		s.Require().NoError(err)
		s.Require().NotNil(claimed)
		s.Equal(models.StateReserved, claimed.State)

		again, err := s.store.ClaimAvailable(ctx, "CVE-2030-0007", "org-b", requester, time.Now())
		s.Require().NoError(err)
		s.Nil(again)

		doc, err := s.store.FindByID(ctx, "CVE-2030-0007")
		s.Require().NoError(err)
		s.Equal("org-a", doc.OwningOrg)
		s.Equal(requester, doc.RequestedBy)

		n, err := s.store.CountReserved(ctx, "org-a")
		s.Require().NoError(err)
		s.Equal(1, n)

		ids, err := s.store.FindAvailable(ctx, 2030, 50)
		s.Require().NoError(err)
		s.Len(ids, 19)
	})
}

// TestConcurrentClaimsHaveOneWinner verifies the claim script admits exactly
// one claimant per identifier.
func (s *RedisStoreSuite) TestConcurrentClaimsHaveOneWinner() {
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
	n, err := s.store.CountReserved(ctx, "org-a")
	s.Require().NoError(err)
	s.Equal(1, n)
}
