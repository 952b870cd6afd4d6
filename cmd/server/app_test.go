package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orgservice "cveregistry/internal/org/service"
	"cveregistry/internal/platform/config"
	"cveregistry/pkg/testutil"
)

func memoryConfig() config.Server {
	return config.Server{
		Addr:    ":0",
		Backend: config.BackendMemory,
		Allocator: config.AllocatorConfig{
			PoolFloor:      100,
			MaxAmount:      10,
			DefaultIDQuota: 5,
		},
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(ctx, memoryConfig(), log, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	seed := &orgservice.Seed{
		Orgs: []orgservice.SeedOrg{
			{ShortName: "mitre", Roles: []string{"CNA", "SECRETARIAT"}, Users: []string{"admin"}},
			{ShortName: "acme", Roles: []string{"CNA"}, Users: []string{"alice"}},
		},
		Years: []int{2030},
	}
	require.NoError(t, a.seed(ctx, seed, log))
	// Seeding twice is a no-op.
	require.NoError(t, a.seed(ctx, seed, log))
	return a
}

func TestAppReservesAgainstSeededData(t *testing.T) {
	a := newTestApp(t)

	testutil.Given(t, "a seeded registry on the memory backend", func(t *testing.T) {
		testutil.When(t, "acme reserves three identifiers for 2030", func(t *testing.T) {
			req := testutil.WithCaller(
				testutil.NewRequest(t, http.MethodPost, "/api/cve-id?amount=3&cve_year=2030&short_name=acme"),
				"acme", "alice")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "all three are granted and the quota shrinks", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Equal(t, "2", rr.Header().Get("CVE-API-REMAINING-QUOTA"))
			})
		})

		testutil.When(t, "acme reads its quota", func(t *testing.T) {
			req := testutil.WithCaller(
				testutil.NewRequest(t, http.MethodGet, "/api/org/acme/id_quota"),
				"acme", "alice")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the reservations are counted", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "total_reserved", float64(3))
			})
		})

		testutil.When(t, "acme asks for more than its remaining quota", func(t *testing.T) {
			req := testutil.WithCaller(
				testutil.NewRequest(t, http.MethodPost, "/api/cve-id?amount=3&cve_year=2030&short_name=acme"),
				"acme", "alice")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the request is refused", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "QUOTA_EXCEEDED")
			})
		})

		testutil.When(t, "the range document is read", func(t *testing.T) {
			req := testutil.WithCaller(
				testutil.NewRequest(t, http.MethodGet, "/api/cve-id-range/2030"),
				"acme", "alice")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "one pool window has been staged", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				yr, err := a.cveids.GetRange(context.Background(), 2030)
				require.NoError(t, err)
				staged := yr.General.TopID - yr.General.Start + 1
				assert.GreaterOrEqual(t, staged, int64(3))
			})
		})
	})
}

func TestAppHealthWithoutDependencies(t *testing.T) {
	a := newTestApp(t)

	rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/health"))

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
}
