package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cveregistry/internal/platform/metrics"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/requestcontext"
	"cveregistry/pkg/testutil"
)

type staticResolver struct{}

func (staticResolver) ResolveCaller(_ context.Context, org, user string) (requestcontext.Caller, error) {
	if org != "acme" || user != "alice" {
		return requestcontext.Caller{}, sentinel.ErrNotFound
	}
	return requestcontext.Caller{OrgShortName: "acme", Username: "alice", Roles: []string{"CNA"}}, nil
}

type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.Principal(r.Context()).OrgShortName)
	})
}

func newTestRouter(health map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Callers:  staticResolver{},
		Health:   health,
		Routes:   []Registrar{whoami{}},
	})
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "the registry router", func(t *testing.T) {
		router := newTestRouter(nil)

		testutil.When(t, "calling GET /health without credentials", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it reports ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "ok")
			})
		})

		testutil.When(t, "calling a feature route without credentials", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/whoami"))

			testutil.Then(t, "it is rejected", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "calling a feature route as a known user", func(t *testing.T) {
			req := testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, "/api/whoami"), "acme", "alice")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the caller is resolved", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Equal(t, "acme", rr.Body.String())
				assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
			})
		})

		testutil.When(t, "scraping /metrics after traffic", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "request counters are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), "cve_registry_http_requests_total")
			})
		})
	})
}

func TestHealthDegraded(t *testing.T) {
	router := newTestRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"kafka":    func(context.Context) error { return errors.New("no brokers reachable") },
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := testutil.UnmarshalResponse[healthResponse](t, rr)
	require.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "no brokers reachable", body.Checks["kafka"])
}
