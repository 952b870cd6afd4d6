package admin

import (
	"log/slog"
	"net/http"

	request "cveregistry/pkg/platform/middleware/request"
	"cveregistry/pkg/requestcontext"
)

// RequireRole only lets callers whose organization holds role through.
// It must run after auth.RequireCaller.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Principal(ctx)
			if !caller.HasRole(role) {
				logger.WarnContext(ctx, "forbidden - role required",
					"role", role,
					"org", caller.OrgShortName,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"` + role + ` role required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
