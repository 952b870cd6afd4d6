package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "cveregistry/pkg/platform/middleware/request"
	"cveregistry/pkg/platform/sentinel"
	"cveregistry/pkg/requestcontext"
)

// Identity headers set by the authenticating gateway in front of the registry.
const (
	HeaderOrg  = "CVE-API-ORG"
	HeaderUser = "CVE-API-USER"
)

// CallerResolver maps the human-readable org short name and username to the
// stable identities used on reserved identifiers.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, orgShortName, username string) (requestcontext.Caller, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaller resolves the identity headers into a requestcontext.Caller.
// Credential verification happens upstream; this only rejects unknown callers.
func RequireCaller(resolver CallerResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			org := strings.TrimSpace(r.Header.Get(HeaderOrg))
			user := strings.TrimSpace(r.Header.Get(HeaderUser))
			if org == "" || user == "" {
				logger.WarnContext(ctx, "unauthorized access - missing identity headers",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing CVE-API-ORG or CVE-API-USER header")
				return
			}

			caller, err := resolver.ResolveCaller(ctx, org, user)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					logger.WarnContext(ctx, "unauthorized access - unknown caller",
						"org", org,
						"user", user,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Unknown organization or user")
					return
				}
				logger.ErrorContext(ctx, "failed to resolve caller",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve caller")
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
