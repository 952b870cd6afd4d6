package testutil

import (
	"context"
	"net/http"

	"cveregistry/pkg/platform/middleware/auth"
	"cveregistry/pkg/requestcontext"
)

// WithCaller sets the identity headers that auth.RequireCaller resolves.
func WithCaller(req *http.Request, orgShortName, username string) *http.Request {
	req.Header.Set(auth.HeaderOrg, orgShortName)
	req.Header.Set(auth.HeaderUser, username)
	return req
}

// WithPrincipal places an already-resolved caller on the request context.
// This simulates what the auth middleware would do for handlers tested
// without it.
func WithPrincipal(req *http.Request, caller requestcontext.Caller) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), caller)
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
