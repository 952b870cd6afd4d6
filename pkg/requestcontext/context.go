// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	principal := requestcontext.Principal(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithPrincipal(ctx, principal)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"slices"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	principalKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Caller is the resolved identity of the organization user behind a request.
// UUIDs are the stable identities stored on reserved identifiers.
type Caller struct {
	OrgShortName string
	OrgUUID      string
	Username     string
	UserUUID     string
	Roles        []string
}

// HasRole reports whether the caller's organization holds role.
func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsZero reports whether no caller was resolved.
func (c Caller) IsZero() bool {
	return c.OrgUUID == "" && c.UserUUID == ""
}

// Principal retrieves the authenticated caller from the context.
// Returns the zero value if not set.
func Principal(ctx context.Context) Caller {
	if c, ok := ctx.Value(ContextKeyPrincipal).(Caller); ok {
		return c
	}
	return Caller{}
}

// WithPrincipal injects the authenticated caller into the context.
func WithPrincipal(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, c)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like seeding, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Seeding that needs consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
