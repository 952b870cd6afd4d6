package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that change who owns an identifier or how
	// the namespace is provisioned. These require durable storage.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected requests relevant to abuse monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the organization the action applies to (the owning org for
	// reservations).
	Subject string
	Action  string
	Reason  string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorOrg and ActorID identify who performed the action when it differs
	// from Subject, e.g. a secretariat reserving on behalf of a CNA.
	ActorOrg string
	ActorID  string
	Year     int
	// Identifiers lists the identifier tokens the action touched.
	Identifiers []string
}

type AuditEvent string

const (
	// Reservation events
	EventNonsequentialReservation        AuditEvent = "nonsequential_reservation"
	EventNonsequentialReservationPartial AuditEvent = "nonsequential_reservation_partial"
	EventReservationRejected             AuditEvent = "reservation_rejected"

	// Namespace events
	EventRangeProvisioned AuditEvent = "range_provisioned"
	EventPoolExtended     AuditEvent = "pool_extended"
	EventRangeExhausted   AuditEvent = "range_exhausted"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventNonsequentialReservation:        CategoryCompliance,
	EventNonsequentialReservationPartial: CategoryCompliance,
	EventRangeProvisioned:                CategoryCompliance,

	EventReservationRejected: CategorySecurity,

	EventPoolExtended:   CategoryOperations,
	EventRangeExhausted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
