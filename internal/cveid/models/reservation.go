package models

// QuotaSnapshot is an organization's identifier quota at one point in time.
type QuotaSnapshot struct {
	IDQuota       int `json:"id_quota"`
	TotalReserved int `json:"total_reserved"`
	Available     int `json:"available"`
}

// NewQuotaSnapshot derives Available from the configured quota and reservations.
func NewQuotaSnapshot(idQuota, totalReserved int) QuotaSnapshot {
	return QuotaSnapshot{
		IDQuota:       idQuota,
		TotalReserved: totalReserved,
		Available:     idQuota - totalReserved,
	}
}

// Requester identifies the organization user performing a reservation.
type Requester struct {
	Org  string
	User string
}

// Status is the overall outcome of a reservation request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Reason explains a failed or partial reservation.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonQuotaExceeded       Reason = "QUOTA_EXCEEDED"
	ReasonRangeNotProvisioned Reason = "RANGE_NOT_PROVISIONED"
	ReasonRangeFull           Reason = "RANGE_FULL"
)

// Reservation is the result of one reservation request.
// For StatusPartial, ClaimedCount == len(IDs) < requested amount.
type Reservation struct {
	Status         Status
	Reason         Reason
	Year           int
	Requested      int
	IDs            []Identifier
	ClaimedCount   int
	RemainingQuota int
}

// Tokens returns the claimed identifier tokens in claim order.
func (r *Reservation) Tokens() []string {
	out := make([]string, len(r.IDs))
	for i, id := range r.IDs {
		out[i] = id.ID
	}
	return out
}
