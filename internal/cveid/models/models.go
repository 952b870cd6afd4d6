package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IDPrefix is the leading component of every identifier token.
const IDPrefix = "CVE"

// NotApplicable marks ownership fields of identifiers that are still AVAILABLE.
const NotApplicable = "N/A"

// numberWidth is the minimum zero-padded width of the numeric suffix.
const numberWidth = 4

var idPattern = regexp.MustCompile(`^CVE-([0-9]{4})-([0-9]{4,19})$`)

// State is the lifecycle state of an identifier.
type State string

const (
	StateAvailable State = "AVAILABLE"
	StateReserved  State = "RESERVED"
	StatePublished State = "PUBLISHED"
	StateRejected  State = "REJECTED"
)

func (s State) IsValid() bool {
	switch s {
	case StateAvailable, StateReserved, StatePublished, StateRejected:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// RequestedBy records who performed a reservation.
type RequestedBy struct {
	Org  string `json:"cna"`
	User string `json:"user"`
}

// Identifier is one staged or issued identifier document.
type Identifier struct {
	ID          string      `json:"cve_id"`
	Year        int         `json:"cve_year"`
	State       State       `json:"state"`
	OwningOrg   string      `json:"owning_cna"`
	RequestedBy RequestedBy `json:"requested_by"`
	ReservedAt  time.Time   `json:"reserved"`
}

// NewAvailable builds the document the pool materializer stages for one number.
func NewAvailable(year int, number int64, stagedAt time.Time) Identifier {
	return Identifier{
		ID:          FormatID(year, number),
		Year:        year,
		State:       StateAvailable,
		OwningOrg:   NotApplicable,
		RequestedBy: RequestedBy{Org: NotApplicable, User: NotApplicable},
		ReservedAt:  stagedAt,
	}
}

// FormatID renders the token for number in year, e.g. CVE-2030-0001.
func FormatID(year int, number int64) string {
	return fmt.Sprintf("%s-%d-%0*d", IDPrefix, year, numberWidth, number)
}

// ParseID splits a token into its year and number.
func ParseID(token string) (year int, number int64, err error) {
	m := idPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid identifier %q", token)
	}
	year, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid identifier year %q: %w", token, err)
	}
	number, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid identifier number %q: %w", token, err)
	}
	return year, number, nil
}

// ValidYear reports whether year has exactly four digits.
func ValidYear(year int) bool {
	return year >= 1000 && year <= 9999
}
