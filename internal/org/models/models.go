package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is an organization role.
type Role string

const (
	RoleCNA          Role = "CNA"
	RoleSecretariat  Role = "SECRETARIAT"
	RoleRootCNA      Role = "ROOT_CNA"
	RoleADP          Role = "ADP"
	RoleBulkDownload Role = "BULK_DOWNLOAD"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCNA, RoleSecretariat, RoleRootCNA, RoleADP, RoleBulkDownload:
		return true
	}
	return false
}

// Quota bounds enforced on Organization.IDQuota.
const (
	MinIDQuota     = 0
	MaxIDQuota     = 100000
	DefaultIDQuota = 1000
)

// Short name length bounds.
const (
	MinShortNameLength = 2
	MaxShortNameLength = 32
)

// Organization is a registry participant that can own identifiers.
type Organization struct {
	UUID      uuid.UUID `json:"UUID"`
	ShortName string    `json:"short_name"`
	Name      string    `json:"name"`
	Roles     []Role    `json:"authority"`
	IDQuota   int       `json:"id_quota"`
	CreatedAt time.Time `json:"created"`
}

// NewOrganization validates the organization invariants.
func NewOrganization(id uuid.UUID, shortName, name string, roles []Role, idQuota int, now time.Time) (*Organization, error) {
	shortName = strings.TrimSpace(shortName)
	if id == uuid.Nil {
		return nil, fmt.Errorf("organization UUID is required")
	}
	if l := len(shortName); l < MinShortNameLength || l > MaxShortNameLength {
		return nil, fmt.Errorf("short_name must be between %d and %d characters", MinShortNameLength, MaxShortNameLength)
	}
	if idQuota < MinIDQuota {
		return nil, fmt.Errorf("id_quota cannot be a negative number")
	}
	if idQuota > MaxIDQuota {
		return nil, fmt.Errorf("id_quota cannot exceed maximum threshold")
	}
	for _, r := range roles {
		if !r.IsValid() {
			return nil, fmt.Errorf("unknown role %q", r)
		}
	}
	if name == "" {
		name = shortName
	}
	return &Organization{
		UUID:      id,
		ShortName: shortName,
		Name:      name,
		Roles:     roles,
		IDQuota:   idQuota,
		CreatedAt: now,
	}, nil
}

// HasRole reports whether the organization holds role.
func (o *Organization) HasRole(role Role) bool {
	return slices.Contains(o.Roles, role)
}

// RoleNames returns the roles as plain strings.
func (o *Organization) RoleNames() []string {
	out := make([]string, len(o.Roles))
	for i, r := range o.Roles {
		out[i] = string(r)
	}
	return out
}

// User is a named account belonging to one organization.
type User struct {
	UUID      uuid.UUID `json:"UUID"`
	OrgUUID   uuid.UUID `json:"org_UUID"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created"`
}

// NewUser validates the user invariants.
func NewUser(id, orgID uuid.UUID, username string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	if id == uuid.Nil || orgID == uuid.Nil {
		return nil, fmt.Errorf("user and organization UUIDs are required")
	}
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	return &User{UUID: id, OrgUUID: orgID, Username: username, Active: true, CreatedAt: now}, nil
}

// MayActFor reports whether a caller from callerOrg holding callerRoles may
// read or act on behalf of target. The secretariat may act for every org.
func MayActFor(callerOrg string, callerRoles []string, target string) bool {
	if strings.EqualFold(callerOrg, target) {
		return true
	}
	return slices.Contains(callerRoles, string(RoleSecretariat))
}
