package domain

import (
	"fmt"
	"time"
)

// Role of a person on a lease.
type Role string

const (
	RolePrimary   Role = "PRIMARY"
	RoleCoTenant  Role = "CO_TENANT"
	RoleGuarantor Role = "GUARANTOR"
)

// ParseRole accepts the three roles; the empty string is reported as not ok.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RolePrimary, RoleCoTenant, RoleGuarantor:
		return r, true
	}
	return "", false
}

// Tenant is a roster entry. PersonID is an opaque reference owned elsewhere.
type Tenant struct {
	PersonID string    `json:"personId"`
	Role     Role      `json:"role"`
	AddedAt  time.Time `json:"addedAt"`
}

// HasPrimaryTenant reports whether at least one entry is PRIMARY.
func HasPrimaryTenant(tenants []Tenant) bool {
	for _, t := range tenants {
		if t.Role == RolePrimary {
			return true
		}
	}
	return false
}

// PrimaryRuleHolds is the roster invariant: an open lease with a non-empty
// roster has a PRIMARY entry. Terminal leases are exempt.
func PrimaryRuleHolds(status Status, tenants []Tenant) bool {
	if !status.IsOpen() || len(tenants) == 0 {
		return true
	}
	return HasPrimaryTenant(tenants)
}

func findTenant(tenants []Tenant, personID string) int {
	for i, t := range tenants {
		if t.PersonID == personID {
			return i
		}
	}
	return -1
}

// AddTenant attaches personID with role. An empty role on an empty roster
// means PRIMARY.
func (l *Lease) AddTenant(personID, role string, now time.Time) error {
	if err := l.EnsureOpen(); err != nil {
		return err
	}
	if personID == "" {
		return &Error{Kind: ErrValidationFailed, Message: "invalid tenant", Fields: map[string]string{"personId": "is required"}}
	}
	if findTenant(l.Tenants, personID) >= 0 {
		return newError(ErrDuplicatePerson, "person %s is already a tenant on lease %s", personID, l.ID)
	}

	var r Role
	switch {
	case role == "" && len(l.Tenants) == 0:
		r = RolePrimary
	case role == "":
		return &Error{Kind: ErrValidationFailed, Message: "invalid tenant", Fields: map[string]string{"role": "is required"}}
	default:
		var ok bool
		if r, ok = ParseRole(role); !ok {
			return &Error{Kind: ErrValidationFailed, Message: "invalid tenant", Fields: map[string]string{"role": fmt.Sprintf("unknown role %q", role)}}
		}
	}

	next := append(append([]Tenant(nil), l.Tenants...), Tenant{PersonID: personID, Role: r, AddedAt: now.UTC()})
	if l.Status == StatusActive && !PrimaryRuleHolds(l.Status, next) {
		return newError(ErrValidationFailed, "at least one primary tenant is required on an active lease")
	}
	l.Tenants = next
	return nil
}

// RemoveTenant detaches personID. Removing the only remaining entry is
// allowed; stranding co-tenants or guarantors without a PRIMARY is not.
func (l *Lease) RemoveTenant(personID string) error {
	if err := l.EnsureOpen(); err != nil {
		return err
	}
	i := findTenant(l.Tenants, personID)
	if i < 0 {
		return NotFoundError("tenant", personID)
	}
	next := make([]Tenant, 0, len(l.Tenants)-1)
	next = append(next, l.Tenants[:i]...)
	next = append(next, l.Tenants[i+1:]...)
	if !PrimaryRuleHolds(l.Status, next) {
		return newError(ErrLastPrimaryTenant, "cannot remove the last primary tenant while other tenants remain on lease %s", l.ID)
	}
	l.Tenants = next
	return nil
}

// TenantIDs returns the person ids with one of the given roles, in roster
// order. No roles means all.
func TenantIDs(tenants []Tenant, roles ...Role) []string {
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		if len(roles) == 0 || hasRole(roles, t.Role) {
			ids = append(ids, t.PersonID)
		}
	}
	return ids
}

func hasRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
