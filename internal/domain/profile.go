package domain

import (
	"slices"
	"time"
)

// ============================================================
// Profiles
// ============================================================

// Role is a position in the user hierarchy.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
)

var roleOrder = []Role{RoleCustomer, RoleAgent, RoleAdmin, RoleDeveloper}

// Level returns the rank of r in the hierarchy, -1 when unknown.
func (r Role) Level() int {
	return slices.Index(roleOrder, r)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Level() >= 0
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Level() >= min.Level()
}

// ProfileStatus is the approval state of an account.
type ProfileStatus string

const (
	ProfilePending   ProfileStatus = "pending"
	ProfileApproved  ProfileStatus = "approved"
	ProfileSuspended ProfileStatus = "suspended"
)

// Profile is a system user.
type Profile struct {
	ID        string        `json:"id" db:"id"`
	Email     string        `json:"email" db:"email"`
	FullName  string        `json:"full_name" db:"full_name"`
	Phone     string        `json:"phone" db:"phone"`
	Role      Role          `json:"role" db:"role"`
	Status    ProfileStatus `json:"status" db:"status"`
	IsActive  bool          `json:"is_active" db:"is_active"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// CanAccess reports whether the profile may enter protected areas.
func (p *Profile) CanAccess() bool {
	return p.Status == ProfileApproved && p.IsActive
}

// SeesAllRecords reports whether listings should skip owner scoping.
func (p *Profile) SeesAllRecords() bool {
	return p.Role.AtLeast(RoleAdmin)
}

// ProfileFilter narrows a profile listing.
type ProfileFilter struct {
	Status ProfileStatus
	Role   Role
}

// ChangeRoleRequest is the body of PUT /v1/admin/profiles/{profileId}/role.
type ChangeRoleRequest struct {
	Role Role `json:"role"`
}
