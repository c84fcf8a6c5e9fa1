// Package types provides the entities, closed status enumerations and request payloads
// shared by the talent pipeline packages.
package types

import (
	"github.com/google/uuid"
)

// Role is the caller role carried by a session credential.
type Role string

const (
	RoleTalent Role = "TALENT"
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTalent, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// Principal identifies the authenticated caller of an operation.
// Ownership (which talent or client the caller is) is always resolved
// from UserID against the store, never taken from request payloads.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the caller acts as an operator.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// User is a platform account. Only the fields the pipeline needs to route
// notifications are kept here.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}
