// Package models provides data structures for the envkeep platform.
package models

import (
	"errors"
	"strings"
	"time"
)

// Role represents a principal's privilege level within an application.
type Role string

const (
	RoleOwner  Role = "OWNER"  // Full access, can delete the application and manage members
	RoleEditor Role = "EDITOR" // Can change environments, secrets and variables
	RoleViewer Role = "VIEWER" // Read-only access
)

// roleRank orders roles by privilege. Unknown roles rank zero.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// ErrInvalidRole is returned when a role string is not one of the known roles.
var ErrInvalidRole = errors.New("role must be one of OWNER, EDITOR, VIEWER")

// Rank returns the privilege rank of the role.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r grants at least the privilege of minimum.
func (r Role) AtLeast(minimum Role) bool {
	return r.Valid() && r.Rank() >= minimum.Rank()
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Membership binds a principal to exactly one role on an application.
type Membership struct {
	ApplicationID string    `json:"application_id"`
	PrincipalID   string    `json:"principal_id"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
