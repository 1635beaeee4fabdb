package domain

import "fmt"

// Role is the closed set of user roles known to the API.
type Role string

// Valid roles
const (
	RoleAdmin    Role = "admin"
	RoleAttendee Role = "attendee"
)

// ParseRole creates a Role with validation
func ParseRole(value string) (Role, error) {
	r := Role(value)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RoleAttendee:
		return nil
	default:
		return fmt.Errorf("invalid role %q: must be admin or attendee", string(r))
	}
}

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

// Profile is the authenticated user as returned by /api/auth/me.
// It is replaced wholesale, never patched.
type Profile struct {
	ID    ID     `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`
}

// Validate rejects profiles without an id or with an unknown role.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile has no id")
	}
	return p.Role.Validate()
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
