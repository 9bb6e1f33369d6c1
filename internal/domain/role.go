package domain

import "fmt"

// Role is the closed set of membership roles within a tenant or group.
// String conversion happens only at persistence and wire boundaries.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleMember Role = "member"
)

// ParseRole validates s against the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleEditor, RoleMember:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvariantViolation, s)
	}
}

// IsAdmin reports whether the role carries administrative rights.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }

// MemberSnapshot captures a (user, role) pair at a point in time. Deletion
// events carry these so the outbox worker can remove relationships after the
// relational rows are gone.
type MemberSnapshot struct {
	UserID UserID `json:"user_id"`
	Role   Role   `json:"role"`
}
