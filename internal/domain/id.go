package domain

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Aggregate identifiers are ULIDs: 26-character, lexicographically sortable
// strings generated locally. They are value objects; equality is string
// equality.

// TenantID identifies a tenant.
type TenantID string

// GroupID identifies a group.
type GroupID string

// WorkspaceID identifies a workspace.
type WorkspaceID string

// APIKeyID identifies an api key.
type APIKeyID string

// UserID is the opaque identifier assigned by the external IdP. It is
// accepted as-is after trimming; no format is assumed.
type UserID string

func newULID() string {
	return ulid.Make().String()
}

// NewTenantID generates a fresh tenant id.
func NewTenantID() TenantID { return TenantID(newULID()) }

// NewGroupID generates a fresh group id.
func NewGroupID() GroupID { return GroupID(newULID()) }

// NewWorkspaceID generates a fresh workspace id.
func NewWorkspaceID() WorkspaceID { return WorkspaceID(newULID()) }

// NewAPIKeyID generates a fresh api key id.
func NewAPIKeyID() APIKeyID { return APIKeyID(newULID()) }

// ParseTenantID validates s as a ULID-shaped tenant id.
func ParseTenantID(s string) (TenantID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", Invariantf("invalid tenant id %q", s)
	}
	return TenantID(s), nil
}

// ParseWorkspaceID validates s as a ULID-shaped workspace id.
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", Invariantf("invalid workspace id %q", s)
	}
	return WorkspaceID(s), nil
}

// ParseGroupID validates s as a ULID-shaped group id.
func ParseGroupID(s string) (GroupID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", Invariantf("invalid group id %q", s)
	}
	return GroupID(s), nil
}

// ParseAPIKeyID validates s as a ULID-shaped api key id.
func ParseAPIKeyID(s string) (APIKeyID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", Invariantf("invalid api key id %q", s)
	}
	return APIKeyID(s), nil
}

// ParseUserID trims and validates an IdP-issued user id.
func ParseUserID(s string) (UserID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", Invariantf("user id must not be empty")
	}
	return UserID(trimmed), nil
}
