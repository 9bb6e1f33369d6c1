package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Tenant row. Name is globally unique.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull,unique"`
}

// User row. The id is the opaque IdP subject; rows are provisioned
// just-in-time on first authenticated contact.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string `bun:"id,pk"`
	Username string `bun:"username,notnull,unique"`
}

// Group row. Name is unique within a tenant.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID       string `bun:"id,pk"`
	TenantID string `bun:"tenant_id,notnull"`
	Name     string `bun:"name,notnull"`

	Members []*GroupMember `bun:"rel:has-many,join:id=group_id"`
}

// GroupMember row. A user holds at most one role per group.
type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	GroupID string `bun:"group_id,pk"`
	UserID  string `bun:"user_id,pk"`
	Role    string `bun:"role,notnull"`
}

// Workspace row. The partial unique index on (tenant_id) WHERE is_root
// enforces one root per tenant; both foreign keys are RESTRICT so deletes
// of parents with children fail loudly.
type Workspace struct {
	bun.BaseModel `bun:"table:workspaces,alias:w"`

	ID                string    `bun:"id,pk"`
	TenantID          string    `bun:"tenant_id,notnull"`
	Name              string    `bun:"name,notnull"`
	ParentWorkspaceID *string   `bun:"parent_workspace_id"`
	IsRoot            bool      `bun:"is_root,notnull,default:false"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

// APIKey row. Only the prefix and the bcrypt hash are stored; the name is
// unique per (owner, tenant).
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID          string     `bun:"id,pk"`
	OwnerUserID string     `bun:"owner_user_id,notnull"`
	TenantID    string     `bun:"tenant_id,notnull"`
	Name        string     `bun:"name,notnull"`
	Prefix      string     `bun:"prefix,notnull"`
	Hash        string     `bun:"hash,notnull"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	ExpiresAt   time.Time  `bun:"expires_at,notnull"`
	LastUsedAt  *time.Time `bun:"last_used_at"`
	IsRevoked   bool       `bun:"is_revoked,notnull,default:false"`
}
