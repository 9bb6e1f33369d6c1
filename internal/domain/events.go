package domain

import "time"

// Event is a frozen record of a state transition that matters to the
// authorization graph. Events are recorded by aggregates, appended to the
// outbox in the same transaction as the aggregate write, and projected into
// the authorization engine by the outbox worker.
type Event interface {
	// Kind returns the event discriminator stored in the outbox row's
	// event_type column. The payload itself carries no type marker.
	Kind() string
	// OccurredAtTime returns the UTC timestamp the transition happened.
	OccurredAtTime() time.Time
}

// Event kind discriminators. The set is closed; the outbox codec rejects
// anything outside it.
const (
	KindGroupCreated        = "GroupCreated"
	KindGroupDeleted        = "GroupDeleted"
	KindMemberAdded         = "MemberAdded"
	KindMemberRemoved       = "MemberRemoved"
	KindMemberRoleChanged   = "MemberRoleChanged"
	KindTenantCreated       = "TenantCreated"
	KindTenantDeleted       = "TenantDeleted"
	KindTenantMemberAdded   = "TenantMemberAdded"
	KindTenantMemberRemoved = "TenantMemberRemoved"
	KindWorkspaceCreated    = "WorkspaceCreated"
	KindWorkspaceDeleted    = "WorkspaceDeleted"
	KindAPIKeyCreated       = "APIKeyCreated"
	KindAPIKeyRevoked       = "APIKeyRevoked"
	KindAPIKeyDeleted       = "APIKeyDeleted"
)

func now() time.Time { return time.Now().UTC() }

// GroupCreated records a new group bound to its tenant.
type GroupCreated struct {
	GroupID    GroupID   `json:"group_id"`
	TenantID   TenantID  `json:"tenant_id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (GroupCreated) Kind() string                { return KindGroupCreated }
func (e GroupCreated) OccurredAtTime() time.Time { return e.OccurredAt }

// GroupDeleted carries a member snapshot because the group_members rows are
// gone by the time the worker runs.
type GroupDeleted struct {
	GroupID    GroupID          `json:"group_id"`
	TenantID   TenantID         `json:"tenant_id"`
	Members    []MemberSnapshot `json:"members"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (GroupDeleted) Kind() string                { return KindGroupDeleted }
func (e GroupDeleted) OccurredAtTime() time.Time { return e.OccurredAt }

// MemberAdded records a user joining a group with a role.
type MemberAdded struct {
	GroupID    GroupID   `json:"group_id"`
	UserID     UserID    `json:"user_id"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (MemberAdded) Kind() string                { return KindMemberAdded }
func (e MemberAdded) OccurredAtTime() time.Time { return e.OccurredAt }

// MemberRemoved records a user leaving a group. Role is the role held at
// removal time so the worker can delete the exact relationship.
type MemberRemoved struct {
	GroupID    GroupID   `json:"group_id"`
	UserID     UserID    `json:"user_id"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (MemberRemoved) Kind() string                { return KindMemberRemoved }
func (e MemberRemoved) OccurredAtTime() time.Time { return e.OccurredAt }

// MemberRoleChanged records a role transition. The worker deletes the old
// relationship before writing the new one; order matters.
type MemberRoleChanged struct {
	GroupID    GroupID   `json:"group_id"`
	UserID     UserID    `json:"user_id"`
	OldRole    Role      `json:"old_role"`
	NewRole    Role      `json:"new_role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (MemberRoleChanged) Kind() string                { return KindMemberRoleChanged }
func (e MemberRoleChanged) OccurredAtTime() time.Time { return e.OccurredAt }

// TenantCreated is recorded for audit; it projects to no relationship.
type TenantCreated struct {
	TenantID   TenantID  `json:"tenant_id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TenantCreated) Kind() string                { return KindTenantCreated }
func (e TenantCreated) OccurredAtTime() time.Time { return e.OccurredAt }

// TenantDeleted carries a member snapshot. The translator currently treats
// it as a no-op; relational cascade handles cleanup.
type TenantDeleted struct {
	TenantID   TenantID         `json:"tenant_id"`
	Members    []MemberSnapshot `json:"members"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (TenantDeleted) Kind() string                { return KindTenantDeleted }
func (e TenantDeleted) OccurredAtTime() time.Time { return e.OccurredAt }

// TenantMemberAdded records a user becoming a tenant member with a role.
type TenantMemberAdded struct {
	TenantID   TenantID  `json:"tenant_id"`
	UserID     UserID    `json:"user_id"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TenantMemberAdded) Kind() string                { return KindTenantMemberAdded }
func (e TenantMemberAdded) OccurredAtTime() time.Time { return e.OccurredAt }

// TenantMemberRemoved records a membership removal; Role is the snapshot of
// the role held at removal time.
type TenantMemberRemoved struct {
	TenantID   TenantID  `json:"tenant_id"`
	UserID     UserID    `json:"user_id"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TenantMemberRemoved) Kind() string                { return KindTenantMemberRemoved }
func (e TenantMemberRemoved) OccurredAtTime() time.Time { return e.OccurredAt }

// WorkspaceCreated records a workspace and, for non-roots, its parent edge.
type WorkspaceCreated struct {
	WorkspaceID WorkspaceID  `json:"workspace_id"`
	TenantID    TenantID     `json:"tenant_id"`
	Name        string       `json:"name"`
	ParentID    *WorkspaceID `json:"parent_id,omitempty"`
	IsRoot      bool         `json:"is_root"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

func (WorkspaceCreated) Kind() string                { return KindWorkspaceCreated }
func (e WorkspaceCreated) OccurredAtTime() time.Time { return e.OccurredAt }

// WorkspaceDeleted records a workspace removal.
type WorkspaceDeleted struct {
	WorkspaceID WorkspaceID `json:"workspace_id"`
	TenantID    TenantID    `json:"tenant_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func (WorkspaceDeleted) Kind() string                { return KindWorkspaceDeleted }
func (e WorkspaceDeleted) OccurredAtTime() time.Time { return e.OccurredAt }

// APIKeyCreated records a new key with its owner and tenant bindings.
type APIKeyCreated struct {
	APIKeyID    APIKeyID  `json:"api_key_id"`
	OwnerUserID UserID    `json:"owner_user_id"`
	TenantID    TenantID  `json:"tenant_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (APIKeyCreated) Kind() string                { return KindAPIKeyCreated }
func (e APIKeyCreated) OccurredAtTime() time.Time { return e.OccurredAt }

// APIKeyRevoked is recorded for audit. The owner and tenant relationships
// are retained so revoked keys remain visible in listings.
type APIKeyRevoked struct {
	APIKeyID   APIKeyID  `json:"api_key_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (APIKeyRevoked) Kind() string                { return KindAPIKeyRevoked }
func (e APIKeyRevoked) OccurredAtTime() time.Time { return e.OccurredAt }

// APIKeyDeleted removes both the owner and tenant relationships.
type APIKeyDeleted struct {
	APIKeyID    APIKeyID  `json:"api_key_id"`
	OwnerUserID UserID    `json:"owner_user_id"`
	TenantID    TenantID  `json:"tenant_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (APIKeyDeleted) Kind() string                { return KindAPIKeyDeleted }
func (e APIKeyDeleted) OccurredAtTime() time.Time { return e.OccurredAt }

// recorder collects pending events inside an aggregate. CollectEvents
// transfers ownership of the list to the caller, exactly once per
// persistence cycle.
type recorder struct {
	pending []Event
}

func (r *recorder) record(e Event) {
	r.pending = append(r.pending, e)
}

// CollectEvents returns and clears the pending event list.
func (r *recorder) CollectEvents() []Event {
	events := r.pending
	r.pending = nil
	return events
}
