package domain

import "time"

// Workspace is a hierarchical container within a tenant. Exactly one root
// exists per tenant (partial unique index); non-roots always have a parent
// in the same tenant. Child rows use RESTRICT so deleting a parent with
// children fails loudly instead of cascading silently.
type Workspace struct {
	recorder

	ID        WorkspaceID
	TenantID  TenantID
	Name      string
	ParentID  *WorkspaceID
	IsRoot    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRootWorkspace constructs the tenant's root workspace and records
// WorkspaceCreated.
func NewRootWorkspace(tenantID TenantID, name string) (*Workspace, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	ts := now()
	w := &Workspace{
		ID:        NewWorkspaceID(),
		TenantID:  tenantID,
		Name:      trimmed,
		IsRoot:    true,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	w.record(WorkspaceCreated{WorkspaceID: w.ID, TenantID: tenantID, Name: trimmed, IsRoot: true, OccurredAt: ts})
	return w, nil
}

// NewWorkspace constructs a non-root workspace under parent and records
// WorkspaceCreated with the parent edge.
func NewWorkspace(tenantID TenantID, name string, parent *Workspace) (*Workspace, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, Invariantf("non-root workspace requires a parent")
	}
	if parent.TenantID != tenantID {
		return nil, Invariantf("parent workspace %s belongs to a different tenant", parent.ID)
	}
	ts := now()
	parentID := parent.ID
	w := &Workspace{
		ID:        NewWorkspaceID(),
		TenantID:  tenantID,
		Name:      trimmed,
		ParentID:  &parentID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	w.record(WorkspaceCreated{
		WorkspaceID: w.ID,
		TenantID:    tenantID,
		Name:        trimmed,
		ParentID:    &parentID,
		OccurredAt:  ts,
	})
	return w, nil
}

// RehydrateWorkspace rebuilds a workspace from persisted state without
// recording events.
func RehydrateWorkspace(id WorkspaceID, tenantID TenantID, name string, parentID *WorkspaceID, isRoot bool, createdAt, updatedAt time.Time) *Workspace {
	return &Workspace{
		ID:        id,
		TenantID:  tenantID,
		Name:      name,
		ParentID:  parentID,
		IsRoot:    isRoot,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// MarkForDeletion records WorkspaceDeleted. The repository surfaces a
// RESTRICT violation as an invariant error when children still exist.
func (w *Workspace) MarkForDeletion() {
	w.record(WorkspaceDeleted{WorkspaceID: w.ID, TenantID: w.TenantID, OccurredAt: now()})
}
