package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// BunWorkspaceRepository implements WorkspaceRepository on Bun.
type BunWorkspaceRepository struct {
	db *bun.DB
}

// NewBunWorkspaceRepository creates a new BunWorkspaceRepository.
func NewBunWorkspaceRepository(db *bun.DB) *BunWorkspaceRepository {
	return &BunWorkspaceRepository{db: db}
}

func workspaceToDomain(row *models.Workspace) (*domain.Workspace, error) {
	id, err := domain.ParseWorkspaceID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", row.ID, err)
	}
	tenantID, err := domain.ParseTenantID(row.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", row.ID, err)
	}
	var parentID *domain.WorkspaceID
	if row.ParentWorkspaceID != nil {
		pid, err := domain.ParseWorkspaceID(*row.ParentWorkspaceID)
		if err != nil {
			return nil, fmt.Errorf("load workspace %s: %w", row.ID, err)
		}
		parentID = &pid
	}
	return domain.RehydrateWorkspace(id, tenantID, row.Name, parentID, row.IsRoot, row.CreatedAt, row.UpdatedAt), nil
}

func workspaceToRow(w *domain.Workspace) *models.Workspace {
	row := &models.Workspace{
		ID:        string(w.ID),
		TenantID:  string(w.TenantID),
		Name:      w.Name,
		IsRoot:    w.IsRoot,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if w.ParentID != nil {
		pid := string(*w.ParentID)
		row.ParentWorkspaceID = &pid
	}
	return row
}

// Create inserts the workspace row on the caller's transaction. The partial
// unique index rejects a second root per tenant.
func (r *BunWorkspaceRepository) Create(ctx context.Context, idb bun.IDB, workspace *domain.Workspace) error {
	if _, err := idb.NewInsert().Model(workspaceToRow(workspace)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Invariantf("tenant %s already has a root workspace", workspace.TenantID)
		}
		return fmt.Errorf("failed to insert workspace: %w", err)
	}
	return nil
}

// FindByID loads a workspace by id.
func (r *BunWorkspaceRepository) FindByID(ctx context.Context, id domain.WorkspaceID) (*domain.Workspace, error) {
	row := new(models.Workspace)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	return workspaceToDomain(row)
}

// FindRoot loads the tenant's root workspace.
func (r *BunWorkspaceRepository) FindRoot(ctx context.Context, tenantID domain.TenantID) (*domain.Workspace, error) {
	row := new(models.Workspace)
	err := r.db.NewSelect().
		Model(row).
		Where("tenant_id = ?", string(tenantID)).
		Where("is_root = TRUE").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("root workspace of tenant %s: %w", tenantID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find root workspace: %w", err)
	}
	return workspaceToDomain(row)
}

// ListByTenant returns the tenant's workspaces ordered by name.
func (r *BunWorkspaceRepository) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*domain.Workspace, error) {
	var rows []*models.Workspace
	err := r.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", string(tenantID)).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspacesToDomain(rows)
}

// ListChildren returns the direct children of a workspace.
func (r *BunWorkspaceRepository) ListChildren(ctx context.Context, parentID domain.WorkspaceID) ([]*domain.Workspace, error) {
	var rows []*models.Workspace
	err := r.db.NewSelect().
		Model(&rows).
		Where("parent_workspace_id = ?", string(parentID)).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list child workspaces: %w", err)
	}
	return workspacesToDomain(rows)
}

func workspacesToDomain(rows []*models.Workspace) ([]*domain.Workspace, error) {
	workspaces := make([]*domain.Workspace, 0, len(rows))
	for _, row := range rows {
		workspace, err := workspaceToDomain(row)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, workspace)
	}
	return workspaces, nil
}

// Delete removes the workspace row on the caller's transaction. The RESTRICT
// foreign key makes deleting a workspace with children fail; that failure is
// surfaced as a domain invariant error.
func (r *BunWorkspaceRepository) Delete(ctx context.Context, idb bun.IDB, id domain.WorkspaceID) error {
	res, err := idb.NewDelete().
		Model((*models.Workspace)(nil)).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Invariantf("workspace %s still has child workspaces", id)
		}
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("workspace %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
