package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// BunGroupRepository implements GroupRepository on Bun.
type BunGroupRepository struct {
	db *bun.DB
}

// NewBunGroupRepository creates a new BunGroupRepository.
func NewBunGroupRepository(db *bun.DB) *BunGroupRepository {
	return &BunGroupRepository{db: db}
}

func groupToDomain(row *models.Group) (*domain.Group, error) {
	id, err := domain.ParseGroupID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", row.ID, err)
	}
	tenantID, err := domain.ParseTenantID(row.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", row.ID, err)
	}
	members := make([]domain.MemberSnapshot, 0, len(row.Members))
	for _, m := range row.Members {
		role, err := domain.ParseRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("load group %s member %s: %w", row.ID, m.UserID, err)
		}
		members = append(members, domain.MemberSnapshot{UserID: domain.UserID(m.UserID), Role: role})
	}
	return domain.RehydrateGroup(id, tenantID, row.Name, members), nil
}

func groupMemberRows(group *domain.Group) []*models.GroupMember {
	rows := make([]*models.GroupMember, 0, len(group.Members))
	for _, m := range group.Members {
		rows = append(rows, &models.GroupMember{
			GroupID: string(group.ID),
			UserID:  string(m.UserID),
			Role:    string(m.Role),
		})
	}
	return rows
}

// Create inserts the group and its membership rows on the caller's
// transaction.
func (r *BunGroupRepository) Create(ctx context.Context, idb bun.IDB, group *domain.Group) error {
	row := &models.Group{ID: string(group.ID), TenantID: string(group.TenantID), Name: group.Name}
	if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group name %q: %w", group.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to insert group: %w", err)
	}

	members := groupMemberRows(group)
	if len(members) == 0 {
		return nil
	}
	if _, err := idb.NewInsert().Model(&members).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert group members: %w", err)
	}
	return nil
}

// FindByID loads a group with its membership rows.
func (r *BunGroupRepository) FindByID(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	row := new(models.Group)
	err := r.db.NewSelect().
		Model(row).
		Relation("Members").
		Where("g.id = ?", string(id)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return groupToDomain(row)
}

// FindByName loads a group by its tenant-scoped name.
func (r *BunGroupRepository) FindByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Group, error) {
	row := new(models.Group)
	err := r.db.NewSelect().
		Model(row).
		Relation("Members").
		Where("g.tenant_id = ?", string(tenantID)).
		Where("g.name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("group %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find group by name: %w", err)
	}
	return groupToDomain(row)
}

// ListByTenant returns the tenant's groups with members, ordered by name.
func (r *BunGroupRepository) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*domain.Group, error) {
	var rows []*models.Group
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Members").
		Where("g.tenant_id = ?", string(tenantID)).
		Order("g.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	groups := make([]*domain.Group, 0, len(rows))
	for _, row := range rows {
		group, err := groupToDomain(row)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ReplaceMembers rewrites the membership rows to match the aggregate's
// current member list.
func (r *BunGroupRepository) ReplaceMembers(ctx context.Context, idb bun.IDB, group *domain.Group) error {
	_, err := idb.NewDelete().
		Model((*models.GroupMember)(nil)).
		Where("group_id = ?", string(group.ID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}

	members := groupMemberRows(group)
	if len(members) == 0 {
		return nil
	}
	if _, err := idb.NewInsert().Model(&members).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert group members: %w", err)
	}
	return nil
}

// Delete removes the group row; membership rows go with it via cascade.
func (r *BunGroupRepository) Delete(ctx context.Context, idb bun.IDB, id domain.GroupID) error {
	res, err := idb.NewDelete().
		Model((*models.Group)(nil)).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
