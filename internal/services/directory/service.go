// Package directory holds the application services for tenants, groups and
// workspaces. Every mutation persists the aggregate and appends its recorded
// events to the outbox inside one transaction.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

// Service exposes the directory operations.
type Service struct {
	db         *bun.DB
	tenants    repository.TenantRepository
	groups     repository.GroupRepository
	workspaces repository.WorkspaceRepository
	outbox     repository.OutboxRepository
	engine     authz.Engine
}

// NewService wires the directory service.
func NewService(
	db *bun.DB,
	tenants repository.TenantRepository,
	groups repository.GroupRepository,
	workspaces repository.WorkspaceRepository,
	outbox repository.OutboxRepository,
	engine authz.Engine,
) *Service {
	return &Service{
		db:         db,
		tenants:    tenants,
		groups:     groups,
		workspaces: workspaces,
		outbox:     outbox,
		engine:     engine,
	}
}

// CreateTenant creates a tenant together with its root workspace and enrolls
// the creator as admin. All three writes and their events commit atomically.
func (s *Service) CreateTenant(ctx context.Context, name string, creator domain.UserID) (*domain.Tenant, error) {
	tenant, err := domain.NewTenant(name)
	if err != nil {
		return nil, err
	}
	root, err := domain.NewRootWorkspace(tenant.ID, tenant.Name)
	if err != nil {
		return nil, err
	}
	tenant.AddMember(creator, domain.RoleAdmin)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.tenants.Create(ctx, tx, tenant); err != nil {
			return err
		}
		if err := s.workspaces.Create(ctx, tx, root); err != nil {
			return err
		}
		events := append(tenant.CollectEvents(), root.CollectEvents()...)
		return s.outbox.Append(ctx, tx, events...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// GetTenant loads one tenant.
func (s *Service) GetTenant(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	return s.tenants.FindByID(ctx, id)
}

// GetTenantByName loads one tenant by its unique name.
func (s *Service) GetTenantByName(ctx context.Context, name string) (*domain.Tenant, error) {
	return s.tenants.FindByName(ctx, name)
}

// ListTenants lists every tenant ordered by name.
func (s *Service) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return s.tenants.List(ctx)
}

// DeleteTenant deletes a tenant with no remaining groups or non-root
// workspaces. The root workspace goes with it; the membership snapshot rides
// on the event for auditing.
func (s *Service) DeleteTenant(ctx context.Context, id domain.TenantID) error {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}
	members, err := s.tenantMembers(ctx, id)
	if err != nil {
		return err
	}

	root, err := s.workspaces.FindRoot(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	var events []domain.Event
	if root != nil {
		root.MarkForDeletion()
		events = append(events, root.CollectEvents()...)
	}
	tenant.MarkForDeletion(members)
	events = append(events, tenant.CollectEvents()...)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if root != nil {
			if err := s.workspaces.Delete(ctx, tx, root.ID); err != nil {
				return err
			}
		}
		if err := s.tenants.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, events...)
	})
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

// AddTenantMember grants a tenant role. Membership lives in the
// authorization graph, so only the event is persisted.
func (s *Service) AddTenantMember(ctx context.Context, tenantID domain.TenantID, userID domain.UserID, role domain.Role) error {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}
	tenant.AddMember(userID, role)
	return s.appendEvents(ctx, tenant.CollectEvents())
}

// RemoveTenantMember removes a tenant membership. The current snapshot comes
// from the authorization graph; removing the last admin is refused.
func (s *Service) RemoveTenantMember(ctx context.Context, tenantID domain.TenantID, userID domain.UserID) error {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}
	members, err := s.tenantMembers(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := tenant.RemoveMember(userID, members); err != nil {
		return err
	}
	return s.appendEvents(ctx, tenant.CollectEvents())
}

// TenantMembers reads the current membership snapshot from the authorization
// graph.
func (s *Service) TenantMembers(ctx context.Context, tenantID domain.TenantID) ([]domain.MemberSnapshot, error) {
	return s.tenantMembers(ctx, tenantID)
}

func (s *Service) tenantMembers(ctx context.Context, tenantID domain.TenantID) ([]domain.MemberSnapshot, error) {
	rels, err := s.engine.ListRelationships(ctx, authz.ObjectRef{Type: authz.ResourceTenant, ID: string(tenantID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant relationships: %w", err)
	}
	var members []domain.MemberSnapshot
	for _, rel := range rels {
		if rel.Subject.Type != authz.ResourceUser {
			continue
		}
		role, err := domain.ParseRole(string(rel.Relation))
		if err != nil {
			// Structural relations (parent, workspace edges) are not roles.
			continue
		}
		members = append(members, domain.MemberSnapshot{UserID: domain.UserID(rel.Subject.ID), Role: role})
	}
	return members, nil
}

// CreateGroup creates a group with the creator as its first admin.
func (s *Service) CreateGroup(ctx context.Context, tenantID domain.TenantID, name string, creator domain.UserID) (*domain.Group, error) {
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, err
	}
	group, err := domain.NewGroup(tenantID, name, creator)
	if err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.groups.Create(ctx, tx, group); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, group.CollectEvents()...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// GetGroup loads one group with its members.
func (s *Service) GetGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	return s.groups.FindByID(ctx, id)
}

// ListGroups lists a tenant's groups.
func (s *Service) ListGroups(ctx context.Context, tenantID domain.TenantID) ([]*domain.Group, error) {
	return s.groups.ListByTenant(ctx, tenantID)
}

// AddGroupMember grants a group role, or changes the role when the user is
// already a member with a different one.
func (s *Service) AddGroupMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID, role domain.Role) error {
	return s.mutateGroup(ctx, groupID, func(g *domain.Group) error {
		return g.AddMember(userID, role)
	})
}

// RemoveGroupMember removes a group member.
func (s *Service) RemoveGroupMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) error {
	return s.mutateGroup(ctx, groupID, func(g *domain.Group) error {
		return g.RemoveMember(userID)
	})
}

// ChangeGroupMemberRole moves a member to a new role.
func (s *Service) ChangeGroupMemberRole(ctx context.Context, groupID domain.GroupID, userID domain.UserID, role domain.Role) error {
	return s.mutateGroup(ctx, groupID, func(g *domain.Group) error {
		return g.ChangeMemberRole(userID, role)
	})
}

func (s *Service) mutateGroup(ctx context.Context, groupID domain.GroupID, mutate func(*domain.Group) error) error {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	if err := mutate(group); err != nil {
		return err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.groups.ReplaceMembers(ctx, tx, group); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, group.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

// DeleteGroup deletes a group and its membership rows. The event carries the
// member snapshot so the worker can remove relationships after the rows are
// gone.
func (s *Service) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return err
	}
	group.MarkForDeletion()

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.groups.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, group.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// CreateWorkspace creates a non-root workspace under parent. The root is
// created with its tenant.
func (s *Service) CreateWorkspace(ctx context.Context, tenantID domain.TenantID, name string, parentID domain.WorkspaceID) (*domain.Workspace, error) {
	parent, err := s.workspaces.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	workspace, err := domain.NewWorkspace(tenantID, name, parent)
	if err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.workspaces.Create(ctx, tx, workspace); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, workspace.CollectEvents()...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return workspace, nil
}

// GetWorkspace loads one workspace.
func (s *Service) GetWorkspace(ctx context.Context, id domain.WorkspaceID) (*domain.Workspace, error) {
	return s.workspaces.FindByID(ctx, id)
}

// ListWorkspaces lists a tenant's workspaces.
func (s *Service) ListWorkspaces(ctx context.Context, tenantID domain.TenantID) ([]*domain.Workspace, error) {
	return s.workspaces.ListByTenant(ctx, tenantID)
}

// ListWorkspaceChildren lists a workspace's direct children.
func (s *Service) ListWorkspaceChildren(ctx context.Context, parentID domain.WorkspaceID) ([]*domain.Workspace, error) {
	return s.workspaces.ListChildren(ctx, parentID)
}

// DeleteWorkspace deletes a childless non-root workspace. The root lives and
// dies with its tenant.
func (s *Service) DeleteWorkspace(ctx context.Context, id domain.WorkspaceID) error {
	workspace, err := s.workspaces.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if workspace.IsRoot {
		return domain.Invariantf("cannot delete the root workspace of tenant %s", workspace.TenantID)
	}
	workspace.MarkForDeletion()

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.workspaces.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, workspace.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

func (s *Service) appendEvents(ctx context.Context, events []domain.Event) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.outbox.Append(ctx, tx, events...)
	})
	if err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}
