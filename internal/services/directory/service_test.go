package directory

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/migrations"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := os.Getenv("KARTO_TEST_DATABASE_URL")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := bunx.NewDB(dsn, bunx.PoolConfig{})
	if err != nil {
		t.Skipf("Database not available: %v", err)
	}

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

// graphEngine serves ListRelationships from an in-memory triple set.
type graphEngine struct {
	rels []authz.Relationship
}

func (e *graphEngine) add(rel authz.Relationship) {
	e.rels = append(e.rels, rel)
}

func (e *graphEngine) Write(context.Context, authz.Relationship) error  { return nil }
func (e *graphEngine) Delete(context.Context, authz.Relationship) error { return nil }
func (e *graphEngine) DeleteAll(context.Context, authz.ObjectRef) error { return nil }

func (e *graphEngine) Check(context.Context, authz.ObjectRef, authz.Permission, authz.ObjectRef) (bool, error) {
	return false, nil
}

func (e *graphEngine) ListRelationships(_ context.Context, resource authz.ObjectRef) ([]authz.Relationship, error) {
	var out []authz.Relationship
	for _, rel := range e.rels {
		if rel.Resource == resource {
			out = append(out, rel)
		}
	}
	return out, nil
}

func memberRel(tenantID domain.TenantID, userID domain.UserID, role domain.Role) authz.Relationship {
	return authz.Relationship{
		Resource: authz.ObjectRef{Type: authz.ResourceTenant, ID: string(tenantID)},
		Relation: authz.Relation(role),
		Subject:  authz.ObjectRef{Type: authz.ResourceUser, ID: string(userID)},
	}
}

func newTestService(t *testing.T, db *bun.DB, engine *graphEngine) *Service {
	t.Helper()
	return NewService(
		db,
		repository.NewBunTenantRepository(db),
		repository.NewBunGroupRepository(db),
		repository.NewBunWorkspaceRepository(db),
		repository.NewBunOutboxRepository(db),
		engine,
	)
}

func seedUser(t *testing.T, db *bun.DB, id, username string) {
	t.Helper()
	_, err := db.NewInsert().Model(&models.User{ID: id, Username: username}).Exec(context.Background())
	require.NoError(t, err)
}

func outboxEventTypes(t *testing.T, db *bun.DB) []string {
	t.Helper()
	var rows []*models.OutboxEntry
	err := db.NewSelect().Model(&rows).Order("created_at ASC").Scan(context.Background())
	require.NoError(t, err)
	types := make([]string, len(rows))
	for i, row := range rows {
		types[i] = row.EventType
	}
	return types
}

func clearOutbox(t *testing.T, db *bun.DB) {
	t.Helper()
	_, err := db.NewDelete().Model((*models.OutboxEntry)(nil)).Where("1 = 1").Exec(context.Background())
	require.NoError(t, err)
}

func TestCreateTenant(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &graphEngine{}
	svc := newTestService(t, db, engine)
	seedUser(t, db, "founder", "fiona")
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "  acme  ", "founder")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)

	t.Run("root workspace exists", func(t *testing.T) {
		root, err := svc.workspaces.FindRoot(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, root.IsRoot)
		assert.Equal(t, "acme", root.Name)
		assert.Nil(t, root.ParentID)
	})

	t.Run("events reached the outbox in order", func(t *testing.T) {
		assert.Equal(t, []string{
			domain.KindTenantCreated,
			domain.KindTenantMemberAdded,
			domain.KindWorkspaceCreated,
		}, outboxEventTypes(t, db))
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		_, err := svc.CreateTenant(ctx, "acme", "founder")
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})
}

func TestTenantMembership(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &graphEngine{}
	svc := newTestService(t, db, engine)
	seedUser(t, db, "founder", "fiona")
	seedUser(t, db, "colleague", "carl")
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "acme", "founder")
	require.NoError(t, err)
	engine.add(memberRel(tenant.ID, "founder", domain.RoleAdmin))
	clearOutbox(t, db)

	t.Run("add member appends the event", func(t *testing.T) {
		require.NoError(t, svc.AddTenantMember(ctx, tenant.ID, "colleague", domain.RoleMember))
		assert.Equal(t, []string{domain.KindTenantMemberAdded}, outboxEventTypes(t, db))
		engine.add(memberRel(tenant.ID, "colleague", domain.RoleMember))
		clearOutbox(t, db)
	})

	t.Run("remove member appends the event", func(t *testing.T) {
		require.NoError(t, svc.RemoveTenantMember(ctx, tenant.ID, "colleague"))
		assert.Equal(t, []string{domain.KindTenantMemberRemoved}, outboxEventTypes(t, db))
		clearOutbox(t, db)
	})

	t.Run("last admin cannot be removed", func(t *testing.T) {
		err := svc.RemoveTenantMember(ctx, tenant.ID, "founder")
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
		assert.Empty(t, outboxEventTypes(t, db))
	})

	t.Run("snapshot comes from the graph", func(t *testing.T) {
		members, err := svc.TenantMembers(ctx, tenant.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
	})
}

func TestGroupLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &graphEngine{}
	svc := newTestService(t, db, engine)
	seedUser(t, db, "founder", "fiona")
	seedUser(t, db, "colleague", "carl")
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "acme", "founder")
	require.NoError(t, err)
	clearOutbox(t, db)

	group, err := svc.CreateGroup(ctx, tenant.ID, "platform", "founder")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KindGroupCreated, domain.KindMemberAdded}, outboxEventTypes(t, db))
	clearOutbox(t, db)

	t.Run("creator is the first admin", func(t *testing.T) {
		loaded, err := svc.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Members, 1)
		assert.Equal(t, domain.RoleAdmin, loaded.Members[0].Role)
	})

	t.Run("membership mutations persist and publish", func(t *testing.T) {
		require.NoError(t, svc.AddGroupMember(ctx, group.ID, "colleague", domain.RoleMember))
		require.NoError(t, svc.ChangeGroupMemberRole(ctx, group.ID, "colleague", domain.RoleEditor))
		require.NoError(t, svc.RemoveGroupMember(ctx, group.ID, "colleague"))

		assert.Equal(t, []string{
			domain.KindMemberAdded,
			domain.KindMemberRoleChanged,
			domain.KindMemberRemoved,
		}, outboxEventTypes(t, db))
		clearOutbox(t, db)

		loaded, err := svc.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Members, 1)
	})

	t.Run("re-adding with a new role becomes a role change", func(t *testing.T) {
		require.NoError(t, svc.AddGroupMember(ctx, group.ID, "colleague", domain.RoleMember))
		clearOutbox(t, db)

		require.NoError(t, svc.AddGroupMember(ctx, group.ID, "colleague", domain.RoleEditor))
		assert.Equal(t, []string{domain.KindMemberRoleChanged}, outboxEventTypes(t, db))
		clearOutbox(t, db)
	})

	t.Run("last admin cannot be demoted", func(t *testing.T) {
		err := svc.ChangeGroupMemberRole(ctx, group.ID, "founder", domain.RoleMember)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	})

	t.Run("delete publishes the member snapshot", func(t *testing.T) {
		require.NoError(t, svc.DeleteGroup(ctx, group.ID))
		assert.Equal(t, []string{domain.KindGroupDeleted}, outboxEventTypes(t, db))

		_, err := svc.GetGroup(ctx, group.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestWorkspaceLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &graphEngine{}
	svc := newTestService(t, db, engine)
	seedUser(t, db, "founder", "fiona")
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "acme", "founder")
	require.NoError(t, err)
	root, err := svc.workspaces.FindRoot(ctx, tenant.ID)
	require.NoError(t, err)
	clearOutbox(t, db)

	child, err := svc.CreateWorkspace(ctx, tenant.ID, "projects", root.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, []string{domain.KindWorkspaceCreated}, outboxEventTypes(t, db))
	clearOutbox(t, db)

	t.Run("children are listed under the parent", func(t *testing.T) {
		children, err := svc.ListWorkspaceChildren(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)
	})

	t.Run("root cannot be deleted directly", func(t *testing.T) {
		err := svc.DeleteWorkspace(ctx, root.ID)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	})

	t.Run("parent with children cannot be deleted via tenant", func(t *testing.T) {
		err := svc.DeleteTenant(ctx, tenant.ID)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	})

	t.Run("leaf deletion publishes the event", func(t *testing.T) {
		require.NoError(t, svc.DeleteWorkspace(ctx, child.ID))
		assert.Equal(t, []string{domain.KindWorkspaceDeleted}, outboxEventTypes(t, db))
		clearOutbox(t, db)
	})
}

func TestDeleteTenant(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &graphEngine{}
	svc := newTestService(t, db, engine)
	seedUser(t, db, "founder", "fiona")
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "shortlived", "founder")
	require.NoError(t, err)
	engine.add(memberRel(tenant.ID, "founder", domain.RoleAdmin))
	clearOutbox(t, db)

	require.NoError(t, svc.DeleteTenant(ctx, tenant.ID))

	assert.Equal(t, []string{
		domain.KindWorkspaceDeleted,
		domain.KindTenantDeleted,
	}, outboxEventTypes(t, db))

	_, err = svc.GetTenant(ctx, tenant.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
