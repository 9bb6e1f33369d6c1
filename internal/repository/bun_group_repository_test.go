package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

func TestBunGroupRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunGroupRepository(db)
	ctx := context.Background()

	tenantID := domain.NewTenantID()
	seedTenantRow(t, db, tenantID, "acme")
	seedUserRow(t, db, "alice", "alice")
	seedUserRow(t, db, "bob", "bob")

	group, err := domain.NewGroup(tenantID, "platform", "alice")
	require.NoError(t, err)
	group.CollectEvents()

	require.NoError(t, repo.Create(ctx, db, group))

	t.Run("find by id loads members", func(t *testing.T) {
		found, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "platform", found.Name)
		assert.Equal(t, tenantID, found.TenantID)
		require.Len(t, found.Members, 1)
		assert.Equal(t, domain.UserID("alice"), found.Members[0].UserID)
		assert.Equal(t, domain.RoleAdmin, found.Members[0].Role)
	})

	t.Run("find by name is tenant scoped", func(t *testing.T) {
		found, err := repo.FindByName(ctx, tenantID, "platform")
		require.NoError(t, err)
		assert.Equal(t, group.ID, found.ID)

		_, err = repo.FindByName(ctx, domain.NewTenantID(), "platform")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate name within tenant is rejected", func(t *testing.T) {
		dup, err := domain.NewGroup(tenantID, "platform", "alice")
		require.NoError(t, err)
		dup.CollectEvents()

		err = repo.Create(ctx, db, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("replace members persists the aggregate state", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.AddMember("bob", domain.RoleEditor))
		loaded.CollectEvents()

		require.NoError(t, repo.ReplaceMembers(ctx, db, loaded))

		found, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, found.Members, 2)
	})

	t.Run("list by tenant", func(t *testing.T) {
		groups, err := repo.ListByTenant(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, group.ID, groups[0].ID)
	})

	t.Run("delete cascades membership rows", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, db, group.ID))

		_, err := repo.FindByID(ctx, group.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		count, err := db.NewSelect().Table("group_members").
			Where("group_id = ?", string(group.ID)).
			Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
