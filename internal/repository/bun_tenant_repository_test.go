package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

func TestBunTenantRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunTenantRepository(db)
	ctx := context.Background()

	tenant, err := domain.NewTenant("acme")
	require.NoError(t, err)
	tenant.CollectEvents()

	require.NoError(t, repo.Create(ctx, db, tenant))

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, found.ID)
		assert.Equal(t, "acme", found.Name)
	})

	t.Run("find by name", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, found.ID)
	})

	t.Run("missing tenant reports not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, domain.NewTenantID())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		dup, err := domain.NewTenant("acme")
		require.NoError(t, err)
		dup.CollectEvents()

		err = repo.Create(ctx, db, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("list", func(t *testing.T) {
		other, err := domain.NewTenant("beta")
		require.NoError(t, err)
		other.CollectEvents()
		require.NoError(t, repo.Create(ctx, db, other))

		tenants, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 2)
		assert.Equal(t, "acme", tenants[0].Name)
		assert.Equal(t, "beta", tenants[1].Name)
	})

	t.Run("delete refuses while workspaces remain", func(t *testing.T) {
		ws, err := domain.NewRootWorkspace(tenant.ID, "root")
		require.NoError(t, err)
		ws.CollectEvents()
		wsRepo := NewBunWorkspaceRepository(db)
		require.NoError(t, wsRepo.Create(ctx, db, ws))

		err = repo.Delete(ctx, db, tenant.ID)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)

		require.NoError(t, wsRepo.Delete(ctx, db, ws.ID))
		require.NoError(t, repo.Delete(ctx, db, tenant.ID))

		_, err = repo.FindByID(ctx, tenant.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
