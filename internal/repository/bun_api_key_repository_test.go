package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

func newTestKey(t *testing.T, tenantID domain.TenantID, owner domain.UserID, name, prefix string) *domain.APIKey {
	t.Helper()
	key, err := domain.NewAPIKey(owner, tenantID, name, prefix, "$2a$10$fakehashfakehashfakehash", time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, err)
	key.CollectEvents()
	return key
}

func TestBunAPIKeyRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunAPIKeyRepository(db)
	ctx := context.Background()

	tenantID := domain.NewTenantID()
	seedTenantRow(t, db, tenantID, "acme")
	seedUserRow(t, db, "alice", "alice")

	prefix := strings.Repeat("k", domain.PrefixLength)
	key := newTestKey(t, tenantID, "alice", "ci-key", prefix)
	require.NoError(t, repo.Create(ctx, db, key))

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, key.Prefix, found.Prefix)
		assert.Equal(t, key.Hash, found.Hash)
		assert.False(t, found.IsRevoked)
	})

	t.Run("find by prefix returns all candidates", func(t *testing.T) {
		twin := newTestKey(t, tenantID, "alice", "ci-key-twin", prefix)
		require.NoError(t, repo.Create(ctx, db, twin))

		candidates, err := repo.FindByPrefix(ctx, prefix)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)

		none, err := repo.FindByPrefix(ctx, strings.Repeat("z", domain.PrefixLength))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate name per owner and tenant is rejected", func(t *testing.T) {
		dup := newTestKey(t, tenantID, "alice", "ci-key", prefix)
		err := repo.Create(ctx, db, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("update last used", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.UpdateLastUsed(ctx, key.ID, at))

		found, err := repo.FindByID(ctx, key.ID)
		require.NoError(t, err)
		require.NotNil(t, found.LastUsedAt)
		assert.WithinDuration(t, at, *found.LastUsedAt, time.Second)
	})

	t.Run("set revoked", func(t *testing.T) {
		require.NoError(t, repo.SetRevoked(ctx, db, key.ID))

		found, err := repo.FindByID(ctx, key.ID)
		require.NoError(t, err)
		assert.True(t, found.IsRevoked)
	})

	t.Run("list by owner includes revoked keys", func(t *testing.T) {
		keys, err := repo.ListByOwner(ctx, tenantID, "alice")
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, db, key.ID))

		_, err := repo.FindByID(ctx, key.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.Delete(ctx, db, key.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
