package apikeys

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/apikey"
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

func newTestService(t *testing.T, db *bun.DB) *Service {
	t.Helper()
	return NewService(
		db,
		repository.NewBunAPIKeyRepository(db),
		repository.NewBunOutboxRepository(db),
		nil,
	)
}

func seedOwner(t *testing.T, db *bun.DB) (domain.UserID, domain.TenantID) {
	t.Helper()
	ctx := context.Background()

	tenant, err := domain.NewTenant("acme")
	require.NoError(t, err)
	tenant.CollectEvents()
	require.NoError(t, repository.NewBunTenantRepository(db).Create(ctx, db, tenant))

	_, err = db.NewInsert().Model(&models.User{ID: "owner-1", Username: "olivia"}).Exec(ctx)
	require.NoError(t, err)

	return "owner-1", tenant.ID
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

func TestCreate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestService(t, db)
	owner, tenantID := seedOwner(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, tenantID, "ci", time.Time{})
	require.NoError(t, err)

	t.Run("plaintext is returned once and never stored", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(created.Plaintext, apikey.DefaultTag))
		assert.Equal(t, created.Plaintext[:domain.PrefixLength], created.Key.Prefix)
		assert.NotContains(t, created.Key.Hash, created.Plaintext)
		assert.True(t, apikey.Verify(created.Key.Hash, created.Plaintext))
	})

	t.Run("default expiry applies", func(t *testing.T) {
		assert.WithinDuration(t, time.Now().UTC().Add(DefaultTTL), created.Key.ExpiresAt, time.Minute)
	})

	t.Run("creation event reached the outbox", func(t *testing.T) {
		assert.Equal(t, []string{domain.KindAPIKeyCreated}, outboxEventTypes(t, db))
		clearOutbox(t, db)
	})

	t.Run("duplicate name for the same owner is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, owner, tenantID, "ci", time.Time{})
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})
}

func TestRevoke(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestService(t, db)
	owner, tenantID := seedOwner(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, tenantID, "ci", time.Time{})
	require.NoError(t, err)
	clearOutbox(t, db)

	require.NoError(t, svc.Revoke(ctx, created.Key.ID))

	t.Run("key is disabled but still listed", func(t *testing.T) {
		keys, err := svc.List(ctx, tenantID, owner)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.True(t, keys[0].IsRevoked)
		assert.False(t, keys[0].IsUsable(time.Now().UTC()))
	})

	t.Run("revocation event reached the outbox", func(t *testing.T) {
		assert.Equal(t, []string{domain.KindAPIKeyRevoked}, outboxEventTypes(t, db))
		clearOutbox(t, db)
	})

	t.Run("revoking twice is refused", func(t *testing.T) {
		err := svc.Revoke(ctx, created.Key.ID)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
		assert.Empty(t, outboxEventTypes(t, db))
	})
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestService(t, db)
	owner, tenantID := seedOwner(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, tenantID, "ci", time.Time{})
	require.NoError(t, err)
	clearOutbox(t, db)

	require.NoError(t, svc.Delete(ctx, created.Key.ID))

	assert.Equal(t, []string{domain.KindAPIKeyDeleted}, outboxEventTypes(t, db))

	_, err = svc.Get(ctx, created.Key.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	keys, err := svc.List(ctx, tenantID, owner)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
