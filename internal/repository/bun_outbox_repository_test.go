package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/migrations"
)

// setupTestDB opens the test database and applies migrations. Defaults to an
// in-memory SQLite database; set KARTO_TEST_DATABASE_URL to run against
// PostgreSQL.
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

func seedTenantRow(t *testing.T, db *bun.DB, id domain.TenantID, name string) {
	t.Helper()
	_, err := db.NewInsert().
		Model(&models.Tenant{ID: string(id), Name: name}).
		Exec(context.Background())
	require.NoError(t, err)
}

func seedUserRow(t *testing.T, db *bun.DB, id domain.UserID, username string) {
	t.Helper()
	_, err := db.NewInsert().
		Model(&models.User{ID: string(id), Username: username}).
		Exec(context.Background())
	require.NoError(t, err)
}

func TestBunOutboxRepository_AppendAndFetch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	groupID := domain.NewGroupID()
	tenantID := domain.NewTenantID()

	events := []domain.Event{
		domain.GroupCreated{GroupID: groupID, TenantID: tenantID, Name: "team", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "bob", Role: domain.RoleMember, OccurredAt: time.Now().UTC()},
	}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Append(ctx, tx, events...)
	})
	require.NoError(t, err)

	entries, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Recorded order survives.
	assert.Equal(t, domain.KindGroupCreated, entries[0].EventType)
	assert.Equal(t, domain.KindMemberAdded, entries[1].EventType)
	assert.Equal(t, domain.KindMemberAdded, entries[2].EventType)
	for _, e := range entries {
		assert.Equal(t, "group", e.AggregateType)
		assert.Equal(t, string(groupID), e.AggregateID)
		assert.Nil(t, e.ProcessedAt)
		assert.Equal(t, 0, e.RetryCount)
	}

	t.Run("limit bounds the batch", func(t *testing.T) {
		limited, err := repo.FetchUnprocessed(ctx, db, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestBunOutboxRepository_CreatedAtOrdersAcrossBatches(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	groupID := domain.NewGroupID()
	tenantID := domain.NewTenantID()

	require.NoError(t, repo.Append(ctx, db,
		domain.GroupCreated{GroupID: groupID, TenantID: tenantID, Name: "team", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
	))
	require.NoError(t, repo.Append(ctx, db,
		domain.MemberRemoved{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
	))

	entries, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// created_at is strictly increasing for the aggregate, within a batch
	// and across batches.
	assert.Equal(t, domain.KindGroupCreated, entries[0].EventType)
	assert.Equal(t, domain.KindMemberAdded, entries[1].EventType)
	assert.Equal(t, domain.KindMemberRemoved, entries[2].EventType)
	assert.True(t, entries[0].CreatedAt.Before(entries[1].CreatedAt))
	assert.True(t, entries[1].CreatedAt.Before(entries[2].CreatedAt))
}

func TestBunOutboxRepository_MarkProcessed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, db, domain.TenantCreated{
		TenantID: domain.NewTenantID(), Name: "acme", OccurredAt: time.Now().UTC(),
	}))

	entries, err := repo.FetchUnprocessed(ctx, db, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, repo.MarkProcessed(ctx, entries[0].ID))

	// Idempotent: second call is a no-op.
	require.NoError(t, repo.MarkProcessed(ctx, entries[0].ID))

	remaining, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBunOutboxRepository_RecordFailureAndQuarantine(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, db, domain.TenantCreated{
		TenantID: domain.NewTenantID(), Name: "acme", OccurredAt: time.Now().UTC(),
	}))
	entries, err := repo.FetchUnprocessed(ctx, db, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	const maxAttempts = 3

	require.NoError(t, repo.RecordFailure(ctx, id, "engine unavailable", maxAttempts))
	require.NoError(t, repo.RecordFailure(ctx, id, "engine unavailable", maxAttempts))

	// Still live after two of three attempts.
	live, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, 2, live[0].RetryCount)
	require.NotNil(t, live[0].LastError)
	assert.Equal(t, "engine unavailable", *live[0].LastError)

	// Third failure quarantines.
	require.NoError(t, repo.RecordFailure(ctx, id, "engine unavailable", maxAttempts))

	live, err = repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, live)

	quarantined, err := repo.ListQuarantined(ctx)
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.Equal(t, 3, quarantined[0].RetryCount)
	assert.True(t, quarantined[0].IsQuarantined())
}

func TestBunOutboxRepository_QuarantineBlocksAggregate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	groupID := domain.NewGroupID()
	tenantID := domain.NewTenantID()

	require.NoError(t, repo.Append(ctx, db,
		domain.GroupCreated{GroupID: groupID, TenantID: tenantID, Name: "team", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
		domain.TenantCreated{TenantID: tenantID, Name: "acme", OccurredAt: time.Now().UTC()},
	))

	entries, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Quarantine the group's first entry; its second entry must be held
	// back while the tenant entry stays fetchable.
	require.NoError(t, repo.RecordFailure(ctx, entries[0].ID, "boom", 1))

	live, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, domain.KindTenantCreated, live[0].EventType)

	// Requeue releases the aggregate.
	require.NoError(t, repo.Requeue(ctx, entries[0].ID))
	live, err = repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	assert.Len(t, live, 3)
}

func TestBunOutboxRepository_Requeue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewBunOutboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, db, domain.TenantCreated{
		TenantID: domain.NewTenantID(), Name: "acme", OccurredAt: time.Now().UTC(),
	}))
	entries, err := repo.FetchUnprocessed(ctx, db, 1)
	require.NoError(t, err)
	id := entries[0].ID

	require.NoError(t, repo.RecordFailure(ctx, id, "boom", 1))

	quarantined, err := repo.ListQuarantined(ctx)
	require.NoError(t, err)
	require.Len(t, quarantined, 1)

	require.NoError(t, repo.Requeue(ctx, id))

	live, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, 0, live[0].RetryCount)
	assert.Nil(t, live[0].LastError)

	t.Run("requeue of a live entry reports not found", func(t *testing.T) {
		err := repo.Requeue(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
