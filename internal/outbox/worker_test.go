package outbox

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/migrations"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
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

// fakeEngine records applied operations and can be told to fail a number of
// times before succeeding.
type fakeEngine struct {
	mu       sync.Mutex
	applied  []string
	failures int
}

func (f *fakeEngine) apply(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("engine unavailable")
	}
	f.applied = append(f.applied, op)
	return nil
}

func (f *fakeEngine) Write(_ context.Context, rel authz.Relationship) error {
	return f.apply("write " + rel.String())
}

func (f *fakeEngine) Delete(_ context.Context, rel authz.Relationship) error {
	return f.apply("delete " + rel.String())
}

func (f *fakeEngine) DeleteAll(_ context.Context, resource authz.ObjectRef) error {
	return f.apply("delete-all " + resource.String())
}

func (f *fakeEngine) Check(context.Context, authz.ObjectRef, authz.Permission, authz.ObjectRef) (bool, error) {
	return false, nil
}

func (f *fakeEngine) ListRelationships(context.Context, authz.ObjectRef) ([]authz.Relationship, error) {
	return nil, nil
}

func (f *fakeEngine) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func newTestWorker(db *bun.DB, engine *fakeEngine, cfg WorkerConfig) (*Worker, repository.OutboxRepository) {
	repo := repository.NewBunOutboxRepository(db)
	return NewWorker(db, repo, engine, DefaultComposite(), nil, cfg), repo
}

func TestWorkerProcessesBatchInOrder(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &fakeEngine{}
	worker, repo := newTestWorker(db, engine, WorkerConfig{})
	ctx := context.Background()

	groupID := domain.NewGroupID()
	tenantID := domain.NewTenantID()
	require.NoError(t, repo.Append(ctx, db,
		domain.GroupCreated{GroupID: groupID, TenantID: tenantID, Name: "team", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
	))

	fetched, err := worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched)

	ops := engine.ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "write group:"+string(groupID)+"#tenant@tenant:"+string(tenantID), ops[0])
	assert.Equal(t, "write group:"+string(groupID)+"#admin@user:alice", ops[1])

	remaining, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	t.Run("replay finds nothing", func(t *testing.T) {
		fetched, err := worker.RunPass(ctx)
		require.NoError(t, err)
		assert.Zero(t, fetched)
		assert.Len(t, engine.ops(), 2)
	})
}

func TestWorkerFailureSkipsAggregateButNotOthers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &fakeEngine{failures: 1}
	worker, repo := newTestWorker(db, engine, WorkerConfig{MaxAttempts: 5})
	ctx := context.Background()

	groupID := domain.NewGroupID()
	otherGroup := domain.NewGroupID()
	tenantID := domain.NewTenantID()

	require.NoError(t, repo.Append(ctx, db,
		domain.GroupCreated{GroupID: groupID, TenantID: tenantID, Name: "a", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: groupID, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
		domain.GroupCreated{GroupID: otherGroup, TenantID: tenantID, Name: "b", OccurredAt: time.Now().UTC()},
	))

	fetched, err := worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fetched)

	// First group's create failed, so its MemberAdded was held back; the
	// other group proceeded.
	ops := engine.ops()
	require.Len(t, ops, 1)
	assert.Contains(t, ops[0], string(otherGroup))

	live, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, 1, live[0].RetryCount)

	t.Run("entry waits out its backoff", func(t *testing.T) {
		// Immediately after the failure the entry is not yet eligible.
		_, err := worker.RunPass(ctx)
		require.NoError(t, err)
		assert.Len(t, engine.ops(), 1)
	})

	t.Run("entry retries once eligible", func(t *testing.T) {
		worker.nextAttempt[live[0].ID] = time.Now().Add(-time.Second)

		_, err := worker.RunPass(ctx)
		require.NoError(t, err)
		assert.Len(t, engine.ops(), 3)

		remaining, err := repo.FetchUnprocessed(ctx, db, 10)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})
}

func TestWorkerQuarantinesAfterMaxAttempts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &fakeEngine{failures: 100}
	worker, repo := newTestWorker(db, engine, WorkerConfig{MaxAttempts: 1})
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, db, domain.GroupCreated{
		GroupID: domain.NewGroupID(), TenantID: domain.NewTenantID(), Name: "team",
		OccurredAt: time.Now().UTC(),
	}))

	_, err := worker.RunPass(ctx)
	require.NoError(t, err)

	live, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, live)

	quarantined, err := repo.ListQuarantined(ctx)
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.True(t, quarantined[0].IsQuarantined())
	require.NotNil(t, quarantined[0].LastError)
	assert.Equal(t, "engine unavailable", *quarantined[0].LastError)
}

func TestWorkerHonorsCancellationBetweenEntries(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	engine := &fakeEngine{}
	worker, repo := newTestWorker(db, engine, WorkerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, repo.Append(ctx, db, domain.TenantCreated{
		TenantID: domain.NewTenantID(), Name: "acme", OccurredAt: time.Now().UTC(),
	}))
	cancel()

	_, err := worker.RunPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// failingOutboxRepo errors on every fetch.
type failingOutboxRepo struct {
	repository.OutboxRepository
}

func (failingOutboxRepo) FetchUnprocessed(context.Context, bun.IDB, int) ([]*models.OutboxEntry, error) {
	return nil, errors.New("connection refused")
}

// recordingProbe captures pass-level failures.
type recordingProbe struct {
	probe.NopOutboxProbe

	mu         sync.Mutex
	passErrors []error
}

func (p *recordingProbe) PassFailed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passErrors = append(p.passErrors, err)
}

func TestWorkerReportsPassFailure(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	rec := &recordingProbe{}
	worker := NewWorker(db, failingOutboxRepo{}, &fakeEngine{}, DefaultComposite(), rec, WorkerConfig{})

	worker.drain(context.Background(), probe.WakePoll)

	require.Len(t, rec.passErrors, 1)
	assert.ErrorContains(t, rec.passErrors[0], "connection refused")

	t.Run("cancellation is not reported", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		worker.drain(ctx, probe.WakePoll)
		assert.Len(t, rec.passErrors, 1)
	})
}

func TestGroupByAggregate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewBunOutboxRepository(db)
	ctx := context.Background()

	a := domain.NewGroupID()
	b := domain.NewGroupID()
	tenantID := domain.NewTenantID()

	require.NoError(t, repo.Append(ctx, db,
		domain.GroupCreated{GroupID: a, TenantID: tenantID, Name: "a", OccurredAt: time.Now().UTC()},
		domain.GroupCreated{GroupID: b, TenantID: tenantID, Name: "b", OccurredAt: time.Now().UTC()},
		domain.MemberAdded{GroupID: a, UserID: "alice", Role: domain.RoleAdmin, OccurredAt: time.Now().UTC()},
	))

	entries, err := repo.FetchUnprocessed(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	groups := groupByAggregate(entries)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, string(a), groups[0][0].AggregateID)
	assert.Len(t, groups[1], 1)
	assert.Equal(t, string(b), groups[1][0].AggregateID)
}
