package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/outbox/codec"
)

// BunOutboxRepository implements OutboxRepository on Bun.
type BunOutboxRepository struct {
	db *bun.DB
}

// NewBunOutboxRepository creates a new BunOutboxRepository.
func NewBunOutboxRepository(db *bun.DB) *BunOutboxRepository {
	return &BunOutboxRepository{db: db}
}

// Append serializes the events and inserts one row per event on the caller's
// transaction, preserving the order the aggregate recorded them in.
func (r *BunOutboxRepository) Append(ctx context.Context, idb bun.IDB, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*models.OutboxEntry, 0, len(events))
	createdAt, err := r.appendClock(ctx, idb)
	if err != nil {
		return err
	}
	for i, event := range events {
		payload, err := codec.Encode(event)
		if err != nil {
			return fmt.Errorf("append outbox entry: %w", err)
		}
		aggregateType, aggregateID, err := codec.AggregateRef(event)
		if err != nil {
			return fmt.Errorf("append outbox entry: %w", err)
		}
		entries = append(entries, &models.OutboxEntry{
			ID:            uuid.NewString(),
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     event.Kind(),
			Payload:       payload,
			OccurredAt:    event.OccurredAtTime(),
			// Microsecond offsets keep created_at strictly increasing
			// within the batch so per-aggregate order survives the sort.
			CreatedAt: createdAt.Add(time.Duration(i) * time.Microsecond),
		})
	}

	if _, err := idb.NewInsert().Model(&entries).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert outbox entries: %w", err)
	}
	return nil
}

// appendClock returns the base timestamp for a batch. On PostgreSQL it is
// the database clock, so appenders on machines with skewed clocks cannot
// invert (aggregate_id, created_at) order. SQLite has a single process and
// uses the local clock.
func (r *BunOutboxRepository) appendClock(ctx context.Context, idb bun.IDB) (time.Time, error) {
	if !bunx.IsPostgreSQL(r.db) {
		return time.Now().UTC(), nil
	}
	var now time.Time
	if err := idb.QueryRowContext(ctx, "SELECT clock_timestamp()").Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now.UTC(), nil
}

// FetchUnprocessed returns up to limit live entries in created_at order.
// Aggregates with a quarantined entry are held back entirely: their later
// entries must not run until an operator requeues the stuck one. On
// PostgreSQL the rows are locked with FOR UPDATE SKIP LOCKED so concurrent
// workers never double-fetch; SQLite has a single writer and needs no lock.
func (r *BunOutboxRepository) FetchUnprocessed(ctx context.Context, idb bun.IDB, limit int) ([]*models.OutboxEntry, error) {
	var entries []*models.OutboxEntry
	q := idb.NewSelect().
		Model(&entries).
		Where("processed_at IS NULL").
		Where("failed_at IS NULL").
		Where("aggregate_id NOT IN (SELECT aggregate_id FROM outbox WHERE failed_at IS NOT NULL)").
		Order("created_at ASC").
		Limit(limit)
	if bunx.IsPostgreSQL(r.db) {
		q = q.For("UPDATE SKIP LOCKED")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch unprocessed outbox entries: %w", err)
	}
	return entries, nil
}

// MarkProcessed stamps processed_at; already-processed entries are left
// untouched.
func (r *BunOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.OutboxEntry)(nil)).
		Set("processed_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("processed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry processed: %w", err)
	}
	return nil
}

// RecordFailure bumps retry_count and stores the cause. When the new count
// reaches maxAttempts the entry is quarantined by setting failed_at.
func (r *BunOutboxRepository) RecordFailure(ctx context.Context, id string, cause string, maxAttempts int) error {
	_, err := r.db.NewUpdate().
		Model((*models.OutboxEntry)(nil)).
		Set("retry_count = retry_count + 1").
		Set("last_error = ?", cause).
		Set("failed_at = CASE WHEN retry_count + 1 >= ? THEN ? ELSE failed_at END", maxAttempts, time.Now().UTC()).
		Where("id = ?", id).
		Where("processed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return nil
}

// ListQuarantined returns quarantined entries oldest first.
func (r *BunOutboxRepository) ListQuarantined(ctx context.Context) ([]*models.OutboxEntry, error) {
	var entries []*models.OutboxEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("failed_at IS NOT NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantined outbox entries: %w", err)
	}
	return entries, nil
}

// Requeue clears failure state on a quarantined entry so the worker retries
// it from a fresh attempt budget.
func (r *BunOutboxRepository) Requeue(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*models.OutboxEntry)(nil)).
		Set("failed_at = NULL").
		Set("retry_count = 0").
		Set("last_error = NULL").
		Where("id = ?", id).
		Where("failed_at IS NOT NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue outbox entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
