// Package outbox projects domain events from the transactional outbox into
// the authorization engine. The worker drains batches on notifications or
// polling ticks; translators map event payloads to relationship operations.
package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

// WorkerConfig bounds a worker's batches and retries.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Worker drains the outbox and applies the resulting relationship operations
// to the authorization engine. Delivery is at-least-once: entries for one
// aggregate are applied strictly in created_at order, and a failed entry
// holds back the rest of its aggregate for the pass.
//
// Retry state is worker-local: the next eligible attempt time per entry is
// derived from an exponential backoff and kept in memory, so a restart
// simply retries sooner.
type Worker struct {
	db         *bun.DB
	repo       repository.OutboxRepository
	engine     authz.Engine
	translator *Composite
	probe      probe.OutboxProbe
	cfg        WorkerConfig

	nextAttempt map[string]time.Time
	backoffs    map[string]*backoff.ExponentialBackOff
}

// NewWorker wires a worker over the repository, engine and translator.
func NewWorker(db *bun.DB, repo repository.OutboxRepository, engine authz.Engine, translator *Composite, p probe.OutboxProbe, cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if p == nil {
		p = probe.NopOutboxProbe{}
	}
	return &Worker{
		db:          db,
		repo:        repo,
		engine:      engine,
		translator:  translator,
		probe:       p,
		cfg:         cfg,
		nextAttempt: make(map[string]time.Time),
		backoffs:    make(map[string]*backoff.ExponentialBackOff),
	}
}

// Run blocks until ctx is cancelled, draining the outbox whenever the wake
// channel fires or the poll ticker elapses. wake may be nil, in which case
// only the ticker drives the worker.
func (w *Worker) Run(ctx context.Context, wake <-chan struct{}) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// Drain once at startup to pick up entries accumulated while down.
	w.drain(ctx, probe.WakePoll)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			w.drain(ctx, probe.WakeNotify)
		case <-ticker.C:
			w.drain(ctx, probe.WakePoll)
		}
	}
}

// drain runs passes until a pass comes back short of a full batch.
func (w *Worker) drain(ctx context.Context, source probe.WakeSource) {
	w.probe.WorkerWoken(source)
	for {
		fetched, err := w.RunPass(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.probe.PassFailed(err)
			}
			return
		}
		if fetched < w.cfg.BatchSize {
			return
		}
	}
}

// RunPass fetches one batch and processes it, returning the number of
// entries fetched. Fetching happens in its own short transaction; engine
// calls and progress marks run outside it so a slow engine never pins a
// database connection.
func (w *Worker) RunPass(ctx context.Context) (int, error) {
	var entries []*models.OutboxEntry
	err := w.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		entries, err = w.repo.FetchUnprocessed(ctx, tx, w.cfg.BatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	w.probe.BatchFetched(len(entries))

	for _, group := range groupByAggregate(entries) {
		for i, entry := range group {
			if err := ctx.Err(); err != nil {
				return len(entries), err
			}
			if !w.eligible(entry.ID) {
				w.probe.AggregateSkipped(entry.AggregateID, len(group)-i)
				break
			}
			if err := w.processEntry(ctx, entry); err != nil {
				if recErr := w.recordFailure(ctx, entry, err); recErr != nil {
					return len(entries), recErr
				}
				if rest := len(group) - i - 1; rest > 0 {
					w.probe.AggregateSkipped(entry.AggregateID, rest)
				}
				break
			}
			if err := w.repo.MarkProcessed(ctx, entry.ID); err != nil {
				return len(entries), err
			}
			w.clearRetryState(entry.ID)
			w.probe.EntryProcessed(entry.ID, entry.EventType)
		}
	}
	return len(entries), nil
}

// processEntry translates the entry and applies its operations in order.
func (w *Worker) processEntry(ctx context.Context, entry *models.OutboxEntry) error {
	ops, err := w.translator.Translate(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := authz.Apply(ctx, w.engine, op); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) recordFailure(ctx context.Context, entry *models.OutboxEntry, cause error) error {
	attempt := entry.RetryCount + 1
	w.probe.EntryFailed(entry.ID, entry.EventType, attempt, cause)

	if err := w.repo.RecordFailure(ctx, entry.ID, cause.Error(), w.cfg.MaxAttempts); err != nil {
		return err
	}

	if attempt >= w.cfg.MaxAttempts {
		w.probe.EntryQuarantined(entry.ID, entry.EventType, attempt)
		w.clearRetryState(entry.ID)
		return nil
	}

	bo, ok := w.backoffs[entry.ID]
	if !ok {
		bo = backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Second
		bo.MaxInterval = time.Minute
		bo.MaxElapsedTime = 0
		w.backoffs[entry.ID] = bo
	}
	w.nextAttempt[entry.ID] = time.Now().Add(bo.NextBackOff())
	return nil
}

func (w *Worker) eligible(entryID string) bool {
	next, ok := w.nextAttempt[entryID]
	return !ok || time.Now().After(next)
}

func (w *Worker) clearRetryState(entryID string) {
	delete(w.nextAttempt, entryID)
	delete(w.backoffs, entryID)
}

// groupByAggregate splits a created_at ordered batch into per-aggregate
// runs, preserving first-appearance order across aggregates and created_at
// order within each.
func groupByAggregate(entries []*models.OutboxEntry) [][]*models.OutboxEntry {
	index := make(map[string]int)
	var groups [][]*models.OutboxEntry
	for _, entry := range entries {
		i, ok := index[entry.AggregateID]
		if !ok {
			i = len(groups)
			index[entry.AggregateID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], entry)
	}
	return groups
}
