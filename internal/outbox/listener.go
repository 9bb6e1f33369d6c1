package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
)

// NotifyChannel is the PostgreSQL channel the outbox insert trigger notifies
// with the new entry's id.
const NotifyChannel = "outbox_events"

// Listener turns database notifications into worker wake-ups. It is a
// latency optimization only: the worker's poll ticker guarantees progress
// without it, so SQLite deployments simply run without a listener.
type Listener struct {
	db    *bun.DB
	probe probe.OutboxProbe
}

// NewListener creates a listener on the shared database handle.
func NewListener(db *bun.DB, p probe.OutboxProbe) *Listener {
	if p == nil {
		p = probe.NopOutboxProbe{}
	}
	return &Listener{db: db, probe: p}
}

// Run subscribes to the notify channel and forwards wake-ups until ctx is
// cancelled. Sends never block: a wake-up is dropped when one is already
// pending, which coalesces notification bursts into a single drain. The
// payload carries the inserted entry id; a payload that is not a UUID is
// logged and ignored rather than trusted.
func (l *Listener) Run(ctx context.Context, wake chan<- struct{}) error {
	if !bunx.IsPostgreSQL(l.db) {
		return nil
	}

	ln := pgdriver.NewListener(l.db)
	if err := ln.Listen(ctx, NotifyChannel); err != nil {
		return fmt.Errorf("listen on %s: %w", NotifyChannel, err)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for notif := range ln.Channel() {
		if _, err := uuid.Parse(notif.Payload); err != nil {
			l.probe.ListenerError(fmt.Errorf("notification payload %q is not an entry id", notif.Payload))
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	return ctx.Err()
}
