package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260301000002, down_20260301000002)
}

// up_20260301000002 installs the AFTER INSERT trigger that notifies the
// outbox channel with the new entry id. PostgreSQL only; on SQLite the
// worker relies on the polling tick.
func up_20260301000002(ctx context.Context, db *bun.DB) error {
	if !IsPostgreSQL(db) {
		fmt.Println(" [up] skipping outbox notify trigger (not PostgreSQL)")
		return nil
	}

	fmt.Print(" [up] creating outbox notify trigger...")
	_, err := db.Exec(`
		CREATE OR REPLACE FUNCTION outbox_notify() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('outbox_events', NEW.id::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		return fmt.Errorf("failed to create outbox_notify function: %w", err)
	}

	_, err = db.Exec(`
		DROP TRIGGER IF EXISTS outbox_events_notify ON outbox;
		CREATE TRIGGER outbox_events_notify
		AFTER INSERT ON outbox
		FOR EACH ROW EXECUTE FUNCTION outbox_notify()
	`)
	if err != nil {
		return fmt.Errorf("failed to create outbox notify trigger: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

func down_20260301000002(ctx context.Context, db *bun.DB) error {
	if !IsPostgreSQL(db) {
		return nil
	}

	fmt.Print(" [down] dropping outbox notify trigger...")
	if _, err := db.Exec(`DROP TRIGGER IF EXISTS outbox_events_notify ON outbox`); err != nil {
		return fmt.Errorf("failed to drop outbox notify trigger: %w", err)
	}
	if _, err := db.Exec(`DROP FUNCTION IF EXISTS outbox_notify()`); err != nil {
		return fmt.Errorf("failed to drop outbox_notify function: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
