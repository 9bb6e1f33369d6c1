package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// OutboxEntry is one serialized domain event awaiting projection into the
// authorization engine. Rows are appended in the same transaction as the
// aggregate write; created_at orders processing globally and
// (aggregate_id, created_at) orders it per aggregate.
type OutboxEntry struct {
	bun.BaseModel `bun:"table:outbox,alias:ob"`

	ID            string          `bun:"id,pk,type:uuid"`
	AggregateType string          `bun:"aggregate_type,notnull"`
	AggregateID   string          `bun:"aggregate_id,notnull"`
	EventType     string          `bun:"event_type,notnull"`
	Payload       json.RawMessage `bun:"payload,type:jsonb,notnull"`
	OccurredAt    time.Time       `bun:"occurred_at,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	ProcessedAt   *time.Time      `bun:"processed_at"`
	RetryCount    int             `bun:"retry_count,notnull,default:0"`
	LastError     *string         `bun:"last_error"`
	FailedAt      *time.Time      `bun:"failed_at"`
}

// IsQuarantined reports whether retries are exhausted and operator action
// is required.
func (e *OutboxEntry) IsQuarantined() bool {
	return e.FailedAt != nil
}
