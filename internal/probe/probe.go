// Package probe defines the narrow observability interfaces components take
// for recording structured events. Probes are side-effect only: they never
// influence control flow, and every method must be safe for concurrent use.
// The default implementations write structured logs via zerolog; Nop
// variants exist for tests.
package probe

import "github.com/rs/zerolog"

// WakeSource identifies what woke the outbox worker.
type WakeSource string

const (
	WakeNotify WakeSource = "notify"
	WakePoll   WakeSource = "poll"
)

// OutboxProbe records outbox worker lifecycle events.
type OutboxProbe interface {
	WorkerWoken(source WakeSource)
	BatchFetched(size int)
	EntryProcessed(entryID, eventType string)
	EntryFailed(entryID, eventType string, attempt int, err error)
	EntryQuarantined(entryID, eventType string, attempts int)
	AggregateSkipped(aggregateID string, pending int)
	PassFailed(err error)
	ListenerError(err error)
}

// AuthProbe records authentication pipeline events.
type AuthProbe interface {
	Authenticated(userID, tenantID, credentialKind string)
	AuthenticationFailed(reason string)
	UserProvisioned(userID, username string)
	TenantBootstrapped(tenantID, userID string)
	JWKSFetched(issuer string)
	JWKSFetchFailed(issuer string, err error)
}

// LogOutboxProbe writes outbox events as structured logs.
type LogOutboxProbe struct {
	Log zerolog.Logger
}

func (p LogOutboxProbe) WorkerWoken(source WakeSource) {
	p.Log.Debug().Str("source", string(source)).Msg("outbox worker woken")
}

func (p LogOutboxProbe) BatchFetched(size int) {
	p.Log.Debug().Int("size", size).Msg("outbox batch fetched")
}

func (p LogOutboxProbe) EntryProcessed(entryID, eventType string) {
	p.Log.Debug().Str("entry_id", entryID).Str("event_type", eventType).Msg("outbox entry processed")
}

func (p LogOutboxProbe) EntryFailed(entryID, eventType string, attempt int, err error) {
	p.Log.Warn().Str("entry_id", entryID).Str("event_type", eventType).
		Int("attempt", attempt).Err(err).Msg("outbox entry failed")
}

func (p LogOutboxProbe) EntryQuarantined(entryID, eventType string, attempts int) {
	p.Log.Error().Str("entry_id", entryID).Str("event_type", eventType).
		Int("attempts", attempts).Msg("outbox entry quarantined")
}

func (p LogOutboxProbe) AggregateSkipped(aggregateID string, pending int) {
	p.Log.Debug().Str("aggregate_id", aggregateID).Int("pending", pending).
		Msg("outbox aggregate skipped after failure")
}

func (p LogOutboxProbe) PassFailed(err error) {
	p.Log.Error().Err(err).Msg("outbox pass failed")
}

func (p LogOutboxProbe) ListenerError(err error) {
	p.Log.Warn().Err(err).Msg("outbox listener error")
}

// LogAuthProbe writes auth pipeline events as structured logs.
type LogAuthProbe struct {
	Log zerolog.Logger
}

func (p LogAuthProbe) Authenticated(userID, tenantID, credentialKind string) {
	p.Log.Debug().Str("user_id", userID).Str("tenant_id", tenantID).
		Str("credential_kind", credentialKind).Msg("request authenticated")
}

func (p LogAuthProbe) AuthenticationFailed(reason string) {
	p.Log.Debug().Str("reason", reason).Msg("authentication failed")
}

func (p LogAuthProbe) UserProvisioned(userID, username string) {
	p.Log.Info().Str("user_id", userID).Str("username", username).Msg("user provisioned")
}

func (p LogAuthProbe) TenantBootstrapped(tenantID, userID string) {
	p.Log.Info().Str("tenant_id", tenantID).Str("user_id", userID).
		Msg("user auto-added to default tenant")
}

func (p LogAuthProbe) JWKSFetched(issuer string) {
	p.Log.Debug().Str("issuer", issuer).Msg("jwks fetched")
}

func (p LogAuthProbe) JWKSFetchFailed(issuer string, err error) {
	p.Log.Warn().Str("issuer", issuer).Err(err).Msg("jwks fetch failed")
}

// NopOutboxProbe discards all events.
type NopOutboxProbe struct{}

func (NopOutboxProbe) WorkerWoken(WakeSource)                 {}
func (NopOutboxProbe) BatchFetched(int)                       {}
func (NopOutboxProbe) EntryProcessed(string, string)          {}
func (NopOutboxProbe) EntryFailed(string, string, int, error) {}
func (NopOutboxProbe) EntryQuarantined(string, string, int)   {}
func (NopOutboxProbe) AggregateSkipped(string, int)           {}
func (NopOutboxProbe) PassFailed(error)                       {}
func (NopOutboxProbe) ListenerError(error)                    {}

// NopAuthProbe discards all events.
type NopAuthProbe struct{}

func (NopAuthProbe) Authenticated(string, string, string) {}
func (NopAuthProbe) AuthenticationFailed(string)          {}
func (NopAuthProbe) UserProvisioned(string, string)       {}
func (NopAuthProbe) TenantBootstrapped(string, string)    {}
func (NopAuthProbe) JWKSFetched(string)                   {}
func (NopAuthProbe) JWKSFetchFailed(string, error)        {}
