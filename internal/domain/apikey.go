package domain

import "time"

// PrefixLength is the number of leading secret characters stored alongside
// the hash for indexed lookup.
const PrefixLength = 12

// APIKey is a long-lived machine credential bound to an owner and a tenant.
// Only the prefix and the slow hash are persisted; the plaintext secret
// exists at creation time and is never stored.
type APIKey struct {
	recorder

	ID          APIKeyID
	OwnerUserID UserID
	TenantID    TenantID
	Name        string
	Prefix      string
	Hash        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  *time.Time
	IsRevoked   bool
}

// NewAPIKey constructs a key from generated credential material and records
// APIKeyCreated.
func NewAPIKey(owner UserID, tenantID TenantID, name, prefix, hash string, expiresAt time.Time) (*APIKey, error) {
	trimmed, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if len(prefix) != PrefixLength {
		return nil, Invariantf("api key prefix must be %d characters", PrefixLength)
	}
	if hash == "" {
		return nil, Invariantf("api key hash must not be empty")
	}
	ts := now()
	k := &APIKey{
		ID:          NewAPIKeyID(),
		OwnerUserID: owner,
		TenantID:    tenantID,
		Name:        trimmed,
		Prefix:      prefix,
		Hash:        hash,
		CreatedAt:   ts,
		ExpiresAt:   expiresAt,
	}
	k.record(APIKeyCreated{APIKeyID: k.ID, OwnerUserID: owner, TenantID: tenantID, OccurredAt: ts})
	return k, nil
}

// RehydrateAPIKey rebuilds a key from persisted state without recording
// events.
func RehydrateAPIKey(id APIKeyID, owner UserID, tenantID TenantID, name, prefix, hash string, createdAt, expiresAt time.Time, lastUsedAt *time.Time, revoked bool) *APIKey {
	return &APIKey{
		ID:          id,
		OwnerUserID: owner,
		TenantID:    tenantID,
		Name:        name,
		Prefix:      prefix,
		Hash:        hash,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
		LastUsedAt:  lastUsedAt,
		IsRevoked:   revoked,
	}
}

// Revoke is a one-way door: it sets IsRevoked and records APIKeyRevoked.
// The owner and tenant relationships are retained for audit listings.
func (k *APIKey) Revoke() error {
	if k.IsRevoked {
		return Invariantf("api key %s is already revoked", k.ID)
	}
	k.IsRevoked = true
	k.record(APIKeyRevoked{APIKeyID: k.ID, OccurredAt: now()})
	return nil
}

// MarkForDeletion records APIKeyDeleted, which removes both relationships.
func (k *APIKey) MarkForDeletion() {
	k.record(APIKeyDeleted{APIKeyID: k.ID, OwnerUserID: k.OwnerUserID, TenantID: k.TenantID, OccurredAt: now()})
}

// RecordUsage bumps LastUsedAt. Usage is not an authorization-significant
// fact, so no event is recorded.
func (k *APIKey) RecordUsage(at time.Time) {
	ts := at.UTC()
	k.LastUsedAt = &ts
}

// IsExpired reports whether the key is past its expiry at the given time.
func (k *APIKey) IsExpired(at time.Time) bool {
	return !k.ExpiresAt.After(at)
}

// IsUsable reports whether the key may authenticate requests at the given
// time.
func (k *APIKey) IsUsable(at time.Time) bool {
	return !k.IsRevoked && !k.IsExpired(at)
}
