// Package apikeys holds the application service for API key lifecycle:
// creation with one-time plaintext return, revocation and deletion.
package apikeys

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/apikey"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

// DefaultTTL applies when a key is created without an explicit expiry.
const DefaultTTL = 90 * 24 * time.Hour

// CreatedKey pairs the persisted key with its plaintext secret. The
// plaintext exists only in this value; it is never stored or logged.
type CreatedKey struct {
	Key       *domain.APIKey
	Plaintext string
}

// Service exposes API key lifecycle operations.
type Service struct {
	db     *bun.DB
	keys   repository.APIKeyRepository
	outbox repository.OutboxRepository
	gen    *apikey.Generator
}

// NewService wires the API key service. gen may be nil for the defaults.
func NewService(db *bun.DB, keys repository.APIKeyRepository, outbox repository.OutboxRepository, gen *apikey.Generator) *Service {
	if gen == nil {
		gen = apikey.NewGenerator("", 0)
	}
	return &Service{db: db, keys: keys, outbox: outbox, gen: gen}
}

// Create mints a key for the owner within the tenant. The returned plaintext
// is shown exactly once; only the prefix and the slow hash are persisted.
func (s *Service) Create(ctx context.Context, owner domain.UserID, tenantID domain.TenantID, name string, expiresAt time.Time) (*CreatedKey, error) {
	secret, err := s.gen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key secret: %w", err)
	}
	hash, err := apikey.Hash(secret.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key secret: %w", err)
	}

	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(DefaultTTL)
	}
	key, err := domain.NewAPIKey(owner, tenantID, name, secret.Prefix, hash, expiresAt)
	if err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.keys.Create(ctx, tx, key); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, key.CollectEvents()...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}

	return &CreatedKey{Key: key, Plaintext: secret.Plaintext}, nil
}

// Get loads one key.
func (s *Service) Get(ctx context.Context, id domain.APIKeyID) (*domain.APIKey, error) {
	return s.keys.FindByID(ctx, id)
}

// List lists an owner's keys within a tenant, revoked ones included.
func (s *Service) List(ctx context.Context, tenantID domain.TenantID, owner domain.UserID) ([]*domain.APIKey, error) {
	return s.keys.ListByOwner(ctx, tenantID, owner)
}

// Revoke permanently disables a key. The row and its relationships are
// retained for audit listings; revoking twice is refused.
func (s *Service) Revoke(ctx context.Context, id domain.APIKeyID) error {
	key, err := s.keys.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := key.Revoke(); err != nil {
		return err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.keys.SetRevoked(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, key.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}

// Delete removes a key entirely; the event tears down both relationships.
func (s *Service) Delete(ctx context.Context, id domain.APIKeyID) error {
	key, err := s.keys.FindByID(ctx, id)
	if err != nil {
		return err
	}
	key.MarkForDeletion()

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.keys.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, key.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}
