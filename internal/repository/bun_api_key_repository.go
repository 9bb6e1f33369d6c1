package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// BunAPIKeyRepository implements APIKeyRepository on Bun.
type BunAPIKeyRepository struct {
	db *bun.DB
}

// NewBunAPIKeyRepository creates a new BunAPIKeyRepository.
func NewBunAPIKeyRepository(db *bun.DB) *BunAPIKeyRepository {
	return &BunAPIKeyRepository{db: db}
}

func apiKeyToDomain(row *models.APIKey) (*domain.APIKey, error) {
	id, err := domain.ParseAPIKeyID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load api key %s: %w", row.ID, err)
	}
	tenantID, err := domain.ParseTenantID(row.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load api key %s: %w", row.ID, err)
	}
	return domain.RehydrateAPIKey(
		id,
		domain.UserID(row.OwnerUserID),
		tenantID,
		row.Name,
		row.Prefix,
		row.Hash,
		row.CreatedAt,
		row.ExpiresAt,
		row.LastUsedAt,
		row.IsRevoked,
	), nil
}

// Create inserts the key row on the caller's transaction.
func (r *BunAPIKeyRepository) Create(ctx context.Context, idb bun.IDB, key *domain.APIKey) error {
	row := &models.APIKey{
		ID:          string(key.ID),
		OwnerUserID: string(key.OwnerUserID),
		TenantID:    string(key.TenantID),
		Name:        key.Name,
		Prefix:      key.Prefix,
		Hash:        key.Hash,
		CreatedAt:   key.CreatedAt,
		ExpiresAt:   key.ExpiresAt,
		LastUsedAt:  key.LastUsedAt,
		IsRevoked:   key.IsRevoked,
	}
	if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("api key name %q: %w", key.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// FindByID loads a key by id.
func (r *BunAPIKeyRepository) FindByID(ctx context.Context, id domain.APIKeyID) (*domain.APIKey, error) {
	row := new(models.APIKey)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("api key %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}
	return apiKeyToDomain(row)
}

// FindByPrefix returns all keys sharing the indexed prefix. Prefixes are not
// unique by construction, so verification runs over every candidate.
func (r *BunAPIKeyRepository) FindByPrefix(ctx context.Context, prefix string) ([]*domain.APIKey, error) {
	var rows []*models.APIKey
	err := r.db.NewSelect().
		Model(&rows).
		Where("prefix = ?", prefix).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find api keys by prefix: %w", err)
	}
	return apiKeysToDomain(rows)
}

// ListByOwner returns the owner's keys within a tenant, newest first.
func (r *BunAPIKeyRepository) ListByOwner(ctx context.Context, tenantID domain.TenantID, owner domain.UserID) ([]*domain.APIKey, error) {
	var rows []*models.APIKey
	err := r.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", string(tenantID)).
		Where("owner_user_id = ?", string(owner)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return apiKeysToDomain(rows)
}

func apiKeysToDomain(rows []*models.APIKey) ([]*domain.APIKey, error) {
	keys := make([]*domain.APIKey, 0, len(rows))
	for _, row := range rows {
		key, err := apiKeyToDomain(row)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// UpdateLastUsed stamps last_used_at. Best effort: the caller may drop the
// error.
func (r *BunAPIKeyRepository) UpdateLastUsed(ctx context.Context, id domain.APIKeyID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("last_used_at = ?", at.UTC()).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update api key last_used_at: %w", err)
	}
	return nil
}

// SetRevoked flips is_revoked on the caller's transaction.
func (r *BunAPIKeyRepository) SetRevoked(ctx context.Context, idb bun.IDB, id domain.APIKeyID) error {
	res, err := idb.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("is_revoked = TRUE").
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("api key %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes the key row on the caller's transaction.
func (r *BunAPIKeyRepository) Delete(ctx context.Context, idb bun.IDB, id domain.APIKeyID) error {
	res, err := idb.NewDelete().
		Model((*models.APIKey)(nil)).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("api key %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
