package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// BunUserRepository implements UserRepository on Bun.
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new BunUserRepository.
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// Ensure upserts the user: created on first contact, username refreshed when
// the identity provider reports a new one. Reports whether the row was
// created.
func (r *BunUserRepository) Ensure(ctx context.Context, idb bun.IDB, id domain.UserID, username string) (bool, error) {
	existing := new(models.User)
	err := idb.NewSelect().Model(existing).Where("id = ?", string(id)).Scan(ctx)
	switch {
	case err == nil:
		if existing.Username == username {
			return false, nil
		}
		_, err = idb.NewUpdate().
			Model((*models.User)(nil)).
			Set("username = ?", username).
			Where("id = ?", string(id)).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to update username: %w", err)
		}
		return false, nil

	case isNoRows(err):
		row := &models.User{ID: string(id), Username: username}
		// Two requests can race on first contact; the conflict clause
		// makes the loser a no-op.
		_, err = idb.NewInsert().
			Model(row).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to insert user: %w", err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
}

// FindByID loads a user by its identity provider subject.
func (r *BunUserRepository) FindByID(ctx context.Context, id domain.UserID) (*models.User, error) {
	row := new(models.User)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return row, nil
}
