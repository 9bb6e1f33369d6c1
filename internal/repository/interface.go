// Package repository persists aggregates and the outbox on Bun. Mutating
// methods take a bun.IDB so services can compose aggregate writes and outbox
// appends into one transaction.
package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// OutboxRepository persists and serves outbox entries.
type OutboxRepository interface {
	// Append serializes the events and inserts one row per event using the
	// caller's transaction.
	Append(ctx context.Context, idb bun.IDB, events ...domain.Event) error

	// FetchUnprocessed returns up to limit unprocessed, non-quarantined
	// entries in created_at order, locked for the caller's transaction.
	FetchUnprocessed(ctx context.Context, idb bun.IDB, limit int) ([]*models.OutboxEntry, error)

	// MarkProcessed stamps processed_at. Idempotent: a processed entry is
	// left untouched.
	MarkProcessed(ctx context.Context, id string) error

	// RecordFailure increments retry_count, stores the cause and, once the
	// attempt budget is spent, quarantines the entry by setting failed_at.
	RecordFailure(ctx context.Context, id string, cause string, maxAttempts int) error

	// ListQuarantined returns entries with a non-null failed_at.
	ListQuarantined(ctx context.Context) ([]*models.OutboxEntry, error)

	// Requeue clears failure state so the worker picks the entry up again.
	Requeue(ctx context.Context, id string) error
}

// TenantRepository persists tenants.
type TenantRepository interface {
	Create(ctx context.Context, idb bun.IDB, tenant *domain.Tenant) error
	FindByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error)
	FindByName(ctx context.Context, name string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	Delete(ctx context.Context, idb bun.IDB, id domain.TenantID) error
}

// UserRepository persists users provisioned just-in-time from validated
// credentials.
type UserRepository interface {
	// Ensure creates the user if absent and refreshes the username if it
	// changed at the identity provider. Reports whether the row was created.
	Ensure(ctx context.Context, idb bun.IDB, id domain.UserID, username string) (created bool, err error)
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
}

// GroupRepository persists groups and their membership rows.
type GroupRepository interface {
	Create(ctx context.Context, idb bun.IDB, group *domain.Group) error
	FindByID(ctx context.Context, id domain.GroupID) (*domain.Group, error)
	FindByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Group, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*domain.Group, error)
	// ReplaceMembers rewrites the membership rows to match the aggregate.
	ReplaceMembers(ctx context.Context, idb bun.IDB, group *domain.Group) error
	Delete(ctx context.Context, idb bun.IDB, id domain.GroupID) error
}

// WorkspaceRepository persists the workspace hierarchy.
type WorkspaceRepository interface {
	Create(ctx context.Context, idb bun.IDB, workspace *domain.Workspace) error
	FindByID(ctx context.Context, id domain.WorkspaceID) (*domain.Workspace, error)
	FindRoot(ctx context.Context, tenantID domain.TenantID) (*domain.Workspace, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*domain.Workspace, error)
	ListChildren(ctx context.Context, parentID domain.WorkspaceID) ([]*domain.Workspace, error)
	// Delete removes the row; a RESTRICT violation from remaining children
	// surfaces as a domain invariant error.
	Delete(ctx context.Context, idb bun.IDB, id domain.WorkspaceID) error
}

// APIKeyRepository persists API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, idb bun.IDB, key *domain.APIKey) error
	FindByID(ctx context.Context, id domain.APIKeyID) (*domain.APIKey, error)
	// FindByPrefix returns every key sharing the prefix; the caller runs
	// hash verification over the candidates.
	FindByPrefix(ctx context.Context, prefix string) ([]*domain.APIKey, error)
	ListByOwner(ctx context.Context, tenantID domain.TenantID, owner domain.UserID) ([]*domain.APIKey, error)
	// UpdateLastUsed is opportunistic; callers may ignore its error.
	UpdateLastUsed(ctx context.Context, id domain.APIKeyID, at time.Time) error
	SetRevoked(ctx context.Context, idb bun.IDB, id domain.APIKeyID) error
	Delete(ctx context.Context, idb bun.IDB, id domain.APIKeyID) error
}
