package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// BunTenantRepository implements TenantRepository on Bun.
type BunTenantRepository struct {
	db *bun.DB
}

// NewBunTenantRepository creates a new BunTenantRepository.
func NewBunTenantRepository(db *bun.DB) *BunTenantRepository {
	return &BunTenantRepository{db: db}
}

func tenantToDomain(row *models.Tenant) (*domain.Tenant, error) {
	id, err := domain.ParseTenantID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", row.ID, err)
	}
	return domain.RehydrateTenant(id, row.Name), nil
}

// Create inserts the tenant row on the caller's transaction.
func (r *BunTenantRepository) Create(ctx context.Context, idb bun.IDB, tenant *domain.Tenant) error {
	row := &models.Tenant{ID: string(tenant.ID), Name: tenant.Name}
	if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant name %q: %w", tenant.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// FindByID loads a tenant by id.
func (r *BunTenantRepository) FindByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	row := new(models.Tenant)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	return tenantToDomain(row)
}

// FindByName loads a tenant by its globally unique name.
func (r *BunTenantRepository) FindByName(ctx context.Context, name string) (*domain.Tenant, error) {
	row := new(models.Tenant)
	err := r.db.NewSelect().Model(row).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("tenant %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tenant by name: %w", err)
	}
	return tenantToDomain(row)
}

// List returns all tenants ordered by name.
func (r *BunTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	var rows []*models.Tenant
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	tenants := make([]*domain.Tenant, 0, len(rows))
	for _, row := range rows {
		tenant, err := tenantToDomain(row)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

// Delete removes the tenant row on the caller's transaction. Workspaces
// reference tenants with RESTRICT, so a tenant with live workspaces refuses
// deletion.
func (r *BunTenantRepository) Delete(ctx context.Context, idb bun.IDB, id domain.TenantID) error {
	res, err := idb.NewDelete().
		Model((*models.Tenant)(nil)).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Invariantf("tenant %s still has dependent resources", id)
		}
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
