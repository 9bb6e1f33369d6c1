package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz/casbinstore"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260301000001, down_20260301000001)
}

// up_20260301000001 creates the IAM tables, the outbox, and the relation
// rule store for the embedded authorization engine.
func up_20260301000001(ctx context.Context, db *bun.DB) error {
	// 1. tenants
	fmt.Print(" [up] creating tenants table...")
	_, err := db.NewCreateTable().
		Model((*models.Tenant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}
	fmt.Println(" OK")

	// 2. users
	fmt.Print(" [up] creating users table...")
	_, err = db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	// 3. groups
	fmt.Print(" [up] creating groups table...")
	_, err = db.NewCreateTable().
		Model((*models.Group)(nil)).
		IfNotExists().
		ForeignKey(`("tenant_id") REFERENCES "tenants" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create groups table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_tenant_name ON groups(tenant_id, name)`)
	if err != nil {
		return fmt.Errorf("failed to create groups tenant/name index: %w", err)
	}
	fmt.Println(" OK")

	// 4. group_members
	fmt.Print(" [up] creating group_members table...")
	_, err = db.NewCreateTable().
		Model((*models.GroupMember)(nil)).
		IfNotExists().
		ForeignKey(`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`).
		ForeignKey(`("user_id") REFERENCES "users" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create group_members table: %w", err)
	}
	fmt.Println(" OK")

	// 5. workspaces: RESTRICT on both FKs so deletes of parents with
	// children surface as errors instead of cascading.
	fmt.Print(" [up] creating workspaces table...")
	_, err = db.NewCreateTable().
		Model((*models.Workspace)(nil)).
		IfNotExists().
		ForeignKey(`("tenant_id") REFERENCES "tenants" ("id") ON DELETE RESTRICT`).
		ForeignKey(`("parent_workspace_id") REFERENCES "workspaces" ("id") ON DELETE RESTRICT`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create workspaces table: %w", err)
	}

	// One root per tenant.
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_tenant_root
		ON workspaces (tenant_id)
		WHERE is_root
	`)
	if err != nil {
		return fmt.Errorf("failed to create workspaces root index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_workspaces_parent ON workspaces(parent_workspace_id)`)
	if err != nil {
		return fmt.Errorf("failed to create workspaces parent index: %w", err)
	}
	fmt.Println(" OK")

	// 6. api_keys
	fmt.Print(" [up] creating api_keys table...")
	_, err = db.NewCreateTable().
		Model((*models.APIKey)(nil)).
		IfNotExists().
		ForeignKey(`("owner_user_id") REFERENCES "users" ("id")`).
		ForeignKey(`("tenant_id") REFERENCES "tenants" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}

	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_api_keys_owner_tenant_name
		ON api_keys (owner_user_id, tenant_id, name)
	`)
	if err != nil {
		return fmt.Errorf("failed to create api_keys name index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(prefix)`)
	if err != nil {
		return fmt.Errorf("failed to create api_keys prefix index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_api_keys_tenant_owner ON api_keys(tenant_id, owner_user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create api_keys tenant/owner index: %w", err)
	}
	fmt.Println(" OK")

	// 7. outbox
	fmt.Print(" [up] creating outbox table...")
	_, err = db.NewCreateTable().
		Model((*models.OutboxEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create outbox table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_outbox_unprocessed
		ON outbox (created_at)
		WHERE processed_at IS NULL AND failed_at IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to create outbox unprocessed index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox(aggregate_id, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create outbox aggregate index: %w", err)
	}
	fmt.Println(" OK")

	// 8. relation_rules for the embedded authorization engine
	fmt.Print(" [up] creating relation_rules table...")
	_, err = db.NewCreateTable().
		Model((*casbinstore.RelationRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create relation_rules table: %w", err)
	}

	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_relation_rules_unique
		ON relation_rules (ptype, v0, v1, v2, v3, v4, v5)
	`)
	if err != nil {
		return fmt.Errorf("failed to create relation_rules unique index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260301000001 drops everything in reverse dependency order.
func down_20260301000001(ctx context.Context, db *bun.DB) error {
	tables := []string{
		"relation_rules",
		"outbox",
		"api_keys",
		"workspaces",
		"group_members",
		"groups",
		"users",
		"tenants",
	}

	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
