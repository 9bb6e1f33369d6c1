package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz/casbinstore"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
)

var (
	bootstrapAdminID       string
	bootstrapAdminUsername string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the default tenant with its root workspace",
	Long: `Creates the configured default tenant, its root workspace, and enrolls
the given user as the first admin. Safe to re-run: an existing default
tenant is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		engine, err := casbinstore.NewEngine(db)
		if err != nil {
			return fmt.Errorf("failed to create authorization engine: %w", err)
		}

		tenantRepo := repository.NewBunTenantRepository(db)
		userRepo := repository.NewBunUserRepository(db)
		svc := directory.NewService(
			db,
			tenantRepo,
			repository.NewBunGroupRepository(db),
			repository.NewBunWorkspaceRepository(db),
			repository.NewBunOutboxRepository(db),
			engine,
		)

		ctx := context.Background()
		name := cfg.Tenant.DefaultName

		if existing, err := tenantRepo.FindByName(ctx, name); err == nil {
			log.Printf("Default tenant %q already exists (id %s), nothing to do", name, existing.ID)
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		adminID, err := domain.ParseUserID(bootstrapAdminID)
		if err != nil {
			return err
		}
		username := bootstrapAdminUsername
		if username == "" {
			username = string(adminID)
		}
		if _, err := userRepo.Ensure(ctx, db, adminID, username); err != nil {
			return fmt.Errorf("failed to provision admin user: %w", err)
		}

		tenant, err := svc.CreateTenant(ctx, name, adminID)
		if err != nil {
			return err
		}

		log.Printf("Created default tenant %q (id %s) with admin %s", tenant.Name, tenant.ID, adminID)
		log.Printf("Membership becomes effective once the outbox worker has run")
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapAdminID, "admin", "", "User id of the first admin (required)")
	bootstrapCmd.Flags().StringVar(&bootstrapAdminUsername, "admin-username", "", "Username of the first admin (defaults to the id)")
	_ = bootstrapCmd.MarkFlagRequired("admin")
	rootCmd.AddCommand(bootstrapCmd)
}
