package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/apikey"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/apikeys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "API key management commands",
	Long:  `Operator commands for creating, listing and revoking API keys.`,
}

var (
	keysOwner    string
	keysTenant   string
	keysName     string
	keysTTL      time.Duration
	keysRevokeID string
)

func newAPIKeyService() (*apikeys.Service, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	svc := apikeys.NewService(
		db,
		repository.NewBunAPIKeyRepository(db),
		repository.NewBunOutboxRepository(db),
		apikey.NewGenerator(cfg.APIKey.Prefix, cfg.APIKey.EntropyBytes),
	)
	return svc, func() { _ = bunx.Close(db) }, nil
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key",
	Long:  `Creates an API key for a user within a tenant and prints the secret exactly once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newAPIKeyService()
		if err != nil {
			return err
		}
		defer cleanup()

		owner, err := domain.ParseUserID(keysOwner)
		if err != nil {
			return err
		}
		tenantID, err := domain.ParseTenantID(keysTenant)
		if err != nil {
			return err
		}

		var expiresAt time.Time
		if keysTTL > 0 {
			expiresAt = time.Now().UTC().Add(keysTTL)
		}

		created, err := svc.Create(context.Background(), owner, tenantID, keysName, expiresAt)
		if err != nil {
			return err
		}

		fmt.Printf("Created API key %s (%s)\n", created.Key.ID, created.Key.Name)
		fmt.Printf("Expires: %s\n", created.Key.ExpiresAt.Format(time.RFC3339))
		fmt.Printf("Secret (shown once, store it now):\n%s\n", created.Plaintext)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newAPIKeyService()
		if err != nil {
			return err
		}
		defer cleanup()

		owner, err := domain.ParseUserID(keysOwner)
		if err != nil {
			return err
		}
		tenantID, err := domain.ParseTenantID(keysTenant)
		if err != nil {
			return err
		}

		keys, err := svc.List(context.Background(), tenantID, owner)
		if err != nil {
			return err
		}

		if len(keys) == 0 {
			log.Printf("No API keys for user %s in tenant %s", owner, tenantID)
			return nil
		}
		for _, k := range keys {
			status := "active"
			if k.IsRevoked {
				status = "revoked"
			} else if k.IsExpired(time.Now().UTC()) {
				status = "expired"
			}
			fmt.Printf("%s  %-20s  %s...  %s  expires %s\n",
				k.ID, k.Name, k.Prefix, status, k.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an API key",
	Long:  `Permanently disables an API key. The key row is retained for auditing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newAPIKeyService()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := domain.ParseAPIKeyID(keysRevokeID)
		if err != nil {
			return err
		}

		if err := svc.Revoke(context.Background(), id); err != nil {
			return err
		}
		log.Printf("Revoked API key %s", id)
		return nil
	},
}

func init() {
	keysCreateCmd.Flags().StringVar(&keysOwner, "owner", "", "Owner user id (required)")
	keysCreateCmd.Flags().StringVar(&keysTenant, "tenant", "", "Tenant id (required)")
	keysCreateCmd.Flags().StringVar(&keysName, "name", "", "Key name, unique per owner and tenant (required)")
	keysCreateCmd.Flags().DurationVar(&keysTTL, "ttl", 0, "Key lifetime (default 90 days)")
	_ = keysCreateCmd.MarkFlagRequired("owner")
	_ = keysCreateCmd.MarkFlagRequired("tenant")
	_ = keysCreateCmd.MarkFlagRequired("name")

	keysListCmd.Flags().StringVar(&keysOwner, "owner", "", "Owner user id (required)")
	keysListCmd.Flags().StringVar(&keysTenant, "tenant", "", "Tenant id (required)")
	_ = keysListCmd.MarkFlagRequired("owner")
	_ = keysListCmd.MarkFlagRequired("tenant")

	keysRevokeCmd.Flags().StringVar(&keysRevokeID, "id", "", "API key id (required)")
	_ = keysRevokeCmd.MarkFlagRequired("id")

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
