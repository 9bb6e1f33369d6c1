// Package cmd holds the kartograph CLI: the API server, the outbox worker,
// database migrations and operator commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/config"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
)

var (
	cfg        *config.Config
	logger     zerolog.Logger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "kartograph",
	Short: "Multi-tenant IAM service with a relationship-based authorization engine",
	Long: `Kartograph manages tenants, groups, workspaces and API keys, projecting
every membership change through a transactional outbox into an embedded
relationship-based authorization engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (env: KARTO_*)")
}

// openDB connects using the configured DSN and pool bounds.
func openDB() (*bun.DB, error) {
	db, err := bunx.NewDB(cfg.DB.URL, bunx.PoolConfig{
		MinConns: cfg.DB.PoolMin,
		MaxConns: cfg.DB.PoolMax,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
