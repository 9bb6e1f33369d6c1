package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/apikey"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/auth"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz/casbinstore"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/outbox"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/server"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/apikeys"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/directory"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/services/iam"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the outbox worker",
	Long:  `Starts the HTTP server together with the outbox worker and, on PostgreSQL, the notification listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		engine, err := casbinstore.NewEngine(db)
		if err != nil {
			return fmt.Errorf("failed to create authorization engine: %w", err)
		}

		// Repositories
		outboxRepo := repository.NewBunOutboxRepository(db)
		tenantRepo := repository.NewBunTenantRepository(db)
		userRepo := repository.NewBunUserRepository(db)
		groupRepo := repository.NewBunGroupRepository(db)
		workspaceRepo := repository.NewBunWorkspaceRepository(db)
		apiKeyRepo := repository.NewBunAPIKeyRepository(db)

		// Auth pipeline
		authProbe := probe.LogAuthProbe{Log: logger}
		jwks := auth.NewJWKSCache(cfg.OIDC.JWKSCacheTTL, nil, authProbe)
		validator := auth.NewTokenValidator(auth.TokenConfig{
			IssuerURL:     cfg.OIDC.IssuerURL,
			ClientID:      cfg.OIDC.ClientID,
			Audience:      cfg.OIDC.Audience,
			UserIDClaim:   cfg.OIDC.UserIDClaim,
			UsernameClaim: cfg.OIDC.UsernameClaim,
		}, jwks)

		iamService := iam.NewService(db, validator, userRepo, tenantRepo, apiKeyRepo, outboxRepo, engine, authProbe, iam.Config{
			SingleTenantMode:  cfg.Tenant.SingleTenantMode,
			DefaultTenantName: cfg.Tenant.DefaultName,
			APIKeyTag:         cfg.APIKey.Prefix,
		})

		// Application services
		directoryService := directory.NewService(db, tenantRepo, groupRepo, workspaceRepo, outboxRepo, engine)
		apiKeyService := apikeys.NewService(db, apiKeyRepo, outboxRepo,
			apikey.NewGenerator(cfg.APIKey.Prefix, cfg.APIKey.EntropyBytes))

		// Outbox worker and listener
		outboxProbe := probe.LogOutboxProbe{Log: logger}
		worker := outbox.NewWorker(db, outboxRepo, engine, outbox.DefaultComposite(), outboxProbe, outbox.WorkerConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval(),
			MaxAttempts:  cfg.Outbox.MaxAttempts,
		})
		listener := outbox.NewListener(db, outboxProbe)

		workerCtx, cancelWorker := context.WithCancel(cmd.Context())
		defer cancelWorker()

		wake := make(chan struct{}, 1)
		go func() {
			if err := worker.Run(workerCtx, wake); err != nil && workerCtx.Err() == nil {
				log.Printf("ERROR: outbox worker stopped: %v", err)
			}
		}()
		go func() {
			if err := listener.Run(workerCtx, wake); err != nil && workerCtx.Err() == nil {
				log.Printf("WARNING: outbox listener stopped, polling continues: %v", err)
			}
		}()

		r := server.NewRouter(server.RouterOptions{
			Authenticator: iamService,
			Directory:     directoryService,
			APIKeys:       apiKeyService,
			Engine:        engine,
		})

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.Server.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			cancelWorker()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
