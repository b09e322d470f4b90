package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/auth-server/internal/api"
	"github.com/dom/auth-server/internal/config"
	"github.com/dom/auth-server/internal/logging"
	"github.com/dom/auth-server/internal/mailer"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/repository/cache"
	"github.com/dom/auth-server/internal/repository/memory"
	"github.com/dom/auth-server/internal/repository/postgres"
	"github.com/dom/auth-server/internal/security"
	"github.com/dom/auth-server/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "auth-server",
		Short:         "Session and token authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			return serve(cmd.Context(), cfg, log, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "run database migrations before serving")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

			db, err := postgres.NewConnection(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			if err := postgres.Migrate(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) error {
	repos, closeStore, err := openStore(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer closeStore()

	sender, err := mailer.New(mailer.Config{
		Provider:       cfg.MailProvider,
		From:           cfg.MailFrom,
		MailgunDomain:  cfg.MailgunDomain,
		MailgunAPIKey:  cfg.MailgunAPIKey,
		SendGridAPIKey: cfg.SendGridAPIKey,
	}, log.WithField("component", "mailer"))
	if err != nil {
		return fmt.Errorf("failed to configure mailer: %w", err)
	}

	services, err := service.NewServices(repos, cfg, service.Dependencies{
		Hasher: security.NewBcryptHasher(cfg.BcryptCost),
		Mailer: sender,
		Logger: log.WithField("component", "auth"),
	})
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      api.NewRouter(services, cfg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "storage": cfg.Storage}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore builds the credential store named by cfg.Storage, putting the redis
// session cache in front of it when REDIS_URL is set.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) (*repository.Repositories, func(), error) {
	var repos *repository.Repositories
	closers := []func(){}

	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage; all data is lost on restart")
		repos = memory.NewRepositories(memory.NewStore())
	default:
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if migrate {
			if err := postgres.Migrate(db); err != nil {
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { sqlDB.Close() })
		}
		repos = postgres.NewRepositories(db)
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		repos.Session = cache.NewSessionRepository(repos.Session, client, cfg.SessionCacheTTL, log.WithField("component", "session-cache"))
	}

	return repos, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
