// File: cmd/server/main.go
package main

import (
	"context"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifelink_backend/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// newRootCommand builds the lifelink CLI. Without a subcommand it serves the API.
func newRootCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "lifelink",
		Short:         "LifeLink blood donation coordination backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cfg)
		},
	}
	load := func() *config.Config { return cfg }

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(load())
		},
	})
	cmd.AddCommand(newGrantAdminCommand(load))
	cmd.AddCommand(newExpireRequestsCommand(load))
	cmd.AddCommand(newSyncUsersCommand(load))

	return cmd
}

func startServer(cfg *config.Config) error {
	application, cleanup, err := initializeApplication(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := application.Logger

	if application.Search.Enabled() {
		if err := application.Search.EnsureIndex(context.Background()); err != nil {
			logger.Error("Failed to create Elasticsearch users index, directory search will use the store", zap.Error(err))
		}
	} else {
		logger.Info("Elasticsearch not configured, directory search will use the store.")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := application.Server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("Server shutdown complete.")
	return nil
}
