// File: cmd/server/commands.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lifelink_backend/internal/config"
)

func newGrantAdminCommand(load func() *config.Config) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "grant-admin [uid]",
		Short: "Make a user a blood bank administrator",
		Long: `Grant the admin role to an existing user, identified either by uid or by
the email address registered with Firebase Authentication. Admin is never
self-assignable through the API.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (email != "") {
				return fmt.Errorf("give exactly one of a uid argument or --email")
			}
			application, cleanup, err := initializeApplication(load())
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			var uid string
			if len(args) == 1 {
				uid = args[0]
			} else {
				uid, err = application.Firebase.LookupUIDByEmail(ctx, email)
				if err != nil {
					return err
				}
			}

			u, err := application.Engine.GrantAdmin(ctx, uid)
			if err != nil {
				return err
			}
			application.Logger.Info("Admin role granted", zap.String("uid", u.ID), zap.String("email", u.Email))
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "look the user up by email instead of uid")
	return cmd
}

func newExpireRequestsCommand(load func() *config.Config) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "expire-requests",
		Short: "Expire pending requests older than the threshold once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			olderThan := cfg.RequestExpiry()
			if hours > 0 {
				olderThan = time.Duration(hours) * time.Hour
			}
			application, cleanup, err := initializeApplication(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := application.Engine.ExpireStaleRequests(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			application.Logger.Info("Stale requests expired", zap.Int("count", n), zap.Duration("older_than", olderThan))
			fmt.Fprintf(cmd.OutOrStdout(), "%d requests expired\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "older-than-hours", 0, "override REQUEST_EXPIRY_HOURS")
	return cmd
}

func newSyncUsersCommand(load func() *config.Config) *cobra.Command {
	var (
		batchSize int
		esRefresh string
	)

	cmd := &cobra.Command{
		Use:   "sync-users",
		Short: "Reindex every user profile into Elasticsearch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := initializeApplication(load())
			if err != nil {
				return err
			}
			defer cleanup()

			if !application.Search.Enabled() {
				return fmt.Errorf("ELASTICSEARCH_URL is not set")
			}
			ctx := cmd.Context()
			if err := application.Search.EnsureIndex(ctx); err != nil {
				return fmt.Errorf("create users index: %w", err)
			}
			n, err := application.Search.SyncUsers(ctx, batchSize, esRefresh)
			if err != nil {
				return err
			}
			application.Logger.Info("User synchronization completed successfully.", zap.Int("synced", n))
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "users per bulk request")
	cmd.Flags().StringVar(&esRefresh, "es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
	return cmd
}
