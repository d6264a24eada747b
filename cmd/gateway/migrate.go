package main

import (
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/persistence/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(cfg.Database.ConnString()); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return postgres.MigrationStatus(cfg.Database.ConnString())
		},
	})

	return cmd
}
