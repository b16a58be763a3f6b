package main

import (
	"fmt"

	"slotbook/internal/config"
	"slotbook/internal/db"
	"slotbook/internal/logger"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var (
		down    int
		version bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (or roll back with --down N)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			database, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.Close()

			switch {
			case version:
				v, dirty, err := db.MigrationVersion(database, cfg.MigrationsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			case down > 0:
				if err := db.RollbackMigrations(database, cfg.MigrationsPath, down); err != nil {
					return err
				}
				logger.Info("Migrations rolled back", "steps", down)
				return nil
			}

			if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
				return err
			}
			logger.Info("Migrations completed")
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	cmd.Flags().BoolVar(&version, "version", false, "print the applied schema version")
	return cmd
}
