package main

import (
	"github.com/fjod/cybershop/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.RunMigrations(); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
