package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memohai/tglistener/internal/config"
	"github.com/memohai/tglistener/internal/db"
	"github.com/memohai/tglistener/internal/logger"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			if err := db.Migrate(cfg.Postgres); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.L.Info("migrations applied")
			return nil
		},
	}
}
