package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"productflow/internal/config"
	"productflow/internal/store"
)

// productflow migrate [up|down]
var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the embedded PostgreSQL migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cfg.StoreDriver != config.StoreDriverPostgres {
			return errors.New("migrate requires STORE_DRIVER=postgres")
		}

		db, err := openPostgres(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		if direction == "down" {
			err = store.MigrateDown(db)
		} else {
			err = store.MigrateUp(db)
		}
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("direction", direction))
		return nil
	},
}
