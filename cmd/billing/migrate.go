package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription/pgstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `migrate applies the embedded schema migrations for subscriptions, plan prices
and payments. Set PG_MIGRATIONS_PATH to apply migrations from a directory instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFiles(cmd); err != nil {
				return err
			}
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			var pgCfg pg.Config
			if err := config.Load(&pgCfg); err != nil {
				return fmt.Errorf("postgres config: %w", err)
			}

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if pgCfg.MigrationsPath != "" {
				err = pg.Migrate(ctx, pool, pgCfg, log)
			} else {
				err = pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log)
			}
			if err != nil {
				log.ErrorContext(ctx, "migration failed", logger.Error(err))
				return err
			}
			log.InfoContext(ctx, "database is up to date")
			return nil
		},
	}
}
