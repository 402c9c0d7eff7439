package cmd

import (
	"fmt"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/logger"
	"github.com/clearstake/stakewatch/pkg/postgres"
	"github.com/clearstake/stakewatch/pkg/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunDatabaseCmd(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Sugar().Fatalw("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err = migrator.MigrateAll(); err != nil {
			l.Sugar().Fatalw("Failed to migrate", zap.Error(err))
		}

		l.Sugar().Infow("Database is up to date")
		return nil
	},
}

func initRunDatabaseCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
