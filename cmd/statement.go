package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/logger"
	"github.com/clearstake/stakewatch/pkg/postgres"
	"github.com/clearstake/stakewatch/pkg/postgres/migrations"
	"github.com/clearstake/stakewatch/pkg/service/portfolioDataService"
	pgStorage "github.com/clearstake/stakewatch/pkg/storage/postgres"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runStatementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Generate a monthly custodian statement as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunStatementCmd(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.StatementConfig.OutputFile == "" {
			return errors.New("output file is required")
		}

		month := cfg.StatementConfig.Month
		if month == "" {
			month = time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
		}

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)

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

		store := pgStorage.NewPostgresPortfolioStore(grm, l)
		portfolioService := portfolioDataService.NewPortfolioDataService(store, l, cfg)

		statement, err := portfolioService.GetMonthlyStatement(ctx, month)
		if err != nil {
			return errors.Wrap(err, "failed to build statement")
		}

		if err := statement.WriteCsvFile(cfg.StatementConfig.OutputFile); err != nil {
			return err
		}

		l.Sugar().Infow("Wrote statement",
			zap.String("month", month),
			zap.String("outputFile", cfg.StatementConfig.OutputFile),
			zap.Int("custodians", len(statement.Rows)),
		)
		return nil
	},
}

func initRunStatementCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
