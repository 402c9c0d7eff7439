package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/logger"
	"github.com/clearstake/stakewatch/internal/metrics"
	"github.com/clearstake/stakewatch/internal/metrics/prometheus"
	"github.com/clearstake/stakewatch/internal/shutdown"
	"github.com/clearstake/stakewatch/pkg/apiServer"
	"github.com/clearstake/stakewatch/pkg/postgres"
	"github.com/clearstake/stakewatch/pkg/postgres/migrations"
	"github.com/clearstake/stakewatch/pkg/service/exceptionsDataService"
	"github.com/clearstake/stakewatch/pkg/service/portfolioDataService"
	pgStorage "github.com/clearstake/stakewatch/pkg/storage/postgres"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stakewatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		initRunCmd(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatal("Failed to setup metrics sink", zap.Error(err))
		}

		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatal("Failed to setup metrics sink", zap.Error(err))
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
		exceptionsService := exceptionsDataService.NewExceptionsDataService(store, l, cfg)

		srv := apiServer.NewApiServer(cfg, portfolioService, exceptionsService, sink, l)

		// channel to notify the api server to shutdown gracefully
		apiChannel := make(chan bool)
		if err := srv.Start(ctx, apiChannel); err != nil {
			l.Sugar().Fatalw("Failed to start api server", zap.Error(err))
		}

		promChannel := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := pServer.Start(promChannel); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Info("Started stakewatch")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			apiChannel <- true
			if cfg.PrometheusConfig.Enabled {
				promChannel <- true
			}
		}, time.Second*5, l)
		return nil
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
