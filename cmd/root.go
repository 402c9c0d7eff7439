package cmd

import (
	"os"
	"strings"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stakewatch",
	Short: "Stakewatch serves rolled-up analytics and exception monitoring over an institutional staking portfolio",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "stakewatch", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "stakewatch", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7200, `http rpc port`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Float64(config.DetectorPortfolioValueChangeThreshold, 0, `Portfolio value change threshold (fraction; 0 uses the default 0.05)`)
	rootCmd.PersistentFlags().Float64(config.DetectorValidatorCountChangeThreshold, 0, `Validator count change threshold (fraction; 0 uses the default 0.10)`)
	rootCmd.PersistentFlags().Int(config.DetectorInTransitStuckThresholdDays, 0, `Days before an in-transit validator is stuck (0 uses the default 7)`)
	rootCmd.PersistentFlags().Float64(config.DetectorRewardsAnomalyThreshold, 0, `Rewards anomaly deviation threshold (fraction; 0 uses the default 0.30)`)
	rootCmd.PersistentFlags().Float64(config.DetectorPerformanceDivergenceThreshold, 0, `Custodian underperformance threshold (fraction; 0 uses the default 0.20)`)

	rootCmd.PersistentFlags().Float64(config.PortfolioNetworkBenchmarkApy, 0.032, `Network benchmark APY shown alongside portfolio yield`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(runStatementCmd)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(restoreSnapshotCmd)
	rootCmd.AddCommand(runVersionCmd)

	// bind any subcommand flags
	runStatementCmd.PersistentFlags().String(config.StatementMonth, "", `Statement month, e.g. "2026-07" (defaults to the previous month)`)
	runStatementCmd.PersistentFlags().String(config.StatementOutputFile, "", `Path to write the statement CSV to (required)`)

	createSnapshotCmd.PersistentFlags().String(config.SnapshotOutputFile, "", "Path to save the snapshot file to (required)")
	restoreSnapshotCmd.PersistentFlags().String(config.SnapshotInputFile, "", "Path to the snapshot file (required)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
