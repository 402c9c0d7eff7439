package config

import (
	"regexp"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "STAKEWATCH"

// Flag names, kebab-case as registered on the command line. Viper keys are the
// snake_case form produced by KebabToSnakeCase.
const (
	Debug = "debug"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db-name"
	DatabaseSchemaName = "database.schema-name"

	RpcHttpPort = "rpc.http-port"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	DetectorPortfolioValueChangeThreshold  = "detectors.portfolio-value-change-threshold"
	DetectorValidatorCountChangeThreshold  = "detectors.validator-count-change-threshold"
	DetectorInTransitStuckThresholdDays    = "detectors.in-transit-stuck-threshold-days"
	DetectorRewardsAnomalyThreshold        = "detectors.rewards-anomaly-threshold"
	DetectorPerformanceDivergenceThreshold = "detectors.performance-divergence-threshold"

	PortfolioNetworkBenchmarkApy = "portfolio.network-benchmark-apy"

	StatementMonth      = "statement.month"
	StatementOutputFile = "statement.output-file"

	SnapshotOutputFile = "snapshot.output-file"
	SnapshotInputFile  = "snapshot.input-file"
)

var kebabChars = regexp.MustCompile(`[-.]`)

func KebabToSnakeCase(s string) string {
	return kebabChars.ReplaceAllString(s, "_")
}

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	RpcConfig        RpcConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	DetectorConfig   DetectorConfig
	PortfolioConfig  PortfolioConfig
	StatementConfig  StatementConfig
	SnapshotConfig   SnapshotConfig
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type RpcConfig struct {
	HttpPort int
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

// DetectorConfig carries the exception-detector thresholds. Zero values mean
// "use the detector default"; the exceptions package performs the merge.
type DetectorConfig struct {
	PortfolioValueChangeThreshold  float64
	ValidatorCountChangeThreshold  float64
	InTransitStuckThresholdDays    int
	RewardsAnomalyThreshold        float64
	PerformanceDivergenceThreshold float64
}

type PortfolioConfig struct {
	NetworkBenchmarkApy float64
}

type StatementConfig struct {
	Month      string
	OutputFile string
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

func get(key string) string {
	return KebabToSnakeCase(key)
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(get(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(get(DatabaseHost)),
			Port:       viper.GetInt(get(DatabasePort)),
			User:       viper.GetString(get(DatabaseUser)),
			Password:   viper.GetString(get(DatabasePassword)),
			DbName:     viper.GetString(get(DatabaseDbName)),
			SchemaName: viper.GetString(get(DatabaseSchemaName)),
		},

		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(get(RpcHttpPort)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(get(PrometheusEnabled)),
			Port:    viper.GetInt(get(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(get(DataDogStatsdEnabled)),
				Url:        viper.GetString(get(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(get(DataDogStatsdSampleRate)),
			},
		},

		DetectorConfig: DetectorConfig{
			PortfolioValueChangeThreshold:  viper.GetFloat64(get(DetectorPortfolioValueChangeThreshold)),
			ValidatorCountChangeThreshold:  viper.GetFloat64(get(DetectorValidatorCountChangeThreshold)),
			InTransitStuckThresholdDays:    viper.GetInt(get(DetectorInTransitStuckThresholdDays)),
			RewardsAnomalyThreshold:        viper.GetFloat64(get(DetectorRewardsAnomalyThreshold)),
			PerformanceDivergenceThreshold: viper.GetFloat64(get(DetectorPerformanceDivergenceThreshold)),
		},

		PortfolioConfig: PortfolioConfig{
			NetworkBenchmarkApy: viper.GetFloat64(get(PortfolioNetworkBenchmarkApy)),
		},

		StatementConfig: StatementConfig{
			Month:      viper.GetString(get(StatementMonth)),
			OutputFile: viper.GetString(get(StatementOutputFile)),
		},

		SnapshotConfig: SnapshotConfig{
			OutputFile: viper.GetString(get(SnapshotOutputFile)),
			InputFile:  viper.GetString(get(SnapshotInputFile)),
		},
	}
}
