package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_HttpRequest        = "rpc.http.request"
	Metric_Incr_ExceptionDetected  = "exceptions.detected"
	Metric_Incr_ExceptionResolved  = "exceptions.resolved"
	Metric_Incr_StatementGenerated = "reports.statement.generated"

	Metric_Gauge_PortfolioTotalValue = "portfolio.totalValue"
	Metric_Gauge_ValidatorCount      = "portfolio.validatorCount"
	Metric_Gauge_OpenExceptions      = "exceptions.open"

	Metric_Timing_HttpDuration         = "rpc.http.duration"
	Metric_Timing_SummaryBuildDuration = "portfolio.summary.duration"
	Metric_Timing_DetectorRunDuration  = "exceptions.scan.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"route", "statusCode"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ExceptionDetected,
			Labels: []string{"type", "severity"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ExceptionResolved,
			Labels: []string{"type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_StatementGenerated,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_PortfolioTotalValue,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_ValidatorCount,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_OpenExceptions,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"route"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_SummaryBuildDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_DetectorRunDuration,
			Labels: []string{},
		},
	},
}
