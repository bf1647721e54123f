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
	Metric_Incr_RewardsJobRun         = "rewards_job_run"
	Metric_Incr_RewardsNotification   = "rewards_notification_sent"
	Metric_Incr_RewardsRecipientError = "rewards_recipient_error"
	Metric_Incr_GasTopUpWalletChecked = "gas_top_up_wallet_checked"
	Metric_Incr_GasTopUpWalletFunded  = "gas_top_up_wallet_funded"
	Metric_Incr_GasTopUpWalletError   = "gas_top_up_wallet_error"
	Metric_Incr_SchedulerJobSkipped   = "scheduler_job_skipped"
	Metric_Incr_HttpRequest           = "admin_http_request"

	Metric_Gauge_RewardsRecipients = "rewards_recipients"

	Metric_Timing_RewardsJobDuration = "rewards_job_duration"
	Metric_Timing_GasTopUpDuration   = "gas_top_up_duration"
	Metric_Timing_HttpDuration       = "admin_http_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsJobRun,
			Labels: []string{"period", "status"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsNotification,
			Labels: []string{"period"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsRecipientError,
			Labels: []string{"period"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_GasTopUpWalletChecked,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_GasTopUpWalletFunded,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_GasTopUpWalletError,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_SchedulerJobSkipped,
			Labels: []string{"job"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"route", "status"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_RewardsRecipients,
			Labels: []string{"period"},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_RewardsJobDuration,
			Labels: []string{"period"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_GasTopUpDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"route"},
		},
	},
}
