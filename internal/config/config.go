package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "LPSTAKE"

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	EthereumConfig   EthereumConfig
	SubgraphConfig   SubgraphConfig
	SchedulerConfig  SchedulerConfig
	GasTopUpConfig   GasTopUpConfig
	AdminConfig      AdminConfig
	RabbitMqConfig   RabbitMqConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type EthereumConfig struct {
	RpcUrl              string
	CustodyPrivateKey   string
	ChainId             int64
	SendMaxRetries      int
	ConfirmationTimeout time.Duration
}

type SubgraphConfig struct {
	Url     string
	ApiKey  string
	Timeout time.Duration
}

type SchedulerConfig struct {
	Disabled        bool
	Timezone        string
	PreventOverlap  bool
	DailySchedule   string
	WeeklySchedule  string
	MonthlySchedule string
}

type GasTopUpConfig struct {
	PageSize    int
	Concurrency int
	Max         int
	Amount      string
	Schedule    string
}

type AdminConfig struct {
	HttpPort  int
	ApiKey    string
	JwtSecret string
}

type RabbitMqConfig struct {
	Url      string
	Exchange string
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

var (
	Debug = "debug"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	EthereumRpcUrl              = "ethereum.rpc_url"
	EthereumCustodyPrivateKey   = "ethereum.custody_private_key"
	EthereumChainId             = "ethereum.chain_id"
	EthereumSendMaxRetries      = "ethereum.send_max_retries"
	EthereumConfirmationTimeout = "ethereum.confirmation_timeout"

	SubgraphUrl     = "subgraph.url"
	SubgraphApiKey  = "subgraph.api_key"
	SubgraphTimeout = "subgraph.timeout"

	SchedulerDisabled        = "scheduler.disabled"
	SchedulerTimezone        = "scheduler.timezone"
	SchedulerPreventOverlap  = "scheduler.prevent_overlap"
	SchedulerDailySchedule   = "scheduler.daily"
	SchedulerWeeklySchedule  = "scheduler.weekly"
	SchedulerMonthlySchedule = "scheduler.monthly"

	GasTopUpPageSize    = "gas_top_up.page_size"
	GasTopUpConcurrency = "gas_top_up.concurrency"
	GasTopUpMax         = "gas_top_up.max"
	GasTopUpAmount      = "gas_top_up.amount"
	GasTopUpSchedule    = "gas_top_up.schedule"

	AdminHttpPort  = "admin.http_port"
	AdminApiKey    = "admin.api_key"
	AdminJwtSecret = "admin.jwt_secret"

	RabbitMqUrl      = "rabbitmq.url"
	RabbitMqExchange = "rabbitmq.exchange"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

const (
	DefaultDailySchedule   = "0 9 * * *"
	DefaultWeeklySchedule  = "0 9 * * 1"
	DefaultMonthlySchedule = "0 9 1 * *"
	DefaultTimezone        = "UTC"

	DefaultGasTopUpPageSize    = 500
	DefaultGasTopUpConcurrency = 20

	DefaultSendMaxRetries      = 3
	DefaultConfirmationTimeout = 2 * time.Minute
	DefaultSubgraphTimeout     = 30 * time.Second

	DefaultRabbitMqExchange = "lpstake.events"
)

func init() {
	viper.SetDefault(SchedulerTimezone, DefaultTimezone)
	viper.SetDefault(SchedulerPreventOverlap, true)
	viper.SetDefault(SchedulerDailySchedule, DefaultDailySchedule)
	viper.SetDefault(SchedulerWeeklySchedule, DefaultWeeklySchedule)
	viper.SetDefault(SchedulerMonthlySchedule, DefaultMonthlySchedule)
	viper.SetDefault(GasTopUpPageSize, DefaultGasTopUpPageSize)
	viper.SetDefault(GasTopUpConcurrency, DefaultGasTopUpConcurrency)
	viper.SetDefault(EthereumSendMaxRetries, DefaultSendMaxRetries)
	viper.SetDefault(EthereumConfirmationTimeout, DefaultConfirmationTimeout)
	viper.SetDefault(SubgraphTimeout, DefaultSubgraphTimeout)
	viper.SetDefault(RabbitMqExchange, DefaultRabbitMqExchange)
	viper.SetDefault(DataDogStatsdSampleRate, 1.0)
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		EthereumConfig: EthereumConfig{
			RpcUrl:              viper.GetString(normalizeFlagName(EthereumRpcUrl)),
			CustodyPrivateKey:   viper.GetString(normalizeFlagName(EthereumCustodyPrivateKey)),
			ChainId:             viper.GetInt64(normalizeFlagName(EthereumChainId)),
			SendMaxRetries:      viper.GetInt(normalizeFlagName(EthereumSendMaxRetries)),
			ConfirmationTimeout: viper.GetDuration(normalizeFlagName(EthereumConfirmationTimeout)),
		},

		SubgraphConfig: SubgraphConfig{
			Url:     viper.GetString(normalizeFlagName(SubgraphUrl)),
			ApiKey:  viper.GetString(normalizeFlagName(SubgraphApiKey)),
			Timeout: viper.GetDuration(normalizeFlagName(SubgraphTimeout)),
		},

		SchedulerConfig: SchedulerConfig{
			Disabled:        viper.GetBool(normalizeFlagName(SchedulerDisabled)),
			Timezone:        viper.GetString(normalizeFlagName(SchedulerTimezone)),
			PreventOverlap:  viper.GetBool(normalizeFlagName(SchedulerPreventOverlap)),
			DailySchedule:   viper.GetString(normalizeFlagName(SchedulerDailySchedule)),
			WeeklySchedule:  viper.GetString(normalizeFlagName(SchedulerWeeklySchedule)),
			MonthlySchedule: viper.GetString(normalizeFlagName(SchedulerMonthlySchedule)),
		},

		GasTopUpConfig: GasTopUpConfig{
			PageSize:    viper.GetInt(normalizeFlagName(GasTopUpPageSize)),
			Concurrency: viper.GetInt(normalizeFlagName(GasTopUpConcurrency)),
			Max:         viper.GetInt(normalizeFlagName(GasTopUpMax)),
			Amount:      viper.GetString(normalizeFlagName(GasTopUpAmount)),
			Schedule:    viper.GetString(normalizeFlagName(GasTopUpSchedule)),
		},

		AdminConfig: AdminConfig{
			HttpPort:  viper.GetInt(normalizeFlagName(AdminHttpPort)),
			ApiKey:    viper.GetString(normalizeFlagName(AdminApiKey)),
			JwtSecret: viper.GetString(normalizeFlagName(AdminJwtSecret)),
		},

		RabbitMqConfig: RabbitMqConfig{
			Url:      viper.GetString(normalizeFlagName(RabbitMqUrl)),
			Exchange: viper.GetString(normalizeFlagName(RabbitMqExchange)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},
	}
}

// Validate checks settings every command depends on. Optional integrations
// (custody key, rabbitmq, metrics) are checked where they are constructed.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseConfig.Host == "" {
		errs = append(errs, fmt.Errorf("%s is required", DatabaseHost))
	}
	if c.DatabaseConfig.DbName == "" {
		errs = append(errs, fmt.Errorf("%s is required", DatabaseDbName))
	}
	if c.GasTopUpConfig.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", GasTopUpPageSize))
	}
	if c.GasTopUpConfig.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", GasTopUpConcurrency))
	}
	if c.GasTopUpConfig.Max < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", GasTopUpMax))
	}
	if _, err := time.LoadLocation(c.SchedulerConfig.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid %s '%s': %w", SchedulerTimezone, c.SchedulerConfig.Timezone, err))
	}
	return errors.Join(errs...)
}

func (c *Config) HasCustodyKey() bool {
	return c.EthereumConfig.CustodyPrivateKey != ""
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
