package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetEnvPrefix(ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(SchedulerTimezone, DefaultTimezone)
	viper.SetDefault(SchedulerPreventOverlap, true)
	viper.SetDefault(SchedulerDailySchedule, DefaultDailySchedule)
	viper.SetDefault(GasTopUpPageSize, DefaultGasTopUpPageSize)
	viper.SetDefault(GasTopUpConcurrency, DefaultGasTopUpConcurrency)
	viper.SetDefault(EthereumConfirmationTimeout, DefaultConfirmationTimeout)
}

func Test_Config(t *testing.T) {
	t.Run("Reads prefixed environment variables", func(t *testing.T) {
		resetViper(t)
		t.Setenv("LPSTAKE_DATABASE_HOST", "db.internal")
		t.Setenv("LPSTAKE_DATABASE_DB_NAME", "lpstake")
		t.Setenv("LPSTAKE_GAS_TOP_UP_CONCURRENCY", "5")
		t.Setenv("LPSTAKE_SCHEDULER_TIMEZONE", "Europe/Berlin")
		t.Setenv("LPSTAKE_ETHEREUM_CONFIRMATION_TIMEOUT", "30s")

		cfg := NewConfig()

		assert.Equal(t, "db.internal", cfg.DatabaseConfig.Host)
		assert.Equal(t, "lpstake", cfg.DatabaseConfig.DbName)
		assert.Equal(t, 5, cfg.GasTopUpConfig.Concurrency)
		assert.Equal(t, DefaultGasTopUpPageSize, cfg.GasTopUpConfig.PageSize)
		assert.Equal(t, "Europe/Berlin", cfg.SchedulerConfig.Timezone)
		assert.Equal(t, DefaultDailySchedule, cfg.SchedulerConfig.DailySchedule)
		assert.Equal(t, 30*time.Second, cfg.EthereumConfig.ConfirmationTimeout)
		assert.True(t, cfg.SchedulerConfig.PreventOverlap)
		assert.Nil(t, cfg.Validate())
	})
	t.Run("Validate reports every problem", func(t *testing.T) {
		resetViper(t)
		t.Setenv("LPSTAKE_GAS_TOP_UP_PAGE_SIZE", "0")
		t.Setenv("LPSTAKE_SCHEDULER_TIMEZONE", "Mars/Olympus")

		err := NewConfig().Validate()
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), DatabaseHost)
		assert.Contains(t, err.Error(), GasTopUpPageSize)
		assert.Contains(t, err.Error(), "Mars/Olympus")
	})
	t.Run("KebabToSnakeCase", func(t *testing.T) {
		assert.Equal(t, "gas_top_up.page_size", KebabToSnakeCase("gas-top-up.page-size"))
	})
}
