package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Mock     MockConfig     `mapstructure:"mock"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ExchangeConfig 描述交易所后端的选择与连接信息。
// mode 取值 mock、ccxt 或 rest，运行期不可切换。
type ExchangeConfig struct {
	Mode      string      `mapstructure:"mode"`
	APIKey    string      `mapstructure:"api_key"`
	APISecret string      `mapstructure:"api_secret"`
	Sandbox   bool        `mapstructure:"sandbox"`
	Retry     RetryConfig `mapstructure:"retry"`
	Rest      RestConfig  `mapstructure:"rest"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	MaxElapsed     time.Duration `mapstructure:"max_elapsed"`
	RetryableCodes []int         `mapstructure:"retryable_codes"`
}

// RestConfig 控制原生 REST 后端的连接参数。
// base_url 为空时按 sandbox 自动选择测试网或主网。
type RestConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	RecvWindow  time.Duration `mapstructure:"recv_window"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// LimitsConfig 描述下单数量的硬边界。
type LimitsConfig struct {
	MinQuantity decimal.Decimal `mapstructure:"min_quantity"`
	MaxQuantity decimal.Decimal `mapstructure:"max_quantity"`
}

// MockConfig 控制模拟交易所的种子资金与随机序列。
type MockConfig struct {
	Seed     int64                      `mapstructure:"seed"`
	Balances map[string]decimal.Decimal `mapstructure:"balances"`
}

// JournalConfig 管理订单流水库。
type JournalConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	InMemory        bool          `mapstructure:"in_memory"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	switch c.Exchange.Mode {
	case "mock", "ccxt", "rest":
	default:
		err = multierr.Append(err, fmt.Errorf("exchange.mode 必须为 mock、ccxt 或 rest, 当前为 %q", c.Exchange.Mode))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.Retry.MaxElapsed < 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_elapsed 不能为负"))
	}
	if c.Exchange.Rest.RecvWindow <= 0 {
		err = multierr.Append(err, errors.New("exchange.rest.recv_window 必须大于0"))
	}
	if c.Exchange.Rest.HTTPTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.rest.http_timeout 必须大于0"))
	}
	if !c.Limits.MinQuantity.IsPositive() {
		err = multierr.Append(err, errors.New("limits.min_quantity 必须大于0"))
	}
	if c.Limits.MaxQuantity.LessThanOrEqual(c.Limits.MinQuantity) {
		err = multierr.Append(err, errors.New("limits.max_quantity 必须大于 min_quantity"))
	}
	for asset, amount := range c.Mock.Balances {
		if amount.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("mock.balances.%s 不能为负", asset))
		}
	}
	if c.Journal.Enabled {
		if c.Journal.Path == "" && !c.Journal.InMemory {
			err = multierr.Append(err, errors.New("journal.path 不能为空"))
		}
		if c.Journal.MaxOpenConns <= 0 {
			err = multierr.Append(err, errors.New("journal.max_open_conns 必须大于0"))
		}
		if c.Journal.MaxIdleConns < 0 {
			err = multierr.Append(err, errors.New("journal.max_idle_conns 不能为负"))
		}
		if c.Journal.ConnMaxLifetime < 0 {
			err = multierr.Append(err, errors.New("journal.conn_max_lifetime 不能为负"))
		}
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
