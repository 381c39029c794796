package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Market   Market   `mapstructure:"market"`
	Trading  Trading  `mapstructure:"trading"`
	Strategy Strategy `mapstructure:"strategy"`
	Equity   Equity   `mapstructure:"equity"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Market holds the configuration for the public market-data API.
type Market struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Interval       string  `mapstructure:"interval"`
	Candles        int     `mapstructure:"candles"`
}

// Server holds the configuration for the reporting web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the configuration for the paper account and the trading loop.
type Trading struct {
	Symbols                []string `mapstructure:"symbols"`
	QuoteCurrency          string   `mapstructure:"quote_currency"`
	StartingBalance        float64  `mapstructure:"starting_balance"`
	FeeRate                float64  `mapstructure:"fee_rate"`
	TradeAmount            float64  `mapstructure:"trade_amount"`
	TickInterval           int      `mapstructure:"tick_interval"`
	MaxPersistenceFailures int      `mapstructure:"max_persistence_failures"`
	Strategy               string   `mapstructure:"strategy"`
	ApiPort                int      `mapstructure:"api_port"`
}

// Strategy holds indicator periods and signal thresholds.
type Strategy struct {
	RSIPeriod     int     `mapstructure:"rsi_period"`
	EMAFast       int     `mapstructure:"ema_fast"`
	EMASlow       int     `mapstructure:"ema_slow"`
	MACDFast      int     `mapstructure:"macd_fast"`
	MACDSlow      int     `mapstructure:"macd_slow"`
	MACDSignal    int     `mapstructure:"macd_signal"`
	BBPeriod      int     `mapstructure:"bb_period"`
	BBStdDev      float64 `mapstructure:"bb_std_dev"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
}

// Equity holds the schedule of the equity recorder.
type Equity struct {
	Schedule string `mapstructure:"schedule"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("market.rate_limit", 10) // requests per second
	v.SetDefault("market.rate_limit_burst", 5)
	v.SetDefault("market.timeout_seconds", 30)
	v.SetDefault("market.interval", "1m")
	v.SetDefault("market.candles", 100)

	v.SetDefault("trading.symbols", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("trading.quote_currency", "USDT")
	v.SetDefault("trading.starting_balance", 10000.0)
	v.SetDefault("trading.fee_rate", 0.001)
	v.SetDefault("trading.trade_amount", 500.0)
	v.SetDefault("trading.tick_interval", 5)
	v.SetDefault("trading.max_persistence_failures", 3)
	v.SetDefault("trading.strategy", "rsi_ema_crossover")
	v.SetDefault("trading.api_port", 0)

	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.ema_fast", 12)
	v.SetDefault("strategy.ema_slow", 26)
	v.SetDefault("strategy.macd_fast", 12)
	v.SetDefault("strategy.macd_slow", 26)
	v.SetDefault("strategy.macd_signal", 9)
	v.SetDefault("strategy.bb_period", 20)
	v.SetDefault("strategy.bb_std_dev", 2.0)
	v.SetDefault("strategy.rsi_oversold", 30.0)
	v.SetDefault("strategy.rsi_overbought", 70.0)

	v.SetDefault("equity.schedule", "@every 30s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "console")
	v.SetDefault("logger.file", "data/paper-trader.log")
	v.SetDefault("logger.max_size", 10) // megabytes
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28) // days
	v.SetDefault("logger.compress", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "data/paper_trader.db")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults cover every key.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	err = config.Validate()
	return
}

// Validate checks the values the ledger depends on.
func (c Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return errors.New("trading.symbols must not be empty")
	}
	if c.Trading.StartingBalance <= 0 {
		return fmt.Errorf("trading.starting_balance must be positive, got %v", c.Trading.StartingBalance)
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be in [0, 1), got %v", c.Trading.FeeRate)
	}
	if c.Trading.TradeAmount <= 0 {
		return fmt.Errorf("trading.trade_amount must be positive, got %v", c.Trading.TradeAmount)
	}
	if c.Trading.TickInterval <= 0 {
		return fmt.Errorf("trading.tick_interval must be positive, got %d", c.Trading.TickInterval)
	}
	if c.Strategy.EMAFast >= c.Strategy.EMASlow {
		return fmt.Errorf("strategy.ema_fast (%d) must be shorter than strategy.ema_slow (%d)",
			c.Strategy.EMAFast, c.Strategy.EMASlow)
	}
	return nil
}
