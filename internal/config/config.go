// Package config loads runtime configuration from a YAML file with
// environment overrides. Secrets (API keys, DSNs) come from the
// environment only and never land in the file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"spot-trader/internal/domain"
)

// ErrInvalidConfig marks any validation failure. Startup aborts on it.
var ErrInvalidConfig = errors.New("invalid configuration")

// Strategy holds the per-strategy tuning knobs.
type Strategy struct {
	Type            string  `yaml:"type"`
	FastPeriod      int     `yaml:"fast_period"`
	SlowPeriod      int     `yaml:"slow_period"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	EntryLookback   int     `yaml:"entry_lookback"`
	ExitLookback    int     `yaml:"exit_lookback"`
	UseTurtleFilter bool    `yaml:"use_turtle_filter"`
}

// Sizing holds position sizing parameters.
type Sizing struct {
	RiskPerTrade     float64 `yaml:"risk_per_trade"`
	FixedTradeAmount float64 `yaml:"fixed_trade_amount"`
	SafetyMargin     float64 `yaml:"safety_margin"`
}

// Exchange holds connectivity and instrument settings.
type Exchange struct {
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	BaseURL   string `yaml:"base_url"`
	WSURL     string `yaml:"ws_url"`
	QtyStep   string `yaml:"qty_step"`
}

// Backtest holds simulation cost and capital assumptions.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionRate float64 `yaml:"commission_rate"`
	SlippageRate   float64 `yaml:"slippage_rate"`
}

// Storage holds datastore DSNs. Both are optional; empty means the
// in-memory stores are used.
type Storage struct {
	PostgresDSN   string `yaml:"-"`
	ClickHouseDSN string `yaml:"-"`
}

// Config is the full runtime configuration.
type Config struct {
	Symbol       string        `yaml:"symbol"`
	Interval     string        `yaml:"interval"`
	Mode         string        `yaml:"mode"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxHoldBars  int           `yaml:"max_hold_bars"`
	MetricsAddr  string        `yaml:"metrics_addr"`

	Strategy Strategy `yaml:"strategy"`
	Sizing   Sizing   `yaml:"sizing"`
	Exchange Exchange `yaml:"exchange"`
	Backtest Backtest `yaml:"backtest"`
	Storage  Storage  `yaml:"storage"`
}

// Default returns a config populated with the stock parameter set.
func Default() *Config {
	return &Config{
		Symbol:       "BTCUSDT",
		Interval:     domain.Interval1Hour,
		Mode:         domain.ModePaper,
		PollInterval: time.Minute,
		MaxHoldBars:  0,
		MetricsAddr:  ":9090",
		Strategy: Strategy{
			Type:            domain.StrategyTypeMACross,
			FastPeriod:      10,
			SlowPeriod:      30,
			TakeProfitPct:   2.0,
			StopLossPct:     1.0,
			EntryLookback:   20,
			ExitLookback:    10,
			UseTurtleFilter: true,
		},
		Sizing: Sizing{
			RiskPerTrade:     0.01,
			FixedTradeAmount: 100,
			SafetyMargin:     0.95,
		},
		Exchange: Exchange{
			BaseURL: "https://api.bybit.com",
			WSURL:   "wss://stream.bybit.com/v5/public/spot",
			QtyStep: "0.000001",
		},
		Backtest: Backtest{
			InitialCapital: 10_000,
			CommissionRate: 0.0006,
			SlippageRate:   0.0001,
		},
	}
}

// Load builds a config from defaults, an optional YAML file and
// environment overrides, then validates the result. A missing .env
// file is not an error.
func Load(path string, logger *log.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Printf("no .env file loaded: %v", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Symbol, "TRADER_SYMBOL")
	setString(&c.Interval, "TRADER_INTERVAL")
	setString(&c.Mode, "TRADER_MODE")
	setString(&c.MetricsAddr, "TRADER_METRICS_ADDR")
	setString(&c.Exchange.APIKey, "BYBIT_API_KEY")
	setString(&c.Exchange.APISecret, "BYBIT_API_SECRET")
	setString(&c.Exchange.BaseURL, "BYBIT_BASE_URL")
	setString(&c.Exchange.WSURL, "BYBIT_WS_URL")
	setString(&c.Storage.PostgresDSN, "TRADER_POSTGRES_DSN")
	setString(&c.Storage.ClickHouseDSN, "TRADER_CLICKHOUSE_DSN")
	setFloat(&c.Sizing.RiskPerTrade, "TRADER_RISK_PER_TRADE")
	setInt(&c.MaxHoldBars, "TRADER_MAX_HOLD_BARS")
	if v := os.Getenv("TRADER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks cross-field consistency. Strategy parameter checks
// proper to a single strategy are re-validated by the strategy
// factory; this catches everything a factory never sees.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	switch c.Interval {
	case domain.Interval5Min, domain.Interval1Hour, domain.Interval1Day:
	default:
		return fmt.Errorf("%w: unsupported interval %q", ErrInvalidConfig, c.Interval)
	}
	switch c.Mode {
	case domain.ModePaper, domain.ModeLive:
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, domain.ModePaper, domain.ModeLive, c.Mode)
	}
	if c.Mode == domain.ModeLive && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("%w: live mode requires BYBIT_API_KEY and BYBIT_API_SECRET", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	if c.MaxHoldBars < 0 {
		return fmt.Errorf("%w: max_hold_bars must not be negative", ErrInvalidConfig)
	}
	if c.Sizing.RiskPerTrade <= 0 || c.Sizing.RiskPerTrade > 1 {
		return fmt.Errorf("%w: risk_per_trade must be in (0, 1]", ErrInvalidConfig)
	}
	if c.Sizing.FixedTradeAmount <= 0 {
		return fmt.Errorf("%w: fixed_trade_amount must be positive", ErrInvalidConfig)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", ErrInvalidConfig)
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.SlippageRate < 0 {
		return fmt.Errorf("%w: commission and slippage must not be negative", ErrInvalidConfig)
	}
	return nil
}

// StrategyConfig converts the strategy section into the factory input.
func (c *Config) StrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType:    c.Strategy.Type,
		Symbol:          c.Symbol,
		FastPeriod:      c.Strategy.FastPeriod,
		SlowPeriod:      c.Strategy.SlowPeriod,
		TakeProfitPct:   c.Strategy.TakeProfitPct,
		StopLossPct:     c.Strategy.StopLossPct,
		EntryLookback:   c.Strategy.EntryLookback,
		ExitLookback:    c.Strategy.ExitLookback,
		UseTurtleFilter: c.Strategy.UseTurtleFilter,
	}
}
