package strategy

import (
	"errors"

	"spot-trader/internal/domain"
)

// Factory errors. All are configuration errors: fatal at startup,
// never recovered mid-run.
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrNonPositivePeriod   = errors.New("MA_CROSS periods must be positive")
	ErrFastNotBelowSlow    = errors.New("MA_CROSS requires fast_period < slow_period")
	ErrNonPositiveTarget   = errors.New("MA_CROSS take_profit_pct and stop_loss_pct must be positive")
	ErrNonPositiveLookback = errors.New("BREAKOUT lookbacks must be positive")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates parameter relationships per strategy type and returns a
// clear error for invalid configuration.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeMACross:
		return fromMACrossConfig(cfg)
	case domain.StrategyTypeBreakout:
		return fromBreakoutConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromMACrossConfig creates MACrossStrategy from config.
func fromMACrossConfig(cfg domain.StrategyConfig) (*MACrossStrategy, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, ErrNonPositivePeriod
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, ErrFastNotBelowSlow
	}
	if cfg.TakeProfitPct <= 0 || cfg.StopLossPct <= 0 {
		return nil, ErrNonPositiveTarget
	}

	return NewMACrossStrategy(cfg.FastPeriod, cfg.SlowPeriod, cfg.TakeProfitPct, cfg.StopLossPct), nil
}

// fromBreakoutConfig creates BreakoutStrategy from config.
// exit_lookback < entry_lookback is recommended but not enforced.
func fromBreakoutConfig(cfg domain.StrategyConfig) (*BreakoutStrategy, error) {
	if cfg.EntryLookback <= 0 || cfg.ExitLookback <= 0 {
		return nil, ErrNonPositiveLookback
	}

	return NewBreakoutStrategy(cfg.EntryLookback, cfg.ExitLookback, cfg.UseTurtleFilter), nil
}
