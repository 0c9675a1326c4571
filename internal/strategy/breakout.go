package strategy

import (
	"fmt"

	"spot-trader/internal/domain"
)

// BreakoutStrategy trades N-period channel breakouts.
// Entry when the latest close exceeds the highest high (or falls below
// the lowest low) of the trailing entry_lookback candles, the current
// candle excluded. Exit on channel reversal over exit_lookback.
type BreakoutStrategy struct {
	EntryLookback   int
	ExitLookback    int
	UseTurtleFilter bool
}

// NewBreakoutStrategy creates a new BreakoutStrategy.
// Parameter relationships are validated by the factory.
func NewBreakoutStrategy(entryLookback, exitLookback int, useTurtleFilter bool) *BreakoutStrategy {
	return &BreakoutStrategy{
		EntryLookback:   entryLookback,
		ExitLookback:    exitLookback,
		UseTurtleFilter: useTurtleFilter,
	}
}

// ID returns the strategy identifier including parameters.
func (s *BreakoutStrategy) ID() string {
	filter := "nofilter"
	if s.UseTurtleFilter {
		filter = "turtle"
	}
	return fmt.Sprintf("BREAKOUT_e%d_x%d_%s", s.EntryLookback, s.ExitLookback, filter)
}

// MinBars returns the minimum window length for an entry decision.
func (s *BreakoutStrategy) MinBars() int {
	return s.EntryLookback + 1
}

// Evaluate computes the breakout signal:
//   - hold on insufficient history (filter state untouched)
//   - if the turtle filter is enabled and the last trade was profitable,
//     hold and consume the suppression exactly once, regardless of
//     whether a breakout would otherwise have fired
//   - buy when the latest close exceeds the entry channel high
//   - sell when the latest close falls below the entry channel low
func (s *BreakoutStrategy) Evaluate(window []domain.Candle, state domain.FilterState) (domain.Signal, domain.FilterState) {
	levels, ok := channelLevels(window, s.EntryLookback)
	if !ok {
		return domain.SignalHold, state
	}

	if s.UseTurtleFilter && state.LastTradeProfitable {
		return domain.SignalHold, domain.FilterState{LastTradeProfitable: false}
	}

	currentPrice := window[len(window)-1].Close

	switch {
	case currentPrice > levels.HighestHigh:
		return domain.SignalBuy, state
	case currentPrice < levels.LowestLow:
		return domain.SignalSell, state
	default:
		return domain.SignalHold, state
	}
}

// ShouldClose is a pure channel-reversal exit: a long closes when the
// latest close falls below the exit channel low, a short when it rises
// above the exit channel high. There is no percentage take-profit or
// stop-loss for this strategy.
func (s *BreakoutStrategy) ShouldClose(pos *domain.Position, window []domain.Candle) (bool, string) {
	if pos == nil {
		return false, ""
	}

	levels, ok := channelLevels(window, s.ExitLookback)
	if !ok {
		return false, ""
	}

	currentPrice := window[len(window)-1].Close

	switch pos.Side {
	case domain.SideLong:
		if currentPrice < levels.LowestLow {
			return true, domain.ExitReasonOppositeBreakout
		}
	case domain.SideShort:
		if currentPrice > levels.HighestHigh {
			return true, domain.ExitReasonOppositeBreakout
		}
	}

	return false, ""
}

// StopPrice returns the exit channel level a fresh position in the given
// direction would be stopped at: the exit low for a long, the exit high
// for a short. Returns 0 when the window is too short.
func (s *BreakoutStrategy) StopPrice(window []domain.Candle, side domain.Side) float64 {
	levels, ok := channelLevels(window, s.ExitLookback)
	if !ok {
		return 0
	}

	if side == domain.SideShort {
		return levels.HighestHigh
	}
	return levels.LowestLow
}

// Ensure BreakoutStrategy implements Strategy
var _ Strategy = (*BreakoutStrategy)(nil)
