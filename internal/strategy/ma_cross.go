package strategy

import (
	"fmt"

	"spot-trader/internal/domain"
)

// MACrossStrategy trades simple moving average crossovers.
// Buy on a golden cross (fast MA crossing above slow MA), sell on a
// death cross. Exits are percentage take-profit / stop-loss.
type MACrossStrategy struct {
	FastPeriod    int
	SlowPeriod    int
	TakeProfitPct float64
	StopLossPct   float64
}

// NewMACrossStrategy creates a new MACrossStrategy.
// Parameter relationships are validated by the factory.
func NewMACrossStrategy(fastPeriod, slowPeriod int, takeProfitPct, stopLossPct float64) *MACrossStrategy {
	return &MACrossStrategy{
		FastPeriod:    fastPeriod,
		SlowPeriod:    slowPeriod,
		TakeProfitPct: takeProfitPct,
		StopLossPct:   stopLossPct,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MACrossStrategy) ID() string {
	return fmt.Sprintf("MA_CROSS_f%d_s%d_tp%.1f_sl%.1f",
		s.FastPeriod, s.SlowPeriod, s.TakeProfitPct, s.StopLossPct)
}

// MinBars returns the minimum window length for crossover detection.
// The previous bar's slow MA needs slow_period bars ending one bar back.
func (s *MACrossStrategy) MinBars() int {
	return s.SlowPeriod + 1
}

// Evaluate detects a crossover between the previous and the latest bar:
//   - buy when previous fast <= previous slow AND current fast > current slow
//   - sell when previous fast >= previous slow AND current fast < current slow
//   - hold otherwise, and always hold on insufficient history
//
// The filter state is passed through unchanged; the turtle filter only
// applies to the breakout strategy.
func (s *MACrossStrategy) Evaluate(window []domain.Candle, state domain.FilterState) (domain.Signal, domain.FilterState) {
	if len(window) < s.MinBars() {
		return domain.SignalHold, state
	}

	closes := domain.Closes(window)
	prevCloses := closes[:len(closes)-1]

	fastCurr := sma(closes, s.FastPeriod)
	slowCurr := sma(closes, s.SlowPeriod)
	fastPrev := sma(prevCloses, s.FastPeriod)
	slowPrev := sma(prevCloses, s.SlowPeriod)

	switch {
	case fastPrev <= slowPrev && fastCurr > slowCurr:
		return domain.SignalBuy, state
	case fastPrev >= slowPrev && fastCurr < slowCurr:
		return domain.SignalSell, state
	default:
		return domain.SignalHold, state
	}
}

// ShouldClose closes when unrealized P&L percent reaches the take-profit
// threshold or falls to the stop-loss threshold. No time-based exit.
func (s *MACrossStrategy) ShouldClose(pos *domain.Position, window []domain.Candle) (bool, string) {
	if pos == nil || len(window) == 0 {
		return false, ""
	}

	currentPrice := window[len(window)-1].Close
	pnlPct := pos.UnrealizedPnLPct(currentPrice)

	if pnlPct >= s.TakeProfitPct {
		return true, domain.ExitReasonTakeProfit
	}
	if pnlPct <= -s.StopLossPct {
		return true, domain.ExitReasonStopLoss
	}

	return false, ""
}

// StopPrice returns 0: MA cross has no channel stop, so sizing falls back
// to fixed notional.
func (s *MACrossStrategy) StopPrice(_ []domain.Candle, _ domain.Side) float64 {
	return 0
}

// Ensure MACrossStrategy implements Strategy
var _ Strategy = (*MACrossStrategy)(nil)
