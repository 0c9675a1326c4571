// Package metrics computes performance statistics from completed
// trades and an equity curve.
package metrics

import (
	"math"
	"sort"

	"spot-trader/internal/backtest"
	"spot-trader/internal/domain"
)

// PeriodsPerYearHourly annualizes per-bar returns sampled hourly.
const PeriodsPerYearHourly = 365 * 24

// Summary holds the performance statistics of one trade series.
type Summary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	TotalPnL       float64
	TotalReturnPct float64
	// ProfitFactor is gross profit / gross loss. +Inf when there are
	// wins but no losses.
	ProfitFactor  float64
	AvgWin        float64
	AvgLoss       float64
	BestTradePnL  float64
	WorstTradePnL float64

	// MaxDrawdownPct is the largest peak-to-trough equity decline, in
	// percent of the peak.
	MaxDrawdownPct float64
	// SharpeRatio is the annualized mean/stddev of per-bar returns.
	SharpeRatio          float64
	MaxConsecutiveLosses int
}

// Compute calculates the summary for a trade series. The equity curve
// may be empty, in which case the drawdown and Sharpe fields stay
// zero. Equity samples are assumed hourly for annualization.
func Compute(trades []*domain.TradeRecord, equityCurve []backtest.EquityPoint, initialCapital float64) *Summary {
	return ComputeWithPeriods(trades, equityCurve, initialCapital, PeriodsPerYearHourly)
}

// ComputeWithPeriods is Compute with an explicit sampling frequency
// for Sharpe annualization.
func ComputeWithPeriods(trades []*domain.TradeRecord, equityCurve []backtest.EquityPoint, initialCapital float64, periodsPerYear float64) *Summary {
	s := &Summary{}

	// Sort trades deterministically by entry time, then trade ID.
	sorted := make([]*domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTimeMs != sorted[j].EntryTimeMs {
			return sorted[i].EntryTimeMs < sorted[j].EntryTimeMs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	s.TotalTrades = len(sorted)

	grossProfit := 0.0
	grossLoss := 0.0
	for i, t := range sorted {
		s.TotalPnL += t.PnL
		if i == 0 || t.PnL > s.BestTradePnL {
			s.BestTradePnL = t.PnL
		}
		if i == 0 || t.PnL < s.WorstTradePnL {
			s.WorstTradePnL = t.PnL
		}
		if t.Profitable() {
			s.Wins++
			grossProfit += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -grossLoss / float64(s.Losses)
	}
	s.ProfitFactor = computeProfitFactor(grossProfit, grossLoss)
	if initialCapital > 0 {
		s.TotalReturnPct = s.TotalPnL / initialCapital * 100
	}
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)
	s.MaxDrawdownPct = computeMaxDrawdown(equityCurve)
	s.SharpeRatio = computeSharpe(equityCurve, periodsPerYear)

	return s
}

// computeProfitFactor is gross profit over gross loss.
func computeProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss > 0 {
		return grossProfit / grossLoss
	}
	if grossProfit > 0 {
		return math.Inf(1)
	}
	return 0
}

// computeMaxConsecutiveLosses finds the longest losing streak in
// entry-time order.
func computeMaxConsecutiveLosses(trades []*domain.TradeRecord) int {
	maxStreak := 0
	streak := 0
	for _, t := range trades {
		if !t.Profitable() {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}

// computeMaxDrawdown finds the largest peak-to-trough decline in
// percent of the running peak.
func computeMaxDrawdown(curve []backtest.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// computeSharpe annualizes the mean over stddev of per-sample returns.
// Returns zero when there are fewer than two samples or no variance.
func computeSharpe(curve []backtest.EquityPoint, periodsPerYear float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}
