// Package reporting turns stored trade records into session reports.
package reporting

import (
	"time"

	"spot-trader/internal/domain"
)

// Report summarizes trading activity over a time range.
type Report struct {
	GeneratedAt time.Time

	// PeriodStartMs and PeriodEndMs bound the included trades by entry
	// time, inclusive.
	PeriodStartMs int64
	PeriodEndMs   int64

	TotalTrades int

	// StrategyRows aggregates per strategy, sorted by strategy ID.
	StrategyRows []StrategyRow

	// Trades lists every included round trip in entry-time order.
	Trades []*domain.TradeRecord
}

// StrategyRow is the per-strategy aggregate line.
type StrategyRow struct {
	StrategyID           string
	TotalTrades          int
	Wins                 int
	Losses               int
	WinRate              float64
	TotalPnL             float64
	ProfitFactor         float64
	AvgWin               float64
	AvgLoss              float64
	BestTradePnL         float64
	WorstTradePnL        float64
	MaxConsecutiveLosses int
}
