package reporting

import (
	"context"
	"sort"
	"time"

	"spot-trader/internal/domain"
	"spot-trader/internal/metrics"
	"spot-trader/internal/storage"
)

// Generator produces reports from stored trade records.
type Generator struct {
	tradeRecordStore storage.TradeRecordStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(tradeStore storage.TradeRecordStore) *Generator {
	return &Generator{
		tradeRecordStore: tradeStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for trades entered within [start, end].
func (g *Generator) Generate(ctx context.Context, startMs, endMs int64) (*Report, error) {
	trades, err := g.tradeRecordStore.GetByTimeRange(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	byStrategy := make(map[string][]*domain.TradeRecord)
	for _, t := range trades {
		byStrategy[t.StrategyID] = append(byStrategy[t.StrategyID], t)
	}

	strategyIDs := make([]string, 0, len(byStrategy))
	for id := range byStrategy {
		strategyIDs = append(strategyIDs, id)
	}
	sort.Strings(strategyIDs)

	rows := make([]StrategyRow, 0, len(strategyIDs))
	for _, id := range strategyIDs {
		rows = append(rows, strategyRow(id, byStrategy[id]))
	}

	return &Report{
		GeneratedAt:   g.now(),
		PeriodStartMs: startMs,
		PeriodEndMs:   endMs,
		TotalTrades:   len(trades),
		StrategyRows:  rows,
		Trades:        trades,
	}, nil
}

func strategyRow(strategyID string, trades []*domain.TradeRecord) StrategyRow {
	s := metrics.Compute(trades, nil, 0)
	return StrategyRow{
		StrategyID:           strategyID,
		TotalTrades:          s.TotalTrades,
		Wins:                 s.Wins,
		Losses:               s.Losses,
		WinRate:              s.WinRate,
		TotalPnL:             s.TotalPnL,
		ProfitFactor:         s.ProfitFactor,
		AvgWin:               s.AvgWin,
		AvgLoss:              s.AvgLoss,
		BestTradePnL:         s.BestTradePnL,
		WorstTradePnL:        s.WorstTradePnL,
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
	}
}
