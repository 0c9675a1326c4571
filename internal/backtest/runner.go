package backtest

import (
	"context"
	"fmt"

	"spot-trader/internal/storage"
)

// Runner loads candle history from storage, replays it through the
// engine and persists the resulting trades.
type Runner struct {
	candles storage.CandleStore
	trades  storage.TradeRecordStore
}

// NewRunner creates a new backtest runner. The trade store may be nil
// when results should not be persisted.
func NewRunner(candles storage.CandleStore, trades storage.TradeRecordStore) *Runner {
	return &Runner{candles: candles, trades: trades}
}

// Run backtests the symbol over [from, to] and stores the trades.
func (r *Runner) Run(ctx context.Context, engine *Engine, symbol, interval string, from, to int64) (*Result, error) {
	candles, err := r.candles.GetByTimeRange(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}

	result, err := engine.Run(ctx, candles)
	if err != nil {
		return nil, err
	}

	if r.trades != nil && len(result.Trades) > 0 {
		if err := r.trades.InsertBulk(ctx, result.Trades); err != nil {
			return nil, fmt.Errorf("persist trades: %w", err)
		}
	}
	return result, nil
}
