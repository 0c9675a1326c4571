// Package backtest replays candle history through a strategy and
// produces the trades and equity curve the same logic would have
// generated live.
package backtest

import (
	"context"
	"fmt"
	"io"
	"log"

	"spot-trader/internal/domain"
	"spot-trader/internal/execution"
	"spot-trader/internal/position"
	"spot-trader/internal/sizing"
	"spot-trader/internal/strategy"
)

// EquityPoint is one sample of the simulated account value.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
}

// Result holds the backtest output.
type Result struct {
	StrategyID     string
	Symbol         string
	InitialCapital float64
	FinalEquity    float64
	Trades         []*domain.TradeRecord
	EquityCurve    []EquityPoint
}

// Options configures an Engine.
type Options struct {
	Strategy strategy.Strategy
	Sizer    *sizing.Sizer
	Symbol   string
	// InitialCapital is the simulated starting balance.
	InitialCapital float64
	// CommissionRate and SlippageRate feed the simulated fills.
	// Zero means the executor defaults.
	CommissionRate float64
	SlippageRate   float64
	// MaxHoldBars force-closes a position held longer than this many
	// bars. Zero disables the limit.
	MaxHoldBars int
	Logger      *log.Logger
}

// Engine replays candles bar by bar. Each bar the strategy sees only
// the window up to and including that bar, so the simulation cannot
// look ahead.
type Engine struct {
	strat   strategy.Strategy
	sizer   *sizing.Sizer
	symbol  string
	capital float64
	maxHold int
	exec    *execution.PaperExecutor
	logger  *log.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Strategy == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	if opts.Sizer == nil {
		return nil, fmt.Errorf("backtest: sizer is required")
	}
	if opts.Symbol == "" {
		return nil, fmt.Errorf("backtest: symbol is required")
	}
	if opts.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest: initial capital must be positive, got %v", opts.InitialCapital)
	}
	if opts.MaxHoldBars < 0 {
		return nil, fmt.Errorf("backtest: max hold bars must not be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		strat:   opts.Strategy,
		sizer:   opts.Sizer,
		symbol:  opts.Symbol,
		capital: opts.InitialCapital,
		maxHold: opts.MaxHoldBars,
		exec: execution.NewPaperExecutor(execution.PaperOptions{
			CommissionRate: opts.CommissionRate,
			SlippageRate:   opts.SlippageRate,
			Logger:         logger,
		}),
		logger: logger,
	}, nil
}

// Run replays the candle series in order. Candles must be ascending by
// timestamp. A position still open after the last candle is closed at
// its close price.
func (e *Engine) Run(ctx context.Context, candles []domain.Candle) (*Result, error) {
	if len(candles) < e.strat.MinBars() {
		return nil, fmt.Errorf("backtest: %d candles, strategy needs at least %d", len(candles), e.strat.MinBars())
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].TimestampMs <= candles[i-1].TimestampMs {
			return nil, fmt.Errorf("backtest: candles not ascending at index %d", i)
		}
	}

	tracker, err := position.NewTracker(position.Options{
		Symbol:     e.symbol,
		StrategyID: e.strat.ID(),
		Mode:       domain.ModePaper,
		Executor:   e.exec,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		StrategyID:     e.strat.ID(),
		Symbol:         e.symbol,
		InitialCapital: e.capital,
	}

	balance := e.capital
	filter := domain.FilterState{}
	barsHeld := 0

	for i := e.strat.MinBars() - 1; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window := candles[:i+1]
		bar := candles[i]
		price := bar.Close

		if pos := tracker.Position(); pos != nil {
			barsHeld++
			if record := e.maybeClose(ctx, tracker, pos, window, barsHeld); record != nil {
				balance += record.PnL
				filter = domain.FilterState{LastTradeProfitable: record.Profitable()}
				result.Trades = append(result.Trades, record)
				barsHeld = 0
			}
		} else {
			var signal domain.Signal
			signal, filter = e.strat.Evaluate(window, filter)
			if side, ok := sideForSignal(signal); ok {
				e.open(ctx, tracker, window, side, balance)
			}
		}

		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			TimestampMs: bar.TimestampMs,
			Equity:      equityAt(balance, tracker.Position(), price),
		})
	}

	// Flatten whatever is still open at the end of the series.
	if tracker.Position() != nil {
		last := candles[len(candles)-1]
		record, err := tracker.Close(ctx, domain.ExitReasonEndOfPeriod, last.Close, last.TimestampMs)
		if err != nil {
			return nil, fmt.Errorf("backtest: final close: %w", err)
		}
		balance += record.PnL
		result.Trades = append(result.Trades, record)
		result.EquityCurve[len(result.EquityCurve)-1].Equity = balance
	}

	result.FinalEquity = balance
	return result, nil
}

// maybeClose applies the strategy exit rules and then the hold-time
// limit. Returns the trade record if the position was closed.
func (e *Engine) maybeClose(ctx context.Context, tracker *position.Tracker, pos *domain.Position, window []domain.Candle, barsHeld int) *domain.TradeRecord {
	bar := window[len(window)-1]

	reason := ""
	if close, r := e.strat.ShouldClose(pos, window); close {
		reason = r
	} else if e.maxHold > 0 && barsHeld >= e.maxHold {
		reason = domain.ExitReasonTimeout
	}
	if reason == "" {
		return nil
	}

	record, err := tracker.Close(ctx, reason, bar.Close, bar.TimestampMs)
	if err != nil {
		// Paper fills only fail on degenerate prices; skip the bar.
		e.logger.Printf("backtest close failed: %v", err)
		return nil
	}
	return record
}

func (e *Engine) open(ctx context.Context, tracker *position.Tracker, window []domain.Candle, side domain.Side, balance float64) {
	bar := window[len(window)-1]
	entry := bar.Close

	stop := e.strat.StopPrice(window, side)
	if stop <= 0 {
		// No stop level: degenerate stop selects the fixed-notional path.
		stop = entry
	}

	qty, method := e.sizer.Size(entry, stop, balance)
	if qty <= 0 {
		e.logger.Printf("backtest: sized to zero at %d, skipping entry", bar.TimestampMs)
		return
	}

	if _, err := tracker.Open(ctx, side, qty, entry, bar.TimestampMs, method); err != nil {
		e.logger.Printf("backtest open failed: %v", err)
	}
}

func sideForSignal(signal domain.Signal) (domain.Side, bool) {
	switch signal {
	case domain.SignalBuy:
		return domain.SideLong, true
	case domain.SignalSell:
		return domain.SideShort, true
	default:
		return "", false
	}
}

func equityAt(balance float64, pos *domain.Position, price float64) float64 {
	if pos == nil {
		return balance
	}
	return balance + pos.UnrealizedPnL(price)
}
