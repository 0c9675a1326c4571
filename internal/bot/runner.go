// Package bot wires market data, strategy evaluation, sizing and
// execution into the live trading loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"spot-trader/internal/domain"
	"spot-trader/internal/execution"
	"spot-trader/internal/market"
	"spot-trader/internal/observability"
	"spot-trader/internal/position"
	"spot-trader/internal/sizing"
	"spot-trader/internal/storage"
	"spot-trader/internal/strategy"
)

// DefaultPollInterval is how often the loop re-fetches candles when the
// configuration does not set one.
const DefaultPollInterval = 30 * time.Second

// Options configures a Runner.
type Options struct {
	Symbol   string
	Interval string

	Strategy strategy.Strategy
	Sizer    *sizing.Sizer
	Provider market.Provider
	Tracker  *position.Tracker

	// Trades receives every closed trade. Optional; nil disables
	// persistence.
	Trades storage.TradeRecordStore

	// Ticks carries live price updates for mark-to-market gauges.
	// Optional.
	Ticks <-chan market.Tick

	InitialBalance float64
	PollInterval   time.Duration
	// MaxHoldBars force-closes a position held for this many completed
	// bars. Zero disables the limit.
	MaxHoldBars int

	Logger *log.Logger
}

// Runner drives the evaluate-act cycle for one symbol: fetch the
// candle window, ask the strategy for a decision, size and place the
// order through the tracker, and persist the trade on close.
//
// Transient market or execution failures skip the cycle; state is
// re-checked from scratch on the next tick.
type Runner struct {
	symbol   string
	interval string

	strategy strategy.Strategy
	sizer    *sizing.Sizer
	provider market.Provider
	tracker  *position.Tracker
	trades   storage.TradeRecordStore
	ticks    <-chan market.Tick

	pollInterval time.Duration
	maxHoldBars  int
	logger       *log.Logger

	balance   float64
	filter    domain.FilterState
	lastBarMs int64
	barsHeld  int
}

// NewRunner validates options and builds a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Symbol == "" {
		return nil, fmt.Errorf("runner: symbol is required")
	}
	if opts.Strategy == nil {
		return nil, fmt.Errorf("runner: strategy is required")
	}
	if opts.Sizer == nil {
		return nil, fmt.Errorf("runner: sizer is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("runner: provider is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("runner: tracker is required")
	}
	if opts.InitialBalance <= 0 {
		return nil, fmt.Errorf("runner: initial balance must be positive")
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Runner{
		symbol:       opts.Symbol,
		interval:     opts.Interval,
		strategy:     opts.Strategy,
		sizer:        opts.Sizer,
		provider:     opts.Provider,
		tracker:      opts.Tracker,
		trades:       opts.Trades,
		ticks:        opts.Ticks,
		pollInterval: pollInterval,
		maxHoldBars:  opts.MaxHoldBars,
		logger:       logger,
		balance:      opts.InitialBalance,
	}, nil
}

// Run starts the trading loop. It blocks until the context is
// cancelled and returns the context error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Starting trading loop: symbol=%s interval=%s strategy=%s poll=%v",
		r.symbol, r.interval, r.strategy.ID(), r.pollInterval)

	observability.UpdateBalance(r.balance)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Evaluate once at startup rather than waiting a full interval.
	r.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Trading loop stopping...")
			return ctx.Err()

		case tick, ok := <-r.ticks:
			if !ok {
				r.ticks = nil
				continue
			}
			r.onTick(tick)

		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

// Balance returns the tracked account balance after realized trades.
func (r *Runner) Balance() float64 {
	return r.balance
}

// FilterState returns the turtle filter state carried across trades.
func (r *Runner) FilterState() domain.FilterState {
	return r.filter
}

// cycle runs one fetch-evaluate-act pass.
func (r *Runner) cycle(ctx context.Context) {
	start := time.Now()

	window, err := r.provider.FetchWindow(ctx, r.symbol, r.interval, r.strategy.MinBars())
	if err != nil {
		observability.RecordFetchError()
		observability.RecordEvaluationError("fetch")
		r.logger.Printf("Candle fetch failed, skipping cycle: %v", err)
		return
	}

	last := window[len(window)-1]
	newBar := last.TimestampMs > r.lastBarMs
	if newBar {
		r.lastBarMs = last.TimestampMs
	}

	if pos := r.tracker.Position(); pos != nil {
		if newBar {
			r.barsHeld++
		}
		observability.UpdateUnrealizedPnL(pos.UnrealizedPnL(last.Close))
		r.maybeClose(ctx, pos, window, last)
	} else if newBar {
		// Entries only on a fresh bar so one candle never triggers twice.
		r.maybeOpen(ctx, window, last)
	}

	observability.RecordCycle(float64(time.Now().Unix()), time.Since(start).Seconds())
}

// maybeClose applies the strategy exit rules and the hold-time limit.
func (r *Runner) maybeClose(ctx context.Context, pos *domain.Position, window []domain.Candle, last domain.Candle) {
	shouldClose, reason := r.strategy.ShouldClose(pos, window)
	if !shouldClose && r.maxHoldBars > 0 && r.barsHeld >= r.maxHoldBars {
		shouldClose = true
		reason = domain.ExitReasonTimeout
	}
	if !shouldClose {
		return
	}

	record, err := r.tracker.Close(ctx, reason, last.Close, last.TimestampMs)
	if err != nil {
		observability.RecordEvaluationError("close")
		r.logger.Printf("Close failed, position kept for retry: %v", err)
		return
	}

	r.balance += record.PnL
	r.filter = domain.FilterState{LastTradeProfitable: record.Profitable()}
	r.barsHeld = 0

	observability.RecordTradeClosed(record.ExitReason, record.PnL)
	observability.UpdateBalance(r.balance)
	r.logger.Printf("Closed %s %s: reason=%s pnl=%.4f pnl_pct=%.2f%% balance=%.4f",
		record.Side, record.Symbol, record.ExitReason, record.PnL, record.PnLPct, r.balance)

	r.persist(ctx, record)
}

// maybeOpen evaluates the strategy and enters on a buy or sell signal.
func (r *Runner) maybeOpen(ctx context.Context, window []domain.Candle, last domain.Candle) {
	signal, next := r.strategy.Evaluate(window, r.filter)
	r.filter = next
	observability.RecordSignal(string(signal))

	side, ok := sideForSignal(signal)
	if !ok {
		return
	}

	entry := last.Close
	stop := r.strategy.StopPrice(window, side)
	if stop <= 0 {
		// No stop level: equal prices push the sizer onto the fixed
		// notional path.
		stop = entry
	}
	quantity, method := r.sizer.Size(entry, stop, r.balance)
	if quantity <= 0 {
		r.logger.Printf("Signal %s skipped: sizing produced zero quantity (balance=%.4f)", signal, r.balance)
		return
	}

	pos, err := r.tracker.Open(ctx, side, quantity, entry, last.TimestampMs, method)
	if err != nil {
		if errors.Is(err, execution.ErrExecution) {
			observability.RecordEvaluationError("open")
			r.logger.Printf("Open failed, staying flat: %v", err)
			return
		}
		r.logger.Printf("Open rejected: %v", err)
		return
	}

	r.barsHeld = 0
	observability.RecordTradeOpened(pos.Quantity)
	r.logger.Printf("Opened %s %s: qty=%.6f entry=%.4f stop=%.4f sizing=%s",
		pos.Side, r.symbol, pos.Quantity, pos.EntryPrice, stop, method)
}

// onTick refreshes mark-to-market gauges from a live price update.
func (r *Runner) onTick(tick market.Tick) {
	observability.RecordTick()
	if pos := r.tracker.Position(); pos != nil {
		observability.UpdateUnrealizedPnL(pos.UnrealizedPnL(tick.Price))
	}
}

func (r *Runner) persist(ctx context.Context, record *domain.TradeRecord) {
	if r.trades == nil {
		return
	}
	if err := r.trades.Insert(ctx, record); err != nil {
		// Duplicate means an earlier attempt already landed.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return
		}
		r.logger.Printf("Trade record insert failed: %v", err)
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
