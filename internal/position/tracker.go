// Package position tracks the single open position for a symbol and
// turns confirmed exits into trade records.
package position

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"spot-trader/internal/domain"
	"spot-trader/internal/execution"
	"spot-trader/internal/idhash"
)

// State machine errors.
var (
	// ErrAlreadyOpen is returned when Open is called while a position
	// is held. Only one position per symbol may exist.
	ErrAlreadyOpen = errors.New("position already open")
	// ErrNoPosition is returned when Close is called while flat.
	ErrNoPosition = errors.New("no open position")
)

// Options configures a Tracker.
type Options struct {
	Symbol     string
	StrategyID string
	Mode       string // domain.ModePaper or domain.ModeLive
	Executor   execution.Executor
	Logger     *log.Logger
}

// Tracker is the per-symbol position state machine: flat -> open ->
// flat. Transitions happen only on confirmed fills; a failed order
// leaves the state untouched so the caller can retry on the next
// cycle. All methods are safe for concurrent use.
type Tracker struct {
	symbol     string
	strategyID string
	mode       string
	executor   execution.Executor
	logger     *log.Logger

	mu           sync.Mutex
	pos          *domain.Position
	sizingMethod string
}

// NewTracker builds a flat tracker.
func NewTracker(opts Options) (*Tracker, error) {
	if opts.Symbol == "" {
		return nil, fmt.Errorf("tracker: symbol is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("tracker: executor is required")
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.ModePaper
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Tracker{
		symbol:     opts.Symbol,
		strategyID: opts.StrategyID,
		mode:       mode,
		executor:   opts.Executor,
		logger:     logger,
	}, nil
}

// Open enters a position. It is valid only while flat; the order is
// placed first and the position recorded only after the fill confirms,
// at the fill's price and quantity.
func (t *Tracker) Open(ctx context.Context, side domain.Side, quantity, markPrice float64, entryTimeMs int64, sizingMethod string) (*domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadyOpen, t.symbol, t.pos.Side)
	}

	fill, err := t.executor.Execute(ctx, orderSide(side, false), quantity, markPrice)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", side, t.symbol, err)
	}

	entryPrice := fill.AvgPrice
	if entryPrice == 0 {
		// Live market orders may ack without an average price.
		entryPrice = markPrice
	}
	t.pos = &domain.Position{
		Symbol:      t.symbol,
		Side:        side,
		Quantity:    fill.FilledQty,
		EntryPrice:  entryPrice,
		EntryTimeMs: entryTimeMs,
	}
	t.sizingMethod = sizingMethod
	t.logger.Printf("opened %s %s qty=%v entry=%v", side, t.symbol, fill.FilledQty, entryPrice)

	cp := *t.pos
	return &cp, nil
}

// Close exits the open position. It is valid only while a position is
// held; the exit order is placed first and the record emitted only
// after the fill confirms. Exactly one trade record is produced per
// round trip.
func (t *Tracker) Close(ctx context.Context, reason string, markPrice float64, exitTimeMs int64) (*domain.TradeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, t.symbol)
	}

	fill, err := t.executor.Execute(ctx, orderSide(t.pos.Side, true), t.pos.Quantity, markPrice)
	if err != nil {
		return nil, fmt.Errorf("close %s %s: %w", t.pos.Side, t.symbol, err)
	}

	exitPrice := fill.AvgPrice
	if exitPrice == 0 {
		exitPrice = markPrice
	}

	pos := t.pos
	record := &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(t.symbol, t.strategyID, pos.EntryTimeMs),
		Symbol:       t.symbol,
		StrategyID:   t.strategyID,
		Side:         pos.Side,
		Quantity:     pos.Quantity,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exitPrice,
		PnL:          roundTripPnL(pos, exitPrice),
		PnLPct:       pos.UnrealizedPnLPct(exitPrice),
		ExitReason:   reason,
		EntryTimeMs:  pos.EntryTimeMs,
		ExitTimeMs:   exitTimeMs,
		SizingMethod: t.sizingMethod,
		Mode:         t.mode,
	}

	t.pos = nil
	t.sizingMethod = ""
	t.logger.Printf("closed %s %s qty=%v exit=%v pnl=%v reason=%s",
		record.Side, t.symbol, record.Quantity, exitPrice, record.PnL, reason)

	return record, nil
}

// Position returns a copy of the open position, or nil while flat.
func (t *Tracker) Position() *domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pos == nil {
		return nil
	}
	cp := *t.pos
	return &cp
}

// IsFlat reports whether no position is held.
func (t *Tracker) IsFlat() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos == nil
}

// orderSide maps a position side to the order direction for either
// entering (closing=false) or flattening (closing=true) it.
func orderSide(side domain.Side, closing bool) execution.OrderSide {
	long := side == domain.SideLong
	if closing {
		long = !long
	}
	if long {
		return execution.Buy
	}
	return execution.Sell
}

func roundTripPnL(pos *domain.Position, exitPrice float64) float64 {
	if pos.Side == domain.SideLong {
		return (exitPrice - pos.EntryPrice) * pos.Quantity
	}
	return (pos.EntryPrice - exitPrice) * pos.Quantity
}
