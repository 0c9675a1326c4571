package execution

import (
	"context"
	"io"
	"log"
	"sync/atomic"
)

// Default cost assumptions for simulated fills, matching Bybit spot
// taker fees and a conservative slippage estimate.
const (
	DefaultCommissionRate = 0.0006
	DefaultSlippageRate   = 0.0001
)

// PaperOptions configures a PaperExecutor.
type PaperOptions struct {
	// CommissionRate is the per-side commission fraction.
	// Zero means DefaultCommissionRate.
	CommissionRate float64
	// SlippageRate is the adverse price movement fraction applied to
	// every fill. Zero means DefaultSlippageRate.
	SlippageRate float64
	Logger       *log.Logger
}

// PaperExecutor simulates fills against the provided mark price.
// Buys fill above mark, sells below, by slippage plus commission.
// Fills are always complete.
type PaperExecutor struct {
	commission float64
	slippage   float64
	logger     *log.Logger

	fills atomic.Int64
}

// NewPaperExecutor builds a simulated executor.
func NewPaperExecutor(opts PaperOptions) *PaperExecutor {
	commission := opts.CommissionRate
	if commission == 0 {
		commission = DefaultCommissionRate
	}
	slippage := opts.SlippageRate
	if slippage == 0 {
		slippage = DefaultSlippageRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PaperExecutor{
		commission: commission,
		slippage:   slippage,
		logger:     logger,
	}
}

// Execute simulates a complete fill at the mark price adjusted for
// slippage and commission.
func (p *PaperExecutor) Execute(_ context.Context, side OrderSide, quantity, markPrice float64) (*Fill, error) {
	if quantity <= 0 {
		return nil, execErrorf("non-positive quantity %v", quantity)
	}
	if markPrice <= 0 {
		return nil, execErrorf("non-positive mark price %v", markPrice)
	}

	cost := p.slippage + p.commission
	var price float64
	switch side {
	case Buy:
		price = markPrice * (1 + cost)
	case Sell:
		price = markPrice * (1 - cost)
	default:
		return nil, execErrorf("unknown order side %q", side)
	}

	n := p.fills.Add(1)
	p.logger.Printf("paper fill #%d: %s qty=%v mark=%v price=%v", n, side, quantity, markPrice, price)

	return &Fill{FilledQty: quantity, AvgPrice: price}, nil
}

// FillCount reports how many simulated fills were produced.
func (p *PaperExecutor) FillCount() int64 {
	return p.fills.Load()
}
