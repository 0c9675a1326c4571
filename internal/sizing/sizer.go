// Package sizing converts a signal plus risk parameters into an order quantity.
package sizing

import (
	"errors"
	"math"
)

// Sizing method codes, recorded on the trade so the path taken is
// distinguishable in logs and tests.
const (
	MethodRiskBased     = "risk_based"
	MethodFixedNotional = "fixed_notional"
	MethodClamped       = "clamped"
)

// Configuration errors. Fatal at startup.
var (
	ErrInvalidRiskPerTrade = errors.New("risk_per_trade must be in (0, 1]")
	ErrInvalidTradeAmount  = errors.New("fixed_trade_amount must be positive")
	ErrInvalidSafetyMargin = errors.New("safety_margin must be in (0, 1]")
)

// DefaultSafetyMargin caps order notional at this fraction of balance.
const DefaultSafetyMargin = 0.95

// Sizer computes order quantities from risk parameters.
type Sizer struct {
	RiskPerTrade     float64 // fraction of balance risked per trade, (0, 1]
	FixedTradeAmount float64 // notional fallback when no stop distance exists
	SafetyMargin     float64 // fraction of balance an order may consume
}

// NewSizer creates a Sizer, validating parameter ranges.
// A zero safetyMargin selects DefaultSafetyMargin.
func NewSizer(riskPerTrade, fixedTradeAmount, safetyMargin float64) (*Sizer, error) {
	if riskPerTrade <= 0 || riskPerTrade > 1 {
		return nil, ErrInvalidRiskPerTrade
	}
	if fixedTradeAmount <= 0 {
		return nil, ErrInvalidTradeAmount
	}
	if safetyMargin == 0 {
		safetyMargin = DefaultSafetyMargin
	}
	if safetyMargin < 0 || safetyMargin > 1 {
		return nil, ErrInvalidSafetyMargin
	}

	return &Sizer{
		RiskPerTrade:     riskPerTrade,
		FixedTradeAmount: fixedTradeAmount,
		SafetyMargin:     safetyMargin,
	}, nil
}

// Size returns the order quantity for an entry at entryPrice with a
// protective stop at stopPrice, given the available balance.
//
//   - risk-based: quantity = balance * risk_per_trade / |entry - stop|
//   - degenerate stop (entry == stop, or no stop level): fixed notional
//     fallback, quantity = fixed_trade_amount / entry
//   - either path is clamped so the order notional never exceeds
//     balance * safety_margin
func (s *Sizer) Size(entryPrice, stopPrice, balance float64) (float64, string) {
	if entryPrice <= 0 || balance <= 0 {
		return 0, MethodFixedNotional
	}

	riskPerUnit := math.Abs(entryPrice - stopPrice)

	var quantity float64
	method := MethodRiskBased
	if riskPerUnit > 0 {
		quantity = balance * s.RiskPerTrade / riskPerUnit
	} else {
		quantity = s.FixedTradeAmount / entryPrice
		method = MethodFixedNotional
	}

	// Never let notional exceed available balance.
	if quantity*entryPrice > balance {
		quantity = balance * s.SafetyMargin / entryPrice
		method = MethodClamped
	}

	return quantity, method
}
