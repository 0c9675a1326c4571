package strategy

import (
	"spot-trader/internal/domain"
)

// Strategy produces entry signals and exit decisions from candle windows.
// Implementations are pure over their inputs: evaluating the same window
// with the same filter state always yields the same result.
type Strategy interface {
	// Evaluate computes the trade signal over an ordered candle window
	// (ascending timestamps, most-recent last). Windows shorter than
	// MinBars yield hold. The returned FilterState replaces the caller's
	// state; strategies without a filter pass it through unchanged.
	Evaluate(window []domain.Candle, state domain.FilterState) (domain.Signal, domain.FilterState)

	// ShouldClose decides whether the open position should be closed at
	// the latest close price, and with which exit reason.
	ShouldClose(pos *domain.Position, window []domain.Candle) (bool, string)

	// StopPrice returns the protective stop level for a prospective entry
	// in the given direction, used for risk-based sizing. Returns 0 when
	// the strategy defines no stop level (callers fall back to fixed
	// notional sizing).
	StopPrice(window []domain.Candle, side domain.Side) float64

	// MinBars returns the minimum window length needed for a decisive signal.
	MinBars() int

	// ID returns the strategy identifier (includes parameters).
	ID() string
}
