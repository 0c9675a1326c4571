package domain

// Side is the direction of a position.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Signal is the output of one strategy evaluation.
type Signal string

// Signal constants.
const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Position is the single open position for a symbol.
// At most one Position per symbol exists at any time; lifecycle is
// owned by the position tracker.
type Position struct {
	Symbol      string
	Side        Side
	Quantity    float64 // > 0
	EntryPrice  float64 // > 0, fill price (slippage/fees may move it off the signal price)
	EntryTimeMs int64
}

// UnrealizedPnLPct returns unrealized P&L percent at currentPrice.
// (current - entry) / entry * 100 for long, negated for short.
func (p *Position) UnrealizedPnLPct(currentPrice float64) float64 {
	pct := (currentPrice - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideShort {
		return -pct
	}
	return pct
}

// UnrealizedPnL returns unrealized P&L in quote currency at currentPrice.
func (p *Position) UnrealizedPnL(currentPrice float64) float64 {
	pnl := (currentPrice - p.EntryPrice) * p.Quantity
	if p.Side == SideShort {
		return -pnl
	}
	return pnl
}

// FilterState carries the turtle filter memory between breakout evaluations.
// It is explicit input/output of signal evaluation rather than hidden
// strategy state, so suppression is directly observable.
type FilterState struct {
	LastTradeProfitable bool
}

// BreakoutLevels is the derived (highest high, lowest low) pair over a
// trailing window, excluding the current still-forming candle. Recomputed
// on every evaluation, never persisted.
type BreakoutLevels struct {
	HighestHigh float64
	LowestLow   float64
}
