package domain

// TradeRecord represents a closed position's final outcome.
// Records are append-only and write-once.
type TradeRecord struct {
	TradeID    string // deterministic hash
	Symbol     string
	StrategyID string
	Side       Side

	Quantity   float64
	EntryPrice float64
	ExitPrice  float64

	PnL    float64 // (exit - entry) * quantity, sign-adjusted for side
	PnLPct float64

	ExitReason string

	EntryTimeMs int64
	ExitTimeMs  int64

	SizingMethod string // which sizing path produced the quantity
	Mode         string // "paper" or "live"
}

// Exit reason codes.
const (
	ExitReasonTakeProfit       = "take_profit"
	ExitReasonStopLoss         = "stop_loss"
	ExitReasonTimeout          = "timeout"
	ExitReasonOppositeBreakout = "opposite_breakout"
	ExitReasonEndOfPeriod      = "end_of_period"
)

// Trading mode constants.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Profitable reports whether the trade realized a positive P&L.
func (t *TradeRecord) Profitable() bool {
	return t.PnL > 0
}
