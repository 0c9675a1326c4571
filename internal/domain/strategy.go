package domain

// StrategyConfig represents strategy configuration parameters.
// All parameters are validated before a strategy is constructed.
type StrategyConfig struct {
	StrategyType string // "MA_CROSS" | "BREAKOUT"
	Symbol       string

	// MA_CROSS parameters
	FastPeriod     int
	SlowPeriod     int
	TakeProfitPct  float64 // close when unrealized P&L% >= this
	StopLossPct    float64 // close when unrealized P&L% <= -this

	// BREAKOUT parameters
	EntryLookback   int
	ExitLookback    int
	UseTurtleFilter bool
}

// Strategy type constants.
const (
	StrategyTypeMACross  = "MA_CROSS"
	StrategyTypeBreakout = "BREAKOUT"
)
