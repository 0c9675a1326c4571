package domain

// Candle represents a single OHLCV bar.
// Sequences are append-only, ordered by timestamp ascending, most-recent last.
type Candle struct {
	TimestampMs int64   // bar open time, Unix ms
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Supported kline intervals (exchange notation).
const (
	Interval5Min  = "5"
	Interval1Hour = "60"
	Interval1Day  = "D"
)

// Closes extracts closing prices from a candle window, preserving order.
func Closes(window []Candle) []float64 {
	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}
	return closes
}
