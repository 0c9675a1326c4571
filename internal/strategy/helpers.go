package strategy

import (
	"spot-trader/internal/domain"
)

// sma returns the simple mean of the last period values.
// Callers must ensure len(values) >= period > 0.
func sma(values []float64, period int) float64 {
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// channelLevels computes (highest high, lowest low) over the trailing
// lookback candles, excluding the most recent (still-forming) candle.
// Returns false when the window is too short.
func channelLevels(window []domain.Candle, lookback int) (domain.BreakoutLevels, bool) {
	if lookback <= 0 || len(window) < lookback+1 {
		return domain.BreakoutLevels{}, false
	}

	// Trailing lookback bars, current bar excluded.
	start := len(window) - lookback - 1
	end := len(window) - 1

	levels := domain.BreakoutLevels{
		HighestHigh: window[start].High,
		LowestLow:   window[start].Low,
	}
	for _, c := range window[start:end] {
		if c.High > levels.HighestHigh {
			levels.HighestHigh = c.High
		}
		if c.Low < levels.LowestLow {
			levels.LowestLow = c.Low
		}
	}

	return levels, true
}
