package backtest

import (
	"spot-trader/internal/domain"
	"spot-trader/internal/strategy"
)

// StubStrategy is a scripted strategy for testing. It signals an entry
// at fixed window lengths and closes after a fixed number of bars,
// without looking at prices.
type StubStrategy struct {
	// EnterAt maps window length to the signal to emit at that length.
	EnterAt map[int]domain.Signal
	// CloseAfterBars closes any open position once the window has grown
	// this many bars past the entry. Zero never closes.
	CloseAfterBars int
	// Stop is the value returned by StopPrice.
	Stop float64

	evaluations int
	seenStates  []domain.FilterState
}

// Compile-time interface check.
var _ strategy.Strategy = (*StubStrategy)(nil)

// Evaluate emits the scripted signal for the current window length.
func (s *StubStrategy) Evaluate(window []domain.Candle, state domain.FilterState) (domain.Signal, domain.FilterState) {
	s.evaluations++
	s.seenStates = append(s.seenStates, state)
	if sig, ok := s.EnterAt[len(window)]; ok {
		return sig, state
	}
	return domain.SignalHold, state
}

// ShouldClose closes once the scripted hold time has elapsed.
func (s *StubStrategy) ShouldClose(pos *domain.Position, window []domain.Candle) (bool, string) {
	if s.CloseAfterBars == 0 {
		return false, ""
	}
	last := window[len(window)-1]
	// Bar timestamps in tests advance by a fixed step of one.
	if last.TimestampMs-pos.EntryTimeMs >= int64(s.CloseAfterBars) {
		return true, domain.ExitReasonTakeProfit
	}
	return false, ""
}

// StopPrice returns the scripted stop level.
func (s *StubStrategy) StopPrice(_ []domain.Candle, _ domain.Side) float64 {
	return s.Stop
}

// MinBars returns the smallest scripted entry window, or 1.
func (s *StubStrategy) MinBars() int {
	min := 0
	for n := range s.EnterAt {
		if min == 0 || n < min {
			min = n
		}
	}
	if min == 0 {
		return 1
	}
	return min
}

// ID returns the strategy identifier.
func (s *StubStrategy) ID() string {
	return "stub"
}

// Evaluations returns how many times Evaluate ran, for test verification.
func (s *StubStrategy) Evaluations() int {
	return s.evaluations
}

// SeenStates returns the filter states passed to Evaluate, in order.
func (s *StubStrategy) SeenStates() []domain.FilterState {
	return s.seenStates
}
