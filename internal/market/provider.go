// Package market fetches candle history and streams live ticks from
// the exchange.
package market

import (
	"context"
	"errors"
	"fmt"

	"spot-trader/internal/domain"
)

// Data-provider errors. Fetch failures are transient: callers skip the
// evaluation cycle and retry on the next one.
var (
	// ErrFetch marks a transport or exchange-side failure.
	ErrFetch = errors.New("market data fetch failed")
	// ErrInsufficientData is returned when fewer closed candles exist
	// than the strategy needs.
	ErrInsufficientData = errors.New("insufficient candle history")
)

// Provider supplies closed candles in ascending time order.
type Provider interface {
	// FetchWindow returns at least minLength closed candles for the
	// symbol and interval, oldest first. The in-progress candle is
	// never included.
	FetchWindow(ctx context.Context, symbol, interval string, minLength int) ([]domain.Candle, error)
}

// SliceProvider serves a fixed candle series. It backs tests and
// offline replays.
type SliceProvider struct {
	Candles []domain.Candle
}

// FetchWindow returns the tail of the fixed series.
func (s *SliceProvider) FetchWindow(_ context.Context, _, _ string, minLength int) ([]domain.Candle, error) {
	if len(s.Candles) < minLength {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(s.Candles), minLength)
	}
	out := make([]domain.Candle, len(s.Candles))
	copy(out, s.Candles)
	return out, nil
}
