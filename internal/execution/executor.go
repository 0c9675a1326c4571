// Package execution places market orders against an exchange.
// The core only depends on the narrow Executor contract; transport,
// signing and retry policy live behind it.
package execution

import (
	"context"
	"errors"
	"fmt"
)

// OrderSide is the direction of a market order (exchange notation).
type OrderSide string

// Order side constants.
const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// Fill is the confirmed result of a market order.
// Partial fills are not supported: an order either fills completely
// or the Execute call returns an error.
type Fill struct {
	FilledQty float64
	AvgPrice  float64
}

// ErrExecution marks any order placement or closing failure. Callers
// distinguish it from data-provider failures with errors.Is and retry
// on the next evaluation cycle; tracker state is never mutated on it.
var ErrExecution = errors.New("order execution failed")

// execErrorf wraps a failure cause under ErrExecution with context.
func execErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrExecution, fmt.Sprintf(format, args...))
}

// Executor places a market order and reports the fill.
type Executor interface {
	// Execute places a market order. markPrice is the latest observed
	// price, used by paper fills; live implementations ignore it.
	Execute(ctx context.Context, side OrderSide, quantity, markPrice float64) (*Fill, error)
}
