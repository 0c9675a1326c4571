package execution

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantizeQty floors qty to a multiple of the exchange lot step and
// renders it as the exact string the order API expects. Flooring
// never rounds a quantity up past the sized amount.
func QuantizeQty(qty float64, step string) (string, error) {
	if qty < 0 {
		return "", fmt.Errorf("negative qty %v", qty)
	}
	stepDec, err := decimal.NewFromString(step)
	if err != nil {
		return "", fmt.Errorf("invalid step %q: %w", step, err)
	}
	if stepDec.Sign() <= 0 {
		return "", fmt.Errorf("non-positive step %q", step)
	}
	qtyDec := decimal.NewFromFloat(qty)
	floored := qtyDec.Div(stepDec).Floor().Mul(stepDec)
	return floored.String(), nil
}
