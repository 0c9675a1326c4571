package sizing

import (
	"errors"
	"math"
	"testing"
)

func newTestSizer(t *testing.T) *Sizer {
	t.Helper()
	s, err := NewSizer(0.01, 100, 0)
	if err != nil {
		t.Fatalf("NewSizer failed: %v", err)
	}
	return s
}

func TestSize_RiskBased(t *testing.T) {
	s := newTestSizer(t)

	// 10000 * 0.01 / |100 - 95| = 20 exactly.
	qty, method := s.Size(100, 95, 10000)
	if qty != 20 {
		t.Errorf("quantity = %v, want 20", qty)
	}
	if method != MethodRiskBased {
		t.Errorf("method = %s, want %s", method, MethodRiskBased)
	}
}

func TestSize_FixedNotionalFallback(t *testing.T) {
	s := newTestSizer(t)

	// Entry equals stop: no stop distance to derive risk from.
	qty, method := s.Size(100, 100, 10000)
	if qty != 1 { // 100 / 100
		t.Errorf("quantity = %v, want 1", qty)
	}
	if method != MethodFixedNotional {
		t.Errorf("method = %s, want %s", method, MethodFixedNotional)
	}

	// Zero stop (strategy has no stop level): same fallback.
	_, method = s.Size(100, 0, 10000)
	if method != MethodRiskBased {
		// |100 - 0| = 100 is a valid risk distance; a literal zero stop
		// still sizes risk-based. The fallback only fires on entry==stop.
		t.Errorf("method = %s, want %s", method, MethodRiskBased)
	}
}

func TestSize_NotionalClamp(t *testing.T) {
	s := newTestSizer(t)

	// Tight stop: 10000 * 0.01 / 0.01 = 10000 units, notional 10^6 >> balance.
	qty, method := s.Size(100, 99.99, 10000)
	if method != MethodClamped {
		t.Fatalf("method = %s, want %s", method, MethodClamped)
	}

	want := 10000 * 0.95 / 100
	if math.Abs(qty-want) > 1e-9 {
		t.Errorf("quantity = %v, want %v", qty, want)
	}
	if qty*100 > 10000 {
		t.Errorf("notional %v exceeds balance", qty*100)
	}
}

func TestSize_DegenerateInputs(t *testing.T) {
	s := newTestSizer(t)

	if qty, _ := s.Size(0, 95, 10000); qty != 0 {
		t.Errorf("zero entry price: quantity = %v, want 0", qty)
	}
	if qty, _ := s.Size(100, 95, 0); qty != 0 {
		t.Errorf("zero balance: quantity = %v, want 0", qty)
	}
}

func TestNewSizer_Validation(t *testing.T) {
	cases := []struct {
		risk, amount, margin float64
		wantErr              error
	}{
		{0, 100, 0.95, ErrInvalidRiskPerTrade},
		{-0.01, 100, 0.95, ErrInvalidRiskPerTrade},
		{1.5, 100, 0.95, ErrInvalidRiskPerTrade},
		{0.01, 0, 0.95, ErrInvalidTradeAmount},
		{0.01, 100, -1, ErrInvalidSafetyMargin},
		{0.01, 100, 1.5, ErrInvalidSafetyMargin},
	}

	for _, tc := range cases {
		_, err := NewSizer(tc.risk, tc.amount, tc.margin)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("NewSizer(%v, %v, %v) error = %v, want %v",
				tc.risk, tc.amount, tc.margin, err, tc.wantErr)
		}
	}
}

func TestNewSizer_DefaultSafetyMargin(t *testing.T) {
	s, err := NewSizer(0.01, 100, 0)
	if err != nil {
		t.Fatalf("NewSizer failed: %v", err)
	}
	if s.SafetyMargin != DefaultSafetyMargin {
		t.Errorf("SafetyMargin = %v, want %v", s.SafetyMargin, DefaultSafetyMargin)
	}
}
