package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage/memory"
)

func seedTrades(t *testing.T, store *memory.TradeRecordStore) {
	t.Helper()
	trades := []*domain.TradeRecord{
		{
			TradeID: "t1", Symbol: "BTCUSDT", StrategyID: "MA_CROSS_f10_s30_tp2.0_sl1.0",
			Side: domain.SideLong, Quantity: 20, EntryPrice: 100, ExitPrice: 103,
			PnL: 60, PnLPct: 3.0, ExitReason: domain.ExitReasonTakeProfit,
			EntryTimeMs: 1000, ExitTimeMs: 2000, SizingMethod: "risk_based", Mode: domain.ModePaper,
		},
		{
			TradeID: "t2", Symbol: "BTCUSDT", StrategyID: "MA_CROSS_f10_s30_tp2.0_sl1.0",
			Side: domain.SideLong, Quantity: 10, EntryPrice: 100, ExitPrice: 99,
			PnL: -10, PnLPct: -1.0, ExitReason: domain.ExitReasonStopLoss,
			EntryTimeMs: 3000, ExitTimeMs: 4000, SizingMethod: "risk_based", Mode: domain.ModePaper,
		},
		{
			TradeID: "t3", Symbol: "BTCUSDT", StrategyID: "BREAKOUT_e20_x10_turtle",
			Side: domain.SideShort, Quantity: 5, EntryPrice: 200, ExitPrice: 190,
			PnL: 50, PnLPct: 5.0, ExitReason: domain.ExitReasonOppositeBreakout,
			EntryTimeMs: 5000, ExitTimeMs: 6000, SizingMethod: "risk_based", Mode: domain.ModePaper,
		},
		{
			TradeID: "outside", Symbol: "BTCUSDT", StrategyID: "BREAKOUT_e20_x10_turtle",
			Side: domain.SideLong, Quantity: 1, EntryPrice: 100, ExitPrice: 101,
			PnL: 1, PnLPct: 1.0, ExitReason: domain.ExitReasonTimeout,
			EntryTimeMs: 99_000, ExitTimeMs: 100_000, SizingMethod: "risk_based", Mode: domain.ModePaper,
		},
	}
	for _, tr := range trades {
		if err := store.Insert(context.Background(), tr); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func TestGenerateGroupsAndFilters(t *testing.T) {
	store := memory.NewTradeRecordStore()
	seedTrades(t, store)

	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(store).WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(context.Background(), 0, 10_000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, fixed)
	}
	if report.TotalTrades != 3 {
		t.Fatalf("TotalTrades = %d, want 3 (entry outside range excluded)", report.TotalTrades)
	}
	if len(report.StrategyRows) != 2 {
		t.Fatalf("StrategyRows = %d, want 2", len(report.StrategyRows))
	}

	// Rows are sorted by strategy ID: BREAKOUT before MA_CROSS.
	breakout := report.StrategyRows[0]
	maCross := report.StrategyRows[1]
	if !strings.HasPrefix(breakout.StrategyID, "BREAKOUT") {
		t.Fatalf("rows not sorted: %q first", breakout.StrategyID)
	}
	if breakout.TotalTrades != 1 || breakout.Wins != 1 {
		t.Errorf("breakout row = %+v", breakout)
	}
	if maCross.TotalTrades != 2 || maCross.Wins != 1 || maCross.Losses != 1 {
		t.Errorf("ma cross row = %+v", maCross)
	}
	if math.Abs(maCross.TotalPnL-50) > 1e-9 {
		t.Errorf("ma cross TotalPnL = %v, want 50", maCross.TotalPnL)
	}
	if math.Abs(maCross.WinRate-0.5) > 1e-9 {
		t.Errorf("ma cross WinRate = %v, want 0.5", maCross.WinRate)
	}
}

func TestRenderMarkdown(t *testing.T) {
	store := memory.NewTradeRecordStore()
	seedTrades(t, store)

	gen := NewGenerator(store).WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})
	report, err := gen.Generate(context.Background(), 0, 10_000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Trading Report",
		"Total Trades: 3",
		"MA_CROSS_f10_s30_tp2.0_sl1.0",
		"BREAKOUT_e20_x10_turtle",
		"take_profit",
		"| t1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "outside") {
		t.Error("markdown should not include out-of-range trades")
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	gen := NewGenerator(memory.NewTradeRecordStore())
	report, err := gen.Generate(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "No trades in the selected period.") {
		t.Error("empty report should say no trades")
	}
}

func TestRenderCSV(t *testing.T) {
	store := memory.NewTradeRecordStore()
	seedTrades(t, store)

	report, err := NewGenerator(store).Generate(context.Background(), 0, 10_000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	csv := RenderCSV(report)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 { // header + 3 trades
		t.Fatalf("csv lines = %d, want 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "trade_id,symbol,strategy_id") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	// Trades appear in entry-time order.
	if !strings.HasPrefix(lines[1], "t1,") || !strings.HasPrefix(lines[3], "t3,") {
		t.Errorf("unexpected row order: %v", lines[1:])
	}
}
