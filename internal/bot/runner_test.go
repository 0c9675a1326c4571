package bot

import (
	"context"
	"log"
	"testing"

	"spot-trader/internal/domain"
	"spot-trader/internal/execution"
	"spot-trader/internal/market"
	"spot-trader/internal/position"
	"spot-trader/internal/sizing"
	"spot-trader/internal/storage/memory"
)

// scriptStrategy emits scripted signals keyed by window length and
// closes once the latest bar reaches closeAtMs.
type scriptStrategy struct {
	enterAt   map[int]domain.Signal
	closeAtMs int64
	stop      float64

	evals  int
	states []domain.FilterState
}

func (s *scriptStrategy) Evaluate(window []domain.Candle, state domain.FilterState) (domain.Signal, domain.FilterState) {
	s.evals++
	s.states = append(s.states, state)
	if sig, ok := s.enterAt[len(window)]; ok {
		return sig, state
	}
	return domain.SignalHold, state
}

func (s *scriptStrategy) ShouldClose(_ *domain.Position, window []domain.Candle) (bool, string) {
	if s.closeAtMs > 0 && window[len(window)-1].TimestampMs >= s.closeAtMs {
		return true, domain.ExitReasonTakeProfit
	}
	return false, ""
}

func (s *scriptStrategy) StopPrice(_ []domain.Candle, _ domain.Side) float64 {
	return s.stop
}

func (s *scriptStrategy) MinBars() int { return 3 }

func (s *scriptStrategy) ID() string { return "script" }

// fillExecutor fills at the mark price, or fails while failing is set.
type fillExecutor struct {
	failing bool
	orders  int
}

func (e *fillExecutor) Execute(_ context.Context, _ execution.OrderSide, quantity, markPrice float64) (*execution.Fill, error) {
	e.orders++
	if e.failing {
		return nil, execution.ErrExecution
	}
	return &execution.Fill{FilledQty: quantity, AvgPrice: markPrice}, nil
}

func barSeries(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			TimestampMs: int64(i + 1),
			Open:        c,
			High:        c,
			Low:         c,
			Close:       c,
			Volume:      1,
		}
	}
	return out
}

type runnerFixture struct {
	runner   *Runner
	strategy *scriptStrategy
	executor *fillExecutor
	provider *market.SliceProvider
	trades   *memory.TradeRecordStore
}

func newRunnerFixture(t *testing.T, strat *scriptStrategy, candles []domain.Candle, maxHoldBars int) *runnerFixture {
	t.Helper()

	executor := &fillExecutor{}
	tracker, err := position.NewTracker(position.Options{
		Symbol:     "BTCUSDT",
		StrategyID: strat.ID(),
		Mode:       domain.ModePaper,
		Executor:   executor,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	sizer, err := sizing.NewSizer(0.01, 100, 0)
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}

	provider := &market.SliceProvider{Candles: candles}
	trades := memory.NewTradeRecordStore()

	runner, err := NewRunner(Options{
		Symbol:         "BTCUSDT",
		Interval:       "60",
		Strategy:       strat,
		Sizer:          sizer,
		Provider:       provider,
		Tracker:        tracker,
		Trades:         trades,
		InitialBalance: 10000,
		MaxHoldBars:    maxHoldBars,
		Logger:         log.New(testWriter{t}, "", 0),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	return &runnerFixture{
		runner:   runner,
		strategy: strat,
		executor: executor,
		provider: provider,
		trades:   trades,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (f *runnerFixture) appendBar(close float64) {
	next := domain.Candle{
		TimestampMs: int64(len(f.provider.Candles) + 1),
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      1,
	}
	f.provider.Candles = append(f.provider.Candles, next)
}

func TestRunnerOpensOnSignal(t *testing.T) {
	strat := &scriptStrategy{
		enterAt: map[int]domain.Signal{3: domain.SignalBuy},
		stop:    95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)

	f.runner.cycle(context.Background())

	pos := f.runner.tracker.Position()
	if pos == nil {
		t.Fatal("expected an open position")
	}
	if pos.Side != domain.SideLong {
		t.Errorf("side = %s, want long", pos.Side)
	}
	// 10000 * 0.01 / |100 - 95| = 20
	if pos.Quantity != 20 {
		t.Errorf("quantity = %v, want 20", pos.Quantity)
	}
	if pos.EntryPrice != 100 {
		t.Errorf("entry price = %v, want 100", pos.EntryPrice)
	}
	if f.executor.orders != 1 {
		t.Errorf("orders = %d, want 1", f.executor.orders)
	}
}

func TestRunnerNoReEvaluationOnSameBar(t *testing.T) {
	strat := &scriptStrategy{enterAt: map[int]domain.Signal{}}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)

	f.runner.cycle(context.Background())
	f.runner.cycle(context.Background())

	if strat.evals != 1 {
		t.Errorf("evaluations = %d, want 1 (same bar must not re-trigger)", strat.evals)
	}

	f.appendBar(101)
	f.runner.cycle(context.Background())
	if strat.evals != 2 {
		t.Errorf("evaluations = %d, want 2 after a new bar", strat.evals)
	}
}

func TestRunnerSkipsCycleOnFetchError(t *testing.T) {
	strat := &scriptStrategy{enterAt: map[int]domain.Signal{3: domain.SignalBuy}}
	// Two candles against MinBars of three forces ErrInsufficientData.
	f := newRunnerFixture(t, strat, barSeries(100, 100), 0)

	f.runner.cycle(context.Background())

	if strat.evals != 0 {
		t.Errorf("evaluations = %d, want 0 on fetch failure", strat.evals)
	}
	if !f.runner.tracker.IsFlat() {
		t.Error("expected tracker to stay flat")
	}
}

func TestRunnerClosesAndPersists(t *testing.T) {
	strat := &scriptStrategy{
		enterAt:   map[int]domain.Signal{3: domain.SignalBuy},
		closeAtMs: 4,
		stop:      95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)
	ctx := context.Background()

	f.runner.cycle(ctx) // opens at 100, qty 20
	f.appendBar(103)
	f.runner.cycle(ctx) // closes at 103

	if !f.runner.tracker.IsFlat() {
		t.Fatal("expected tracker to be flat after close")
	}
	if got, want := f.runner.Balance(), 10000+60.0; got != want {
		t.Errorf("balance = %v, want %v", got, want)
	}

	records, err := f.trades.GetBySymbol(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("persisted trades = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("exit reason = %s, want %s", rec.ExitReason, domain.ExitReasonTakeProfit)
	}
	if rec.PnL != 60 {
		t.Errorf("pnl = %v, want 60", rec.PnL)
	}
	if rec.Mode != domain.ModePaper {
		t.Errorf("mode = %s, want paper", rec.Mode)
	}
}

func TestRunnerTimeoutExit(t *testing.T) {
	strat := &scriptStrategy{
		enterAt: map[int]domain.Signal{3: domain.SignalBuy},
		stop:    95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 2)
	ctx := context.Background()

	f.runner.cycle(ctx) // opens
	f.appendBar(101)
	f.runner.cycle(ctx) // held 1 bar
	if f.runner.tracker.IsFlat() {
		t.Fatal("position closed before the hold limit")
	}
	f.appendBar(102)
	f.runner.cycle(ctx) // held 2 bars, hits the limit

	if !f.runner.tracker.IsFlat() {
		t.Fatal("expected timeout close after max hold bars")
	}
	records, err := f.trades.GetBySymbol(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(records) != 1 || records[0].ExitReason != domain.ExitReasonTimeout {
		t.Fatalf("records = %+v, want one timeout exit", records)
	}
}

func TestRunnerFailedOpenRetriesNextBar(t *testing.T) {
	strat := &scriptStrategy{
		enterAt: map[int]domain.Signal{3: domain.SignalBuy, 4: domain.SignalBuy},
		stop:    95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)
	ctx := context.Background()

	f.executor.failing = true
	f.runner.cycle(ctx)
	if !f.runner.tracker.IsFlat() {
		t.Fatal("failed order must leave the tracker flat")
	}

	f.executor.failing = false
	f.appendBar(100)
	f.runner.cycle(ctx)
	if f.runner.tracker.Position() == nil {
		t.Fatal("expected the retry on the next bar to open")
	}
	if f.executor.orders != 2 {
		t.Errorf("orders = %d, want 2", f.executor.orders)
	}
}

func TestRunnerFilterStateCarriesLastOutcome(t *testing.T) {
	strat := &scriptStrategy{
		enterAt:   map[int]domain.Signal{3: domain.SignalBuy},
		closeAtMs: 4,
		stop:      95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)
	ctx := context.Background()

	f.runner.cycle(ctx) // open at 100
	f.appendBar(97)     // losing exit
	f.runner.cycle(ctx)

	if f.runner.FilterState().LastTradeProfitable {
		t.Error("filter state should record the losing trade")
	}

	f.appendBar(100)
	f.runner.cycle(ctx)
	last := strat.states[len(strat.states)-1]
	if last.LastTradeProfitable {
		t.Error("strategy should observe LastTradeProfitable=false")
	}
}

func TestRunnerFailedCloseKeepsPosition(t *testing.T) {
	strat := &scriptStrategy{
		enterAt:   map[int]domain.Signal{3: domain.SignalBuy},
		closeAtMs: 4,
		stop:      95,
	}
	f := newRunnerFixture(t, strat, barSeries(100, 100, 100), 0)
	ctx := context.Background()

	f.runner.cycle(ctx)
	f.executor.failing = true
	f.appendBar(103)
	f.runner.cycle(ctx)

	if f.runner.tracker.IsFlat() {
		t.Fatal("failed close must keep the position")
	}
	if f.runner.Balance() != 10000 {
		t.Errorf("balance = %v, want unchanged 10000", f.runner.Balance())
	}

	f.executor.failing = false
	f.runner.cycle(ctx) // same bar still past closeAtMs, close retries
	if !f.runner.tracker.IsFlat() {
		t.Fatal("expected close retry to succeed")
	}
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(Options{})
	if err == nil {
		t.Fatal("expected an error for empty options")
	}
}
