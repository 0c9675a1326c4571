package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spot-trader/internal/backtest"
	"spot-trader/internal/domain"
	"spot-trader/internal/market"
	"spot-trader/internal/metrics"
	"spot-trader/internal/sizing"
	"spot-trader/internal/storage"
	chstore "spot-trader/internal/storage/clickhouse"
	"spot-trader/internal/storage/migrations"
	pgstore "spot-trader/internal/storage/postgres"
	"spot-trader/internal/strategy"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "60", "Kline interval: 5, 60 or D")
	strategyType := flag.String("strategy", "", "Strategy: MA_CROSS or BREAKOUT (required)")

	// MA_CROSS parameters
	fastPeriod := flag.Int("fast-period", 10, "Fast MA period")
	slowPeriod := flag.Int("slow-period", 30, "Slow MA period")
	takeProfitPct := flag.Float64("take-profit-pct", 2.0, "Take profit threshold (percent)")
	stopLossPct := flag.Float64("stop-loss-pct", 1.0, "Stop loss threshold (percent)")

	// BREAKOUT parameters
	entryLookback := flag.Int("entry-lookback", 20, "Entry channel lookback")
	exitLookback := flag.Int("exit-lookback", 10, "Exit channel lookback")
	turtleFilter := flag.Bool("turtle-filter", true, "Skip entries after a profitable trade")

	// Sizing and simulation parameters
	riskPerTrade := flag.Float64("risk-per-trade", 0.01, "Fraction of balance risked per trade")
	fixedTradeAmount := flag.Float64("fixed-trade-amount", 100, "Notional fallback when no stop exists")
	initialCapital := flag.Float64("initial-capital", 10000, "Starting balance")
	commissionRate := flag.Float64("commission", 0.0006, "Per-side commission rate")
	slippageRate := flag.Float64("slippage", 0.0001, "Per-fill slippage rate")
	maxHoldBars := flag.Int("max-hold-bars", 0, "Force-close after this many bars (0 = off)")

	// Candle source
	fetch := flag.Bool("fetch", false, "Fetch candles from the exchange instead of ClickHouse")
	bars := flag.Int("bars", 500, "Number of candles to fetch with --fetch")
	baseURL := flag.String("base-url", "", "Bybit REST endpoint override")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	fromTime := flag.String("from", "", "Start time (RFC3339), required with --clickhouse-dsn")
	toTime := flag.String("to", "", "End time (RFC3339), defaults to now")

	// Output
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for --persist")
	persist := flag.Bool("persist", false, "Store resulting trade records")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *strategyType == "" {
		logger.Fatal("--strategy is required")
	}
	*strategyType = strings.ToUpper(*strategyType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	strat, err := strategy.FromConfig(domain.StrategyConfig{
		StrategyType:    *strategyType,
		Symbol:          *symbol,
		FastPeriod:      *fastPeriod,
		SlowPeriod:      *slowPeriod,
		TakeProfitPct:   *takeProfitPct,
		StopLossPct:     *stopLossPct,
		EntryLookback:   *entryLookback,
		ExitLookback:    *exitLookback,
		UseTurtleFilter: *turtleFilter,
	})
	if err != nil {
		logger.Fatalf("Strategy error: %v", err)
	}

	sizer, err := sizing.NewSizer(*riskPerTrade, *fixedTradeAmount, 0)
	if err != nil {
		logger.Fatalf("Sizing error: %v", err)
	}

	candles, err := loadCandles(ctx, logger, *fetch, *bars, *baseURL, *clickhouseDSN, *symbol, *interval, *fromTime, *toTime)
	if err != nil {
		logger.Fatalf("Candle load error: %v", err)
	}
	logger.Printf("Loaded %d candles for %s/%s", len(candles), *symbol, *interval)

	var tradeStore storage.TradeRecordStore
	if *persist {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("PostgreSQL connection error: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			logger.Fatalf("PostgreSQL migration error: %v", err)
		}
		tradeStore = pgstore.NewTradeRecordStore(pool)
	}

	engine, err := backtest.NewEngine(backtest.Options{
		Strategy:       strat,
		Sizer:          sizer,
		Symbol:         *symbol,
		InitialCapital: *initialCapital,
		CommissionRate: *commissionRate,
		SlippageRate:   *slippageRate,
		MaxHoldBars:    *maxHoldBars,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("Engine error: %v", err)
	}

	result, err := engine.Run(ctx, candles)
	if err != nil {
		logger.Fatalf("Backtest error: %v", err)
	}

	if tradeStore != nil && len(result.Trades) > 0 {
		if err := tradeStore.InsertBulk(ctx, result.Trades); err != nil {
			logger.Printf("Trade persistence failed: %v", err)
		} else {
			logger.Printf("Persisted %d trade records", len(result.Trades))
		}
	}

	summary := metrics.ComputeWithPeriods(result.Trades, result.EquityCurve, *initialCapital, periodsPerYear(*interval))
	if *outputJSON {
		printJSON(result, summary)
	} else {
		printText(result, summary)
	}
}

// loadCandles pulls the series either live from the exchange or from
// the ClickHouse archive.
func loadCandles(ctx context.Context, logger *log.Logger, fetch bool, bars int, baseURL, dsn, symbol, interval, fromTime, toTime string) ([]domain.Candle, error) {
	if fetch {
		provider := market.NewBybitProvider(market.BybitOptions{BaseURL: baseURL, Logger: logger})
		return provider.FetchWindow(ctx, symbol, interval, bars)
	}

	if dsn == "" {
		dsn = os.Getenv("TRADER_CLICKHOUSE_DSN")
	}
	if dsn == "" {
		return nil, fmt.Errorf("--clickhouse-dsn or --fetch is required")
	}
	if fromTime == "" {
		return nil, fmt.Errorf("--from is required with --clickhouse-dsn")
	}
	from, err := time.Parse(time.RFC3339, fromTime)
	if err != nil {
		return nil, fmt.Errorf("parse --from: %w", err)
	}
	to := time.Now()
	if toTime != "" {
		to, err = time.Parse(time.RFC3339, toTime)
		if err != nil {
			return nil, fmt.Errorf("parse --to: %w", err)
		}
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	store := chstore.NewCandleStore(conn)
	return store.GetByTimeRange(ctx, symbol, interval, from.UnixMilli(), to.UnixMilli())
}

// periodsPerYear maps the kline interval onto the annualization factor
// used for the Sharpe ratio.
func periodsPerYear(interval string) float64 {
	switch interval {
	case domain.Interval5Min:
		return 365 * 24 * 12
	case domain.Interval1Day:
		return 365
	default:
		return metrics.PeriodsPerYearHourly
	}
}

func printJSON(result *backtest.Result, summary *metrics.Summary) {
	out := struct {
		Result  *backtest.Result `json:"result"`
		Summary *metrics.Summary `json:"summary"`
	}{result, summary}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func printText(result *backtest.Result, summary *metrics.Summary) {
	fmt.Printf("Backtest %s on %s\n", result.StrategyID, result.Symbol)
	fmt.Printf("  Initial capital:  %.2f\n", result.InitialCapital)
	fmt.Printf("  Final equity:     %.2f\n", result.FinalEquity)
	fmt.Printf("  Total return:     %.2f%%\n", summary.TotalReturnPct)
	fmt.Printf("  Trades:           %d (%d wins / %d losses)\n", summary.TotalTrades, summary.Wins, summary.Losses)
	fmt.Printf("  Win rate:         %.1f%%\n", summary.WinRate*100)
	fmt.Printf("  Profit factor:    %.2f\n", summary.ProfitFactor)
	fmt.Printf("  Avg win / loss:   %.2f / %.2f\n", summary.AvgWin, summary.AvgLoss)
	fmt.Printf("  Best / worst:     %.2f / %.2f\n", summary.BestTradePnL, summary.WorstTradePnL)
	fmt.Printf("  Max drawdown:     %.2f%%\n", summary.MaxDrawdownPct)
	fmt.Printf("  Sharpe ratio:     %.2f\n", summary.SharpeRatio)
	fmt.Printf("  Max loss streak:  %d\n", summary.MaxConsecutiveLosses)
}
