package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-trader/internal/bot"
	"spot-trader/internal/config"
	"spot-trader/internal/domain"
	"spot-trader/internal/execution"
	"spot-trader/internal/market"
	"spot-trader/internal/observability"
	"spot-trader/internal/position"
	"spot-trader/internal/sizing"
	"spot-trader/internal/storage"
	"spot-trader/internal/storage/memory"
	"spot-trader/internal/storage/migrations"
	pgstore "spot-trader/internal/storage/postgres"
	"spot-trader/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Trading symbol override, e.g. BTCUSDT")
	interval := flag.String("interval", "", "Kline interval override: 5, 60 or D")
	mode := flag.String("mode", "", "Trading mode override: paper or live")
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	applyOverrides(cfg, *symbol, *interval, *mode)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	strat, err := strategy.FromConfig(cfg.StrategyConfig())
	if err != nil {
		logger.Fatalf("Strategy error: %v", err)
	}

	sizer, err := sizing.NewSizer(cfg.Sizing.RiskPerTrade, cfg.Sizing.FixedTradeAmount, cfg.Sizing.SafetyMargin)
	if err != nil {
		logger.Fatalf("Sizing error: %v", err)
	}

	executor, err := buildExecutor(cfg, logger)
	if err != nil {
		logger.Fatalf("Executor error: %v", err)
	}

	tracker, err := position.NewTracker(position.Options{
		Symbol:     cfg.Symbol,
		StrategyID: strat.ID(),
		Mode:       cfg.Mode,
		Executor:   executor,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("Tracker error: %v", err)
	}

	provider := market.NewBybitProvider(market.BybitOptions{
		BaseURL: cfg.Exchange.BaseURL,
		Logger:  logger,
	})

	trades, cleanup, err := buildTradeStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Storage error: %v", err)
	}
	defer cleanup()

	var ticks <-chan market.Tick
	if cfg.Exchange.WSURL != "" {
		stream, err := market.NewTickerStream(ctx, cfg.Exchange.WSURL, cfg.Symbol, nil, logger)
		if err != nil {
			// Ticks only feed gauges; candle polling still works without them.
			logger.Printf("Ticker stream unavailable, continuing without live ticks: %v", err)
		} else {
			defer stream.Close()
			ticks = stream.Ticks()
		}
	}

	runner, err := bot.NewRunner(bot.Options{
		Symbol:         cfg.Symbol,
		Interval:       cfg.Interval,
		Strategy:       strat,
		Sizer:          sizer,
		Provider:       provider,
		Tracker:        tracker,
		Trades:         trades,
		Ticks:          ticks,
		InitialBalance: cfg.Backtest.InitialCapital,
		PollInterval:   cfg.PollInterval,
		MaxHoldBars:    cfg.MaxHoldBars,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("Runner error: %v", err)
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Runner exited: %v", err)
	}
	logger.Println("Shutdown complete")
}

func applyOverrides(cfg *config.Config, symbol, interval, mode string) {
	if symbol != "" {
		cfg.Symbol = symbol
	}
	if interval != "" {
		cfg.Interval = interval
	}
	if mode != "" {
		cfg.Mode = mode
	}
}

// buildExecutor returns a paper simulator or a live Bybit client
// depending on the configured mode.
func buildExecutor(cfg *config.Config, logger *log.Logger) (execution.Executor, error) {
	if cfg.Mode == domain.ModeLive {
		return execution.NewBybitExecutor(execution.BybitOptions{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Symbol:    cfg.Symbol,
			QtyStep:   cfg.Exchange.QtyStep,
			BaseURL:   cfg.Exchange.BaseURL,
			Logger:    logger,
		})
	}
	return execution.NewPaperExecutor(execution.PaperOptions{
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageRate:   cfg.Backtest.SlippageRate,
		Logger:         logger,
	}), nil
}

// buildTradeStore connects to PostgreSQL when a DSN is configured,
// falling back to in-memory storage.
func buildTradeStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.TradeRecordStore, func(), error) {
	if cfg.Storage.PostgresDSN == "" {
		logger.Println("No PostgreSQL DSN configured, trade records held in memory")
		return memory.NewTradeRecordStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(connectCtx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgres(connectCtx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Println("Connected to PostgreSQL")
	return pgstore.NewTradeRecordStore(pool), pool.Close, nil
}
