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

	"spot-trader/internal/domain"
	"spot-trader/internal/market"
	"spot-trader/internal/observability"
	"spot-trader/internal/storage"
	chstore "spot-trader/internal/storage/clickhouse"
	"spot-trader/internal/storage/memory"
	"spot-trader/internal/storage/migrations"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "60", "Kline interval: 5, 60 or D")
	bars := flag.Int("bars", 200, "Number of closed candles to fetch per pass")
	baseURL := flag.String("base-url", "", "Bybit REST endpoint override")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	follow := flag.Duration("follow", 0, "Keep polling at this interval (0 = single pass)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
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

	var candleStore storage.CandleStore
	if *useMemory {
		candleStore = memory.NewCandleStore()
	} else {
		dsn := *clickhouseDSN
		if dsn == "" {
			dsn = os.Getenv("TRADER_CLICKHOUSE_DSN")
		}
		if dsn == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
		}
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			logger.Fatalf("ClickHouse connection error: %v", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			logger.Fatalf("ClickHouse migration error: %v", err)
		}
		candleStore = chstore.NewCandleStore(conn)
	}

	provider := market.NewBybitProvider(market.BybitOptions{
		BaseURL: *baseURL,
		Logger:  logger,
	})

	if err := ingestOnce(ctx, provider, candleStore, logger, *symbol, *interval, *bars); err != nil {
		logger.Fatalf("Ingest error: %v", err)
	}
	if *follow <= 0 {
		return
	}

	ticker := time.NewTicker(*follow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case <-ticker.C:
			if err := ingestOnce(ctx, provider, candleStore, logger, *symbol, *interval, *bars); err != nil {
				logger.Printf("Ingest pass failed, retrying next tick: %v", err)
			}
		}
	}
}

// ingestOnce fetches one window of closed candles and stores the ones
// not seen before.
func ingestOnce(ctx context.Context, provider market.Provider, store storage.CandleStore, logger *log.Logger, symbol, interval string, bars int) error {
	candles, err := provider.FetchWindow(ctx, symbol, interval, bars)
	if err != nil {
		observability.RecordFetchError()
		return err
	}

	stored, err := insertNew(ctx, store, symbol, interval, candles)
	if err != nil {
		return err
	}

	observability.RecordCandlesIngested(stored)
	logger.Printf("Fetched %d candles for %s/%s, stored %d new", len(candles), symbol, interval, stored)
	return nil
}

// insertNew bulk-inserts the window, falling back to per-candle inserts
// when part of it already exists. Re-running over an overlapping window
// is the normal case in follow mode.
func insertNew(ctx context.Context, store storage.CandleStore, symbol, interval string, candles []domain.Candle) (int, error) {
	err := store.InsertBulk(ctx, symbol, interval, candles)
	if err == nil {
		return len(candles), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, err
	}

	stored := 0
	for _, c := range candles {
		err := store.InsertBulk(ctx, symbol, interval, []domain.Candle{c})
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}
