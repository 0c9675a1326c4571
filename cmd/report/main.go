package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"spot-trader/internal/reporting"
	"spot-trader/internal/storage/migrations"
	pgstore "spot-trader/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	fromTime := flag.String("from", "", "Report period start (RFC3339), defaults to 30 days ago")
	toTime := flag.String("to", "", "Report period end (RFC3339), defaults to now")
	outputDir := flag.String("output-dir", "", "Write report files here instead of stdout")
	format := flag.String("format", "markdown", "Output format: markdown or csv (ignored with --output-dir, which writes both)")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	dsn := *postgresDSN
	if dsn == "" {
		dsn = os.Getenv("TRADER_POSTGRES_DSN")
	}
	if dsn == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	to := time.Now()
	from := to.Add(-30 * 24 * time.Hour)
	var err error
	if *fromTime != "" {
		from, err = time.Parse(time.RFC3339, *fromTime)
		if err != nil {
			logger.Fatalf("Parse --from: %v", err)
		}
	}
	if *toTime != "" {
		to, err = time.Parse(time.RFC3339, *toTime)
		if err != nil {
			logger.Fatalf("Parse --to: %v", err)
		}
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		logger.Fatalf("PostgreSQL connection error: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		logger.Fatalf("PostgreSQL migration error: %v", err)
	}

	generator := reporting.NewGenerator(pgstore.NewTradeRecordStore(pool))
	report, err := generator.Generate(ctx, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		logger.Fatalf("Report generation error: %v", err)
	}
	logger.Printf("Report covers %d trades from %s to %s", report.TotalTrades, from.Format(time.RFC3339), to.Format(time.RFC3339))

	if *outputDir != "" {
		if err := writeFiles(*outputDir, report); err != nil {
			logger.Fatalf("Write error: %v", err)
		}
		logger.Printf("Report written to %s", *outputDir)
		return
	}

	switch *format {
	case "markdown":
		fmt.Print(reporting.RenderMarkdown(report))
	case "csv":
		fmt.Print(reporting.RenderCSV(report))
	default:
		logger.Fatalf("Unknown format: %s. Must be markdown or csv", *format)
	}
}

func writeFiles(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	md := filepath.Join(dir, "performance_report.md")
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}
	csv := filepath.Join(dir, "trades.csv")
	return os.WriteFile(csv, []byte(reporting.RenderCSV(report)), 0o644)
}
