package memory

import (
	"context"
	"errors"
	"testing"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

func sampleCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		px := float64(100 + i)
		out[i] = domain.Candle{
			TimestampMs: int64(i+1) * 1000,
			Open:        px, High: px + 1, Low: px - 1, Close: px,
			Volume: 10,
		}
	}
	return out
}

func TestCandleStore_InsertAndRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, sampleCandles(5)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", domain.Interval1Hour, 2000, 4000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3 (bounds inclusive)", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimestampMs <= got[i-1].TimestampMs {
			t.Fatalf("candles not ascending: %v", got)
		}
	}
}

func TestCandleStore_SeriesAreIsolated(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, sampleCandles(3)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	// Same timestamps under a different interval must not collide.
	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval5Min, sampleCandles(3)); err != nil {
		t.Fatalf("InsertBulk for second interval failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "ETHUSDT", domain.Interval1Hour, 0, 10_000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unrelated symbol returned %d candles", len(got))
	}
}

func TestCandleStore_DuplicateTimestamp(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, sampleCandles(3)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, sampleCandles(1))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	batch := []domain.Candle{
		{TimestampMs: 99_000, Close: 1},
		{TimestampMs: 99_000, Close: 2},
	}
	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("intra-batch duplicate: expected ErrDuplicateKey, got %v", err)
	}
}

func TestCandleStore_GetLatest(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, sampleCandles(10)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetLatest(ctx, "BTCUSDT", domain.Interval1Hour, 3)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	if got[0].TimestampMs != 8000 || got[2].TimestampMs != 10_000 {
		t.Errorf("GetLatest returned wrong tail: %v", got)
	}

	all, err := store.GetLatest(ctx, "BTCUSDT", domain.Interval1Hour, 100)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if len(all) != 10 {
		t.Errorf("got %d candles, want all 10", len(all))
	}

	if _, err := store.GetLatest(ctx, "BTCUSDT", domain.Interval1Hour, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCandleStore_InvalidInput(t *testing.T) {
	store := NewCandleStore()

	err := store.InsertBulk(context.Background(), "", domain.Interval1Hour, sampleCandles(1))
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
