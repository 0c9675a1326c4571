package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

func testCandles(n int, startMs int64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		px := float64(100 + i)
		out[i] = domain.Candle{
			TimestampMs: startMs + int64(i)*3_600_000,
			Open:        px, High: px + 1, Low: px - 1, Close: px + 0.5,
			Volume: 10,
		}
	}
	return out
}

func TestCandleStore_InsertAndRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := testCandles(5, 1_700_000_000_000)
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, candles))

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", domain.Interval1Hour,
		candles[1].TimestampMs, candles[3].TimestampMs)
	require.NoError(t, err)
	require.Len(t, got, 3, "range bounds are inclusive")
	assert.Equal(t, candles[1].TimestampMs, got[0].TimestampMs)
	assert.Equal(t, candles[3].Close, got[2].Close)
}

func TestCandleStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := testCandles(3, 1_700_000_000_000)
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, candles))

	err := store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, candles[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The same timestamps under a different symbol are fine.
	require.NoError(t, store.InsertBulk(ctx, "ETHUSDT", domain.Interval1Hour, candles))
}

func TestCandleStore_GetLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := testCandles(10, 1_700_000_000_000)
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", domain.Interval1Hour, candles))

	got, err := store.GetLatest(ctx, "BTCUSDT", domain.Interval1Hour, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, candles[7].TimestampMs, got[0].TimestampMs, "ascending tail")
	assert.Equal(t, candles[9].TimestampMs, got[2].TimestampMs)

	_, err = store.GetLatest(ctx, "BTCUSDT", domain.Interval1Hour, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
