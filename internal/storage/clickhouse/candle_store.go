package clickhouse

import (
	"context"
	"fmt"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Fails entire batch on duplicate
// (symbol, interval, timestamp_ms). MergeTree does not enforce
// uniqueness, so duplicates are checked explicitly before the batch
// is sent.
func (s *CandleStore) InsertBulk(ctx context.Context, symbol, interval string, candles []domain.Candle) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := seen[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.TimestampMs] = struct{}{}
	}

	for _, c := range candles {
		exists, err := s.exists(ctx, symbol, interval, c.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, interval, uint64(c.TimestampMs),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ?
		  AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`
	return s.queryCandles(ctx, query, symbol, interval, uint64(start), uint64(end))
}

// GetLatest retrieves the most recent n candles, ordered by timestamp ASC.
func (s *CandleStore) GetLatest(ctx context.Context, symbol, interval string, n int) ([]domain.Candle, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	// Newest first under the limit, then flipped to ascending.
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp_ms DESC
		LIMIT ?
	`
	candles, err := s.queryCandles(ctx, query, symbol, interval, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func (s *CandleStore) queryCandles(ctx context.Context, query string, args ...interface{}) ([]domain.Candle, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var result []domain.Candle
	for rows.Next() {
		var ts uint64
		var c domain.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.TimestampMs = int64(ts)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}
	return result, nil
}

func (s *CandleStore) exists(ctx context.Context, symbol, interval string, timestampMs int64) (bool, error) {
	query := `
		SELECT count() FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp_ms = ?
	`
	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol, interval, uint64(timestampMs)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
