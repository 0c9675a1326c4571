package memory

import (
	"context"
	"sort"
	"sync"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

type seriesKey struct {
	symbol   string
	interval string
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[seriesKey]map[int64]domain.Candle // keyed by timestamp_ms
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[seriesKey]map[int64]domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Fails entire batch on duplicate
// (symbol, interval, timestamp_ms).
func (s *CandleStore) InsertBulk(_ context.Context, symbol, interval string, candles []domain.Candle) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, interval}
	series := s.data[key]

	batchKeys := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := series[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.TimestampMs] = struct{}{}
	}

	if series == nil {
		series = make(map[int64]domain.Candle, len(candles))
		s.data[key] = series
	}
	for _, c := range candles {
		series[c.TimestampMs] = c
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for ts, c := range s.data[seriesKey{symbol, interval}] {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetLatest retrieves the most recent n candles, ordered by timestamp ASC.
func (s *CandleStore) GetLatest(_ context.Context, symbol, interval string, n int) ([]domain.Candle, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[seriesKey{symbol, interval}]
	result := make([]domain.Candle, 0, len(series))
	for _, c := range series {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	if len(result) > n {
		result = result[len(result)-n:]
	}
	return result, nil
}
