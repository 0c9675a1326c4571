// Package memory provides in-memory store implementations for tests,
// paper runs and backtests.
package memory

import (
	"context"
	"sort"
	"sync"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TradeID] = &cp
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: reject existing and intra-batch duplicates.
	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		cp := *t
		s.data[t.TradeID] = &cp
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetBySymbol retrieves all trades for a symbol, ordered by entry_time_ms ASC.
func (s *TradeRecordStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.TradeRecord, error) {
	return s.filter(func(t *domain.TradeRecord) bool { return t.Symbol == symbol }), nil
}

// GetByStrategy retrieves all trades for a strategy, ordered by entry_time_ms ASC.
func (s *TradeRecordStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.TradeRecord, error) {
	return s.filter(func(t *domain.TradeRecord) bool { return t.StrategyID == strategyID }), nil
}

// GetByTimeRange retrieves trades entered within [start, end] (inclusive).
func (s *TradeRecordStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TradeRecord, error) {
	return s.filter(func(t *domain.TradeRecord) bool {
		return t.EntryTimeMs >= start && t.EntryTimeMs <= end
	}), nil
}

func (s *TradeRecordStore) filter(keep func(*domain.TradeRecord) bool) []*domain.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if keep(t) {
			cp := *t
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryTimeMs < result[j].EntryTimeMs
	})
	return result
}
