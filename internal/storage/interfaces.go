// Package storage defines the persistence contracts for trade records
// and candle history. Implementations live in the memory, postgres and
// clickhouse subpackages.
package storage

import (
	"context"

	"spot-trader/internal/domain"
)

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetBySymbol retrieves all trades for a symbol, ordered by entry_time_ms ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeRecord, error)

	// GetByStrategy retrieves all trades for a strategy, ordered by entry_time_ms ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.TradeRecord, error)

	// GetByTimeRange retrieves trades entered within [start, end] (inclusive),
	// ordered by entry_time_ms ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeRecord, error)
}

// CandleStore provides access to candle history storage.
type CandleStore interface {
	// InsertBulk adds multiple candles. Fails entire batch on duplicate
	// (symbol, interval, timestamp_ms).
	InsertBulk(ctx context.Context, symbol, interval string, candles []domain.Candle) error

	// GetByTimeRange retrieves candles within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error)

	// GetLatest retrieves the most recent n candles, ordered by timestamp ASC.
	GetLatest(ctx context.Context, symbol, interval string, n int) ([]domain.Candle, error)
}
