package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spot-trader/internal/domain"
	"spot-trader/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	trade_id, symbol, strategy_id, side,
	quantity, entry_price, exit_price, pnl, pnl_pct,
	exit_reason, entry_time_ms, exit_time_ms,
	sizing_method, mode
`

const insertTradeRecordQuery = `
	INSERT INTO trade_records (
		trade_id, symbol, strategy_id, side,
		quantity, entry_price, exit_price, pnl, pnl_pct,
		exit_reason, entry_time_ms, exit_time_ms,
		sizing_method, mode
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		$10, $11, $12,
		$13, $14
	)
`

func insertArgs(t *domain.TradeRecord) []interface{} {
	return []interface{}{
		t.TradeID, t.Symbol, t.StrategyID, string(t.Side),
		t.Quantity, t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPct,
		t.ExitReason, t.EntryTimeMs, t.ExitTimeMs,
		t.SizingMethod, t.Mode,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeRecordQuery, insertArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeRecordQuery, insertArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetBySymbol retrieves all trades for a symbol, ordered by entry_time_ms ASC.
func (s *TradeRecordStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE symbol = $1
		ORDER BY entry_time_ms ASC`
	return s.queryTradeRecords(ctx, query, symbol)
}

// GetByStrategy retrieves all trades for a strategy, ordered by entry_time_ms ASC.
func (s *TradeRecordStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE strategy_id = $1
		ORDER BY entry_time_ms ASC`
	return s.queryTradeRecords(ctx, query, strategyID)
}

// GetByTimeRange retrieves trades entered within [start, end] (inclusive).
func (s *TradeRecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE entry_time_ms >= $1 AND entry_time_ms <= $2
		ORDER BY entry_time_ms ASC`
	return s.queryTradeRecords(ctx, query, start, end)
}

func (s *TradeRecordStore) queryTradeRecords(ctx context.Context, query string, args ...interface{}) ([]*domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trade records: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade records: %w", err)
	}
	return result, nil
}

func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side string
	err := row.Scan(
		&t.TradeID, &t.Symbol, &t.StrategyID, &side,
		&t.Quantity, &t.EntryPrice, &t.ExitPrice, &t.PnL, &t.PnLPct,
		&t.ExitReason, &t.EntryTimeMs, &t.ExitTimeMs,
		&t.SizingMethod, &t.Mode,
	)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	return &t, nil
}
