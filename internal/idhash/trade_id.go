package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade_id.
// Formula: base58(SHA256(symbol|strategy_id|entry_time_ms)[:16])
// The same entry always maps to the same ID, so a retried write of the
// same closed trade is rejected by the append-only store instead of
// producing a duplicate row.
func ComputeTradeID(symbol, strategyID string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", symbol, strategyID, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
