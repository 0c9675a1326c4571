package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the included trades as a CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("trade_id,symbol,strategy_id,side,quantity,entry_price,exit_price,")
	sb.WriteString("pnl,pnl_pct,exit_reason,entry_time_ms,exit_time_ms,sizing_method,mode\n")

	for _, t := range r.Trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.8f,%.8f,%.8f,%.8f,%.6f,%s,%d,%d,%s,%s\n",
			t.TradeID,
			t.Symbol,
			t.StrategyID,
			t.Side,
			t.Quantity,
			t.EntryPrice,
			t.ExitPrice,
			t.PnL,
			t.PnLPct,
			t.ExitReason,
			t.EntryTimeMs,
			t.ExitTimeMs,
			t.SizingMethod,
			t.Mode,
		))
	}

	return sb.String()
}
