package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Trading Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Period: %d - %d (ms)\n\n", r.PeriodStartMs, r.PeriodEndMs))
	sb.WriteString(fmt.Sprintf("Total Trades: %d\n\n", r.TotalTrades))

	sb.WriteString("## Strategy Performance\n\n")
	if len(r.StrategyRows) == 0 {
		sb.WriteString("No trades in the selected period.\n\n")
	} else {
		sb.WriteString("| Strategy | Trades | Wins | Losses | Win Rate | Total PnL | Profit Factor | Avg Win | Avg Loss | Best | Worst | Max Loss Streak |\n")
		sb.WriteString("|----------|--------|------|--------|----------|-----------|---------------|---------|----------|------|-------|-----------------|\n")
		for _, row := range r.StrategyRows {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.2f%% | %.4f | %s | %.4f | %.4f | %.4f | %.4f | %d |\n",
				row.StrategyID,
				row.TotalTrades,
				row.Wins,
				row.Losses,
				row.WinRate*100,
				row.TotalPnL,
				formatProfitFactor(row.ProfitFactor),
				row.AvgWin,
				row.AvgLoss,
				row.BestTradePnL,
				row.WorstTradePnL,
				row.MaxConsecutiveLosses,
			))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Trades\n\n")
	if len(r.Trades) == 0 {
		sb.WriteString("None.\n")
	} else {
		sb.WriteString("| Trade ID | Symbol | Strategy | Side | Qty | Entry | Exit | PnL | PnL % | Reason | Mode |\n")
		sb.WriteString("|----------|--------|----------|------|-----|-------|------|-----|-------|--------|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.6f | %.4f | %.4f | %.4f | %.2f%% | %s | %s |\n",
				t.TradeID, t.Symbol, t.StrategyID, t.Side,
				t.Quantity, t.EntryPrice, t.ExitPrice,
				t.PnL, t.PnLPct, t.ExitReason, t.Mode,
			))
		}
	}

	return sb.String()
}

func formatProfitFactor(pf float64) string {
	if pf > 1e12 {
		return "inf"
	}
	return fmt.Sprintf("%.4f", pf)
}
