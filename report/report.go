package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oarkflow/backtester/engine"
)

const traceRowLimit = 20

// Generate renders a markdown report for one backtest run.
func Generate(name string, params *engine.StrategyParams, result *engine.BacktestResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Backtest Report: %s\n\n", name)
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- **Strategy**: %s (%s)\n", name, params.Direction)
	fmt.Fprintf(&b, "- **Symbol**: %s\n", result.Symbol)
	fmt.Fprintf(&b, "- **Timeframe**: %s\n", params.Timeframe)
	fmt.Fprintf(&b, "- **Initial Capital**: %.2f\n", result.InitialCapital)
	fmt.Fprintf(&b, "- **Final Value**: %.2f\n", result.FinalValue)
	fmt.Fprintf(&b, "- **Returns**: %.2f%%\n", result.Returns)
	fmt.Fprintf(&b, "- **Win Rate**: %.2f%%\n", result.WinRate*100)
	fmt.Fprintf(&b, "- **Max Drawdown**: %.2f%%\n", result.MaxDrawdown)
	fmt.Fprintf(&b, "- **Sharpe Ratio**: %.2f\n", result.SharpeRatio)
	fmt.Fprintf(&b, "- **Trades**: %d (%d winning, %d losing)\n",
		result.TradeCount, result.WinningTrades, result.LosingTrades)

	b.WriteString("\n## Entry & Exit Conditions\n")
	writeConditions(&b, "Entry Conditions", params.EntryConditions)
	writeConditions(&b, "Exit Conditions", params.ExitConditions)
	fmt.Fprintf(&b, "\n**Stop Loss**: %v%%\n", params.StopLoss)
	fmt.Fprintf(&b, "**Take Profit**: %v%%\n", params.TargetProfit)

	b.WriteString("\n## Trade List\n")
	b.WriteString("| # | Entry Time | Entry Price | Exit Time | Exit Price | Reason | Profit % |\n")
	b.WriteString("|---|-----------|-------------|-----------|------------|--------|----------|\n")
	for i, t := range result.Trades {
		fmt.Fprintf(&b, "| %d | %s | %.2f | %s | %.2f | %s | %.2f |\n",
			i+1, formatTime(t.EntryTime), t.EntryPrice,
			formatTime(t.ExitTime), t.ExitPrice, t.ExitReason, t.ProfitPct)
	}

	if len(result.Trades) > 0 {
		b.WriteString("\n### Exit Reasons\n")
		counts := map[string]int{}
		for _, t := range result.Trades {
			counts[string(t.ExitReason)]++
		}
		reasons := make([]string, 0, len(counts))
		for r := range counts {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", r, counts[r])
		}
	}

	b.WriteString("\n### Condition Evaluation Tracking\n")
	b.WriteString("The table below shows how conditions were evaluated at key decision points:\n\n")
	b.WriteString("| Bar | Stage | Variable | Value | Comparison | Threshold | Result |\n")
	b.WriteString("|-----|-------|----------|-------|------------|-----------|--------|\n")
	shown := 0
	for _, trace := range result.Trace {
		if shown >= traceRowLimit {
			break
		}
		value := fmt.Sprintf("%.4f", trace.Value)
		if trace.Missing {
			value = "missing"
		}
		outcome := "no"
		if trace.Satisfied {
			outcome = "yes"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %v | %s |\n",
			trace.BarIndex, trace.Stage, trace.Variable, value,
			trace.Comparison, trace.Threshold, outcome)
		shown++
	}
	if len(result.Trace) > traceRowLimit {
		b.WriteString("\n*Table truncated to 20 rows for readability.*\n")
	}

	return b.String()
}

// Save writes the report to dir and returns the path to the file.
func Save(name string, params *engine.StrategyParams, result *engine.BacktestResult, dir, id string) (string, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("backtest_report_%s.md", id))
	if err := os.WriteFile(path, []byte(Generate(name, params, result)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func writeConditions(b *strings.Builder, title string, conds []engine.Condition) {
	fmt.Fprintf(b, "### %s\n", title)
	for i, cond := range conds {
		if cond.Indicator != "" {
			fmt.Fprintf(b, "%d. Create indicator: %s as %s", i+1, cond.Indicator, cond.Variable)
			if len(cond.Params) > 0 {
				keys := make([]string, 0, len(cond.Params))
				for k := range cond.Params {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				parts := make([]string, 0, len(keys))
				for _, k := range keys {
					parts = append(parts, fmt.Sprintf("%s=%v", k, cond.Params[k]))
				}
				fmt.Fprintf(b, " with parameters: %s", strings.Join(parts, ", "))
			}
			b.WriteString("\n")
			continue
		}
		if cond.Comparison != "" {
			fmt.Fprintf(b, "%d. When %s %s %v\n", i+1, cond.Variable, cond.Comparison, cond.Threshold)
		}
	}
	b.WriteString("\n")
}

func formatTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}
