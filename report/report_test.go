package report_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/backtester/engine"
	"github.com/oarkflow/backtester/report"
)

func sampleParams() *engine.StrategyParams {
	return &engine.StrategyParams{
		Direction: "buy",
		Symbol:    "VOO",
		Timeframe: "1d",
		EntryConditions: []engine.Condition{
			{Indicator: "SMA", Variable: "sma_20", Comparison: ">", Threshold: 100,
				Params: map[string]interface{}{"timeperiod": 20}},
		},
		ExitConditions: []engine.Condition{
			{Comparison: "<", Variable: "sma_20", Threshold: 95},
		},
		StopLoss:     5,
		TargetProfit: 10,
	}
}

func sampleResult() *engine.BacktestResult {
	trace := make([]engine.ConditionTrace, 0, 25)
	for i := 0; i < 25; i++ {
		trace = append(trace, engine.ConditionTrace{
			BarIndex: 30 + i, Stage: engine.StageEntry,
			Variable: "sma_20", Comparison: ">", Threshold: 100, Value: 101, Satisfied: true,
		})
	}
	return &engine.BacktestResult{
		Symbol:         "VOO",
		Direction:      engine.Long,
		InitialCapital: 100000,
		FinalValue:     110000,
		Returns:        10,
		WinRate:        0.5,
		MaxDrawdown:    4.2,
		SharpeRatio:    1.3,
		TradeCount:     2,
		WinningTrades:  1,
		LosingTrades:   1,
		Trades: []engine.Trade{
			{EntryTime: 86400, EntryPrice: 100, ExitTime: 86400 * 3, ExitPrice: 110,
				ExitReason: engine.ExitTargetProfit, ProfitPct: 10},
			{EntryTime: 86400 * 5, EntryPrice: 110, ExitTime: 86400 * 7, ExitPrice: 104,
				ExitReason: engine.ExitStopLoss, ProfitPct: -5.45},
		},
		Trace: trace,
	}
}

func TestGenerate(t *testing.T) {
	md := report.Generate("sma breakout", sampleParams(), sampleResult())

	assert.Contains(t, md, "# Backtest Report: sma breakout")
	assert.Contains(t, md, "- **Symbol**: VOO")
	assert.Contains(t, md, "- **Returns**: 10.00%")
	assert.Contains(t, md, "- **Win Rate**: 50.00%")
	assert.Contains(t, md, "- **Trades**: 2 (1 winning, 1 losing)")
	assert.Contains(t, md, "### Entry Conditions")
	assert.Contains(t, md, "Create indicator: SMA as sma_20")
	assert.Contains(t, md, "When sma_20 < 95")
	assert.Contains(t, md, "**Stop Loss**: 5%")
	assert.Contains(t, md, "target_profit")
	assert.Contains(t, md, "stop_loss")
	assert.Contains(t, md, "### Exit Reasons")
	assert.Contains(t, md, "- stop_loss: 1")
	assert.Contains(t, md, "- target_profit: 1")
	// the trace table is capped for readability
	assert.Contains(t, md, "*Table truncated to 20 rows for readability.*")
}

func TestGenerateWithoutTrades(t *testing.T) {
	result := sampleResult()
	result.Trades = nil
	result.TradeCount = 0
	result.Trace = nil

	md := report.Generate("idle", sampleParams(), result)
	assert.Contains(t, md, "## Trade List")
	assert.NotContains(t, md, "### Exit Reasons")
	assert.NotContains(t, md, "Table truncated")
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path, err := report.Save("sma breakout", sampleParams(), sampleResult(), dir, "abc123")
	require.NoError(t, err)
	assert.Contains(t, path, "backtest_report_abc123.md")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Backtest Report: sma breakout")
}
