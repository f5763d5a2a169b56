package engine_test

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/backtester/engine"
)

func init() {
	logrus.SetLevel(logrus.ErrorLevel)
}

const day = int64(86400)

// makeFrame builds a frame of flat OHLC bars from the close series.
func makeFrame(closes []float64) *engine.BarFrame {
	frame := &engine.BarFrame{Symbol: "VOO"}
	for i, c := range closes {
		frame.Bars = append(frame.Bars, engine.Bar{
			Time: int64(i) * day, Open: c, High: c, Low: c, Close: c, Volume: 1000,
		})
	}
	return frame
}

func constantCloses(n int, value float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return closes
}

// signal makes a column that is 1 at the given bar indexes and 0 elsewhere.
func signal(n int, onBars ...int) []float64 {
	values := make([]float64, n)
	for _, i := range onBars {
		values[i] = 1
	}
	return values
}

func baseParams() engine.StrategyParams {
	return engine.StrategyParams{
		Direction: "buy",
		Symbol:    "VOO",
		Timeframe: "1d",
		EntryConditions: []engine.Condition{
			{Comparison: ">", Variable: "sig", Threshold: 0.5},
		},
		StopLoss:     5,
		TargetProfit: 10,
	}
}

func run(t *testing.T, params engine.StrategyParams, frame *engine.BarFrame) *engine.BacktestResult {
	t.Helper()
	strategy, err := engine.Compile(params)
	require.NoError(t, err)
	result, err := engine.NewRunner(strategy, engine.RunnerConfig{}).Run(frame)
	require.NoError(t, err)
	return result
}

func TestRunEntersAfterWarmup(t *testing.T) {
	n := 100
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n, 50))

	result := run(t, baseParams(), frame)

	require.Equal(t, 1, result.TradeCount)
	trade := result.Trades[0]
	assert.Equal(t, int64(50)*day, trade.EntryTime)
	assert.Equal(t, 100.0, trade.EntryPrice)
	// flat prices, so only the holding limit can close it, one bar past the limit
	assert.Equal(t, engine.ExitMaxHolding, trade.ExitReason)
	assert.Equal(t, int64(50+engine.DefaultMaxHoldingPeriod+1)*day, trade.ExitTime)
	assert.Equal(t, 0.0, trade.ProfitPct)
}

func TestRunIgnoresSignalsDuringWarmup(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n, 5, 10, 29))

	result := run(t, baseParams(), frame)

	assert.Zero(t, result.TradeCount)
	require.Len(t, result.EquityCurve, n)
	for _, point := range result.EquityCurve {
		assert.Equal(t, engine.DefaultInitialCapital, int(point.Value))
		assert.Zero(t, point.Return)
	}
	assert.Zero(t, result.MaxDrawdown)
	assert.Zero(t, result.SharpeRatio)
}

func TestRunEntryOnWarmupBoundary(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n, 29, 30))

	result := run(t, baseParams(), frame)

	// bar 29 is still warm-up, bar 30 is the first eligible bar
	require.Equal(t, 1, result.TradeCount)
	assert.Equal(t, int64(30)*day, result.Trades[0].EntryTime)
}

func TestRunStopLoss(t *testing.T) {
	n := 100
	closes := constantCloses(n, 100)
	closes[31] = 96
	for i := 32; i < n; i++ {
		closes[i] = 90
	}
	frame := makeFrame(closes)
	frame.SetColumn("sig", signal(n, 30))

	params := baseParams()
	result := run(t, params, frame)

	require.Equal(t, 1, result.TradeCount)
	trade := result.Trades[0]
	assert.Equal(t, engine.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, int64(32)*day, trade.ExitTime)
	assert.InDelta(t, -10.0, trade.ProfitPct, 1e-9)
	assert.InDelta(t, -10.0, trade.ProfitPoints, 1e-9)

	assert.InDelta(t, 90000.0, result.FinalValue, 1e-6)
	assert.InDelta(t, -10.0, result.Returns, 1e-9)
	assert.GreaterOrEqual(t, result.MaxDrawdown, 10.0)
	assert.Zero(t, result.WinRate)
	assert.Equal(t, 1, result.LosingTrades)
}

func TestRunTargetProfit(t *testing.T) {
	n := 100
	closes := constantCloses(n, 100)
	for i := 35; i < n; i++ {
		closes[i] = 112
	}
	frame := makeFrame(closes)
	frame.SetColumn("sig", signal(n, 30))

	result := run(t, baseParams(), frame)

	require.Equal(t, 1, result.TradeCount)
	trade := result.Trades[0]
	assert.Equal(t, engine.ExitTargetProfit, trade.ExitReason)
	assert.InDelta(t, 12.0, trade.ProfitPct, 1e-9)
	assert.InDelta(t, 112000.0, result.FinalValue, 1e-6)
	assert.Equal(t, 1.0, result.WinRate)
}

func TestRunStopLossBeatsExitCondition(t *testing.T) {
	n := 60
	closes := constantCloses(n, 100)
	for i := 31; i < n; i++ {
		closes[i] = 90
	}
	frame := makeFrame(closes)
	frame.SetColumn("sig", signal(n, 30))
	always := make([]float64, n)
	for i := range always {
		always[i] = 1
	}
	frame.SetColumn("out", always)

	params := baseParams()
	params.ExitConditions = []engine.Condition{
		{Comparison: ">", Variable: "out", Threshold: 0.5},
	}
	result := run(t, params, frame)

	require.NotEmpty(t, result.Trades)
	assert.Equal(t, engine.ExitStopLoss, result.Trades[0].ExitReason)
}

func TestRunExitCondition(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n, 30))
	frame.SetColumn("out", signal(n, 34))

	params := baseParams()
	params.ExitConditions = []engine.Condition{
		{Comparison: ">", Variable: "out", Threshold: 0.5},
	}
	result := run(t, params, frame)

	require.Equal(t, 1, result.TradeCount)
	trade := result.Trades[0]
	assert.Equal(t, engine.ExitCondition, trade.ExitReason)
	assert.Equal(t, int64(34)*day, trade.ExitTime)
	assert.Zero(t, trade.ProfitPct)
}

func TestRunShortDirection(t *testing.T) {
	n := 60
	closes := constantCloses(n, 100)
	for i := 35; i < n; i++ {
		closes[i] = 90
	}
	frame := makeFrame(closes)
	frame.SetColumn("sig", signal(n, 30))

	params := baseParams()
	params.Direction = "sell"
	result := run(t, params, frame)

	require.Equal(t, 1, result.TradeCount)
	trade := result.Trades[0]
	assert.Equal(t, engine.ExitTargetProfit, trade.ExitReason)
	assert.InDelta(t, (100.0/90.0-1)*100, trade.ProfitPct, 1e-9)
	assert.Equal(t, engine.Short, result.Direction)
}

func TestRunMissingVariableIsRecoverable(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	// "sig" never decorated

	result := run(t, baseParams(), frame)

	assert.Zero(t, result.TradeCount)
	require.NotEmpty(t, result.Trace)
	for _, trace := range result.Trace {
		assert.True(t, trace.Missing)
		assert.False(t, trace.Satisfied)
		assert.True(t, math.IsNaN(trace.Value))
	}
}

func TestRunEntryConditionsAreOrCombined(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("a", signal(n))
	frame.SetColumn("b", signal(n, 40))

	params := baseParams()
	params.EntryConditions = []engine.Condition{
		{Comparison: ">", Variable: "a", Threshold: 0.5},
		{Comparison: ">", Variable: "b", Threshold: 0.5},
	}
	result := run(t, params, frame)

	require.Equal(t, 1, result.TradeCount)
	assert.Equal(t, int64(40)*day, result.Trades[0].EntryTime)

	// both conditions are traced on the entry bar even though the first
	// one already failed
	entryTraces := 0
	for _, trace := range result.Trace {
		if trace.BarIndex == 40 && trace.Stage == engine.StageEntry {
			entryTraces++
		}
	}
	assert.Equal(t, 2, entryTraces)
}

func TestRunEmptyBars(t *testing.T) {
	strategy, err := engine.Compile(baseParams())
	require.NoError(t, err)

	_, err = engine.NewRunner(strategy, engine.RunnerConfig{}).Run(&engine.BarFrame{})
	require.Error(t, err)
	verr, ok := engine.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, engine.EmptyBarStream, verr.Kind)
}

func TestRunEmptyEntryConditions(t *testing.T) {
	params := baseParams()
	params.EntryConditions = nil
	strategy, err := engine.Compile(params)
	require.NoError(t, err)

	_, err = engine.NewRunner(strategy, engine.RunnerConfig{}).Run(makeFrame(constantCloses(40, 100)))
	require.Error(t, err)
	verr, ok := engine.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, engine.EmptyEntryConditions, verr.Kind)
}

func TestRunSharpeFiniteOnConstantSeries(t *testing.T) {
	n := 60
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n))

	result := run(t, baseParams(), frame)

	assert.False(t, math.IsNaN(result.SharpeRatio))
	assert.False(t, math.IsInf(result.SharpeRatio, 0))
	assert.Zero(t, result.SharpeRatio)
}

func TestRunIsDeterministic(t *testing.T) {
	n := 100
	closes := constantCloses(n, 100)
	for i := 40; i < n; i++ {
		closes[i] = 100 + float64(i-40)
	}
	frame := makeFrame(closes)
	frame.SetColumn("sig", signal(n, 30, 60, 80))

	first := run(t, baseParams(), frame)
	second := run(t, baseParams(), frame)

	assert.Equal(t, first, second)
}

func TestRunEquityCurveLength(t *testing.T) {
	n := 75
	frame := makeFrame(constantCloses(n, 100))
	frame.SetColumn("sig", signal(n, 30))

	result := run(t, baseParams(), frame)

	assert.Len(t, result.EquityCurve, n)
	assert.Len(t, result.ReturnsSeries, n)
	assert.Zero(t, result.ReturnsSeries[0])
}
