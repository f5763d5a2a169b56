package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/backtester/engine"
)

func requireValidationError(t *testing.T, err error, kind engine.ValidationKind) {
	t.Helper()
	require.Error(t, err)
	verr, ok := engine.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, kind, verr.Kind)
}

func TestCompile(t *testing.T) {
	strategy, err := engine.Compile(baseParams())
	require.NoError(t, err)

	assert.Equal(t, engine.Long, strategy.Direction())
	assert.Equal(t, "VOO", strategy.Symbol())
	assert.Equal(t, 5.0, strategy.StopLoss())
	assert.Equal(t, 10.0, strategy.TargetProfit())
	assert.Equal(t, engine.DefaultMaxHoldingPeriod, strategy.MaxHoldingPeriod())
}

func TestCompileRejectsMissingStopLoss(t *testing.T) {
	params := baseParams()
	params.StopLoss = 0
	_, err := engine.Compile(params)
	requireValidationError(t, err, engine.InvalidStopLoss)

	params.StopLoss = -3
	_, err = engine.Compile(params)
	requireValidationError(t, err, engine.InvalidStopLoss)
}

func TestCompileRejectsMissingTargetProfit(t *testing.T) {
	params := baseParams()
	params.TargetProfit = 0
	_, err := engine.Compile(params)
	requireValidationError(t, err, engine.InvalidTargetProfit)
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	params := baseParams()
	params.EntryConditions[0].Comparison = "<>"
	_, err := engine.Compile(params)
	requireValidationError(t, err, engine.UnknownOperator)
}

func TestCompileRejectsBadVariableName(t *testing.T) {
	params := baseParams()
	params.EntryConditions[0].Variable = "1sig"
	_, err := engine.Compile(params)
	requireValidationError(t, err, engine.InvalidVariableName)

	params.EntryConditions[0].Variable = "close; drop"
	_, err = engine.Compile(params)
	requireValidationError(t, err, engine.InvalidVariableName)
}

func TestCompileAcceptsBothEqualsSpellings(t *testing.T) {
	for _, comparison := range []string{"=", "=="} {
		params := baseParams()
		params.EntryConditions[0].Comparison = comparison
		_, err := engine.Compile(params)
		assert.NoError(t, err)
	}
}

func TestCompileDefaultsDirectionToLong(t *testing.T) {
	params := baseParams()
	params.Direction = "sideways"
	strategy, err := engine.Compile(params)
	require.NoError(t, err)
	assert.Equal(t, engine.Long, strategy.Direction())
}

func TestCompileCustomMaxHoldingPeriod(t *testing.T) {
	params := baseParams()
	params.MaxHoldingPeriod = 7
	strategy, err := engine.Compile(params)
	require.NoError(t, err)
	assert.Equal(t, 7, strategy.MaxHoldingPeriod())
}

func TestCompileSkipsDeclarationOnlyConditions(t *testing.T) {
	params := baseParams()
	params.EntryConditions = append(params.EntryConditions, engine.Condition{
		Indicator: "SMA",
		Variable:  "sma_20",
		Params:    map[string]interface{}{"timeperiod": 20},
	})
	_, err := engine.Compile(params)
	assert.NoError(t, err)
}
