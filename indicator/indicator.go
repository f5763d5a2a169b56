// Package indicator decorates bar frames with the indicator columns a
// strategy's conditions bind to, computed with go-talib.
package indicator

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"
	"github.com/sirupsen/logrus"

	"github.com/oarkflow/backtester/engine"
)

// Decorate computes every condition's indicator and attaches the values to
// the frame under the condition's variable name. Multi-output indicators
// bind the variable to the primary output (macd line, middle band, slow %K)
// and additionally attach each output under "variable_output". Warm-up bars
// are set to NaN so the evaluator treats them as unsatisfied.
func Decorate(frame *engine.BarFrame, conds []engine.Condition) error {
	for _, cond := range conds {
		if cond.Indicator == "" {
			continue
		}
		if err := decorateOne(frame, cond); err != nil {
			return err
		}
	}
	return nil
}

func decorateOne(frame *engine.BarFrame, cond engine.Condition) error {
	name := strings.ToUpper(cond.Indicator)
	source := sourceSeries(frame, cond.Params)
	period := intParam(cond.Params, "timeperiod", defaultPeriod(name))

	logrus.Infof("indicator %v as %v: timeperiod %v", name, cond.Variable, period)

	switch name {
	case "SMA":
		attach(frame, cond.Variable, talib.Sma(source, period), period-1)
	case "EMA":
		attach(frame, cond.Variable, talib.Ema(source, period), period-1)
	case "WMA":
		attach(frame, cond.Variable, talib.Wma(source, period), period-1)
	case "RSI":
		attach(frame, cond.Variable, talib.Rsi(source, period), period)
	case "ROC":
		attach(frame, cond.Variable, talib.Roc(source, period), period)
	case "MOM":
		attach(frame, cond.Variable, talib.Mom(source, period), period)
	case "WILLR":
		attach(frame, cond.Variable, talib.WillR(frame.Highs(), frame.Lows(), frame.Closes(), period), period-1)
	case "ATR":
		attach(frame, cond.Variable, talib.Atr(frame.Highs(), frame.Lows(), frame.Closes(), period), period)
	case "CCI":
		attach(frame, cond.Variable, talib.Cci(frame.Highs(), frame.Lows(), frame.Closes(), period), period-1)
	case "MACD":
		fast := intParam(cond.Params, "fastperiod", 12)
		slow := intParam(cond.Params, "slowperiod", 26)
		signal := intParam(cond.Params, "signalperiod", 9)
		macd, macdSignal, macdHist := talib.Macd(source, fast, slow, signal)
		lookback := slow + signal - 2
		attach(frame, cond.Variable, macd, lookback)
		attach(frame, cond.Variable+"_macd", macd, lookback)
		attach(frame, cond.Variable+"_macdsignal", macdSignal, lookback)
		attach(frame, cond.Variable+"_macdhist", macdHist, lookback)
	case "BBANDS":
		devUp := floatParam(cond.Params, "nbdevup", 2)
		devDn := floatParam(cond.Params, "nbdevdn", 2)
		upper, middle, lower := talib.BBands(source, period, devUp, devDn, 0)
		lookback := period - 1
		attach(frame, cond.Variable, middle, lookback)
		attach(frame, cond.Variable+"_upperband", upper, lookback)
		attach(frame, cond.Variable+"_middleband", middle, lookback)
		attach(frame, cond.Variable+"_lowerband", lower, lookback)
	case "STOCH":
		fastK := intParam(cond.Params, "fastk_period", 5)
		slowK := intParam(cond.Params, "slowk_period", 3)
		slowD := intParam(cond.Params, "slowd_period", 3)
		slowk, slowd := talib.Stoch(frame.Highs(), frame.Lows(), frame.Closes(), fastK, slowK, 0, slowD, 0)
		lookback := fastK + slowK + slowD - 3
		attach(frame, cond.Variable, slowk, lookback)
		attach(frame, cond.Variable+"_slowk", slowk, lookback)
		attach(frame, cond.Variable+"_slowd", slowd, lookback)
	default:
		return engine.NewValidationError(engine.UnknownIndicator,
			fmt.Sprintf("indicator %q is not supported", cond.Indicator))
	}
	return nil
}

// attach blanks the unstable prefix to NaN and binds the column. go-talib
// fills the lookback window with zeros, which would otherwise satisfy
// threshold comparisons on warm-up bars.
func attach(frame *engine.BarFrame, name string, values []float64, lookback int) {
	if lookback > len(values) {
		lookback = len(values)
	}
	for i := 0; i < lookback; i++ {
		values[i] = math.NaN()
	}
	frame.SetColumn(name, values)
}

// sourceSeries resolves the "value" param to a price series. A numeric
// value is a legacy strategy record mistake and falls back to close.
func sourceSeries(frame *engine.BarFrame, params map[string]interface{}) []float64 {
	raw, ok := params["value"]
	if !ok {
		return frame.Closes()
	}
	name, ok := raw.(string)
	if !ok {
		logrus.Warnf("indicator param value is %v, using close series", raw)
		return frame.Closes()
	}
	switch strings.ToLower(name) {
	case "open":
		return frame.Opens()
	case "high":
		return frame.Highs()
	case "low":
		return frame.Lows()
	case "close":
		return frame.Closes()
	case "volume":
		return frame.Volumes()
	}
	if column, complete := frame.Column(name); complete {
		return column
	}
	logrus.Warnf("indicator param value %q matches no series, using close", name)
	return frame.Closes()
}

func defaultPeriod(indicator string) int {
	if indicator == "BBANDS" {
		return 20
	}
	return 14
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		// json numbers decode as float64
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return fallback
}
