package engine

import "math"

// operator is a resolved comparison operator.
type operator int

const (
	opEQ operator = iota
	opNE
	opGT
	opLT
	opGE
	opLE
)

// parseOperator resolves the persisted comparison token. Both "=" and "=="
// are accepted for equality since older strategy records use either.
func parseOperator(s string) (operator, bool) {
	switch s {
	case "=", "==":
		return opEQ, true
	case "!=":
		return opNE, true
	case ">":
		return opGT, true
	case "<":
		return opLT, true
	case ">=":
		return opGE, true
	case "<=":
		return opLE, true
	}
	return 0, false
}

func (op operator) String() string {
	switch op {
	case opEQ:
		return "="
	case opNE:
		return "!="
	case opGT:
		return ">"
	case opLT:
		return "<"
	case opGE:
		return ">="
	case opLE:
		return "<="
	}
	return "?"
}

// apply compares value against threshold with IEEE double semantics, so any
// comparison involving NaN is false.
func (op operator) apply(value, threshold float64) bool {
	if math.IsNaN(value) || math.IsNaN(threshold) {
		return false
	}
	switch op {
	case opEQ:
		return value == threshold
	case opNE:
		return value != threshold
	case opGT:
		return value > threshold
	case opLT:
		return value < threshold
	case opGE:
		return value >= threshold
	case opLE:
		return value <= threshold
	}
	return false
}

// TraceStage says which condition list a trace entry came from.
type TraceStage string

const (
	StageEntry TraceStage = "entry"
	StageExit  TraceStage = "exit"
)

// ConditionTrace records one condition evaluation against one bar. The full
// trace is part of the BacktestResult contract, so every condition in a list
// is evaluated and recorded even after one has already satisfied the list.
type ConditionTrace struct {
	BarIndex   int        `json:"bar_index"`
	Stage      TraceStage `json:"stage"`
	Variable   string     `json:"variable"`
	Comparison string     `json:"comparison"`
	Threshold  float64    `json:"threshold"`
	Value      float64    `json:"value"`
	Missing    bool       `json:"missing,omitempty"`
	Satisfied  bool       `json:"satisfied"`
}

// evaluateConditions OR-combines a compiled condition list against one bar.
// A missing indicator value makes that condition false and is recorded as
// Missing in the trace; it never aborts the bar. The result depends only on
// the bar's indicator values and the condition list.
func evaluateConditions(conds []compiledCondition, bar *Bar, barIndex int, stage TraceStage) (bool, []ConditionTrace) {
	satisfied := false
	traces := make([]ConditionTrace, 0, len(conds))
	for _, c := range conds {
		trace := ConditionTrace{
			BarIndex:   barIndex,
			Stage:      stage,
			Variable:   c.variable,
			Comparison: c.op.String(),
			Threshold:  c.threshold,
		}
		value, ok := bar.Indicator(c.variable)
		if !ok {
			trace.Missing = true
			trace.Value = math.NaN()
		} else {
			trace.Value = value
			trace.Satisfied = c.op.apply(value, c.threshold)
		}
		if trace.Satisfied {
			satisfied = true
		}
		traces = append(traces, trace)
	}
	return satisfied, traces
}

// EvaluateEntry evaluates the strategy's entry conditions against one bar.
func (sd *StrategyDefinition) EvaluateEntry(bar *Bar, barIndex int) (bool, []ConditionTrace) {
	return evaluateConditions(sd.entry, bar, barIndex, StageEntry)
}

// EvaluateExit evaluates the strategy's exit conditions against one bar.
func (sd *StrategyDefinition) EvaluateExit(bar *Bar, barIndex int) (bool, []ConditionTrace) {
	return evaluateConditions(sd.exit, bar, barIndex, StageExit)
}
