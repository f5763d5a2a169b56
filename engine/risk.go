package engine

// ExitReason labels why a position closed. Every closed Trade carries
// exactly one reason.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTargetProfit ExitReason = "target_profit"
	ExitCondition    ExitReason = "exit_condition"
	ExitMaxHolding   ExitReason = "max_holding_period"
)

// checkExit decides whether the open position must close on this bar. The
// precedence is fixed and first match wins: target profit, stop loss, exit
// conditions, max holding period. Exit-condition traces are produced only
// when that step is reached; a target-profit or stop-loss trigger returns
// before the exit conditions are evaluated.
func (sd *StrategyDefinition) checkExit(pos PositionState, bar *Bar, barIndex int) (ExitReason, []ConditionTrace, bool) {
	profit := profitPercent(pos.Direction, pos.EntryPrice, bar.Close)
	loss := -profit

	if sd.targetProfit > 0 && profit >= sd.targetProfit {
		return ExitTargetProfit, nil, true
	}
	if sd.stopLoss > 0 && loss >= sd.stopLoss {
		return ExitStopLoss, nil, true
	}

	satisfied, traces := evaluateConditions(sd.exit, bar, barIndex, StageExit)
	if satisfied {
		return ExitCondition, traces, true
	}

	if pos.barsHeld(barIndex) > sd.maxHolding {
		return ExitMaxHolding, traces, true
	}

	return "", traces, false
}
