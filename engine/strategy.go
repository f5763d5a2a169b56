package engine

// Direction says whether a strategy profits from rising or falling prices.
type Direction string

const (
	Long  Direction = "buy"
	Short Direction = "sell"
)

// DefaultMaxHoldingPeriod is the fallback exit after this many bars in a
// position when no other exit has triggered.
const DefaultMaxHoldingPeriod = 20

// Condition is a single indicator-vs-threshold comparison, as parsed from a
// persisted strategy record. Params configure the indicator computation
// (timeperiod, fastperiod...); Variable is the column name the computed
// values are bound to.
type Condition struct {
	Indicator  string                 `json:"indicator"`
	Comparison string                 `json:"comparison"`
	Variable   string                 `json:"variable"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Threshold  float64                `json:"threshold"`
}

// StrategyParams is the raw material Compile turns into an executable
// StrategyDefinition.
type StrategyParams struct {
	Direction        string      `json:"type"`
	Symbol           string      `json:"symbol"`
	Timeframe        string      `json:"timeframe"`
	EntryConditions  []Condition `json:"entry_conditions"`
	ExitConditions   []Condition `json:"exit_conditions"`
	StopLoss         float64     `json:"stop_loss"`
	TargetProfit     float64     `json:"target_profit"`
	MaxHoldingPeriod int         `json:"max_holding_period,omitempty"`
}

// compiledCondition is a Condition with its operator and lookup key resolved
// once at compile time, so per-bar evaluation is a map lookup and a compare.
type compiledCondition struct {
	variable  string
	op        operator
	threshold float64
	raw       Condition
}

// StrategyDefinition is an immutable compiled strategy. Created once per
// backtest run; safe to share across parallel runs.
type StrategyDefinition struct {
	direction    Direction
	symbol       string
	timeframe    string
	entry        []compiledCondition
	exit         []compiledCondition
	stopLoss     float64
	targetProfit float64
	maxHolding   int
}

// Compile validates the raw strategy parameters and resolves every condition
// into executable form. Any failure is a ValidationError; nothing is
// silently coerced or skipped.
func Compile(p StrategyParams) (*StrategyDefinition, error) {
	direction := Direction(p.Direction)
	if direction != Long && direction != Short {
		direction = Long
	}

	if p.StopLoss <= 0 {
		return nil, validationErrorf(InvalidStopLoss, "stop loss must be a positive percent, got %v", p.StopLoss)
	}
	if p.TargetProfit <= 0 {
		return nil, validationErrorf(InvalidTargetProfit, "target profit must be a positive percent, got %v", p.TargetProfit)
	}

	entry, err := compileConditions(p.EntryConditions)
	if err != nil {
		return nil, err
	}
	exit, err := compileConditions(p.ExitConditions)
	if err != nil {
		return nil, err
	}

	maxHolding := p.MaxHoldingPeriod
	if maxHolding <= 0 {
		maxHolding = DefaultMaxHoldingPeriod
	}

	return &StrategyDefinition{
		direction:    direction,
		symbol:       p.Symbol,
		timeframe:    p.Timeframe,
		entry:        entry,
		exit:         exit,
		stopLoss:     p.StopLoss,
		targetProfit: p.TargetProfit,
		maxHolding:   maxHolding,
	}, nil
}

func compileConditions(conds []Condition) ([]compiledCondition, error) {
	compiled := make([]compiledCondition, 0, len(conds))
	for _, c := range conds {
		if !isIdentifier(c.Variable) {
			return nil, validationErrorf(InvalidVariableName, "variable name %q is not a valid identifier", c.Variable)
		}
		// An entry with an indicator but no comparison only binds a
		// variable; there is nothing to evaluate per bar.
		if c.Comparison == "" && c.Indicator != "" {
			continue
		}
		op, ok := parseOperator(c.Comparison)
		if !ok {
			return nil, validationErrorf(UnknownOperator, "comparison operator %q is not recognized", c.Comparison)
		}
		compiled = append(compiled, compiledCondition{
			variable:  c.Variable,
			op:        op,
			threshold: c.Threshold,
			raw:       c,
		})
	}
	return compiled, nil
}

// Direction returns the compiled strategy direction.
func (sd *StrategyDefinition) Direction() Direction { return sd.direction }

// Symbol returns the ticker symbol the strategy targets.
func (sd *StrategyDefinition) Symbol() string { return sd.symbol }

// Timeframe returns the bar granularity label of the strategy.
func (sd *StrategyDefinition) Timeframe() string { return sd.timeframe }

// StopLoss returns the mandatory stop-loss percent.
func (sd *StrategyDefinition) StopLoss() float64 { return sd.stopLoss }

// TargetProfit returns the mandatory target-profit percent.
func (sd *StrategyDefinition) TargetProfit() float64 { return sd.targetProfit }

// MaxHoldingPeriod returns the bar count after which a position is force-closed.
func (sd *StrategyDefinition) MaxHoldingPeriod() int { return sd.maxHolding }

// EntryConditions returns the raw entry conditions in compile order.
func (sd *StrategyDefinition) EntryConditions() []Condition { return rawConditions(sd.entry) }

// ExitConditions returns the raw exit conditions in compile order.
func (sd *StrategyDefinition) ExitConditions() []Condition { return rawConditions(sd.exit) }

func rawConditions(compiled []compiledCondition) []Condition {
	conds := make([]Condition, len(compiled))
	for i, c := range compiled {
		conds[i] = c.raw
	}
	return conds
}

// isIdentifier reports whether name is a letter or underscore followed by
// letters, digits or underscores. Anything else is rejected at compile time
// rather than sanitized at evaluation time.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !digit {
			return false
		}
	}
	return true
}
