package engine

import (
	"github.com/sirupsen/logrus"
)

// DefaultInitialCapital is the starting portfolio value when the caller
// does not set one.
const DefaultInitialCapital = 100000

// DefaultWarmupBars is the minimum bar count before entry conditions are
// evaluated, so indicators have enough history.
const DefaultWarmupBars = 30

// RunnerConfig tunes a run. Zero fields fall back to the package defaults.
type RunnerConfig struct {
	InitialCapital float64
	WarmupBars     int
	Annualization  float64
}

// Runner drives the bar loop for one compiled strategy. A Runner performs
// pure computation over an already materialized bar stream; independent
// runners share no mutable state and may execute in parallel.
type Runner struct {
	strategy *StrategyDefinition
	cfg      RunnerConfig
}

// EquityPoint is one bar of the equity curve. One is produced per bar,
// including bars with no open position.
type EquityPoint struct {
	BarIndex int     `json:"bar_index"`
	Value    float64 `json:"value"`
	Return   float64 `json:"return"`
}

// Summary is the condensed metric block consumed by the optimizer objective.
type Summary struct {
	Returns     float64 `json:"returns"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TradeCount  int     `json:"trade_count"`
}

// BacktestResult is the structured output of one run. It carries no run
// identifier: two runs over the same bars and strategy produce identical
// results, and the persistence layer assigns IDs when storing one.
type BacktestResult struct {
	Symbol         string           `json:"symbol"`
	Direction      Direction        `json:"type"`
	InitialCapital float64          `json:"initial_capital"`
	FinalValue     float64          `json:"final_value"`
	Returns        float64          `json:"returns"`
	WinRate        float64          `json:"win_rate"`
	MaxDrawdown    float64          `json:"max_drawdown"`
	SharpeRatio    float64          `json:"sharpe_ratio"`
	TradeCount     int              `json:"trade_count"`
	WinningTrades  int              `json:"winning_trades"`
	LosingTrades   int              `json:"losing_trades"`
	Trades         []Trade          `json:"trades"`
	EquityCurve    []EquityPoint    `json:"equity_curve"`
	ReturnsSeries  []float64        `json:"returns_series"`
	Trace          []ConditionTrace `json:"condition_evaluations,omitempty"`
	Summary        Summary          `json:"summary"`
}

// NewRunner binds a compiled strategy to a run configuration.
func NewRunner(strategy *StrategyDefinition, cfg RunnerConfig) *Runner {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = DefaultWarmupBars
	}
	if cfg.Annualization <= 0 {
		cfg.Annualization = DefaultAnnualization
	}
	return &Runner{strategy: strategy, cfg: cfg}
}

// Run simulates the strategy bar by bar over frame and assembles the result.
// It fails only on an empty bar stream or a strategy with no entry
// conditions; every per-bar irregularity is absorbed into the trace so a
// run always completes once it starts.
func (r *Runner) Run(frame *BarFrame) (*BacktestResult, error) {
	if frame == nil || len(frame.Bars) == 0 {
		return nil, validationErrorf(EmptyBarStream, "no bars to simulate for %q", r.strategy.symbol)
	}
	if len(r.strategy.entry) == 0 {
		return nil, validationErrorf(EmptyEntryConditions, "strategy has no entry conditions")
	}

	logrus.Infof("backtest start: %v bars, symbol %v, direction %v",
		len(frame.Bars), frame.Symbol, r.strategy.direction)

	machine := positionMachine{}
	ledger := TradeLedger{}
	metrics := newMetricsAccumulator(r.cfg.InitialCapital, r.cfg.Annualization)
	trace := []ConditionTrace{}

	// Realized equity compounds per closed trade; while a position is open
	// the bar value marks it to the bar close.
	realized := r.cfg.InitialCapital

	for i := range frame.Bars {
		bar := &frame.Bars[i]

		value := realized
		if machine.inPosition() {
			value = realized * (1 + machine.current().unrealizedPct(bar.Close)/100)
		}
		metrics.Update(value)

		if !machine.inPosition() {
			if i < r.cfg.WarmupBars {
				continue
			}
			enter, entryTrace := r.strategy.EvaluateEntry(bar, i)
			trace = append(trace, entryTrace...)
			if enter {
				machine.enter(i, bar.Time, bar.Close, r.strategy.direction)
			}
			continue
		}

		reason, exitTrace, triggered := r.strategy.checkExit(machine.current(), bar, i)
		trace = append(trace, exitTrace...)
		if !triggered {
			continue
		}

		closed := machine.exit()
		pct := profitPercent(closed.Direction, closed.EntryPrice, bar.Close)
		ledger.Record(Trade{
			EntryTime:    closed.EntryTime,
			EntryPrice:   closed.EntryPrice,
			ExitTime:     bar.Time,
			ExitPrice:    bar.Close,
			ExitReason:   reason,
			ProfitPoints: profitPoints(closed.Direction, closed.EntryPrice, bar.Close),
			ProfitPct:    pct,
			Size:         closed.Size,
		})
		realized *= 1 + pct/100
	}

	result := r.assemble(frame, &ledger, metrics, trace)
	logrus.Infof("backtest end: returns %.2f%%, win rate %.2f, sharpe %.2f, trades %v",
		result.Returns, result.WinRate, result.SharpeRatio, result.TradeCount)
	return result, nil
}

func (r *Runner) assemble(frame *BarFrame, ledger *TradeLedger, metrics *MetricsAccumulator, trace []ConditionTrace) *BacktestResult {
	equity := metrics.EquityCurve()
	returns := metrics.Returns()
	curve := make([]EquityPoint, len(equity))
	for i := range equity {
		curve[i] = EquityPoint{BarIndex: i, Value: equity[i], Return: returns[i]}
	}

	trades := ledger.Trades()
	winning := ledger.Winning()
	summary := Summary{
		Returns:     metrics.TotalReturnPct(),
		WinRate:     ledger.WinRate(),
		MaxDrawdown: metrics.MaxDrawdown(),
		SharpeRatio: metrics.Sharpe(),
		TradeCount:  len(trades),
	}

	return &BacktestResult{
		Symbol:         frame.Symbol,
		Direction:      r.strategy.direction,
		InitialCapital: r.cfg.InitialCapital,
		FinalValue:     metrics.FinalValue(),
		Returns:        summary.Returns,
		WinRate:        summary.WinRate,
		MaxDrawdown:    summary.MaxDrawdown,
		SharpeRatio:    summary.SharpeRatio,
		TradeCount:     summary.TradeCount,
		WinningTrades:  winning,
		LosingTrades:   len(trades) - winning,
		Trades:         trades,
		EquityCurve:    curve,
		ReturnsSeries:  returns,
		Trace:          trace,
		Summary:        summary,
	}
}
