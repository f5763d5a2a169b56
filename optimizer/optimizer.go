// Package optimizer runs grid searches over strategy parameters, scoring
// each candidate with an independent backtest run.
package optimizer

import (
	"fmt"
	"sync"

	"github.com/oarkflow/xid"
	"github.com/sirupsen/logrus"

	"github.com/oarkflow/backtester/engine"
	"github.com/oarkflow/backtester/indicator"
)

// Status of an optimization run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Dimension is one axis of the search grid. List selects which condition
// list Index addresses; an empty List targets the strategy-level fields
// "stop_loss" and "target_profit". For conditions, Field is "threshold" or
// an indicator param key such as "timeperiod".
type Dimension struct {
	Name  string  `json:"name"`
	List  string  `json:"list,omitempty"`
	Index int     `json:"index,omitempty"`
	Field string  `json:"field"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Step  float64 `json:"step"`
}

// Iteration records one scored candidate.
type Iteration struct {
	Params    map[string]float64 `json:"params"`
	Returns   float64            `json:"returns"`
	WinRate   float64            `json:"win_rate"`
	Drawdown  float64            `json:"max_drawdown"`
	Sharpe    float64            `json:"sharpe_ratio"`
	Objective float64            `json:"objective_value"`
}

// Report is a point-in-time snapshot of an optimization.
type Report struct {
	ID         string                 `json:"optimization_id"`
	Status     Status                 `json:"status"`
	Progress   float64                `json:"progress"`
	BestParams map[string]float64     `json:"best_params,omitempty"`
	BestResult *engine.BacktestResult `json:"best_backtest,omitempty"`
	Iterations []Iteration            `json:"iteration_results,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type state struct {
	report Report
}

// Optimizer tracks running and finished optimizations by ID. Backtest runs
// share no mutable state, so candidates are scored on a bounded pool of
// parallel workers without locking inside a run.
type Optimizer struct {
	mu      sync.RWMutex
	runs    map[string]*state
	cfg     engine.RunnerConfig
	workers int
}

// New builds an Optimizer scoring candidates with cfg on workers parallel
// goroutines (minimum 1).
func New(cfg engine.RunnerConfig, workers int) *Optimizer {
	if workers < 1 {
		workers = 1
	}
	return &Optimizer{
		runs:    map[string]*state{},
		cfg:     cfg,
		workers: workers,
	}
}

// Start validates the base strategy, then launches the grid search in the
// background and returns the optimization ID to poll.
func (o *Optimizer) Start(strategy engine.StrategyParams, frame *engine.BarFrame, dims []Dimension) (string, error) {
	if _, err := engine.Compile(strategy); err != nil {
		return "", err
	}
	if frame == nil || len(frame.Bars) == 0 {
		return "", engine.NewValidationError(engine.EmptyBarStream, "no bars to optimize over")
	}
	if len(dims) == 0 {
		return "", fmt.Errorf("no parameters to optimize found in the strategy")
	}

	id := xid.New().String()
	o.mu.Lock()
	o.runs[id] = &state{report: Report{ID: id, Status: StatusRunning}}
	o.mu.Unlock()

	go o.search(id, strategy, frame, dims)
	return id, nil
}

// Status returns a snapshot of the optimization's report.
func (o *Optimizer) Status(id string) (*Report, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.runs[id]
	if !ok {
		return nil, fmt.Errorf("optimization %q not found", id)
	}
	snapshot := st.report
	snapshot.Iterations = append([]Iteration(nil), st.report.Iterations...)
	return &snapshot, nil
}

// Objective is the score a candidate maximizes: a weighted blend of
// returns, win rate, inverse drawdown and Sharpe ratio.
func Objective(s engine.Summary) float64 {
	return 0.5*s.Returns + 0.2*s.WinRate*100 + 0.1*(100-s.MaxDrawdown) + 0.2*s.SharpeRatio
}

type candidate struct {
	values []float64
}

func (o *Optimizer) search(id string, base engine.StrategyParams, frame *engine.BarFrame, dims []Dimension) {
	logrus.Infof("optimization start: %v, %v dimensions", id, len(dims))

	candidates := enumerate(dims)
	total := len(candidates)
	if total == 0 {
		o.fail(id, "search grid is empty")
		return
	}

	type scored struct {
		iter   Iteration
		result *engine.BacktestResult
		err    error
	}

	jobs := make(chan candidate)
	results := make(chan scored, total)
	var wg sync.WaitGroup

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				result, err := o.score(base, frame, dims, cand)
				sc := scored{err: err}
				if err == nil {
					sc.result = result
					sc.iter = Iteration{
						Params:    paramMap(dims, cand),
						Returns:   result.Summary.Returns,
						WinRate:   result.Summary.WinRate,
						Drawdown:  result.Summary.MaxDrawdown,
						Sharpe:    result.Summary.SharpeRatio,
						Objective: Objective(result.Summary),
					}
				}
				results <- sc
			}
		}()
	}

	go func() {
		for _, cand := range candidates {
			jobs <- cand
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var best *engine.BacktestResult
	var bestParams map[string]float64
	bestObjective := 0.0
	done := 0

	for sc := range results {
		done++
		o.mu.Lock()
		st := o.runs[id]
		st.report.Progress = float64(done) / float64(total) * 100
		if sc.err == nil {
			st.report.Iterations = append(st.report.Iterations, sc.iter)
		}
		o.mu.Unlock()

		if sc.err != nil {
			logrus.Warnf("optimization iteration error: %v", sc.err)
			continue
		}

		if best == nil || sc.iter.Objective > bestObjective {
			best = sc.result
			bestParams = sc.iter.Params
			bestObjective = sc.iter.Objective
		}
	}

	if best == nil {
		o.fail(id, "every candidate failed to score")
		return
	}

	o.mu.Lock()
	st := o.runs[id]
	st.report.Status = StatusCompleted
	st.report.Progress = 100
	st.report.BestParams = bestParams
	st.report.BestResult = best
	o.mu.Unlock()

	logrus.Infof("optimization end: %v, best objective %.2f over %v candidates", id, bestObjective, total)
}

func (o *Optimizer) fail(id, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.runs[id]
	st.report.Status = StatusFailed
	st.report.Error = message
	logrus.Warnf("optimization failed: %v, %v", id, message)
}

// score runs one candidate: apply the dimension values to a copy of the
// strategy, re-decorate a clean copy of the bars, and backtest.
func (o *Optimizer) score(base engine.StrategyParams, frame *engine.BarFrame, dims []Dimension, cand candidate) (*engine.BacktestResult, error) {
	params := applyDimensions(base, dims, cand.values)
	compiled, err := engine.Compile(params)
	if err != nil {
		return nil, err
	}

	bars := bareFrame(frame)
	if err := indicator.Decorate(bars, append(params.EntryConditions, params.ExitConditions...)); err != nil {
		return nil, err
	}
	return engine.NewRunner(compiled, o.cfg).Run(bars)
}

// enumerate expands the cartesian product of every dimension's range.
func enumerate(dims []Dimension) []candidate {
	grids := make([][]float64, len(dims))
	for i, d := range dims {
		step := d.Step
		if step <= 0 {
			step = 1
		}
		for v := d.Low; v <= d.High; v += step {
			grids[i] = append(grids[i], v)
		}
		if len(grids[i]) == 0 {
			grids[i] = []float64{d.Low}
		}
	}

	candidates := []candidate{{values: make([]float64, 0, len(dims))}}
	for _, grid := range grids {
		next := make([]candidate, 0, len(candidates)*len(grid))
		for _, c := range candidates {
			for _, v := range grid {
				values := make([]float64, len(c.values), len(c.values)+1)
				copy(values, c.values)
				next = append(next, candidate{values: append(values, v)})
			}
		}
		candidates = next
	}
	return candidates
}

func paramMap(dims []Dimension, cand candidate) map[string]float64 {
	out := make(map[string]float64, len(dims))
	for i, d := range dims {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("%s_%d_%s", d.List, d.Index, d.Field)
		}
		out[name] = cand.values[i]
	}
	return out
}

// applyDimensions writes candidate values into a deep copy of the strategy.
func applyDimensions(base engine.StrategyParams, dims []Dimension, values []float64) engine.StrategyParams {
	out := base
	out.EntryConditions = copyConditions(base.EntryConditions)
	out.ExitConditions = copyConditions(base.ExitConditions)

	for i, d := range dims {
		v := values[i]
		switch {
		case d.List == "" && d.Field == "stop_loss":
			out.StopLoss = v
		case d.List == "" && d.Field == "target_profit":
			out.TargetProfit = v
		case d.List == "entry" && d.Index < len(out.EntryConditions):
			applyConditionField(&out.EntryConditions[d.Index], d.Field, v)
		case d.List == "exit" && d.Index < len(out.ExitConditions):
			applyConditionField(&out.ExitConditions[d.Index], d.Field, v)
		}
	}
	return out
}

func applyConditionField(cond *engine.Condition, field string, v float64) {
	if field == "threshold" {
		cond.Threshold = v
		return
	}
	if cond.Params == nil {
		cond.Params = map[string]interface{}{}
	}
	cond.Params[field] = v
}

func copyConditions(conds []engine.Condition) []engine.Condition {
	out := make([]engine.Condition, len(conds))
	for i, c := range conds {
		out[i] = c
		if c.Params != nil {
			params := make(map[string]interface{}, len(c.Params))
			for k, v := range c.Params {
				params[k] = v
			}
			out[i].Params = params
		}
	}
	return out
}

// bareFrame copies the frame without indicator columns so each candidate
// decorates from scratch.
func bareFrame(frame *engine.BarFrame) *engine.BarFrame {
	bars := make([]engine.Bar, len(frame.Bars))
	for i, b := range frame.Bars {
		bars[i] = engine.Bar{
			Time:   b.Time,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return &engine.BarFrame{Symbol: frame.Symbol, Bars: bars}
}
