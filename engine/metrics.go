package engine

import "math"

// DefaultAnnualization is the Sharpe annualization factor for
// daily-equivalent bars. Sub-daily timeframes should pass their own factor.
const DefaultAnnualization = 252

// MetricsAccumulator maintains the running equity curve, bar returns,
// drawdown and Sharpe ratio for one run. Updated once per bar regardless of
// position state.
type MetricsAccumulator struct {
	initial       float64
	annualization float64
	equity        []float64
	returns       []float64
	peak          float64
	maxDrawdown   float64
	guardTripped  bool
}

// newMetricsAccumulator starts a fresh accumulator at the initial capital.
func newMetricsAccumulator(initialCapital, annualization float64) *MetricsAccumulator {
	if annualization <= 0 {
		annualization = DefaultAnnualization
	}
	return &MetricsAccumulator{
		initial:       initialCapital,
		annualization: annualization,
	}
}

// Update records the portfolio value for the next bar.
func (m *MetricsAccumulator) Update(value float64) {
	if len(m.equity) == 0 {
		m.returns = append(m.returns, 0)
	} else {
		prev := m.equity[len(m.equity)-1]
		r := 0.0
		if prev != 0 {
			r = value/prev - 1
		}
		m.returns = append(m.returns, r)
	}
	m.equity = append(m.equity, value)

	if value > m.peak {
		m.peak = value
	}
	if m.peak > 0 {
		drawdown := (m.peak - value) / m.peak * 100
		if drawdown > m.maxDrawdown {
			m.maxDrawdown = drawdown
		}
	}
}

// EquityCurve returns the per-bar portfolio values recorded so far.
func (m *MetricsAccumulator) EquityCurve() []float64 {
	out := make([]float64, len(m.equity))
	copy(out, m.equity)
	return out
}

// Returns returns the per-bar return series, 0 for the first bar.
func (m *MetricsAccumulator) Returns() []float64 {
	out := make([]float64, len(m.returns))
	copy(out, m.returns)
	return out
}

// MaxDrawdown is the largest peak-to-trough equity decline in percent.
func (m *MetricsAccumulator) MaxDrawdown() float64 { return m.maxDrawdown }

// TotalReturnPct is the percent change from initial capital to the latest
// equity value, 0 before any bar has been recorded.
func (m *MetricsAccumulator) TotalReturnPct() float64 {
	if len(m.equity) == 0 || m.initial == 0 {
		return 0
	}
	return (m.equity[len(m.equity)-1] - m.initial) / m.initial * 100
}

// FinalValue is the latest equity value, or the initial capital before any
// bar has been recorded.
func (m *MetricsAccumulator) FinalValue() float64 {
	if len(m.equity) == 0 {
		return m.initial
	}
	return m.equity[len(m.equity)-1]
}

// Sharpe recomputes the annualized Sharpe ratio from the full return series.
// A zero or NaN standard deviation reports 0 rather than Inf or NaN; the
// substitution is recorded and queryable via NumericGuardTripped.
func (m *MetricsAccumulator) Sharpe() float64 {
	if len(m.returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range m.returns {
		mean += r
	}
	mean /= float64(len(m.returns))

	variance := 0.0
	for _, r := range m.returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(m.returns))
	stdev := math.Sqrt(variance)

	if stdev == 0 || math.IsNaN(stdev) {
		m.guardTripped = true
		return 0
	}
	sharpe := mean / stdev * math.Sqrt(m.annualization)
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		m.guardTripped = true
		return 0
	}
	return sharpe
}

// NumericGuardTripped reports whether a Sharpe computation substituted 0 for
// an undefined value.
func (m *MetricsAccumulator) NumericGuardTripped() bool { return m.guardTripped }
