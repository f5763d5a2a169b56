package engine

// Bar is one OHLCV sample decorated with precomputed indicator values.
// Indicator columns are attached by the indicator package before a run,
// keyed by the variable name a condition binds to. A Bar is never mutated
// by the engine once the run starts.
type Bar struct {
	Time       int64              `json:"time"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Indicator looks up a decorated indicator value by variable name.
func (b *Bar) Indicator(name string) (float64, bool) {
	v, ok := b.Indicators[name]
	return v, ok
}

// BarFrame is an ordered bar stream for one symbol. Bars must be strictly
// increasing in time; the engine does not deduplicate or re-sort.
type BarFrame struct {
	Symbol string `json:"symbol,omitempty"`
	Bars   []Bar  `json:"bars,omitempty"`
}

// Opens is open prices of bars
func (bf *BarFrame) Opens() []float64 {
	open := make([]float64, len(bf.Bars))
	for i, bar := range bf.Bars {
		open[i] = bar.Open
	}
	return open
}

// Highs is high prices of bars
func (bf *BarFrame) Highs() []float64 {
	high := make([]float64, len(bf.Bars))
	for i, bar := range bf.Bars {
		high[i] = bar.High
	}
	return high
}

// Lows is low prices of bars
func (bf *BarFrame) Lows() []float64 {
	low := make([]float64, len(bf.Bars))
	for i, bar := range bf.Bars {
		low[i] = bar.Low
	}
	return low
}

// Closes is close prices of bars
func (bf *BarFrame) Closes() []float64 {
	closes := make([]float64, len(bf.Bars))
	for i, bar := range bf.Bars {
		closes[i] = bar.Close
	}
	return closes
}

// Volumes is volumes of bars
func (bf *BarFrame) Volumes() []float64 {
	volume := make([]float64, len(bf.Bars))
	for i, bar := range bf.Bars {
		volume[i] = bar.Volume
	}
	return volume
}

// SetColumn attaches an indicator column under name, one value per bar.
// Extra values are ignored, missing trailing values leave bars undecorated.
func (bf *BarFrame) SetColumn(name string, values []float64) {
	for i := range bf.Bars {
		if i >= len(values) {
			break
		}
		if bf.Bars[i].Indicators == nil {
			bf.Bars[i].Indicators = map[string]float64{}
		}
		bf.Bars[i].Indicators[name] = values[i]
	}
}

// Column returns the named indicator column, one value per bar.
// The second return reports whether every bar carries the column.
func (bf *BarFrame) Column(name string) ([]float64, bool) {
	values := make([]float64, len(bf.Bars))
	complete := true
	for i := range bf.Bars {
		v, ok := bf.Bars[i].Indicator(name)
		if !ok {
			complete = false
		}
		values[i] = v
	}
	return values, complete
}
