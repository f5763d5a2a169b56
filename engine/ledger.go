package engine

// Trade is one closed position. Appended exactly once when the position
// closes and never mutated afterwards.
type Trade struct {
	EntryTime    int64      `json:"entry_time"`
	EntryPrice   float64    `json:"entry_price"`
	ExitTime     int64      `json:"exit_time"`
	ExitPrice    float64    `json:"exit_price"`
	ExitReason   ExitReason `json:"exit_reason"`
	ProfitPoints float64    `json:"profit_points"`
	ProfitPct    float64    `json:"profit_pct"`
	Size         float64    `json:"size"`
}

// TradeLedger accumulates closed trades in append order. Append-only; no
// mutation, no deletion.
type TradeLedger struct {
	trades []Trade
}

// Record appends a closed trade.
func (l *TradeLedger) Record(t Trade) {
	l.trades = append(l.trades, t)
}

// Trades returns the closed trades in chronological append order.
func (l *TradeLedger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Count returns the number of closed trades.
func (l *TradeLedger) Count() int { return len(l.trades) }

// WinRate is the fraction of closed trades with positive realized percent,
// 0 when no trades have closed.
func (l *TradeLedger) WinRate() float64 {
	if len(l.trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range l.trades {
		if t.ProfitPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(l.trades))
}

// Winning returns the count of trades with positive realized percent.
func (l *TradeLedger) Winning() int {
	wins := 0
	for _, t := range l.trades {
		if t.ProfitPct > 0 {
			wins++
		}
	}
	return wins
}
