package engine

// PositionState is the open position, if any. The zero value is flat.
// Entries and exits fill at the bar's close price in the same bar, so the
// machine is never left in an order-pending state across bars.
type PositionState struct {
	Open       bool      `json:"open"`
	EntryBar   int       `json:"entry_bar"`
	EntryTime  int64     `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
}

// positionMachine owns the current position state for one run. At most one
// position is open at any time.
type positionMachine struct {
	pos PositionState
}

func (m *positionMachine) inPosition() bool { return m.pos.Open }

func (m *positionMachine) current() PositionState { return m.pos }

// enter transitions Flat -> InPosition, filled at price on barIndex's close.
func (m *positionMachine) enter(barIndex int, barTime int64, price float64, direction Direction) {
	m.pos = PositionState{
		Open:       true,
		EntryBar:   barIndex,
		EntryTime:  barTime,
		EntryPrice: price,
		Direction:  direction,
		Size:       1,
	}
}

// exit transitions InPosition -> Flat and returns the position that closed.
func (m *positionMachine) exit() PositionState {
	closed := m.pos
	m.pos = PositionState{}
	return closed
}

// barsHeld is the number of bars since entry as of barIndex.
func (p PositionState) barsHeld(barIndex int) int {
	return barIndex - p.EntryBar
}

// unrealizedPct is the open profit percent of the position marked to price.
func (p PositionState) unrealizedPct(price float64) float64 {
	return profitPercent(p.Direction, p.EntryPrice, price)
}

// profitPercent is the signed profit percent between entry and exit price
// for the given direction. Long profits when price rises, short when it falls.
func profitPercent(direction Direction, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	if direction == Short {
		if price == 0 {
			return 0
		}
		return (entry/price - 1) * 100
	}
	return (price/entry - 1) * 100
}

// profitPoints is the signed profit in price points for the given direction.
func profitPoints(direction Direction, entry, price float64) float64 {
	if direction == Short {
		return entry - price
	}
	return price - entry
}
