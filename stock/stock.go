package stock

import (
	"sync"
	"time"

	bt "github.com/google/btree"
	"github.com/markcheno/go-quote"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/log"

	"github.com/oarkflow/backtester/engine"
)

const timeFormat = "2006-01-02"

// GetStockData downloads daily stockdata for symbol(GOOGL, FB...etc) during today ~ before dayPeriod.
// dayPeriod must be day(1day, 30days...etc).
func GetStockData(symbol string, dayPeriod int, adj bool) (*quote.Quote, error) {
	endDay := time.Now()
	startDay := endDay.AddDate(0, 0, -dayPeriod)

	log.Info().Str("symbol", symbol).Int("days", dayPeriod).Msg("Downloading stock data")
	qt, err := quote.NewQuoteFromYahoo(
		symbol, startDay.Format(timeFormat), endDay.Format(timeFormat), quote.Daily, adj)
	if err != nil {
		return nil, errors.NewE(err, "could not download quote for "+symbol, "")
	}
	if len(qt.Close) == 0 {
		return nil, errors.New("no quote data returned for " + symbol)
	}
	return &qt, nil
}

// ToBarFrame converts downloaded quote data into a bar frame ready for simulation.
func ToBarFrame(symbol string, qt *quote.Quote) *engine.BarFrame {
	bars := make([]engine.Bar, len(qt.Close))
	for i := range qt.Close {
		bars[i] = engine.Bar{
			Time:   qt.Date[i].Unix(),
			Open:   qt.Open[i],
			High:   qt.High[i],
			Low:    qt.Low[i],
			Close:  qt.Close[i],
			Volume: qt.Volume[i],
		}
	}
	return &engine.BarFrame{Symbol: symbol, Bars: bars}
}

type cachedBar struct {
	bar engine.Bar
}

func (c cachedBar) Less(other bt.Item) bool {
	return c.bar.Time < other.(cachedBar).bar.Time
}

// Cache holds downloaded bars per symbol, ordered by timestamp, so repeated
// backtests over the same symbol do not refetch.
type Cache struct {
	mu    sync.RWMutex
	trees map[string]*bt.BTree
}

func NewCache() *Cache {
	return &Cache{trees: map[string]*bt.BTree{}}
}

// Put merges the frame's bars into the symbol's tree. Bars sharing a
// timestamp are replaced by the newer download.
func (c *Cache) Put(frame *engine.BarFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tree, ok := c.trees[frame.Symbol]
	if !ok {
		tree = bt.New(32)
		c.trees[frame.Symbol] = tree
	}
	for _, bar := range frame.Bars {
		tree.ReplaceOrInsert(cachedBar{bar: bar})
	}
}

// Range returns the symbol's bars with from <= time < to, in ascending order.
func (c *Cache) Range(symbol string, from, to int64) *engine.BarFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frame := &engine.BarFrame{Symbol: symbol}
	tree, ok := c.trees[symbol]
	if !ok {
		return frame
	}
	tree.AscendRange(
		cachedBar{bar: engine.Bar{Time: from}},
		cachedBar{bar: engine.Bar{Time: to}},
		func(item bt.Item) bool {
			frame.Bars = append(frame.Bars, item.(cachedBar).bar)
			return true
		})
	return frame
}

// All returns every cached bar for symbol in ascending time order.
func (c *Cache) All(symbol string) *engine.BarFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frame := &engine.BarFrame{Symbol: symbol}
	tree, ok := c.trees[symbol]
	if !ok {
		return frame
	}
	tree.Ascend(func(item bt.Item) bool {
		frame.Bars = append(frame.Bars, item.(cachedBar).bar)
		return true
	})
	return frame
}

// coverageSlack absorbs weekends and market holidays at the window edge,
// where the first traded bar lands a few days after the requested start.
const coverageSlack = 3 * 86400

// Covers reports whether the symbol's cached bars already span a window
// starting at or before from, so a new download would add nothing.
func (c *Cache) Covers(symbol string, from int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree, ok := c.trees[symbol]
	if !ok || tree.Len() == 0 {
		return false
	}
	oldest := tree.Min().(cachedBar).bar.Time
	return oldest <= from+coverageSlack
}

// Len reports how many bars are cached for symbol.
func (c *Cache) Len(symbol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree, ok := c.trees[symbol]
	if !ok {
		return 0
	}
	return tree.Len()
}
