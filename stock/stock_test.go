package stock_test

import (
	"testing"
	"time"

	"github.com/markcheno/go-quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/backtester/engine"
	"github.com/oarkflow/backtester/stock"
)

func sampleFrame(symbol string, times ...int64) *engine.BarFrame {
	frame := &engine.BarFrame{Symbol: symbol}
	for _, ts := range times {
		c := float64(ts % 1000)
		frame.Bars = append(frame.Bars, engine.Bar{
			Time: ts, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		})
	}
	return frame
}

func TestToBarFrame(t *testing.T) {
	qt := quote.NewQuote("VOO", 3)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		qt.Date[i] = base.AddDate(0, 0, i)
		qt.Open[i] = 100 + float64(i)
		qt.High[i] = 101 + float64(i)
		qt.Low[i] = 99 + float64(i)
		qt.Close[i] = 100.5 + float64(i)
		qt.Volume[i] = 1000
	}

	frame := stock.ToBarFrame("VOO", &qt)

	require.Len(t, frame.Bars, 3)
	assert.Equal(t, "VOO", frame.Symbol)
	assert.Equal(t, base.Unix(), frame.Bars[0].Time)
	assert.Equal(t, 100.5, frame.Bars[0].Close)
	assert.True(t, frame.Bars[0].Time < frame.Bars[1].Time)
}

func TestCachePutAndAll(t *testing.T) {
	cache := stock.NewCache()
	// inserted out of order, read back sorted
	cache.Put(sampleFrame("VOO", 300, 100, 200))

	all := cache.All("VOO")
	require.Len(t, all.Bars, 3)
	assert.Equal(t, int64(100), all.Bars[0].Time)
	assert.Equal(t, int64(300), all.Bars[2].Time)
	assert.Equal(t, 3, cache.Len("VOO"))
}

func TestCacheReplacesDuplicateTimestamps(t *testing.T) {
	cache := stock.NewCache()
	cache.Put(sampleFrame("VOO", 100, 200))

	update := sampleFrame("VOO", 200)
	update.Bars[0].Close = 555
	cache.Put(update)

	assert.Equal(t, 2, cache.Len("VOO"))
	all := cache.All("VOO")
	assert.Equal(t, 555.0, all.Bars[1].Close)
}

func TestCacheRange(t *testing.T) {
	cache := stock.NewCache()
	cache.Put(sampleFrame("VOO", 100, 200, 300, 400))

	// from inclusive, to exclusive
	ranged := cache.Range("VOO", 200, 400)
	require.Len(t, ranged.Bars, 2)
	assert.Equal(t, int64(200), ranged.Bars[0].Time)
	assert.Equal(t, int64(300), ranged.Bars[1].Time)
}

func TestCacheUnknownSymbol(t *testing.T) {
	cache := stock.NewCache()
	assert.Empty(t, cache.All("MISSING").Bars)
	assert.Empty(t, cache.Range("MISSING", 0, 100).Bars)
	assert.Zero(t, cache.Len("MISSING"))
}

func TestCacheCovers(t *testing.T) {
	cache := stock.NewCache()
	assert.False(t, cache.Covers("VOO", 0))

	base := int64(1_700_000_000)
	cache.Put(sampleFrame("VOO", base, base+86400, base+2*86400))

	assert.True(t, cache.Covers("VOO", base))
	assert.True(t, cache.Covers("VOO", base+86400))
	// the window edge tolerates a weekend before the first traded bar
	assert.True(t, cache.Covers("VOO", base-2*86400))
	assert.False(t, cache.Covers("VOO", base-5*86400))
	assert.False(t, cache.Covers("QQQ", base))
}

func TestCacheKeepsSymbolsApart(t *testing.T) {
	cache := stock.NewCache()
	cache.Put(sampleFrame("VOO", 100))
	cache.Put(sampleFrame("GOOGL", 100, 200))

	assert.Equal(t, 1, cache.Len("VOO"))
	assert.Equal(t, 2, cache.Len("GOOGL"))
}
