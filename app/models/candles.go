package models

import (
	"math"
	"sort"

	"github.com/markcheno/go-quote"
	"gorm.io/gorm"

	"github.com/oarkflow/backtester/engine"
)

// Candles is slice of Candle
// Using this, create candle data in database
type Candles []Candle

// NewCandlesFromQuote converts Quote columns into rows of Candle ready for
// the database, ex) [Date[1, 2, 3...], Open[1, 2, 3...]...] → [[Date[1],
// Open[1]...], [Date[2], Open[2]...]...]. Prices are rounded to cents; the
// date becomes Unixtime so the frontend chart can consume it directly.
func NewCandlesFromQuote(symbol string, stock *quote.Quote) *Candles {
	candles := Candles{}
	for i := 0; i < len(stock.Date); i++ {
		candles = append(candles, Candle{
			Symbol: symbol,
			Time:   stock.Date[i].Unix(),
			Open:   math.Round(stock.Open[i]*100) / 100,
			High:   math.Round(stock.High[i]*100) / 100,
			Low:    math.Round(stock.Low[i]*100) / 100,
			Close:  math.Round(stock.Close[i]*100) / 100,
			Volume: math.Round(stock.Volume[i]*100) / 100,
		})
	}

	return &candles
}

// GetBarFrame gets candle data for symbol, last limit rows, and returns them
// as an ascending bar frame for simulation. limit <= 0 loads everything.
func GetBarFrame(symbol string, limit int) *engine.BarFrame {
	var candles Candles
	query := DB.Where("symbol = ?", symbol).Order("time desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	query.Find(&candles)
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })

	frame := engine.BarFrame{Symbol: symbol}
	for _, c := range candles {
		frame.Bars = append(frame.Bars, engine.Bar{
			Time:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}

	return &frame
}

// GetCandles returns the last limit candles for symbol in ascending order,
// used by the chart endpoint.
func GetCandles(symbol string, limit int) *Candles {
	var candles Candles
	query := DB.Where("symbol = ?", symbol).Order("time desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	query.Find(&candles)
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return &candles
}

// DeleteCandles deletes all candle data for symbol
func DeleteCandles(symbol string) {
	DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Candle{}, "symbol = ?", symbol)
}

// CreateCandles creates candle data
func (cs *Candles) CreateCandles() {
	DB.Create(cs)
}

// Candle is daily stock candledata, also used as json
type Candle struct {
	ID     int     `json:"-"`
	Symbol string  `gorm:"index" json:"-"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// LastCandleTime returns a time of last candle for symbol
func LastCandleTime(symbol string) (int64, error) {
	var candle Candle
	if err := DB.Where("symbol = ?", symbol).Order("time desc").First(&candle).Error; err != nil {
		return 0, err
	}
	return candle.Time, nil
}
