package models

import (
	"encoding/json"
	"time"

	"github.com/oarkflow/xid"
	"github.com/sirupsen/logrus"

	"github.com/oarkflow/backtester/engine"
	"github.com/oarkflow/backtester/utils"
)

// BacktestRecord stores one finished run. Summary metrics are columns so
// lists stay cheap; trades and the equity curve are JSON documents, the
// curve gzip compressed because it carries one point per bar.
type BacktestRecord struct {
	ID             string  `gorm:"primary_key" json:"backtest_id"`
	StrategyID     string  `gorm:"index" json:"strategy_id"`
	Symbol         string  `json:"symbol"`
	CreatedAt      int64   `json:"created_at"`
	InitialCapital float64 `json:"initial_capital"`
	FinalValue     float64 `json:"final_value"`
	Returns        float64 `json:"returns"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	TradeCount     int     `json:"trade_count"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	Trades         string  `json:"-"`
	EquityCurve    string  `json:"-"`
}

// SaveBacktestResult persists a run for strategyID and returns the stored
// record, its ID freshly assigned. The engine result itself carries no ID so
// identical runs stay identical.
func SaveBacktestResult(strategyID string, result *engine.BacktestResult) (*BacktestRecord, error) {
	trades, err := json.Marshal(result.Trades)
	if err != nil {
		return nil, err
	}
	curve, err := json.Marshal(result.EquityCurve)
	if err != nil {
		return nil, err
	}

	record := BacktestRecord{
		ID:             xid.New().String(),
		StrategyID:     strategyID,
		Symbol:         result.Symbol,
		CreatedAt:      time.Now().Unix(),
		InitialCapital: result.InitialCapital,
		FinalValue:     result.FinalValue,
		Returns:        result.Returns,
		WinRate:        result.WinRate,
		MaxDrawdown:    result.MaxDrawdown,
		SharpeRatio:    result.SharpeRatio,
		TradeCount:     result.TradeCount,
		WinningTrades:  result.WinningTrades,
		LosingTrades:   result.LosingTrades,
		Trades:         string(trades),
		EquityCurve:    utils.ToCompressedString(curve),
	}
	if err := DB.Create(&record).Error; err != nil {
		return nil, err
	}
	logrus.Infof("saved backtest result %v for strategy %v", record.ID, strategyID)
	return &record, nil
}

// GetBacktestRecord loads one stored run by ID.
func GetBacktestRecord(id string) (*BacktestRecord, error) {
	var record BacktestRecord
	if err := DB.First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBacktestRecords returns the stored runs for a strategy, newest first.
func ListBacktestRecords(strategyID string) ([]BacktestRecord, error) {
	var records []BacktestRecord
	if err := DB.Where("strategy_id = ?", strategyID).Order("created_at desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeTrades unpacks the stored trade list.
func (r *BacktestRecord) DecodeTrades() ([]engine.Trade, error) {
	var trades []engine.Trade
	if err := json.Unmarshal([]byte(r.Trades), &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// DecodeEquityCurve unpacks the stored equity curve.
func (r *BacktestRecord) DecodeEquityCurve() ([]engine.EquityPoint, error) {
	raw, err := utils.FromCompressedString(r.EquityCurve)
	if err != nil {
		return nil, err
	}
	var curve []engine.EquityPoint
	if err := json.Unmarshal(raw, &curve); err != nil {
		return nil, err
	}
	return curve, nil
}
