package models

import (
	"encoding/json"
	"time"

	"github.com/oarkflow/xid"
	"github.com/sirupsen/logrus"

	"github.com/oarkflow/backtester/engine"
)

// Strategy is one persisted strategy definition. The condition lists live in
// Params as the strategy's JSON document, so the schema does not change when
// new indicators or comparison shapes appear.
type Strategy struct {
	ID        string `gorm:"primary_key" json:"strategy_id"`
	Name      string `json:"name"`
	Params    string `json:"-"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// StrategyDocument is a strategy record flattened for the API, the stored
// params merged with the row metadata.
type StrategyDocument struct {
	ID        string `json:"strategy_id"`
	Name      string `json:"name"`
	engine.StrategyParams
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// CreateStrategy validates and stores a new strategy, returning its generated ID.
func CreateStrategy(name string, params engine.StrategyParams) (string, error) {
	if _, err := engine.Compile(params); err != nil {
		return "", err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	strategy := Strategy{
		ID:        xid.New().String(),
		Name:      name,
		Params:    string(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := DB.Create(&strategy).Error; err != nil {
		return "", err
	}
	logrus.Infof("created strategy: %v", strategy.ID)
	return strategy.ID, nil
}

// UpdateStrategy replaces the stored params for an existing strategy.
func UpdateStrategy(id, name string, params engine.StrategyParams) error {
	var strategy Strategy
	if err := DB.First(&strategy, "id = ?", id).Error; err != nil {
		return err
	}
	if _, err := engine.Compile(params); err != nil {
		return err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	strategy.Name = name
	strategy.Params = string(raw)
	strategy.UpdatedAt = time.Now().Unix()
	if err := DB.Save(&strategy).Error; err != nil {
		return err
	}
	logrus.Infof("updated strategy: %v", id)
	return nil
}

// GetStrategy loads one strategy and its params, migrating old-format
// condition documents on the way out.
func GetStrategy(id string) (*StrategyDocument, error) {
	var strategy Strategy
	if err := DB.First(&strategy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return strategy.document()
}

// DeleteStrategy removes a strategy and its stored backtest results.
func DeleteStrategy(id string) error {
	if err := DB.Delete(&Strategy{}, "id = ?", id).Error; err != nil {
		return err
	}
	DB.Delete(&BacktestRecord{}, "strategy_id = ?", id)
	logrus.Infof("deleted strategy: %v", id)
	return nil
}

// ListStrategies returns every stored strategy.
func ListStrategies() ([]*StrategyDocument, error) {
	var strategies []Strategy
	if err := DB.Order("created_at").Find(&strategies).Error; err != nil {
		return nil, err
	}
	docs := make([]*StrategyDocument, 0, len(strategies))
	for _, s := range strategies {
		doc, err := s.document()
		if err != nil {
			logrus.Warnf("skipping unreadable strategy %v: %v", s.ID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Strategy) document() (*StrategyDocument, error) {
	var params engine.StrategyParams
	if err := json.Unmarshal([]byte(s.Params), &params); err != nil {
		return nil, err
	}
	migrateConditions(s.ID, params.EntryConditions)
	migrateConditions(s.ID, params.ExitConditions)
	return &StrategyDocument{
		ID:             s.ID,
		Name:           s.Name,
		StrategyParams: params,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

// migrateConditions fixes old documents that put a numeric threshold into
// params["value"]. The number moves to the threshold field and the value
// param falls back to the close series.
func migrateConditions(id string, conds []engine.Condition) {
	for i := range conds {
		c := &conds[i]
		if c.Indicator == "" || c.Params == nil {
			continue
		}
		switch v := c.Params["value"].(type) {
		case float64:
			c.Threshold = v
			c.Params["value"] = "close"
			logrus.Warnf("migrated strategy %v condition: moved numeric value %v to threshold", id, v)
		case int:
			c.Threshold = float64(v)
			c.Params["value"] = "close"
			logrus.Warnf("migrated strategy %v condition: moved numeric value %v to threshold", id, v)
		}
	}
}
