package config

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Config represents config info
var Config ConfList

// ConfList has contents of config.ini
type ConfList struct {
	DBdriver string
	DBname   string
	Port     int
	IP       string

	// Engine defaults; zero values fall back to the engine's own defaults.
	InitialCapital   float64
	WarmupBars       int
	MaxHoldingPeriod int
	Annualization    float64
	OptimizerWorkers int
}

// InitConfig initializes config settings
func InitConfig() {
	conf, err := ini.Load("config.ini")
	if err != nil {
		logrus.Warnf("init file open error: %v", err)
		conf = ini.Empty()
	}

	Config = ConfList{
		DBdriver:         conf.Section("db").Key("driver").String(),
		DBname:           conf.Section("db").Key("name").MustString("backtester.sqlite3"),
		Port:             conf.Section("web").Key("port").MustInt(8080),
		IP:               conf.Section("web").Key("ip").String(),
		InitialCapital:   conf.Section("engine").Key("initial_capital").MustFloat64(100000),
		WarmupBars:       conf.Section("engine").Key("warmup_bars").MustInt(30),
		MaxHoldingPeriod: conf.Section("engine").Key("max_holding_period").MustInt(20),
		Annualization:    conf.Section("engine").Key("annualization").MustFloat64(252),
		OptimizerWorkers: conf.Section("engine").Key("optimizer_workers").MustInt(4),
	}
}
