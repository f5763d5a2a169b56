package main

import (
	"github.com/oarkflow/backtester/app/models"
	"github.com/oarkflow/backtester/app/server"
	"github.com/oarkflow/backtester/config"
	"github.com/oarkflow/backtester/log"
)

func main() {
	config.InitConfig()
	log.SetLogging()
	models.InitDB()
	server.Run()
}
