package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oarkflow/backtester/app/models"
	"github.com/oarkflow/backtester/config"
	"github.com/oarkflow/backtester/engine"
	"github.com/oarkflow/backtester/indicator"
	"github.com/oarkflow/backtester/optimizer"
	"github.com/oarkflow/backtester/report"
	"github.com/oarkflow/backtester/scrape"
	"github.com/oarkflow/backtester/stock"
)

// JSONError is json error massage
type JSONError struct {
	Error string `json:"error"`
}

func errorAPI(w http.ResponseWriter, message string, code int) {
	jsonMessage, err := json.Marshal(JSONError{Error: message})
	if err != nil {
		logrus.Warnf("error message create error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	w.Write(jsonMessage)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		logrus.Warnf("response json error: %v", err)
		errorAPI(w, "response json error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

var (
	opt     = optimizer.New(engine.RunnerConfig{}, 4)
	symbols = scrape.NewSymbolDirectory()

	// BarCache keeps downloaded bars in memory so repeated candle requests
	// over an already covered window skip the Yahoo round trip.
	BarCache = stock.NewCache()
)

func runnerConfig() engine.RunnerConfig {
	return engine.RunnerConfig{
		InitialCapital: config.Config.InitialCapital,
		WarmupBars:     config.Config.WarmupBars,
		Annualization:  config.Config.Annualization,
	}
}

// engineParams fills strategy fields the record leaves unset from the
// [engine] config section.
func engineParams(params engine.StrategyParams) engine.StrategyParams {
	if params.MaxHoldingPeriod == 0 {
		params.MaxHoldingPeriod = config.Config.MaxHoldingPeriod
	}
	return params
}

// IndexAPIHandler returns index.html contents,
// when path is "/"
func IndexAPIHandler(w http.ResponseWriter, req *http.Request) {
	temp := template.Must(template.ParseFiles("templates/index.html"))
	temp.ExecuteTemplate(w, "index.html", nil)
}

// CandleGetAPIHandler gets candle data, downloading it first when "get" is set,
// when path is "/candles"
func CandleGetAPIHandler(w http.ResponseWriter, req *http.Request) {
	logrus.Infof("candle get request: url -> %s", req.URL)

	get, _ := strconv.ParseBool(req.URL.Query().Get("get"))
	symbol := req.URL.Query().Get("symbol")
	period, err := strconv.Atoi(req.URL.Query().Get("period"))

	if symbol == "" {
		errorAPI(w, "bad parameter(symbol)", http.StatusBadRequest)
		return
	}

	if get && err != nil {
		errorAPI(w, "bad parameter(get, period)", http.StatusBadRequest)
		return
	}

	if get {
		if !symbols.Known(symbol) {
			errorAPI(w, fmt.Sprintf("unknown symbol: %v", symbol), http.StatusBadRequest)
			return
		}
		from := time.Now().AddDate(0, 0, -period).Unix()
		if BarCache.Covers(symbol, from) {
			logrus.Infof("candle cache hit: %v, %v days", symbol, period)
		} else {
			qt, err := stock.GetStockData(symbol, period, true)
			if err != nil {
				logrus.Warnf("stock get error, symbol: %v", symbol)
				errorAPI(w, fmt.Sprintf("stock get error, symbol: %v", symbol), http.StatusBadRequest)
				return
			}
			// After delete existing data, store stock data in DB
			models.DeleteCandles(symbol)
			models.NewCandlesFromQuote(symbol, qt).CreateCandles()
			BarCache.Put(stock.ToBarFrame(symbol, qt))
		}
	}

	writeJSON(w, models.GetCandles(symbol, period))
}

// StrategyRequest is the create/update payload for a strategy.
type StrategyRequest struct {
	Name string `json:"name"`
	engine.StrategyParams
}

// StrategyAPIHandler lists and creates strategies,
// when path is "/strategies"
func StrategyAPIHandler(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		docs, err := models.ListStrategies()
		if err != nil {
			errorAPI(w, fmt.Sprintf("strategy list error: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, docs)
	case http.MethodPost:
		var sr StrategyRequest
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			errorAPI(w, fmt.Sprintf("strategy params error: %v", err), http.StatusBadRequest)
			return
		}
		id, err := models.CreateStrategy(sr.Name, sr.StrategyParams)
		if err != nil {
			errorAPI(w, fmt.Sprintf("strategy create error: %v", err), statusFor(err))
			return
		}
		writeJSON(w, map[string]string{"strategy_id": id})
	default:
		errorAPI(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// StrategyItemAPIHandler reads, updates and deletes one strategy,
// when path is "/strategies/{id}"
func StrategyItemAPIHandler(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/strategies/")
	if id == "" || strings.Contains(id, "/") {
		errorAPI(w, "bad strategy id", http.StatusBadRequest)
		return
	}

	switch req.Method {
	case http.MethodGet:
		doc, err := models.GetStrategy(id)
		if err != nil {
			errorAPI(w, fmt.Sprintf("strategy not found: %v", id), http.StatusNotFound)
			return
		}
		writeJSON(w, doc)
	case http.MethodPut:
		var sr StrategyRequest
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			errorAPI(w, fmt.Sprintf("strategy params error: %v", err), http.StatusBadRequest)
			return
		}
		if err := models.UpdateStrategy(id, sr.Name, sr.StrategyParams); err != nil {
			errorAPI(w, fmt.Sprintf("strategy update error: %v", err), statusFor(err))
			return
		}
		writeJSON(w, map[string]string{"strategy_id": id})
	case http.MethodDelete:
		if err := models.DeleteStrategy(id); err != nil {
			errorAPI(w, fmt.Sprintf("strategy delete error: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"strategy_id": id})
	default:
		errorAPI(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// BacktestRequest selects the strategy and data window for one run.
type BacktestRequest struct {
	StrategyID string `json:"strategy_id"`
	Limit      int    `json:"limit"`
}

// BacktestResponse is the run result plus its stored record ID.
type BacktestResponse struct {
	BacktestID string                 `json:"backtest_id"`
	Result     *engine.BacktestResult `json:"result"`
}

// BacktestAPIHandler executes one backtest and stores the result,
// when path is "/backtest"
func BacktestAPIHandler(w http.ResponseWriter, req *http.Request) {
	logrus.Info("backtest request")

	var br BacktestRequest
	if err := json.NewDecoder(req.Body).Decode(&br); err != nil {
		logrus.Warnf("backtest params error: %v", err)
		errorAPI(w, fmt.Sprintf("backtest params error: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := models.GetStrategy(br.StrategyID)
	if err != nil {
		errorAPI(w, fmt.Sprintf("strategy not found: %v", br.StrategyID), http.StatusNotFound)
		return
	}

	result, err := runBacktest(doc.StrategyParams, br.Limit)
	if err != nil {
		logrus.Warnf("backtest error: %v", err)
		errorAPI(w, fmt.Sprintf("backtest error: %v", err), statusFor(err))
		return
	}

	record, err := models.SaveBacktestResult(doc.ID, result)
	if err != nil {
		errorAPI(w, fmt.Sprintf("backtest save error: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, BacktestResponse{BacktestID: record.ID, Result: result})
}

func runBacktest(params engine.StrategyParams, limit int) (*engine.BacktestResult, error) {
	params = engineParams(params)
	strategy, err := engine.Compile(params)
	if err != nil {
		return nil, err
	}

	frame := models.GetBarFrame(params.Symbol, limit)
	conds := append(append([]engine.Condition{}, params.EntryConditions...), params.ExitConditions...)
	if err := indicator.Decorate(frame, conds); err != nil {
		return nil, err
	}

	return engine.NewRunner(strategy, runnerConfig()).Run(frame)
}

// OptimizeRequest starts a parameter search over a stored strategy.
type OptimizeRequest struct {
	StrategyID string                `json:"strategy_id"`
	Limit      int                   `json:"limit"`
	Dimensions []optimizer.Dimension `json:"dimensions"`
}

// OptimizeAPIHandler starts an optimization run in the background,
// when path is "/optimize"
func OptimizeAPIHandler(w http.ResponseWriter, req *http.Request) {
	logrus.Info("optimize request")

	var or OptimizeRequest
	if err := json.NewDecoder(req.Body).Decode(&or); err != nil {
		errorAPI(w, fmt.Sprintf("optimize params error: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := models.GetStrategy(or.StrategyID)
	if err != nil {
		errorAPI(w, fmt.Sprintf("strategy not found: %v", or.StrategyID), http.StatusNotFound)
		return
	}

	frame := models.GetBarFrame(doc.Symbol, or.Limit)
	id, err := opt.Start(engineParams(doc.StrategyParams), frame, or.Dimensions)
	if err != nil {
		errorAPI(w, fmt.Sprintf("optimize error: %v", err), statusFor(err))
		return
	}

	writeJSON(w, map[string]string{"optimization_id": id})
}

// OptimizeStatusAPIHandler reports optimization progress,
// when path is "/optimize/status"
func OptimizeStatusAPIHandler(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("id")
	if id == "" {
		errorAPI(w, "bad parameter(id)", http.StatusBadRequest)
		return
	}
	status, err := opt.Status(id)
	if err != nil {
		errorAPI(w, fmt.Sprintf("optimization not found: %v", id), http.StatusNotFound)
		return
	}
	writeJSON(w, status)
}

// ReportAPIHandler renders a stored backtest as markdown,
// when path is "/report"
func ReportAPIHandler(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("backtest_id")
	if id == "" {
		errorAPI(w, "bad parameter(backtest_id)", http.StatusBadRequest)
		return
	}

	record, err := models.GetBacktestRecord(id)
	if err != nil {
		errorAPI(w, fmt.Sprintf("backtest not found: %v", id), http.StatusNotFound)
		return
	}
	doc, err := models.GetStrategy(record.StrategyID)
	if err != nil {
		errorAPI(w, fmt.Sprintf("strategy not found: %v", record.StrategyID), http.StatusNotFound)
		return
	}

	result, err := recordResult(record)
	if err != nil {
		errorAPI(w, fmt.Sprintf("report error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown")
	fmt.Fprint(w, report.Generate(doc.Name, &doc.StrategyParams, result))
}

func recordResult(record *models.BacktestRecord) (*engine.BacktestResult, error) {
	trades, err := record.DecodeTrades()
	if err != nil {
		return nil, err
	}
	curve, err := record.DecodeEquityCurve()
	if err != nil {
		return nil, err
	}
	return &engine.BacktestResult{
		Symbol:         record.Symbol,
		InitialCapital: record.InitialCapital,
		FinalValue:     record.FinalValue,
		Returns:        record.Returns,
		WinRate:        record.WinRate,
		MaxDrawdown:    record.MaxDrawdown,
		SharpeRatio:    record.SharpeRatio,
		TradeCount:     record.TradeCount,
		WinningTrades:  record.WinningTrades,
		LosingTrades:   record.LosingTrades,
		Trades:         trades,
		EquityCurve:    curve,
	}, nil
}

func statusFor(err error) int {
	if _, ok := engine.IsValidationError(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Run starts webserver
func Run() {
	logrus.Info("server start")

	opt = optimizer.New(runnerConfig(), config.Config.OptimizerWorkers)
	if err := symbols.Refresh(); err != nil {
		logrus.Warnf("symbol directory refresh failed, validation disabled: %v", err)
	}

	fs := http.FileServer(http.Dir("./static"))
	http.Handle("/static/", http.StripPrefix("/static/", fs))
	http.HandleFunc("/", IndexAPIHandler)
	http.HandleFunc("/candles", CandleGetAPIHandler)
	http.HandleFunc("/strategies", StrategyAPIHandler)
	http.HandleFunc("/strategies/", StrategyItemAPIHandler)
	http.HandleFunc("/backtest", BacktestAPIHandler)
	http.HandleFunc("/optimize", OptimizeAPIHandler)
	http.HandleFunc("/optimize/status", OptimizeStatusAPIHandler)
	http.HandleFunc("/report", ReportAPIHandler)
	logrus.Fatalln(http.ListenAndServe(fmt.Sprintf(":%d", config.Config.Port), nil))
}
