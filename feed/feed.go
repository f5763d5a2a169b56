package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	d "github.com/araddon/dateparse"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/log"

	"github.com/oarkflow/backtester/engine"
)

// column names accepted in CSV headers, lowercased
var columnAliases = map[string]string{
	"date":       "time",
	"time":       "time",
	"timestamp":  "time",
	"open":       "open",
	"openprice":  "open",
	"high":       "high",
	"highprice":  "high",
	"low":        "low",
	"lowprice":   "low",
	"close":      "close",
	"closeprice": "close",
	"volume":     "volume",
	"vol":        "volume",
}

// LoadCSV reads OHLCV rows from path into a bar frame. The header row decides
// column positions, dates are parsed with dateparse so mixed formats load
// without configuration. Rows that fail to parse are skipped with a warning.
func LoadCSV(symbol, path string) (*engine.BarFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewE(err, "problem opening input file", "")
	}
	defer f.Close()
	return ReadCSV(symbol, f)
}

// ReadCSV parses CSV OHLCV data from r. See LoadCSV.
func ReadCSV(symbol string, r io.Reader) (*engine.BarFrame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewE(err, "problem reading input file", "")
	}
	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			cols[canonical] = i
		}
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.New("missing required column: " + required)
		}
	}

	frame := &engine.BarFrame{Symbol: symbol}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewE(err, "problem reading input file", "")
		}
		bar, err := parseBar(record, cols)
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("Skipping unparsable row")
			continue
		}
		frame.Bars = append(frame.Bars, bar)
	}
	return frame, nil
}

func parseBar(record []string, cols map[string]int) (engine.Bar, error) {
	ts, err := d.ParseAny(record[cols["time"]])
	if err != nil {
		return engine.Bar{}, errors.NewE(err, "bad date "+record[cols["time"]], "")
	}
	bar := engine.Bar{Time: ts.Unix()}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
	}
	for _, field := range fields {
		v, err := parseFloat(record[cols[field.name]])
		if err != nil {
			return engine.Bar{}, errors.NewE(err, "bad "+field.name+" value", "")
		}
		*field.dst = v
	}
	if idx, ok := cols["volume"]; ok && idx < len(record) {
		// volume is optional, some exports omit it
		if v, err := parseFloat(record[idx]); err == nil {
			bar.Volume = v
		}
	}
	return bar, nil
}

func parseFloat(value string) (float64, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	return strconv.ParseFloat(value, 64)
}

// WriteTrades exports closed trades to a CSV file at path.
func WriteTrades(trades []engine.Trade, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewE(err, "problem creating output file", "")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{
		"entry_time", "exit_time", "entry_price", "exit_price",
		"exit_reason", "profit_points", "profit_pct",
	})
	for _, t := range trades {
		_ = w.Write([]string{
			strconv.FormatInt(t.EntryTime, 10),
			strconv.FormatInt(t.ExitTime, 10),
			formatF(t.EntryPrice), formatF(t.ExitPrice),
			string(t.ExitReason),
			formatF(t.ProfitPoints), formatF(t.ProfitPct),
		})
	}
	return nil
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
