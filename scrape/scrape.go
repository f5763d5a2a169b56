package scrape

import (
	"encoding/csv"
	"os"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const listingURL = "https://www.sharesansar.com/today-share-price"

// SymbolDirectory is the set of tradable symbols scraped from the exchange
// listing page. Strategies are validated against it before a backtest is
// accepted, so a typoed symbol fails fast instead of producing an empty
// download.
type SymbolDirectory struct {
	mu      sync.RWMutex
	symbols map[string]bool
}

func NewSymbolDirectory() *SymbolDirectory {
	return &SymbolDirectory{symbols: map[string]bool{}}
}

// Refresh scrapes the listing page and replaces the directory contents.
func (s *SymbolDirectory) Refresh() error {
	symbols, err := fetchSymbols(listingURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.symbols = symbols
	s.mu.Unlock()
	logrus.Infof("symbol directory refreshed, %v symbols", len(symbols))
	return nil
}

// Known reports whether symbol appears in the directory. An empty directory
// accepts everything so the engine stays usable offline.
func (s *SymbolDirectory) Known(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.symbols) == 0 {
		return true
	}
	return s.symbols[strings.ToUpper(symbol)]
}

// Len returns the number of known symbols.
func (s *SymbolDirectory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Load reads a previously saved symbol list from a one-column CSV file.
func (s *SymbolDirectory) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return err
	}
	symbols := map[string]bool{}
	for _, row := range records {
		if len(row) == 0 || row[0] == "" || row[0] == "Symbol" {
			continue
		}
		symbols[strings.ToUpper(strings.TrimSpace(row[0]))] = true
	}
	s.mu.Lock()
	s.symbols = symbols
	s.mu.Unlock()
	return nil
}

// Save writes the directory to a one-column CSV file.
func (s *SymbolDirectory) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Symbol"}); err != nil {
		return err
	}
	for symbol := range s.symbols {
		if err := writer.Write([]string{symbol}); err != nil {
			return err
		}
	}
	return nil
}

func fetchSymbols(url string) (map[string]bool, error) {
	c := colly.NewCollector(
		colly.AllowedDomains("www.sharesansar.com"),
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/102.0.5005.115 Safari/537.36"),
	)

	symbols := map[string]bool{}
	var scrapeErr error

	c.OnHTML("table.table-bordered", func(e *colly.HTMLElement) {
		e.ForEach("tr", func(i int, el *colly.HTMLElement) {
			if i == 0 {
				return
			}
			// symbol sits in the second cell, after the row number
			cells := el.ChildTexts("td")
			if len(cells) > 1 {
				symbol := strings.ToUpper(strings.TrimSpace(cells[1]))
				if symbol != "" {
					symbols[symbol] = true
				}
			}
		})
	})

	c.OnRequest(func(r *colly.Request) {
		logrus.Infof("visiting %v", r.URL.String())
	})

	c.OnError(func(r *colly.Response, err error) {
		logrus.Warnf("scrape failed with status %v: %v", r.StatusCode, err)
		scrapeErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, err
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return symbols, nil
}
