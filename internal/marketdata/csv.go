package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// CSV serves bars from one file per symbol and frequency:
//
//	<dir>/SPY.csv      daily bars
//	<dir>/SPY_4h.csv   4 hour bars
//	<dir>/SPY_1m.csv   minute bars
//
// Files need a date and a close column, volume is optional. Only bars at or
// before the clock are visible; a zero clock exposes every bar.
type CSV struct {
	dir    string
	logger *logger.Logger

	mu    sync.RWMutex
	now   time.Time
	cache map[string][]contracts.Bar // key: symbol + "|" + frequency
}

// NewCSV creates a CSV source rooted at dir
func NewCSV(dir string, log *logger.Logger) *CSV {
	return &CSV{
		dir:    dir,
		logger: log,
		cache:  make(map[string][]contracts.Bar),
	}
}

// SetTime moves the clock
func (c *CSV) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Now returns the clock
func (c *CSV) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Current returns the close of the latest visible bar, preferring minute bars
func (c *CSV) Current(ctx context.Context, symbol string) (float64, error) {
	for _, freq := range []contracts.Frequency{contracts.FrequencyMinute, contracts.FrequencyDaily} {
		bars, err := c.History(ctx, symbol, 1, freq)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, err
		}
		if len(bars) == 1 && bars[0].Close > 0 {
			return bars[0].Close, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
}

// History returns the last n visible bars of symbol
func (c *CSV) History(ctx context.Context, symbol string, n int, freq contracts.Frequency) ([]contracts.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := c.load(symbol, freq)
	if err != nil {
		return nil, err
	}

	now := c.Now()
	end := len(all)
	if !now.IsZero() {
		end = sort.Search(len(all), func(i int) bool {
			return all[i].Time.After(now)
		})
	}

	start := end - n
	if start < 0 {
		start = 0
	}

	out := make([]contracts.Bar, end-start)
	copy(out, all[start:end])
	return out, nil
}

// CanTrade reports whether symbol has a current price
func (c *CSV) CanTrade(ctx context.Context, symbol string) bool {
	_, err := c.Current(ctx, symbol)
	return err == nil
}

// load reads and caches the bars of one file
func (c *CSV) load(symbol string, freq contracts.Frequency) ([]contracts.Bar, error) {
	key := symbol + "|" + string(freq)

	c.mu.RLock()
	bars, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return bars, nil
	}

	bars, err := readBars(c.path(symbol, freq))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = bars
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"frequency": freq,
		"bars":      len(bars),
	}).Debug("Loaded price file")

	return bars, nil
}

func (c *CSV) path(symbol string, freq contracts.Frequency) string {
	name := symbol + ".csv"
	if freq != contracts.FrequencyDaily {
		name = fmt.Sprintf("%s_%s.csv", symbol, freq)
	}
	return filepath.Join(c.dir, name)
}

// readBars parses a price file and sorts it by time
func readBars(path string) ([]contracts.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s has no data rows", path)
	}

	cols := parseHeader(records[0])
	dateIdx, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("%s has no date column", path)
	}
	closeIdx, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("%s has no close column", path)
	}
	volumeIdx, hasVolume := cols["volume"]

	bars := make([]contracts.Bar, 0, len(records)-1)
	for _, row := range records[1:] {
		if dateIdx >= len(row) || closeIdx >= len(row) {
			continue
		}
		t, err := parseDate(row[dateIdx])
		if err != nil {
			continue // skip malformed rows
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[closeIdx]), 64)
		if err != nil {
			continue
		}

		bar := contracts.Bar{Time: t, Close: price}
		if hasVolume && volumeIdx < len(row) {
			bar.Volume, _ = strconv.ParseInt(strings.TrimSpace(row[volumeIdx]), 10, 64)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	return bars, nil
}

func parseHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date", "timestamp", "time":
			cols["date"] = i
		case "close", "price":
			cols["close"] = i
		case "volume":
			cols["volume"] = i
		}
	}
	return cols
}

func parseDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
	}

	s = strings.TrimSpace(s)
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
