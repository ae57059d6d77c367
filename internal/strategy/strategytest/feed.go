// Package strategytest provides an in-memory environment for strategy tests.
package strategytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// Feed is a settable market data source
type Feed struct {
	mu     sync.Mutex
	prices map[string]float64
	bars   map[string]map[contracts.Frequency][]contracts.Bar
	halted map[string]bool
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{
		prices: make(map[string]float64),
		bars:   make(map[string]map[contracts.Frequency][]contracts.Bar),
		halted: make(map[string]bool),
	}
}

// SetPrice sets the current price of symbol
func (f *Feed) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

// ClearPrice removes the current price of symbol
func (f *Feed) ClearPrice(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, symbol)
}

// Halt makes symbol untradable while keeping its price
func (f *Feed) Halt(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.halted[symbol] = true
}

// SetCloses replaces the history of symbol, oldest close first
func (f *Feed) SetCloses(symbol string, freq contracts.Frequency, closes ...float64) {
	step := 24 * time.Hour
	switch freq {
	case contracts.FrequencyMinute:
		step = time.Minute
	case contracts.FrequencyHour4:
		step = 4 * time.Hour
	}

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{Time: start.Add(time.Duration(i) * step), Close: c}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bars[symbol] == nil {
		f.bars[symbol] = make(map[contracts.Frequency][]contracts.Bar)
	}
	f.bars[symbol][freq] = bars
}

// Current returns the price set with SetPrice
func (f *Feed) Current(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
	}
	return p, nil
}

// History returns the last n bars set with SetCloses
func (f *Feed) History(ctx context.Context, symbol string, n int, freq contracts.Frequency) ([]contracts.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars := f.bars[symbol][freq]
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s history for %s", contracts.ErrNoPrice, freq, symbol)
	}
	if n < len(bars) {
		bars = bars[len(bars)-n:]
	}
	out := make([]contracts.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// CanTrade reports whether symbol has a price and is not halted
func (f *Feed) CanTrade(ctx context.Context, symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.prices[symbol]
	return ok && !f.halted[symbol]
}
