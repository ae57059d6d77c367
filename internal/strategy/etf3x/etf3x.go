// Package etf3x trades a fixed universe of leveraged ETFs on moving average
// divergence and RSI, with a per-minute stop loss.
package etf3x

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/indicator"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "etf3x"

// Band is an inclusive percentile range
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Params configures the strategy
type Params struct {
	Universe    []string `yaml:"universe" json:"universe"`
	ShortWindow int      `yaml:"short_window" json:"short_window"`
	LongWindow  int      `yaml:"long_window" json:"long_window"`
	RSIPeriod   int      `yaml:"rsi_period" json:"rsi_period"`

	LongBand  Band    `yaml:"long_band" json:"long_band"`
	ShortBand Band    `yaml:"short_band" json:"short_band"`
	RSILow    float64 `yaml:"rsi_low" json:"rsi_low"`
	RSIHigh   float64 `yaml:"rsi_high" json:"rsi_high"`

	AllowShort     bool          `yaml:"allow_short" json:"allow_short"`
	StopLoss       float64       `yaml:"stop_loss" json:"stop_loss"` // return vs cost basis, negative
	RebalanceAfter time.Duration `yaml:"rebalance_after" json:"rebalance_after"`
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		Universe: []string{
			"DGAZ", "UGAZ", "JDST", "JNUG", "UWT", "DWT",
			"GUSH", "DRIP", "TQQQ", "SQQQ", "SPXS", "SPXL",
		},
		ShortWindow:    10,
		LongWindow:     30,
		RSIPeriod:      14,
		LongBand:       Band{Min: 0, Max: 15},
		ShortBand:      Band{Min: 90, Max: 100},
		RSILow:         40,
		RSIHigh:        65,
		StopLoss:       -0.05,
		RebalanceAfter: 5 * time.Minute,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if len(p.Universe) == 0 {
		return errors.New("universe must not be empty")
	}
	if p.ShortWindow <= 0 || p.LongWindow <= p.ShortWindow {
		return fmt.Errorf("windows must satisfy 0 < short (%d) < long (%d)", p.ShortWindow, p.LongWindow)
	}
	if p.RSIPeriod <= 0 {
		return errors.New("rsi_period must be positive")
	}
	for name, b := range map[string]Band{"long_band": p.LongBand, "short_band": p.ShortBand} {
		if b.Min < 0 || b.Max > 100 || b.Min > b.Max {
			return fmt.Errorf("%s must satisfy 0 <= min <= max <= 100", name)
		}
	}
	if p.StopLoss >= 0 {
		return errors.New("stop_loss must be negative")
	}
	return nil
}

func (p Params) historyBars() int {
	return max(p.LongWindow, p.RSIPeriod+1)
}

// Signal is the screen output for one ETF
type Signal struct {
	Symbol            string  `json:"symbol"`
	PercentDifference float64 `json:"percent_difference"`
	RSI               float64 `json:"rsi"`
	Long              bool    `json:"long"`
	Short             bool    `json:"short"`
}

type selection struct {
	Day    time.Time `json:"day"`
	Longs  []string  `json:"longs"`
	Shorts []string  `json:"shorts"`
}

// Strategy is the leveraged ETF strategy
type Strategy struct {
	params Params

	mu  sync.Mutex
	sel selection
}

// New creates the strategy
func New(params Params) *Strategy {
	return &Strategy{params: params}
}

// Name implements strategy.Strategy
func (s *Strategy) Name() string { return Name }

// Schedules implements strategy.Strategy
func (s *Strategy) Schedules() []strategy.Schedule {
	return []strategy.Schedule{
		{Name: "rebalance", Rule: scheduler.MarketOpen(s.params.RebalanceAfter), Run: s.Rebalance},
		{Name: "record", Rule: scheduler.MarketClose(time.Minute), Run: s.RecordVars},
		{Name: "stop_loss", Rule: scheduler.EveryMinute(), Run: s.StopLoss, SessionOnly: true},
	}
}

// Signals computes the percent difference and RSI of every ETF with enough
// history and flags the long and short candidates
func (s *Strategy) Signals(ctx context.Context, env *strategy.Env) ([]Signal, error) {
	signals := make([]Signal, 0, len(s.params.Universe))
	pds := make(map[string]float64, len(s.params.Universe))

	for _, symbol := range s.params.Universe {
		bars, err := env.Data.History(ctx, symbol, s.params.historyBars(), contracts.FrequencyDaily)
		if err != nil {
			env.Logger.WithError(err).WithField("symbol", symbol).Warn("Skipping ETF without history")
			continue
		}
		closes := contracts.Closes(bars)

		pd, err := indicator.PercentDifference(closes, s.params.ShortWindow, s.params.LongWindow)
		if err != nil {
			env.Logger.WithError(err).WithField("symbol", symbol).Warn("Skipping ETF")
			continue
		}
		rsi, err := indicator.RSI(closes, s.params.RSIPeriod)
		if err != nil {
			env.Logger.WithError(err).WithField("symbol", symbol).Warn("Skipping ETF")
			continue
		}

		pds[symbol] = pd
		signals = append(signals, Signal{Symbol: symbol, PercentDifference: pd, RSI: rsi})
	}

	if len(signals) == 0 {
		return signals, nil
	}

	inLong, err := indicator.PercentileBetween(pds, s.params.LongBand.Min, s.params.LongBand.Max)
	if err != nil {
		return nil, err
	}
	inShort, err := indicator.PercentileBetween(pds, s.params.ShortBand.Min, s.params.ShortBand.Max)
	if err != nil {
		return nil, err
	}

	for i := range signals {
		sig := &signals[i]
		sig.Long = inLong[sig.Symbol] && sig.RSI <= s.params.RSILow
		sig.Short = inShort[sig.Symbol] && sig.RSI >= s.params.RSIHigh
	}
	return signals, nil
}

// BeforeTradingStart selects the day's tradable longs and shorts
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	signals, err := s.Signals(ctx, env)
	if err != nil {
		return err
	}

	sel := selection{Day: env.Day(), Longs: []string{}, Shorts: []string{}}
	for _, sig := range signals {
		env.Logger.WithFields(map[string]interface{}{
			"symbol":             sig.Symbol,
			"percent_difference": sig.PercentDifference,
			"rsi":                sig.RSI,
			"long":               sig.Long,
			"short":              sig.Short,
		}).Debug("ETF signal")

		if !env.Data.CanTrade(ctx, sig.Symbol) {
			continue
		}
		if sig.Long {
			sel.Longs = append(sel.Longs, sig.Symbol)
		}
		if sig.Short {
			sel.Shorts = append(sel.Shorts, sig.Symbol)
		}
	}

	s.mu.Lock()
	s.sel = sel
	s.mu.Unlock()

	env.Logger.WithFields(map[string]interface{}{
		"longs":  sel.Longs,
		"shorts": sel.Shorts,
	}).Info("ETFs selected")

	if err := env.State.Save(ctx, env.StateKey("selection"), sel); err != nil {
		env.Logger.WithError(err).Warn("Failed to persist selection")
	}
	return nil
}

// today returns today's selection, restoring it from the state store
// after a restart
func (s *Strategy) today(ctx context.Context, env *strategy.Env) selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sel.Day.Equal(env.Day()) {
		var stored selection
		found, err := env.State.Load(ctx, env.StateKey("selection"), &stored)
		if err == nil && found && stored.Day.Equal(env.Day()) {
			s.sel = stored
		}
	}
	return s.sel
}

// TargetWeights returns the weight per symbol. Nothing is traded unless
// there are both long and short candidates. Held names outside both lists
// are closed.
func (s *Strategy) TargetWeights(ctx context.Context, env *strategy.Env, account *contracts.Account) map[string]float64 {
	sel := s.today(ctx, env)
	weights := make(map[string]float64)
	if len(sel.Longs) == 0 || len(sel.Shorts) == 0 {
		return weights
	}

	longTotal, shortTotal := 1.0, 0.0
	if s.params.AllowShort {
		longTotal, shortTotal = 0.5, -0.5
	}
	longWeight := longTotal / float64(len(sel.Longs))
	shortWeight := shortTotal / float64(len(sel.Shorts))

	for symbol := range account.Positions {
		weights[symbol] = 0
	}
	for symbol := range weights {
		if !env.Data.CanTrade(ctx, symbol) {
			delete(weights, symbol)
		}
	}
	for _, symbol := range sel.Longs {
		weights[symbol] = longWeight
	}
	for _, symbol := range sel.Shorts {
		weights[symbol] = shortWeight
	}
	return weights
}

// Rebalance places limit orders at the current price toward the target weights
func (s *Strategy) Rebalance(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	weights := s.TargetWeights(ctx, env, account)
	env.Logger.WithField("weights", weights).Info("Target weights")
	if len(weights) == 0 {
		return nil
	}

	var (
		orders []contracts.Order
		errs   []error
	)
	for _, symbol := range strategy.SortedSymbols(weights) {
		price, err := env.Data.Current(ctx, symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		target := int64(math.Floor(account.PortfolioValue * weights[symbol] / price))
		orders = append(orders, contracts.NewLimitOrder(symbol, target-account.Qty(symbol), price))
	}

	if _, err := env.Submit(ctx, orders...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StopLoss closes positions without open orders whose return against cost
// basis fell below the stop
func (s *Strategy) StopLoss(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, account.Count())
	for symbol := range account.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var orders []contracts.Order
	for _, symbol := range symbols {
		pos := account.Positions[symbol]
		if pos.CostBasis <= 0 {
			continue
		}
		pending, err := env.HasOpenOrders(ctx, symbol)
		if err != nil {
			return err
		}
		if pending {
			continue
		}
		price, err := env.Data.Current(ctx, symbol)
		if err != nil {
			continue
		}

		loss := (price - pos.CostBasis) / pos.CostBasis
		if loss < s.params.StopLoss {
			env.Logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"loss":   loss,
			}).Info("Selling early")
			orders = append(orders, contracts.NewMarketOrder(symbol, -pos.Qty))
		}
	}

	_, err = env.Submit(ctx, orders...)
	return err
}

// RecordVars records leverage and the number of long and short positions
func (s *Strategy) RecordVars(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	var longs, shorts int
	for _, pos := range account.Positions {
		switch {
		case pos.Qty > 0:
			longs++
		case pos.Qty < 0:
			shorts++
		}
	}

	return env.Record(ctx, map[string]float64{
		"leverage":    account.Leverage(),
		"long_count":  float64(longs),
		"short_count": float64(shorts),
	})
}
