// Package trend switches between a risk-on and a risk-off weight table
// depending on where a benchmark trades relative to its long moving average.
package trend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/indicator"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "trend"

// Direction of the market
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

type savedDirection struct {
	Day       time.Time `json:"day"`
	Direction Direction `json:"direction"`
}

// Params configures the strategy
type Params struct {
	Benchmark      string           `yaml:"benchmark" json:"benchmark"`
	HistoryBars    int              `yaml:"history_bars" json:"history_bars"`
	SMAPeriod      int              `yaml:"sma_period" json:"sma_period"`
	RiskOn         strategy.Weights `yaml:"risk_on" json:"risk_on"`
	RiskOff        strategy.Weights `yaml:"risk_off" json:"risk_off"`
	TargetLeverage float64          `yaml:"target_leverage" json:"target_leverage"`
	RebalanceAfter time.Duration    `yaml:"rebalance_after" json:"rebalance_after"`

	// Minute bars searched for a last price when a name has no current price
	FallbackBars int `yaml:"fallback_bars" json:"fallback_bars"`
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		Benchmark:      "QQQ",
		HistoryBars:    390,
		SMAPeriod:      200,
		RiskOn:         strategy.Weights{"TMF": 0.2, "TYD": 0.2, "TQQQ": 0.6},
		RiskOff:        strategy.Weights{"TQQQ": 1},
		TargetLeverage: 1,
		RebalanceAfter: 11 * time.Minute,
		FallbackBars:   3360,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.Benchmark == "" {
		return errors.New("benchmark is required")
	}
	if p.SMAPeriod <= 0 || p.HistoryBars < p.SMAPeriod {
		return fmt.Errorf("history_bars (%d) must cover sma_period (%d)", p.HistoryBars, p.SMAPeriod)
	}
	if len(p.RiskOn) == 0 || len(p.RiskOff) == 0 {
		return errors.New("risk_on and risk_off tables are required")
	}
	if p.TargetLeverage <= 0 {
		return errors.New("target_leverage must be positive")
	}
	if p.FallbackBars <= 0 {
		return errors.New("fallback_bars must be positive")
	}
	return nil
}

// Strategy is the trend strategy
type Strategy struct {
	params Params

	mu        sync.Mutex
	day       time.Time
	direction Direction
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
	}
}

// BeforeTradingStart determines the market direction for the day
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	direction, err := s.MarketDirection(ctx, env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.day = env.Day()
	s.direction = direction
	s.mu.Unlock()

	env.Logger.WithField("direction", direction.String()).Info("Market direction")
	saved := savedDirection{Day: env.Day(), Direction: direction}
	if err := env.State.Save(ctx, env.StateKey("direction"), saved); err != nil {
		env.Logger.WithError(err).Warn("Failed to persist market direction")
	}
	return nil
}

// MarketDirection compares the benchmark's last close with its moving average
func (s *Strategy) MarketDirection(ctx context.Context, env *strategy.Env) (Direction, error) {
	bars, err := env.Data.History(ctx, s.params.Benchmark, s.params.HistoryBars, contracts.FrequencyDaily)
	if err != nil {
		return Down, fmt.Errorf("failed to load %s history: %w", s.params.Benchmark, err)
	}
	closes := contracts.Closes(bars)

	sma, err := indicator.SMA(closes, s.params.SMAPeriod)
	if err != nil {
		return Down, fmt.Errorf("%s moving average: %w", s.params.Benchmark, err)
	}
	if sma < closes[len(closes)-1] {
		return Up, nil
	}
	return Down, nil
}

// Weights returns the table for direction
func (s *Strategy) Weights(direction Direction) map[string]float64 {
	if direction == Up {
		return s.params.RiskOn
	}
	return s.params.RiskOff
}

// currentDirection returns today's direction, from memory, the state store,
// or computed on the spot
func (s *Strategy) currentDirection(ctx context.Context, env *strategy.Env) (Direction, error) {
	s.mu.Lock()
	if s.day.Equal(env.Day()) {
		d := s.direction
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	var stored savedDirection
	found, err := env.State.Load(ctx, env.StateKey("direction"), &stored)
	if err == nil && found && stored.Day.Equal(env.Day()) {
		return stored.Direction, nil
	}
	return s.MarketDirection(ctx, env)
}

// Rebalance cancels open orders, exits names outside the table and moves
// table names to their weight
func (s *Strategy) Rebalance(ctx context.Context, env *strategy.Env) error {
	if _, err := env.CancelOpen(ctx, nil); err != nil {
		return err
	}

	direction, err := s.currentDirection(ctx, env)
	if err != nil {
		return err
	}
	weights := s.Weights(direction)

	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	var (
		orders []contracts.Order
		errs   []error
	)
	for symbol, pos := range account.Positions {
		if _, keep := weights[symbol]; keep {
			continue
		}
		env.Logger.WithField("symbol", symbol).Info("Selling name no longer in the portfolio")
		orders = append(orders, contracts.NewMarketOrder(symbol, -pos.Qty))
	}

	for _, symbol := range strategy.SortedSymbols(weights) {
		price, err := s.price(ctx, env, symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		weight := weights[symbol] * s.params.TargetLeverage
		total := int64(math.Floor(weight * account.PortfolioValue / price))
		orders = append(orders, contracts.NewMarketOrder(symbol, total-account.Qty(symbol)))
	}

	env.Logger.WithFields(map[string]interface{}{
		"direction": direction.String(),
		"orders":    len(orders),
	}).Info("Rebalancing")

	if _, err := env.Submit(ctx, orders...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// price returns the current price, or the last minute close for sparsely
// traded names
func (s *Strategy) price(ctx context.Context, env *strategy.Env, symbol string) (float64, error) {
	if price, err := env.Data.Current(ctx, symbol); err == nil && price > 0 {
		return price, nil
	}

	bars, err := env.Data.History(ctx, symbol, s.params.FallbackBars, contracts.FrequencyMinute)
	if err != nil || len(bars) == 0 {
		return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
	}
	return bars[len(bars)-1].Close, nil
}
