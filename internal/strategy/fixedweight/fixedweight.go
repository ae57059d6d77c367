// Package fixedweight rebalances a static weight table once a day.
package fixedweight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "fixedweight"

// Params configures the strategy
type Params struct {
	Weights        strategy.Weights `yaml:"weights" json:"weights"`
	TargetLeverage float64          `yaml:"target_leverage" json:"target_leverage"`
	RebalanceAfter time.Duration    `yaml:"rebalance_after" json:"rebalance_after"` // after the open
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		Weights: strategy.Weights{
			"QQQ":  0.3,
			"AMZN": 0.2,
			"PXMG": 0.1,
			"UUP":  0.1,
			"EDV":  0.2,
			"REZ":  0.1,
		},
		TargetLeverage: 1,
		RebalanceAfter: 2 * time.Hour,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if len(p.Weights) == 0 {
		return errors.New("weights must not be empty")
	}
	var sum float64
	for symbol, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("weight of %s must not be negative", symbol)
		}
		sum += w
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("weights sum to %.4f, more than 1", sum)
	}
	if p.TargetLeverage <= 0 || math.IsNaN(p.TargetLeverage) {
		return fmt.Errorf("target_leverage must be positive")
	}
	if p.RebalanceAfter < 0 {
		return fmt.Errorf("rebalance_after must not be negative")
	}
	return nil
}

// Strategy is the fixed weight strategy
type Strategy struct {
	params Params
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
	}
}

// BeforeTradingStart implements strategy.Strategy
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	return nil
}

// Rebalance moves every tradable name of the table to its weight
func (s *Strategy) Rebalance(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	var (
		orders []contracts.Order
		errs   []error
	)
	for _, symbol := range strategy.SortedSymbols(s.params.Weights) {
		if !env.Data.CanTrade(ctx, symbol) {
			env.Logger.WithField("symbol", symbol).Warn("Cannot trade, skipping")
			continue
		}
		order, ok, err := env.TargetPercent(ctx, account, symbol, s.params.Weights[symbol]*s.params.TargetLeverage)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			orders = append(orders, order)
		}
	}

	if _, err := env.Submit(ctx, orders...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RecordVars records the account leverage
func (s *Strategy) RecordVars(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}
	return env.Record(ctx, map[string]float64{"leverage": account.Leverage()})
}
