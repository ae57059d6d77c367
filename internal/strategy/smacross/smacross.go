// Package smacross holds a single asset while its short exponential average
// of 4 hour closes is above the long one.
package smacross

import (
	"context"
	"errors"
	"fmt"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/indicator"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "smacross"

// Params configures the strategy
type Params struct {
	Asset      string              `yaml:"asset" json:"asset"`
	ShortBars  int                 `yaml:"short_bars" json:"short_bars"`
	LongBars   int                 `yaml:"long_bars" json:"long_bars"`
	CenterMass float64             `yaml:"center_of_mass" json:"center_of_mass"`
	Frequency  contracts.Frequency `yaml:"frequency" json:"frequency"`
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		Asset:      "SPY",
		ShortBars:  20,
		LongBars:   40,
		CenterMass: 0.5,
		Frequency:  contracts.FrequencyHour4,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.Asset == "" {
		return errors.New("asset is required")
	}
	if p.ShortBars <= 0 || p.LongBars <= p.ShortBars {
		return fmt.Errorf("bars must satisfy 0 < short (%d) < long (%d)", p.ShortBars, p.LongBars)
	}
	if p.CenterMass < 0 {
		return errors.New("center_of_mass must not be negative")
	}
	switch p.Frequency {
	case contracts.FrequencyMinute, contracts.FrequencyHour4, contracts.FrequencyDaily:
	default:
		return fmt.Errorf("unknown frequency %q", p.Frequency)
	}
	return nil
}

// Strategy is the moving average crossover strategy
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
		{Name: "handle_data", Rule: scheduler.EveryMinute(), Run: s.HandleData, SessionOnly: true},
	}
}

// BeforeTradingStart implements strategy.Strategy
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	return nil
}

// Averages returns the short and long exponentially weighted means
func (s *Strategy) Averages(ctx context.Context, env *strategy.Env) (short, long float64, err error) {
	bars, err := env.Data.History(ctx, s.params.Asset, s.params.LongBars, s.params.Frequency)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load %s history: %w", s.params.Asset, err)
	}
	closes := contracts.Closes(bars)
	if len(closes) < s.params.LongBars {
		return 0, 0, fmt.Errorf("%w: %d of %d bars", indicator.ErrNotEnoughData, len(closes), s.params.LongBars)
	}

	short, err = indicator.EWM(closes[len(closes)-s.params.ShortBars:], s.params.CenterMass)
	if err != nil {
		return 0, 0, err
	}
	long, err = indicator.EWM(closes, s.params.CenterMass)
	if err != nil {
		return 0, 0, err
	}
	return short, long, nil
}

// HandleData targets the whole portfolio in the asset on an upward cross
// and exits on a downward one
func (s *Strategy) HandleData(ctx context.Context, env *strategy.Env) error {
	short, long, err := s.Averages(ctx, env)
	if err != nil {
		return err
	}
	env.Logger.WithFields(map[string]interface{}{
		"short": short,
		"long":  long,
	}).Debug("Averages")

	var target float64
	switch {
	case short > long:
		target = 1
	case short < long:
		target = 0
	default:
		return nil
	}

	account, err := env.Account(ctx)
	if err != nil {
		return err
	}
	order, ok, err := env.TargetPercent(ctx, account, s.params.Asset, target)
	if err != nil || !ok {
		return err
	}
	_, err = env.Submit(ctx, order)
	return err
}
