// Package strategy defines the contract every trading strategy implements
// and the environment it runs in.
package strategy

import (
	"context"

	"github.com/trobrock/trading-algo/internal/scheduler"
)

// Strategy is a set of scheduled callbacks over a shared environment
// ⭐ SSOT: strategies only talk to the outside world through Env
type Strategy interface {
	// Name returns the registered strategy name
	Name() string

	// Schedules returns the callbacks to run during the trading day
	Schedules() []Schedule

	// BeforeTradingStart prepares the day's state. The runner calls it at
	// most once per market day.
	BeforeTradingStart(ctx context.Context, env *Env) error
}

// Schedule binds a callback to a market-relative trigger
type Schedule struct {
	Name string
	Rule scheduler.Rule
	Run  func(ctx context.Context, env *Env) error

	// SessionOnly skips triggers outside the regular session
	SessionOnly bool
}
