package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/trobrock/trading-algo/internal/allocator"
	"github.com/trobrock/trading-algo/internal/broker"
	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/internal/marketdata"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/screen"
	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// OrderSubmitter sends a batch of orders to the broker
type OrderSubmitter interface {
	Submit(ctx context.Context, strategy string, orders []contracts.Order) ([]contracts.Order, error)
}

// Recorder persists end-of-day values
type Recorder interface {
	Record(ctx context.Context, strategy string, day time.Time, values map[string]float64) error
}

// RunSaver persists allocator cycles
type RunSaver interface {
	SaveRun(ctx context.Context, run *journal.Run) error
}

// Env bundles the services a strategy uses
type Env struct {
	Name     string
	Broker   broker.Broker
	Data     marketdata.Source
	Screen   screen.Screen // nil for strategies with a static universe
	State    *redis.State
	Orders   OrderSubmitter
	Recorder Recorder // optional
	Runs     RunSaver // optional
	Location *time.Location
	Clock    func() time.Time
	Logger   *logger.Logger

	// ConfigHash identifies the parameter file the strategy was built from
	ConfigHash string
}

// Now returns the current time in the market timezone
func (e *Env) Now() time.Time {
	now := time.Now()
	if e.Clock != nil {
		now = e.Clock()
	}
	if e.Location != nil {
		now = now.In(e.Location)
	}
	return now
}

// Day returns the current market day
func (e *Env) Day() time.Time {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return scheduler.MarketDay(e.Now(), loc)
}

// Account returns the broker account
func (e *Env) Account(ctx context.Context) (*contracts.Account, error) {
	account, err := e.Broker.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// PriceFunc adapts the market data source to the allocator, pricing a
// security at the close of the newest of its last bars daily bars
func (e *Env) PriceFunc(ctx context.Context, bars int) allocator.PriceFunc {
	return func(symbol string) (float64, error) {
		history, err := e.Data.History(ctx, symbol, bars, contracts.FrequencyDaily)
		if err != nil {
			return 0, err
		}
		if len(history) == 0 {
			return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
		}
		return history[len(history)-1].Close, nil
	}
}

// Submit routes orders through the order submitter, dropping empty orders
func (e *Env) Submit(ctx context.Context, orders ...contracts.Order) ([]contracts.Order, error) {
	batch := make([]contracts.Order, 0, len(orders))
	for _, o := range orders {
		if o.Qty == 0 {
			continue
		}
		o.Strategy = e.Name
		batch = append(batch, o)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return e.Orders.Submit(ctx, e.Name, batch)
}

// CancelOpen cancels open orders accepted by match (all when match is nil)
// and returns how many were canceled
func (e *Env) CancelOpen(ctx context.Context, match func(contracts.Order) bool) (int, error) {
	open, err := e.Broker.OpenOrders(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list open orders: %w", err)
	}

	canceled := 0
	for _, o := range open {
		if match != nil && !match(o) {
			continue
		}
		if err := e.Broker.Cancel(ctx, o.ID); err != nil {
			return canceled, fmt.Errorf("failed to cancel order %s: %w", o.ID, err)
		}
		canceled++
	}
	return canceled, nil
}

// HasOpenOrders reports whether symbol has unfilled orders
func (e *Env) HasOpenOrders(ctx context.Context, symbol string) (bool, error) {
	open, err := e.Broker.OpenOrders(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("failed to list open orders: %w", err)
	}
	return len(open) > 0, nil
}

// Record logs values and hands them to the recorder, if any
func (e *Env) Record(ctx context.Context, values map[string]float64) error {
	fields := make(map[string]interface{}, len(values)+1)
	for k, v := range values {
		fields[k] = v
	}
	fields["strategy"] = e.Name
	e.Logger.WithFields(fields).Info("record")

	if e.Recorder == nil {
		return nil
	}
	return e.Recorder.Record(ctx, e.Name, e.Day(), values)
}

// StateKey namespaces a state key to the strategy
func (e *Env) StateKey(key string) string {
	return e.Name + ":" + key
}

// SaveRun stamps run with the strategy, day and config hash and persists it
func (e *Env) SaveRun(ctx context.Context, run *journal.Run) error {
	run.Strategy = e.Name
	if run.Day.IsZero() {
		run.Day = e.Day()
	}
	run.ConfigHash = e.ConfigHash
	if e.Runs == nil {
		return nil
	}
	if err := e.Runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}
