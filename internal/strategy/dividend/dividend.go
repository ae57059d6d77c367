// Package dividend holds a basket of the best ranked dividend payers,
// growing it with the incremental allocator so no held name is sold.
package dividend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/trobrock/trading-algo/internal/allocator"
	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/screen"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "dividend"

// YieldField is the screen field reported as the dividend yield
const YieldField = "dividend_yield"

// Params configures the strategy
type Params struct {
	TopN       int     `yaml:"top_n" json:"top_n"`
	CashBuffer float64 `yaml:"cash_buffer" json:"cash_buffer"`

	// Rebalance time after the open
	Hours   int `yaml:"hours" json:"hours"`
	Minutes int `yaml:"minutes" json:"minutes"`

	// Daily bars looked at for the last price
	PriceBars int `yaml:"price_bars" json:"price_bars"`
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		TopN:       20,
		CashBuffer: allocator.DefaultCashBuffer,
		Minutes:    30,
		PriceBars:  5,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", p.TopN)
	}
	if p.CashBuffer < 0 || p.CashBuffer >= 1 {
		return fmt.Errorf("cash_buffer must be in [0, 1), got %v", p.CashBuffer)
	}
	if p.Hours < 0 || p.Minutes < 0 || p.Minutes > 59 {
		return fmt.Errorf("invalid rebalance offset %dh%dm", p.Hours, p.Minutes)
	}
	if p.PriceBars <= 0 {
		return fmt.Errorf("price_bars must be positive, got %d", p.PriceBars)
	}
	return nil
}

// Strategy is the dividend strategy
type Strategy struct {
	params Params

	mu     sync.Mutex
	day    time.Time
	ranked []screen.Row // best first
}

// New creates the strategy
func New(params Params) *Strategy {
	return &Strategy{params: params}
}

// Name implements strategy.Strategy
func (s *Strategy) Name() string { return Name }

// Schedules implements strategy.Strategy
func (s *Strategy) Schedules() []strategy.Schedule {
	offset := time.Duration(s.params.Hours)*time.Hour + time.Duration(s.params.Minutes)*time.Minute
	return []strategy.Schedule{
		{Name: "rebalance", Rule: scheduler.MarketOpen(offset), Run: s.Rebalance},
		{Name: "report", Rule: scheduler.MarketClose(time.Minute), Run: s.Report},
	}
}

// BeforeTradingStart loads the day's ranked screen
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	_, err := s.candidates(ctx, env)
	return err
}

// candidates returns the day's top ranked rows, loading them on first use
func (s *Strategy) candidates(ctx context.Context, env *strategy.Env) ([]screen.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := env.Day()
	if s.day.Equal(day) {
		return s.ranked, nil
	}
	if env.Screen == nil {
		return nil, fmt.Errorf("%s needs a screen", Name)
	}

	env.Logger.Info("Running screen")
	rows, err := env.Screen.Rows(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load screen: %w", err)
	}

	s.ranked = screen.Top(rows, s.params.TopN)
	s.day = day
	env.Logger.WithField("candidates", len(s.ranked)).Info("Screen loaded")
	return s.ranked, nil
}

// Rebalance tops up holdings and adds ranked candidates while cash lasts
func (s *Strategy) Rebalance(ctx context.Context, env *strategy.Env) error {
	ranked, err := s.candidates(ctx, env)
	if err != nil {
		return err
	}

	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	alloc := allocator.New(
		account.PortfolioValue,
		account.Cash,
		allocator.Portfolio(account.Holdings()),
		env.PriceFunc(ctx, s.params.PriceBars),
		allocator.WithCashBuffer(s.params.CashBuffer),
		allocator.WithLogger(env.Logger),
	)

	run := &journal.Run{
		TotalValue: account.PortfolioValue,
		Cash:       account.Cash,
		Current:    alloc.Current(),
	}
	for _, row := range ranked {
		if alloc.Add(row.Symbol) {
			run.Accepted = append(run.Accepted, row.Symbol)
		} else {
			run.Rejected = append(run.Rejected, row.Symbol)
		}
	}

	plan := alloc.Plan()
	run.Target = alloc.Target()
	run.Plan = plan
	run.CashLeft = alloc.Cash()

	orders := make([]contracts.Order, 0, len(plan))
	for _, symbol := range allocator.Portfolio(plan).Symbols() {
		orders = append(orders, contracts.NewMarketOrder(symbol, plan[symbol]))
	}

	env.Logger.WithFields(map[string]interface{}{
		"target":    len(run.Target),
		"accepted":  len(run.Accepted),
		"rejected":  len(run.Rejected),
		"orders":    len(orders),
		"cash_left": run.CashLeft,
	}).Info("Rebalance planned")

	if err := env.SaveRun(ctx, run); err != nil {
		env.Logger.WithError(err).Error("Failed to journal allocation run")
	}

	if _, err := env.Submit(ctx, orders...); err != nil {
		return fmt.Errorf("rebalance orders failed: %w", err)
	}
	return nil
}

// ReportRow is one line of the holdings report
type ReportRow struct {
	Symbol string
	Qty    int64
	Price  float64
	Value  float64
	Yield  float64 // from the screen, 0 when unknown
}

// Holdings builds the holdings report, sorted by symbol
func (s *Strategy) Holdings(ctx context.Context, env *strategy.Env) ([]ReportRow, error) {
	account, err := env.Account(ctx)
	if err != nil {
		return nil, err
	}

	yields := make(map[string]float64)
	if env.Screen != nil {
		rows, err := env.Screen.Rows(ctx, env.Day())
		if err != nil {
			env.Logger.WithError(err).Warn("Report without yields")
		}
		yields = lo.Associate(rows, func(r screen.Row) (string, float64) {
			return r.Symbol, r.Fields[YieldField]
		})
	}

	price := env.PriceFunc(ctx, s.params.PriceBars)
	report := make([]ReportRow, 0, account.Count())
	for symbol, pos := range account.Positions {
		row := ReportRow{Symbol: symbol, Qty: pos.Qty, Price: pos.LastPrice, Yield: yields[symbol]}
		if p, err := price(symbol); err == nil {
			row.Price = p
		}
		row.Value = float64(row.Qty) * row.Price
		report = append(report, row)
	}
	sort.Slice(report, func(i, j int) bool {
		return report[i].Symbol < report[j].Symbol
	})
	return report, nil
}

// Report logs the holdings report
func (s *Strategy) Report(ctx context.Context, env *strategy.Env) error {
	report, err := s.Holdings(ctx, env)
	if err != nil {
		return err
	}

	var total float64
	for _, row := range report {
		total += row.Value
		env.Logger.WithFields(map[string]interface{}{
			"symbol": row.Symbol,
			"qty":    row.Qty,
			"price":  row.Price,
			"value":  row.Value,
			"yield":  row.Yield,
		}).Info("Holding")
	}

	return env.Record(ctx, map[string]float64{
		"positions":      float64(len(report)),
		"holdings_value": total,
	})
}
