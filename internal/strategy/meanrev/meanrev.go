// Package meanrev buys screened laggards at a discount with limit orders and
// sells them at a small profit target, falling back to a fire sale once a
// position has aged.
package meanrev

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/indicator"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/screen"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// Name is the registered strategy name
const Name = "meanrev"

// PriceField is the screen field checked against the price band
const PriceField = "price"

// Params configures the strategy
type Params struct {
	MaxCandidates      int     `yaml:"max_candidates" json:"max_candidates"`
	MaxBuyOrdersAtOnce int     `yaml:"max_buy_orders_at_once" json:"max_buy_orders_at_once"`
	LeastPrice         float64 `yaml:"least_price" json:"least_price"`
	MostPrice          float64 `yaml:"most_price" json:"most_price"`
	FireSalePrice      float64 `yaml:"fire_sale_price" json:"fire_sale_price"`
	FireSaleAge        int     `yaml:"fire_sale_age" json:"fire_sale_age"`
	FireSaleFactor     float64 `yaml:"fire_sale_factor" json:"fire_sale_factor"`
	BuyFactor          float64 `yaml:"buy_factor" json:"buy_factor"`
	SellFactor         float64 `yaml:"sell_factor" json:"sell_factor"`
	MaxInvestment      float64 `yaml:"max_investment" json:"max_investment"`

	// Buys are placed at the current price when it exceeds the average of
	// AverageBars daily closes by Premium.
	AverageBars int     `yaml:"average_bars" json:"average_bars"`
	Premium     float64 `yaml:"premium" json:"premium"`
	Tick        float64 `yaml:"tick" json:"tick"`

	RebalanceEvery time.Duration `yaml:"rebalance_every" json:"rebalance_every"`
	RebalanceCount int           `yaml:"rebalance_count" json:"rebalance_count"`
}

// DefaultParams returns the production parameters
func DefaultParams() Params {
	return Params{
		MaxCandidates:      100,
		MaxBuyOrdersAtOnce: 50,
		LeastPrice:         3,
		MostPrice:          25,
		FireSalePrice:      3,
		FireSaleAge:        6,
		FireSaleFactor:     0.95,
		BuyFactor:          0.99,
		SellFactor:         1.01,
		MaxInvestment:      150_000,
		AverageBars:        20,
		Premium:            1.25,
		Tick:               0.05,
		RebalanceEvery:     10 * time.Minute,
		RebalanceCount:     39,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.MaxCandidates <= 0 || p.MaxBuyOrdersAtOnce <= 0 {
		return errors.New("max_candidates and max_buy_orders_at_once must be positive")
	}
	if p.LeastPrice < 0 || p.MostPrice < p.LeastPrice {
		return fmt.Errorf("price band [%v, %v] is invalid", p.LeastPrice, p.MostPrice)
	}
	if p.BuyFactor <= 0 || p.SellFactor <= 0 || p.FireSaleFactor <= 0 {
		return errors.New("price factors must be positive")
	}
	if p.Tick <= 0 {
		return errors.New("tick must be positive")
	}
	if p.AverageBars <= 0 {
		return errors.New("average_bars must be positive")
	}
	if p.RebalanceEvery <= 0 || p.RebalanceCount <= 0 {
		return errors.New("rebalance_every and rebalance_count must be positive")
	}
	if time.Duration(p.RebalanceCount-1)*p.RebalanceEvery+time.Minute >= scheduler.MarketCloseTime-scheduler.MarketOpenTime {
		return errors.New("rebalances do not fit in the session")
	}
	return nil
}

// cycle is the day's candidate list and the position of the next pick
type cycle struct {
	Day        time.Time `json:"day"`
	Candidates []string  `json:"candidates"`
	Cursor     int       `json:"cursor"`
}

func (c *cycle) next() (string, bool) {
	if len(c.Candidates) == 0 {
		return "", false
	}
	symbol := c.Candidates[c.Cursor%len(c.Candidates)]
	c.Cursor = (c.Cursor + 1) % len(c.Candidates)
	return symbol, true
}

// Strategy is the mean reversion strategy
type Strategy struct {
	params Params

	// serializes callbacks that read and write state
	mu sync.Mutex
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
		{Name: "rebalance", Rule: scheduler.Every(time.Minute, s.params.RebalanceEvery, s.params.RebalanceCount), Run: s.Rebalance},
		{Name: "cancel_open_orders", Rule: scheduler.MarketClose(time.Minute), Run: s.CancelOpenOrders},
		{Name: "record", Rule: scheduler.MarketClose(time.Minute), Run: s.RecordVars},
	}
}

// BeforeTradingStart rebuilds the candidate cycle and ages held positions
func (s *Strategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.buildCycle(ctx, env)
	if err != nil {
		return err
	}
	if err := s.saveCycle(ctx, env, c); err != nil {
		return err
	}

	account, err := env.Account(ctx)
	if err != nil {
		return err
	}

	ages, err := s.loadAges(ctx, env)
	if err != nil {
		return err
	}
	for symbol := range account.Positions {
		if _, ok := ages[symbol]; ok {
			ages[symbol]++
		} else {
			env.Logger.WithField("symbol", symbol).Info("No age recorded for position")
			ages[symbol] = 1
		}
	}
	for symbol := range ages {
		if _, held := account.Positions[symbol]; !held {
			delete(ages, symbol)
		}
	}
	return s.saveAges(ctx, env, ages)
}

// buildCycle loads the screen and keeps the candidates inside the price band
func (s *Strategy) buildCycle(ctx context.Context, env *strategy.Env) (*cycle, error) {
	if env.Screen == nil {
		return nil, fmt.Errorf("%s needs a screen", Name)
	}
	rows, err := env.Screen.Rows(ctx, env.Day())
	if err != nil {
		return nil, fmt.Errorf("failed to load screen: %w", err)
	}

	rows = lo.Filter(rows, func(r screen.Row, _ int) bool {
		price, ok := r.Fields[PriceField]
		return !ok || (price >= s.params.LeastPrice && price <= s.params.MostPrice)
	})
	candidates := lo.Uniq(screen.Symbols(screen.Top(rows, s.params.MaxCandidates)))

	env.Logger.WithField("candidates", len(candidates)).Info("Candidates loaded")
	return &cycle{Day: env.Day(), Candidates: candidates}, nil
}

func (s *Strategy) loadCycle(ctx context.Context, env *strategy.Env) (*cycle, error) {
	var c cycle
	found, err := env.State.Load(ctx, env.StateKey("cycle"), &c)
	if err != nil {
		return nil, err
	}
	if found && c.Day.Equal(env.Day()) {
		return &c, nil
	}
	return s.buildCycle(ctx, env)
}

func (s *Strategy) saveCycle(ctx context.Context, env *strategy.Env, c *cycle) error {
	return env.State.Save(ctx, env.StateKey("cycle"), c)
}

// Ages returns the stored position ages in trading days
func (s *Strategy) Ages(ctx context.Context, env *strategy.Env) (map[string]int, error) {
	return s.loadAges(ctx, env)
}

func (s *Strategy) loadAges(ctx context.Context, env *strategy.Env) (map[string]int, error) {
	ages := make(map[string]int)
	if _, err := env.State.Load(ctx, env.StateKey("ages"), &ages); err != nil {
		return nil, err
	}
	return ages, nil
}

func (s *Strategy) saveAges(ctx context.Context, env *strategy.Env, ages map[string]int) error {
	return env.State.Save(ctx, env.StateKey("ages"), ages)
}

// Rebalance replaces open buys, places exits for aged positions and then
// buy limits for the next candidates of the cycle
func (s *Strategy) Rebalance(ctx context.Context, env *strategy.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := env.CancelOpen(ctx, func(o contracts.Order) bool { return o.IsBuy() }); err != nil {
		return err
	}

	account, err := env.Account(ctx)
	if err != nil {
		return err
	}
	ages, err := s.loadAges(ctx, env)
	if err != nil {
		return err
	}

	var errs []error
	sells, err := s.sellOrders(ctx, env, account, ages)
	if err != nil {
		return err
	}
	if err := s.saveAges(ctx, env, ages); err != nil {
		return err
	}
	if _, err := env.Submit(ctx, sells...); err != nil {
		errs = append(errs, err)
	}

	c, err := s.loadCycle(ctx, env)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	buys := s.buyOrders(ctx, env, account, c)
	if err := s.saveCycle(ctx, env, c); err != nil {
		errs = append(errs, err)
	}

	// open orders on a name, sells included, would block the new buy
	for _, o := range buys {
		symbol := o.Symbol
		if _, err := env.CancelOpen(ctx, func(open contracts.Order) bool { return open.Symbol == symbol }); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := env.Submit(ctx, buys...); err != nil {
		errs = append(errs, err)
	}

	env.Logger.WithFields(map[string]interface{}{
		"sells": len(sells),
		"buys":  len(buys),
	}).Debug("Rebalanced")
	return errors.Join(errs...)
}

// sellOrders prices a profit target or fire sale exit for each position
// older than a day without open orders. Positions seen for the first time
// get age 0.
func (s *Strategy) sellOrders(ctx context.Context, env *strategy.Env, account *contracts.Account, ages map[string]int) ([]contracts.Order, error) {
	symbols := lo.Keys(account.Positions)
	sort.Strings(symbols)

	var orders []contracts.Order
	for _, symbol := range symbols {
		pos := account.Positions[symbol]
		if pos.Qty <= 0 {
			continue
		}
		pending, err := env.HasOpenOrders(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if pending {
			continue
		}

		age, known := ages[symbol]
		if !known {
			ages[symbol] = 0
		}
		if age < 1 {
			continue
		}

		price, err := env.Data.Current(ctx, symbol)
		if err != nil {
			env.Logger.WithError(err).WithField("symbol", symbol).Warn("No price for exit")
			continue
		}

		var limit float64
		if age >= s.params.FireSaleAge && (price < s.params.FireSalePrice || price < pos.CostBasis) {
			env.Logger.WithField("symbol", symbol).Info("Fire sale")
			limit = RoundToTick(s.params.FireSaleFactor*price, s.params.Tick, false)
		} else {
			limit = RoundToTick(pos.CostBasis*s.params.SellFactor, s.params.Tick, false)
		}
		if limit <= 0 {
			continue
		}
		orders = append(orders, contracts.NewLimitOrder(symbol, -pos.Qty, limit))
	}
	return orders, nil
}

// buyOrders draws MaxBuyOrdersAtOnce candidates from the cycle and sizes an
// equal slice of the investable cash for each. A name drawn twice keeps
// its last order.
func (s *Strategy) buyOrders(ctx context.Context, env *strategy.Env, account *contracts.Account, c *cycle) []contracts.Order {
	limits := InvestmentLimits(account.Cash, account.PortfolioValue, s.params.MaxInvestment)
	cash := min(limits.RemainingToInvest, account.Cash)
	weight := 1 / float64(s.params.MaxBuyOrdersAtOnce)

	bySymbol := make(map[string]contracts.Order)
	var picked []string
	for i := 0; i < s.params.MaxBuyOrdersAtOnce; i++ {
		symbol, ok := c.next()
		if !ok {
			break
		}

		price, err := env.Data.Current(ctx, symbol)
		if err != nil {
			continue
		}
		bars, err := env.Data.History(ctx, symbol, s.params.AverageBars, contracts.FrequencyDaily)
		if err != nil {
			continue
		}
		average, err := indicator.Mean(contracts.Closes(bars))
		if err != nil {
			continue
		}

		buyPrice := price * s.params.BuyFactor
		if price > s.params.Premium*average {
			buyPrice = price
		}
		buyPrice = RoundToTick(buyPrice, s.params.Tick, true)
		if buyPrice <= 0 {
			continue
		}

		shares := int64(weight * cash / buyPrice)
		maxExposure := int64(weight * account.PortfolioValue / buyPrice)
		if account.Qty(symbol) >= maxExposure {
			continue
		}

		if _, seen := bySymbol[symbol]; !seen {
			picked = append(picked, symbol)
		}
		bySymbol[symbol] = contracts.NewLimitOrder(symbol, shares, buyPrice)
	}

	orders := make([]contracts.Order, 0, len(picked))
	for _, symbol := range picked {
		if o := bySymbol[symbol]; o.Qty > 0 {
			orders = append(orders, o)
		}
	}
	return orders
}

// CancelOpenOrders cancels every open order before the close
func (s *Strategy) CancelOpenOrders(ctx context.Context, env *strategy.Env) error {
	n, err := env.CancelOpen(ctx, nil)
	if n > 0 {
		env.Logger.WithField("canceled", n).Info("Canceled open orders before close")
	}
	return err
}

// RecordVars records leverage, position ages and investment limits
func (s *Strategy) RecordVars(ctx context.Context, env *strategy.Env) error {
	account, err := env.Account(ctx)
	if err != nil {
		return err
	}
	ages, err := s.loadAges(ctx, env)
	if err != nil {
		return err
	}

	values := map[string]float64{"leverage": account.Leverage()}
	if len(ages) > 0 {
		all := lo.Values(ages)
		values["max_age"] = float64(lo.Max(all))
		values["min_age"] = float64(lo.Min(all))
	}

	limits := InvestmentLimits(account.Cash, account.PortfolioValue, s.params.MaxInvestment)
	values["excess_cash"] = limits.ExcessCash
	values["invested"] = limits.Invested
	values["remaining_to_invest"] = limits.RemainingToInvest

	return env.Record(ctx, values)
}
