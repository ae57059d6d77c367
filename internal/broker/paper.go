package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// Paper is an in-memory broker used for dry runs and tests.
// Market orders fill immediately at the current price. Limit orders fill
// when the price crosses the limit, otherwise they rest until Sync.
type Paper struct {
	mu sync.Mutex

	quoter     Quoter
	cash       float64
	positions  map[string]*contracts.Position
	orders     []*contracts.Order // submission order
	allowShort bool
	now        func() time.Time
	logger     *logger.Logger
}

// PaperOption configures a Paper broker
type PaperOption func(*Paper)

// WithShorting allows sells beyond the shares held
func WithShorting() PaperOption {
	return func(p *Paper) {
		p.allowShort = true
	}
}

// WithClock overrides time.Now for order timestamps
func WithClock(now func() time.Time) PaperOption {
	return func(p *Paper) {
		p.now = now
	}
}

// WithPositions seeds holdings, priced at their cost basis
func WithPositions(positions ...contracts.Position) PaperOption {
	return func(p *Paper) {
		for _, pos := range positions {
			pos := pos
			if pos.LastPrice == 0 {
				pos.LastPrice = pos.CostBasis
			}
			p.positions[pos.Symbol] = &pos
		}
	}
}

// NewPaper creates a paper broker holding cash
func NewPaper(cash float64, quoter Quoter, log *logger.Logger, opts ...PaperOption) *Paper {
	p := &Paper{
		quoter:    quoter,
		cash:      cash,
		positions: make(map[string]*contracts.Position),
		now:       time.Now,
		logger:    log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Account returns the account marked to the current prices
func (p *Paper) Account(ctx context.Context) (*contracts.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account := &contracts.Account{
		Cash:      p.cash,
		Positions: make(map[string]contracts.Position, len(p.positions)),
	}

	value := p.cash
	for symbol, pos := range p.positions {
		if price, err := p.quoter.Current(ctx, symbol); err == nil {
			pos.LastPrice = price
		}
		account.Positions[symbol] = *pos
		value += pos.MarketValue()
	}
	account.PortfolioValue = value

	return account, nil
}

// OpenOrders returns resting orders
func (p *Paper) OpenOrders(ctx context.Context, symbol string) ([]contracts.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var open []contracts.Order
	for _, o := range p.orders {
		if o.IsOpen() && (symbol == "" || o.Symbol == symbol) {
			open = append(open, *o)
		}
	}
	return open, nil
}

// Orders returns every order submitted so far
func (p *Paper) Orders() []contracts.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]contracts.Order, len(p.orders))
	for i, o := range p.orders {
		out[i] = *o
	}
	return out
}

// Submit validates the order, then fills it or leaves it resting.
// Rejected orders are recorded and returned together with the error.
func (p *Paper) Submit(ctx context.Context, order contracts.Order) (contracts.Order, error) {
	if order.Qty <= 0 {
		return order, fmt.Errorf("order quantity must be positive, got %d", order.Qty)
	}
	if order.OrderType == contracts.OrderTypeLimit && order.LimitPrice <= 0 {
		return order, fmt.Errorf("limit order needs a positive limit price")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o := order
	o.ID = uuid.NewString()
	o.Status = contracts.StatusSubmitted
	o.CreatedAt = p.now()
	o.UpdatedAt = o.CreatedAt
	p.orders = append(p.orders, &o)

	price, priceErr := p.quoter.Current(ctx, o.Symbol)
	if priceErr != nil && o.IsMarketOrder() {
		p.reject(&o)
		return o, fmt.Errorf("failed to price %s: %w", o.Symbol, priceErr)
	}

	// a limit order is checked against its limit even when it cannot fill yet
	checkPrice := price
	if !o.IsMarketOrder() {
		checkPrice = o.LimitPrice
	}
	if err := p.check(&o, checkPrice); err != nil {
		p.reject(&o)
		return o, err
	}

	if priceErr == nil && p.crosses(&o, price) {
		p.fill(&o, price)
	}

	p.logger.WithFields(map[string]interface{}{
		"id":     o.ID,
		"symbol": o.Symbol,
		"side":   o.Side,
		"qty":    o.Qty,
		"type":   o.OrderType,
		"limit":  o.LimitPrice,
		"status": o.Status,
	}).Debug("Paper order submitted")

	return o, nil
}

// Cancel cancels a resting order
func (p *Paper) Cancel(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, o := range p.orders {
		if o.ID == orderID && o.IsOpen() {
			o.Status = contracts.StatusCanceled
			o.UpdatedAt = p.now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", contracts.ErrOrderNotFound, orderID)
}

// Sync re-prices resting limit orders and fills those that crossed.
// Returns the number of fills.
func (p *Paper) Sync(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fills := 0
	for _, o := range p.orders {
		if !o.IsOpen() {
			continue
		}
		price, err := p.quoter.Current(ctx, o.Symbol)
		if err != nil || !p.crosses(o, price) {
			continue
		}
		if err := p.check(o, price); err != nil {
			p.logger.WithError(err).WithField("id", o.ID).Warn("Resting order rejected on fill")
			p.reject(o)
			continue
		}
		p.fill(o, price)
		fills++
	}
	return fills, nil
}

// crosses reports whether o can fill at price
func (p *Paper) crosses(o *contracts.Order, price float64) bool {
	if price <= 0 {
		return false
	}
	switch {
	case o.IsMarketOrder():
		return true
	case o.IsBuy():
		return price <= o.LimitPrice
	default:
		return price >= o.LimitPrice
	}
}

// check verifies cash for buys and shares for sells
func (p *Paper) check(o *contracts.Order, price float64) error {
	if o.IsBuy() {
		if cost := float64(o.Qty) * price; cost > p.cash {
			return fmt.Errorf("%w: %s needs %.2f, have %.2f", contracts.ErrInsufficientCash, o.Symbol, cost, p.cash)
		}
		return nil
	}

	held := int64(0)
	if pos, ok := p.positions[o.Symbol]; ok {
		held = pos.Qty
	}
	if !p.allowShort && o.Qty > held {
		return fmt.Errorf("%w: selling %d %s, holding %d", contracts.ErrNoPosition, o.Qty, o.Symbol, held)
	}
	return nil
}

func (p *Paper) fill(o *contracts.Order, price float64) {
	delta := o.SignedQty()
	p.cash -= float64(delta) * price

	pos, ok := p.positions[o.Symbol]
	if !ok {
		pos = &contracts.Position{Symbol: o.Symbol}
		p.positions[o.Symbol] = pos
	}

	newQty := pos.Qty + delta
	switch {
	case newQty == 0:
		delete(p.positions, o.Symbol)
	case pos.Qty == 0 || (pos.Qty > 0) != (newQty > 0):
		pos.CostBasis = price
	case (delta > 0) == (pos.Qty > 0):
		// adding to the position averages the cost basis
		pos.CostBasis = (float64(pos.Qty)*pos.CostBasis + float64(delta)*price) / float64(newQty)
	}
	pos.Qty = newQty
	pos.LastPrice = price

	o.Status = contracts.StatusFilled
	o.UpdatedAt = p.now()
}

func (p *Paper) reject(o *contracts.Order) {
	o.Status = contracts.StatusRejected
	o.UpdatedAt = p.now()
}
