package contracts

import "time"

// Order represents an order passed from a strategy to the broker
// ⭐ SSOT: Strategy → Router → Broker
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"` // BUY or SELL
	Qty        int64     `json:"qty"`
	OrderType  OrderType `json:"order_type"`  // MARKET or LIMIT
	LimitPrice float64   `json:"limit_price"` // 0 for market order
	Status     Status    `json:"status"`
	Strategy   string    `json:"strategy"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents market or limit order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Status represents order status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
)

// NewMarketOrder builds a market order for a signed share delta.
// Positive qty buys, negative qty sells.
func NewMarketOrder(symbol string, qty int64) Order {
	return newOrder(symbol, qty, OrderTypeMarket, 0)
}

// NewLimitOrder builds a limit order for a signed share delta
func NewLimitOrder(symbol string, qty int64, limit float64) Order {
	return newOrder(symbol, qty, OrderTypeLimit, limit)
}

func newOrder(symbol string, qty int64, orderType OrderType, limit float64) Order {
	side := OrderSideBuy
	if qty < 0 {
		side = OrderSideSell
		qty = -qty
	}
	return Order{
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		OrderType:  orderType,
		LimitPrice: limit,
		Status:     StatusPending,
	}
}

// IsMarketOrder checks if the order is a market order
func (o Order) IsMarketOrder() bool {
	return o.OrderType == OrderTypeMarket
}

// IsBuy checks if the order buys shares
func (o Order) IsBuy() bool {
	return o.Side == OrderSideBuy
}

// IsFilled checks if the order is filled
func (o Order) IsFilled() bool {
	return o.Status == StatusFilled
}

// IsOpen checks if the order can still fill or be canceled
func (o Order) IsOpen() bool {
	return o.Status == StatusPending || o.Status == StatusSubmitted
}

// SignedQty returns Qty, negated for sells
func (o Order) SignedQty() int64 {
	if o.Side == OrderSideSell {
		return -o.Qty
	}
	return o.Qty
}
