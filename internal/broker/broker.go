package broker

import (
	"context"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// Broker defines interface for broker operations
// ⭐ SSOT: the only contract strategies use to read the account and trade
type Broker interface {
	// Account returns cash, portfolio value and open positions
	Account(ctx context.Context) (*contracts.Account, error)

	// OpenOrders returns unfilled orders, all symbols when symbol is empty
	OpenOrders(ctx context.Context, symbol string) ([]contracts.Order, error)

	// Submit places an order and returns it with its assigned ID and status
	Submit(ctx context.Context, order contracts.Order) (contracts.Order, error)

	// Cancel cancels an open order
	Cancel(ctx context.Context, orderID string) error
}

// Quoter provides the prices orders fill at
type Quoter interface {
	Current(ctx context.Context, symbol string) (float64, error)
}
