package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// TargetPercentQty returns the signed share change that brings a position
// of current shares to pct of value at price. The target truncates toward
// zero. Returns 0 for a non-positive price.
func TargetPercentQty(value, pct, price float64, current int64) int64 {
	if price <= 0 {
		return 0
	}
	target := int64(pct * value / price)
	return target - current
}

// TargetPercent builds the market order that moves symbol to pct of the
// portfolio value. ok is false when no order is needed.
func (e *Env) TargetPercent(ctx context.Context, account *contracts.Account, symbol string, pct float64) (order contracts.Order, ok bool, err error) {
	price, err := e.Data.Current(ctx, symbol)
	if err != nil {
		return contracts.Order{}, false, fmt.Errorf("failed to price %s: %w", symbol, err)
	}

	delta := TargetPercentQty(account.PortfolioValue, pct, price, account.Qty(symbol))
	if delta == 0 {
		return contracts.Order{}, false, nil
	}
	return contracts.NewMarketOrder(symbol, delta), true, nil
}

// SortedSymbols returns the keys of a weight table in sorted order
func SortedSymbols(weights map[string]float64) []string {
	symbols := lo.Keys(weights)
	sort.Strings(symbols)
	return symbols
}
