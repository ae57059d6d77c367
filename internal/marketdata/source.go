// Package marketdata defines the price source strategies read from and a
// file-backed implementation for dry runs.
package marketdata

import (
	"context"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// Source provides prices to strategies
type Source interface {
	// Current returns the latest price of symbol
	Current(ctx context.Context, symbol string) (float64, error)

	// History returns up to bars closing bars of the given frequency, oldest first
	History(ctx context.Context, symbol string, bars int, freq contracts.Frequency) ([]contracts.Bar, error)

	// CanTrade reports whether symbol currently has a tradable price
	CanTrade(ctx context.Context, symbol string) bool
}
