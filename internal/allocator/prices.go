package allocator

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoPrice is returned when a security has no usable price
var ErrNoPrice = errors.New("no price")

// PriceFunc looks up the last observed price of a security
type PriceFunc func(symbol string) (float64, error)

// priceCache memoizes prices for the lifetime of one allocator.
// Entries are added on miss and never evicted.
type priceCache struct {
	fetch  PriceFunc
	prices map[string]float64
}

func newPriceCache(fetch PriceFunc) *priceCache {
	return &priceCache{
		fetch:  fetch,
		prices: make(map[string]float64),
	}
}

// begin starts a trial. Lookups that miss the cache are staged on the
// trial and only become visible in the cache after commit.
func (c *priceCache) begin() *priceTrial {
	return &priceTrial{
		cache:  c,
		staged: make(map[string]float64),
	}
}

// Len returns the number of memoized prices
func (c *priceCache) Len() int {
	return len(c.prices)
}

type priceTrial struct {
	cache  *priceCache
	staged map[string]float64
}

// price returns the memoized price of symbol, fetching it on first use
func (t *priceTrial) price(symbol string) (float64, error) {
	if p, ok := t.cache.prices[symbol]; ok {
		return p, nil
	}
	if p, ok := t.staged[symbol]; ok {
		return p, nil
	}

	p, err := t.cache.fetch(symbol)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %v", ErrNoPrice, symbol, err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, fmt.Errorf("%w for %s: got %v", ErrNoPrice, symbol, p)
	}

	t.staged[symbol] = p
	return p, nil
}

// commit publishes staged lookups to the cache
func (t *priceTrial) commit() {
	for symbol, p := range t.staged {
		t.cache.prices[symbol] = p
	}
	t.staged = nil
}
