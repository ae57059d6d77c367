package contracts

// Account is a snapshot of broker state passed to strategies
// ⭐ SSOT: Broker → Strategy
type Account struct {
	Cash           float64             `json:"cash"`
	PortfolioValue float64             `json:"portfolio_value"` // cash + market value of positions
	Positions      map[string]Position `json:"positions"`
}

// Position represents shares held in one security
type Position struct {
	Symbol    string  `json:"symbol"`
	Qty       int64   `json:"qty"` // negative when short
	CostBasis float64 `json:"cost_basis"`
	LastPrice float64 `json:"last_price"`
}

// MarketValue returns the signed value of the position at the last price
func (p Position) MarketValue() float64 {
	return float64(p.Qty) * p.LastPrice
}

// ReturnPct returns the unrealized return vs cost basis (0.05 = +5%).
// Returns 0 if the cost basis is unknown.
func (p Position) ReturnPct() float64 {
	if p.CostBasis <= 0 {
		return 0
	}
	ret := p.LastPrice/p.CostBasis - 1
	if p.Qty < 0 {
		return -ret
	}
	return ret
}

// Holdings returns the share quantity per security
func (a *Account) Holdings() map[string]int64 {
	out := make(map[string]int64, len(a.Positions))
	for symbol, pos := range a.Positions {
		out[symbol] = pos.Qty
	}
	return out
}

// GrossExposure returns the sum of absolute position values
func (a *Account) GrossExposure() float64 {
	total := 0.0
	for _, pos := range a.Positions {
		v := pos.MarketValue()
		if v < 0 {
			v = -v
		}
		total += v
	}
	return total
}

// Leverage returns gross exposure over portfolio value
func (a *Account) Leverage() float64 {
	if a.PortfolioValue <= 0 {
		return 0
	}
	return a.GrossExposure() / a.PortfolioValue
}

// Qty returns the shares held in symbol, 0 if none
func (a *Account) Qty(symbol string) int64 {
	return a.Positions[symbol].Qty
}

// Count returns the number of open positions
func (a *Account) Count() int {
	return len(a.Positions)
}
