package meanrev

import "github.com/shopspring/decimal"

// RoundToTick rounds price to a multiple of tick, down when buying and up
// when selling
func RoundToTick(price, tick float64, down bool) float64 {
	t := decimal.NewFromFloat(tick)
	steps := decimal.NewFromFloat(price).Div(t)
	if down {
		steps = steps.Floor()
	} else {
		steps = steps.Ceil()
	}
	rounded, _ := steps.Mul(t).Float64()
	return rounded
}

// Limits are the investment limits derived from the account
type Limits struct {
	Invested          float64
	RemainingToInvest float64
	ExcessCash        float64
}

// InvestmentLimits caps the invested amount at maxInvestment
func InvestmentLimits(cash, portfolioValue, maxInvestment float64) Limits {
	invested := portfolioValue - cash
	remaining := max(0, maxInvestment-invested)
	return Limits{
		Invested:          invested,
		RemainingToInvest: remaining,
		ExcessCash:        max(0, cash-remaining),
	}
}
