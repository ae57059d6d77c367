// Package catalog builds registered strategies by name.
package catalog

import (
	"fmt"
	"sort"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/internal/strategy/dividend"
	"github.com/trobrock/trading-algo/internal/strategy/etf3x"
	"github.com/trobrock/trading-algo/internal/strategy/fixedweight"
	"github.com/trobrock/trading-algo/internal/strategy/meanrev"
	"github.com/trobrock/trading-algo/internal/strategy/smacross"
	"github.com/trobrock/trading-algo/internal/strategy/trend"
	"github.com/trobrock/trading-algo/internal/strategyconfig"
)

var builders = map[string]func(cfg *strategyconfig.Config) strategy.Strategy{
	dividend.Name:    func(cfg *strategyconfig.Config) strategy.Strategy { return dividend.New(cfg.Dividend) },
	fixedweight.Name: func(cfg *strategyconfig.Config) strategy.Strategy { return fixedweight.New(cfg.FixedWeight) },
	trend.Name:       func(cfg *strategyconfig.Config) strategy.Strategy { return trend.New(cfg.Trend) },
	etf3x.Name:       func(cfg *strategyconfig.Config) strategy.Strategy { return etf3x.New(cfg.ETF3x) },
	meanrev.Name:     func(cfg *strategyconfig.Config) strategy.Strategy { return meanrev.New(cfg.MeanRev) },
	smacross.Name:    func(cfg *strategyconfig.Config) strategy.Strategy { return smacross.New(cfg.SMACross) },
}

// aliases are the names the strategies were first deployed under
var aliases = map[string]string{
	"daily_rebalance":         fixedweight.Name,
	"weekly_rebalance":        trend.Name,
	"3x_etfs":                 etf3x.Name,
	"long_only_non_day_trade": meanrev.Name,
	"sma_cross":               smacross.Name,
}

// Names returns the registered strategy names, sorted
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps an alias to its registered name
func Resolve(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Build creates the strategy registered under name
func Build(name string, cfg *strategyconfig.Config) (strategy.Strategy, error) {
	build, ok := builders[Resolve(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", contracts.ErrUnknownStrategy, name, Names())
	}
	return build(cfg), nil
}
