package strategyconfig

import (
	"github.com/trobrock/trading-algo/internal/strategy/dividend"
	"github.com/trobrock/trading-algo/internal/strategy/etf3x"
	"github.com/trobrock/trading-algo/internal/strategy/fixedweight"
	"github.com/trobrock/trading-algo/internal/strategy/meanrev"
	"github.com/trobrock/trading-algo/internal/strategy/smacross"
	"github.com/trobrock/trading-algo/internal/strategy/trend"
	"github.com/trobrock/trading-algo/pkg/config"
)

// Config holds the parameters of every strategy
// ⭐ SSOT: strategy parameters come from here, never from constants at call sites
type Config struct {
	Screens     Screens            `yaml:"screens" json:"screens"`
	Dividend    dividend.Params    `yaml:"dividend" json:"dividend"`
	FixedWeight fixedweight.Params `yaml:"fixedweight" json:"fixedweight"`
	Trend       trend.Params       `yaml:"trend" json:"trend"`
	ETF3x       etf3x.Params       `yaml:"etf3x" json:"etf3x"`
	MeanRev     meanrev.Params     `yaml:"meanrev" json:"meanrev"`
	SMACross    smacross.Params    `yaml:"smacross" json:"smacross"`
}

// Screens maps a strategy name to the YAML file holding its screen rows
type Screens map[string]string

// Defaults returns the production parameters. The dividend rebalance time
// and the allocator cash buffer come from the environment.
func Defaults(env *config.Config) *Config {
	cfg := &Config{
		Screens:     Screens{},
		Dividend:    dividend.DefaultParams(),
		FixedWeight: fixedweight.DefaultParams(),
		Trend:       trend.DefaultParams(),
		ETF3x:       etf3x.DefaultParams(),
		MeanRev:     meanrev.DefaultParams(),
		SMACross:    smacross.DefaultParams(),
	}
	if env != nil {
		cfg.Dividend.Hours = env.Market.RebalanceHours
		cfg.Dividend.Minutes = env.Market.RebalanceMinutes
		cfg.Dividend.CashBuffer = env.Trading.CashBuffer
	}
	return cfg
}
