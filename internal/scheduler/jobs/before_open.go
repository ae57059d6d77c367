package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// DefaultBeforeOpenLead is how long before the open the day is prepared
const DefaultBeforeOpenLead = 45 * time.Minute

// BeforeOpenJob prepares a strategy for the market day, once per day
type BeforeOpenJob struct {
	strategy strategy.Strategy
	env      *strategy.Env
	guard    *redis.DailyGuard
	lead     time.Duration
}

// NewBeforeOpenJob creates the daily preparation job of s
func NewBeforeOpenJob(s strategy.Strategy, env *strategy.Env, guard *redis.DailyGuard, lead time.Duration) *BeforeOpenJob {
	if lead <= 0 {
		lead = DefaultBeforeOpenLead
	}
	return &BeforeOpenJob{
		strategy: s,
		env:      env,
		guard:    guard,
		lead:     lead,
	}
}

// Name returns the job name
func (j *BeforeOpenJob) Name() string {
	return j.strategy.Name() + ".before_trading_start"
}

// Schedule returns the cron spec, lead before the open
func (j *BeforeOpenJob) Schedule() string {
	return scheduler.BeforeOpen(j.lead).Spec()
}

// Run calls BeforeTradingStart unless it already ran today
func (j *BeforeOpenJob) Run(ctx context.Context) error {
	day := j.env.Day()

	claimed, err := j.guard.Claim(ctx, j.Name(), day)
	if err != nil {
		return err
	}
	if !claimed {
		j.env.Logger.WithField("day", day.Format("2006-01-02")).Debug("Day already prepared")
		return nil
	}

	if err := j.strategy.BeforeTradingStart(ctx, j.env); err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}

	j.env.Logger.WithField("day", day.Format("2006-01-02")).Info("Trading day prepared")
	return nil
}
