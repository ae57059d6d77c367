package jobs

import (
	"context"
	"fmt"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
)

// StrategyJob runs one scheduled callback of a strategy
// ⭐ SSOT: strategy callbacks reach the scheduler only through this job
type StrategyJob struct {
	strategy string
	schedule strategy.Schedule
	env      *strategy.Env
}

// NewStrategyJob creates a job for schedule of the named strategy
func NewStrategyJob(name string, schedule strategy.Schedule, env *strategy.Env) *StrategyJob {
	return &StrategyJob{
		strategy: name,
		schedule: schedule,
		env:      env,
	}
}

// Name returns "<strategy>.<schedule>"
func (j *StrategyJob) Name() string {
	return j.strategy + "." + j.schedule.Name
}

// Schedule returns the cron specs of the schedule rule
func (j *StrategyJob) Schedule() string {
	return j.schedule.Rule.Spec()
}

// Run calls the callback. Session-only callbacks are skipped outside the
// regular session.
func (j *StrategyJob) Run(ctx context.Context) error {
	if j.schedule.SessionOnly && !scheduler.InSession(j.env.Now()) {
		j.env.Logger.WithField("job", j.Name()).Debug("Outside session, skipping")
		return nil
	}

	if err := j.schedule.Run(ctx, j.env); err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	return nil
}
