// Package runner turns a strategy into scheduler jobs.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/scheduler/jobs"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// Runner drives one strategy on a scheduler
type Runner struct {
	strategy strategy.Strategy
	env      *strategy.Env
	sched    *scheduler.Scheduler
	guard    *redis.DailyGuard
	logger   *logger.Logger

	lead   time.Duration
	syncer jobs.Syncer
	before *jobs.BeforeOpenJob
}

// Option configures a Runner
type Option func(*Runner)

// WithSyncer adds a job filling resting orders during the session
func WithSyncer(s jobs.Syncer) Option {
	return func(r *Runner) {
		r.syncer = s
	}
}

// WithBeforeOpenLead overrides jobs.DefaultBeforeOpenLead
func WithBeforeOpenLead(lead time.Duration) Option {
	return func(r *Runner) {
		r.lead = lead
	}
}

// New creates a runner for s
func New(s strategy.Strategy, env *strategy.Env, sched *scheduler.Scheduler, guard *redis.DailyGuard, opts ...Option) *Runner {
	r := &Runner{
		strategy: s,
		env:      env,
		sched:    sched,
		guard:    guard,
		logger:   env.Logger.WithField("strategy", s.Name()),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.before = jobs.NewBeforeOpenJob(s, env, guard, r.lead)
	return r
}

// Register adds the strategy's jobs to the scheduler
func (r *Runner) Register() error {
	all := []scheduler.Job{r.before}
	for _, sched := range r.strategy.Schedules() {
		all = append(all, jobs.NewStrategyJob(r.strategy.Name(), sched, r.env))
	}
	if r.syncer != nil {
		all = append(all, jobs.NewBrokerSyncJob(r.syncer, r.logger))
	}

	for _, job := range all {
		if err := r.sched.AddJob(job); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}

	r.logger.WithField("jobs", len(all)).Info("Strategy registered")
	return nil
}

// Prepare runs BeforeTradingStart for the current day unless it already ran
func (r *Runner) Prepare(ctx context.Context) error {
	return r.before.Run(ctx)
}

// Start registers the jobs, prepares the current day and starts the scheduler
func (r *Runner) Start(ctx context.Context) error {
	if err := r.Register(); err != nil {
		return err
	}
	if err := r.Prepare(ctx); err != nil {
		return err
	}
	r.sched.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (r *Runner) Stop() {
	r.sched.Stop()
}
