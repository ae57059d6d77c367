package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/internal/strategy/strategytest"
	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

type stubStrategy struct {
	prepared int
	ran      int
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Schedules() []strategy.Schedule {
	return []strategy.Schedule{
		{
			Name: "rebalance",
			Rule: scheduler.MarketOpen(30 * time.Minute),
			Run: func(ctx context.Context, env *strategy.Env) error {
				s.ran++
				return nil
			},
		},
		{
			Name: "record_vars",
			Rule: scheduler.MarketClose(time.Minute),
			Run:  func(ctx context.Context, env *strategy.Env) error { return nil },
		},
	}
}

func (s *stubStrategy) BeforeTradingStart(ctx context.Context, env *strategy.Env) error {
	s.prepared++
	return nil
}

type nopSyncer struct{}

func (nopSyncer) Sync(ctx context.Context) (int, error) { return 0, nil }

func newTestRunner(t *testing.T, opts ...Option) (*Runner, *stubStrategy, *scheduler.Scheduler) {
	h := strategytest.New(t, "stub", 1000)
	s := &stubStrategy{}
	sched := scheduler.New(logger.Nop(), scheduler.WithLocation(h.Env.Location))
	r := New(s, h.Env, sched, redis.NewDailyGuard(redis.Disabled(), "test"), opts...)
	return r, s, sched
}

func TestRunner_Register(t *testing.T) {
	r, _, sched := newTestRunner(t, WithSyncer(nopSyncer{}))

	require.NoError(t, r.Register())
	assert.Equal(t, []string{
		"broker_sync",
		"stub.before_trading_start",
		"stub.rebalance",
		"stub.record_vars",
	}, sched.GetAllJobs())

	stats := sched.GetJobStats()
	assert.Equal(t, "0 0 10 * * MON-FRI", stats["stub.rebalance"].Schedule)
	assert.Equal(t, "0 59 15 * * MON-FRI", stats["stub.record_vars"].Schedule)

	assert.Error(t, r.Register(), "jobs cannot be registered twice")
}

func TestRunner_BeforeOpenLead(t *testing.T) {
	r, _, sched := newTestRunner(t, WithBeforeOpenLead(time.Hour))
	require.NoError(t, r.Register())
	assert.Equal(t, "0 30 8 * * MON-FRI", sched.GetJobStats()["stub.before_trading_start"].Schedule)
}

func TestRunner_PrepareOncePerDay(t *testing.T) {
	r, s, sched := newTestRunner(t)
	require.NoError(t, r.Register())
	ctx := context.Background()

	require.NoError(t, r.Prepare(ctx))
	result, err := sched.RunJobSync(ctx, "stub.before_trading_start")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, s.prepared)

	result, err = sched.RunJobSync(ctx, "stub.rebalance")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, s.ran)
}

func TestRunner_StartStop(t *testing.T) {
	r, s, _ := newTestRunner(t)

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 1, s.prepared)
	r.Stop()
}
