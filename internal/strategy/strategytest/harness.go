package strategytest

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/trobrock/trading-algo/internal/broker"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/internal/router"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// Harness wires a strategy environment to a paper broker and a settable feed
type Harness struct {
	Env     *strategy.Env
	Broker  *broker.Paper
	Feed    *Feed
	Journal *journal.Memory

	now time.Time
}

// New creates a harness for strategy name with the given starting cash.
// The clock starts at 10:00 New York time on Monday 2024-03-04.
func New(t testing.TB, name string, cash float64, opts ...broker.PaperOption) *Harness {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	h := &Harness{
		Feed:    NewFeed(),
		Journal: journal.NewMemory(),
		now:     time.Date(2024, 3, 4, 10, 0, 0, 0, loc),
	}

	opts = append([]broker.PaperOption{broker.WithClock(h.Now)}, opts...)
	h.Broker = broker.NewPaper(cash, h.Feed, logger.Nop(), opts...)

	h.Env = &strategy.Env{
		Name:     name,
		Broker:   h.Broker,
		Data:     h.Feed,
		State:    redis.NewState(redis.Disabled(), "test"),
		Orders:   router.New(h.Broker, h.Journal, 0, 1, logger.Nop()),
		Recorder: h.Journal,
		Runs:     h.Journal,
		Location: loc,
		Clock:    h.Now,
		Logger:   logger.Nop(),
	}
	return h
}

// Now returns the harness clock
func (h *Harness) Now() time.Time {
	return h.now
}

// SetTime moves the harness clock
func (h *Harness) SetTime(t time.Time) {
	h.now = t
}

// At moves the clock to hh:mm on the current day
func (h *Harness) At(hour, minute int) {
	y, m, d := h.now.Date()
	h.now = time.Date(y, m, d, hour, minute, 0, 0, h.now.Location())
}

// NextDay moves the clock forward one day, keeping the time of day
func (h *Harness) NextDay() {
	h.now = h.now.AddDate(0, 0, 1)
}
