package screen

import (
	"context"
	"sync"
	"time"

	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// Cached computes a screen once per market day and reuses the result,
// in process and in Redis when it is enabled.
type Cached struct {
	name   string
	inner  Screen
	cache  *redis.Cache
	logger *logger.Logger

	mu   sync.Mutex
	day  string
	rows []Row
}

// NewCached wraps inner with a per-day cache
func NewCached(name string, inner Screen, cache *redis.Cache, log *logger.Logger) *Cached {
	return &Cached{
		name:   name,
		inner:  inner,
		cache:  cache,
		logger: log,
	}
}

// Rows returns the cached rows for day, computing them on first use
func (c *Cached) Rows(ctx context.Context, day time.Time) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := day.Format("2006-01-02")
	if c.day == stamp {
		return c.rows, nil
	}

	var rows []Row
	computed := false
	err := c.cache.GetOrSet(ctx, redis.ScreenKey(c.name, day), &rows, redis.TTLDaily, func() (interface{}, error) {
		computed = true
		return c.inner.Rows(ctx, day)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"screen":   c.name,
		"day":      stamp,
		"rows":     len(rows),
		"computed": computed,
	}).Info("Screen loaded")

	c.day = stamp
	c.rows = rows
	return rows, nil
}
