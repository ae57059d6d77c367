package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyGuard lets a named task run at most once per market day, also across
// process restarts when Redis is enabled.
type DailyGuard struct {
	client *Client
	prefix string

	mu   sync.Mutex
	seen map[string]bool
}

// NewDailyGuard creates a guard
func NewDailyGuard(client *Client, prefix string) *DailyGuard {
	return &DailyGuard{
		client: client,
		prefix: prefix,
		seen:   make(map[string]bool),
	}
}

// claimScript sets the key only if absent and reports whether it did
var claimScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
`)

// Claim returns true the first time it is called for name on day
func (g *DailyGuard) Claim(ctx context.Context, name string, day time.Time) (bool, error) {
	stamp := day.Format("2006-01-02")
	key := fmt.Sprintf("%s:guard:%s:%s", g.prefix, name, stamp)

	if !g.client.Enabled() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.seen[key] {
			return false, nil
		}
		g.seen[key] = true
		return true, nil
	}

	ttl := (48 * time.Hour).Milliseconds()
	res, err := claimScript.Run(ctx, g.client.Redis(), []string{key}, time.Now().Unix(), ttl).Int()
	if err != nil {
		return false, fmt.Errorf("guard claim failed for %s: %w", name, err)
	}
	return res == 1, nil
}
