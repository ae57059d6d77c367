package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", TTLShort))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCache_GetOrSetDisabledCallsLoader(t *testing.T) {
	cache := NewCache(Disabled(), "test")

	calls := 0
	var result []string
	for i := 0; i < 2; i++ {
		err := cache.GetOrSet(context.Background(), "k", &result, TTLDaily, func() (interface{}, error) {
			calls++
			return []string{"AAA", "BBB"}, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"AAA", "BBB"}, result)
}

func TestState_LocalFallback(t *testing.T) {
	state := NewState(Disabled(), "test")
	ctx := context.Background()

	var ages map[string]int
	found, err := state.Load(ctx, "ages", &ages)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, state.Save(ctx, "ages", map[string]int{"AAA": 3}))

	found, err = state.Load(ctx, "ages", &ages)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"AAA": 3}, ages)

	require.NoError(t, state.Delete(ctx, "ages"))
	found, err = state.Load(ctx, "ages", &ages)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDailyGuard_LocalFallback(t *testing.T) {
	guard := NewDailyGuard(Disabled(), "test")
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	ok, err := guard.Claim(ctx, "before_trading_start", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Claim(ctx, "before_trading_start", day)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.Claim(ctx, "before_trading_start", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScreenKey(t *testing.T) {
	day := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "screen:dividend:2024-03-05", ScreenKey("dividend", day))
}

// integration tests run against a live server when TEST_REDIS_ADDR is set
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := NewFromAddr(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_CacheRoundTrip(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	cache := NewCache(client, "it-"+time.Now().Format("150405.000"))

	require.NoError(t, cache.Set(ctx, "k", map[string]float64{"AAA": 1.5}, TTLShort))

	var got map[string]float64
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1.5, got["AAA"])

	require.NoError(t, cache.Delete(ctx, "k"))
}

func TestIntegration_DailyGuard(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	guard := NewDailyGuard(client, "it-"+time.Now().Format("150405.000"))
	day := time.Now()

	ok, err := guard.Claim(ctx, "job", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Claim(ctx, "job", day)
	require.NoError(t, err)
	assert.False(t, ok)
}
