package strategy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/internal/broker"
	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/internal/strategy/strategytest"
)

func TestTargetPercentQty(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		pct     float64
		price   float64
		current int64
		want    int64
	}{
		{"buy from flat", 10_000, 0.3, 100, 0, 30},
		{"truncates", 10_000, 0.3, 99, 0, 30},
		{"trim", 10_000, 0.3, 100, 50, -20},
		{"exit", 10_000, 0, 100, 50, -50},
		{"short truncates toward zero", 10_000, -0.5, 129, 0, -38},
		{"no price", 10_000, 1, 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strategy.TargetPercentQty(tt.value, tt.pct, tt.price, tt.current)
			if got != tt.want {
				t.Errorf("TargetPercentQty() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSortedSymbols(t *testing.T) {
	got := strategy.SortedSymbols(map[string]float64{"QQQ": 0.3, "AMZN": 0.2, "EDV": 0.5})
	assert.Equal(t, []string{"AMZN", "EDV", "QQQ"}, got)
}

func TestEnv_SubmitDropsEmptyOrders(t *testing.T) {
	h := strategytest.New(t, "test", 1000)
	h.Feed.SetPrice("AAA", 10)

	placed, err := h.Env.Submit(context.Background(),
		contracts.NewMarketOrder("AAA", 0),
		contracts.NewMarketOrder("AAA", 3),
	)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, "test", placed[0].Strategy)

	placed, err = h.Env.Submit(context.Background(), contracts.NewMarketOrder("AAA", 0))
	assert.NoError(t, err)
	assert.Empty(t, placed)
}

func TestEnv_CancelOpen(t *testing.T) {
	h := strategytest.New(t, "test", 1000, broker.WithPositions(
		contracts.Position{Symbol: "AAA", Qty: 10, CostBasis: 10},
	))
	h.Feed.SetPrice("AAA", 10)
	ctx := context.Background()

	_, err := h.Env.Submit(ctx,
		contracts.NewLimitOrder("AAA", 5, 5),
		contracts.NewLimitOrder("AAA", -5, 20),
	)
	require.NoError(t, err)

	pending, err := h.Env.HasOpenOrders(ctx, "AAA")
	require.NoError(t, err)
	assert.True(t, pending)

	n, err := h.Env.CancelOpen(ctx, func(o contracts.Order) bool { return o.IsBuy() })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	open, err := h.Broker.OpenOrders(ctx, "AAA")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, contracts.OrderSideSell, open[0].Side)

	n, err = h.Env.CancelOpen(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnv_TargetPercent(t *testing.T) {
	h := strategytest.New(t, "test", 1000)
	h.Feed.SetPrice("AAA", 10)
	ctx := context.Background()

	account, err := h.Env.Account(ctx)
	require.NoError(t, err)

	order, ok, err := h.Env.TargetPercent(ctx, account, "AAA", 0.5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(50), order.Qty)
	assert.True(t, order.IsMarketOrder())

	_, _, err = h.Env.TargetPercent(ctx, account, "ZZZ", 0.5)
	assert.ErrorIs(t, err, contracts.ErrNoPrice)
}

func TestEnv_DayAndSaveRun(t *testing.T) {
	h := strategytest.New(t, "dividend", 1000)
	h.Env.ConfigHash = "abc"
	h.At(23, 30)

	day := h.Env.Day()
	assert.Equal(t, 4, day.Day())
	assert.Equal(t, "America/New_York", day.Location().String())

	run := &journal.Run{Plan: map[string]int64{"AAA": 1}}
	require.NoError(t, h.Env.SaveRun(context.Background(), run))

	latest, err := h.Journal.LatestRun(context.Background(), "dividend")
	require.NoError(t, err)
	assert.Equal(t, "abc", latest.ConfigHash)
	assert.True(t, latest.Day.Equal(day))
}

func TestPriceFunc_LastDailyClose(t *testing.T) {
	h := strategytest.New(t, "test", 1000)
	h.Feed.SetCloses("AAA", contracts.FrequencyDaily, 9, 10, 11)
	price := h.Env.PriceFunc(context.Background(), 5)

	got, err := price("AAA")
	require.NoError(t, err)
	assert.Equal(t, 11.0, got)

	_, err = price("ZZZ")
	assert.Error(t, err)
}
