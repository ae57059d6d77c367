package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/pkg/logger"
)

type fakeQuoter struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (q *fakeQuoter) Current(ctx context.Context, symbol string) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
	}
	return p, nil
}

func (q *fakeQuoter) set(symbol string, price float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[symbol] = price
}

func newTestPaper(cash float64, opts ...PaperOption) (*Paper, *fakeQuoter) {
	q := &fakeQuoter{prices: map[string]float64{"AAA": 10, "BBB": 20}}
	clock := func() time.Time { return time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC) }
	opts = append([]PaperOption{WithClock(clock)}, opts...)
	return NewPaper(cash, q, logger.Nop(), opts...), q
}

func TestPaper_MarketBuyFills(t *testing.T) {
	p, _ := newTestPaper(1000)
	ctx := context.Background()

	order, err := p.Submit(ctx, contracts.NewMarketOrder("AAA", 19))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)
	assert.NotEmpty(t, order.ID)

	account, err := p.Account(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 810.0, account.Cash, 1e-9)
	assert.InDelta(t, 1000.0, account.PortfolioValue, 1e-9)
	assert.Equal(t, int64(19), account.Qty("AAA"))
	assert.Equal(t, 10.0, account.Positions["AAA"].CostBasis)
}

func TestPaper_RejectsBuyBeyondCash(t *testing.T) {
	p, _ := newTestPaper(100)

	order, err := p.Submit(context.Background(), contracts.NewMarketOrder("AAA", 11))
	assert.ErrorIs(t, err, contracts.ErrInsufficientCash)
	assert.Equal(t, contracts.StatusRejected, order.Status)
	assert.Len(t, p.Orders(), 1)
}

func TestPaper_RejectsSellBeyondPosition(t *testing.T) {
	p, _ := newTestPaper(100, WithPositions(contracts.Position{Symbol: "AAA", Qty: 5, CostBasis: 8}))

	_, err := p.Submit(context.Background(), contracts.NewMarketOrder("AAA", -6))
	assert.ErrorIs(t, err, contracts.ErrNoPosition)
}

func TestPaper_ShortingWhenAllowed(t *testing.T) {
	p, _ := newTestPaper(100, WithShorting())
	ctx := context.Background()

	_, err := p.Submit(ctx, contracts.NewMarketOrder("BBB", -2))
	require.NoError(t, err)

	account, err := p.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), account.Qty("BBB"))
	assert.InDelta(t, 140.0, account.Cash, 1e-9)
	assert.InDelta(t, 100.0, account.PortfolioValue, 1e-9)
	assert.InDelta(t, 0.4, account.Leverage(), 1e-9)
}

func TestPaper_MarketOrderWithoutPrice(t *testing.T) {
	p, _ := newTestPaper(100)

	_, err := p.Submit(context.Background(), contracts.NewMarketOrder("ZZZ", 1))
	assert.ErrorIs(t, err, contracts.ErrNoPrice)
}

func TestPaper_InvalidOrders(t *testing.T) {
	p, _ := newTestPaper(100)
	ctx := context.Background()

	_, err := p.Submit(ctx, contracts.Order{Symbol: "AAA", Side: contracts.OrderSideBuy, OrderType: contracts.OrderTypeMarket})
	assert.Error(t, err)

	_, err = p.Submit(ctx, contracts.NewLimitOrder("AAA", 1, 0))
	assert.Error(t, err)
	assert.Empty(t, p.Orders())
}

func TestPaper_LimitOrderRestsUntilCrossed(t *testing.T) {
	p, q := newTestPaper(1000)
	ctx := context.Background()

	order, err := p.Submit(ctx, contracts.NewLimitOrder("AAA", 10, 9.5))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusSubmitted, order.Status)

	open, err := p.OpenOrders(ctx, "AAA")
	require.NoError(t, err)
	require.Len(t, open, 1)

	fills, err := p.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fills)

	q.set("AAA", 9.4)
	fills, err = p.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fills)

	open, err = p.OpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)

	account, err := p.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Qty("AAA"))
	assert.InDelta(t, 906.0, account.Cash, 1e-9)
}

func TestPaper_SellLimitFillsAtOrAbove(t *testing.T) {
	p, _ := newTestPaper(0, WithPositions(contracts.Position{Symbol: "AAA", Qty: 5, CostBasis: 8}))

	order, err := p.Submit(context.Background(), contracts.NewLimitOrder("AAA", -5, 9.95))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFilled, order.Status)

	account, err := p.Account(context.Background())
	require.NoError(t, err)
	assert.Empty(t, account.Positions)
	assert.InDelta(t, 50.0, account.Cash, 1e-9)
}

func TestPaper_Cancel(t *testing.T) {
	p, _ := newTestPaper(1000)
	ctx := context.Background()

	order, err := p.Submit(ctx, contracts.NewLimitOrder("AAA", 1, 5))
	require.NoError(t, err)

	require.NoError(t, p.Cancel(ctx, order.ID))
	assert.ErrorIs(t, p.Cancel(ctx, order.ID), contracts.ErrOrderNotFound)

	open, err := p.OpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestPaper_CostBasisAveraging(t *testing.T) {
	p, q := newTestPaper(1000)
	ctx := context.Background()

	_, err := p.Submit(ctx, contracts.NewMarketOrder("AAA", 10))
	require.NoError(t, err)
	q.set("AAA", 20)
	_, err = p.Submit(ctx, contracts.NewMarketOrder("AAA", 10))
	require.NoError(t, err)
	_, err = p.Submit(ctx, contracts.NewMarketOrder("AAA", -5))
	require.NoError(t, err)

	account, err := p.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), account.Qty("AAA"))
	assert.InDelta(t, 15.0, account.Positions["AAA"].CostBasis, 1e-9)
}
