package allocator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceTable(prices map[string]float64) PriceFunc {
	return func(symbol string) (float64, error) {
		p, ok := prices[symbol]
		if !ok {
			return 0, errors.New("unknown symbol")
		}
		return p, nil
	}
}

// countingPrices records how often each symbol is fetched
type countingPrices struct {
	prices map[string]float64
	calls  map[string]int
}

func (c *countingPrices) fetch(symbol string) (float64, error) {
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[symbol]++
	return priceTable(c.prices)(symbol)
}

func TestNew_RejectsUnaffordableInitialRebalance(t *testing.T) {
	prices := priceTable(map[string]float64{"AAA": 10, "BBB": 20})

	a := New(1000, 500, Portfolio{"AAA": 10}, prices)

	// 95 shares of AAA would cost 850 with only 500 available
	assert.Equal(t, Portfolio{"AAA": 10}, a.Target())
	assert.Equal(t, 500.0, a.Cash())
	assert.Empty(t, a.Plan())

	t.Run("candidate rejected when top-up is unaffordable", func(t *testing.T) {
		// AAA 10 -> 48 (380) and BBB 0 -> 24 (480)
		assert.False(t, a.Add("BBB"))
		assert.Equal(t, Portfolio{"AAA": 10}, a.Target())
		assert.Equal(t, 500.0, a.Cash())
		assert.Empty(t, a.Plan())
	})
}

func TestAdd_CommitsAffordableCandidate(t *testing.T) {
	a := New(200, 200, Portfolio{}, priceTable(map[string]float64{"AAA": 10}))

	require.True(t, a.Add("AAA"))

	assert.Equal(t, Portfolio{"AAA": 19}, a.Target())
	assert.Equal(t, Plan{"AAA": 19}, a.Plan())
	assert.InDelta(t, 10.0, a.Cash(), 1e-9)

	p, ok := a.Price("AAA")
	assert.True(t, ok)
	assert.Equal(t, 10.0, p)
}

func TestNew_RebalancesCurrentHoldings(t *testing.T) {
	a := New(1000, 1000, Portfolio{"AAA": 10}, priceTable(map[string]float64{"AAA": 10}))

	assert.Equal(t, Portfolio{"AAA": 95}, a.Target())
	assert.Equal(t, Plan{"AAA": 85}, a.Plan())
	assert.InDelta(t, 150.0, a.Cash(), 1e-9)
}

func TestNew_DropsNonPositiveHoldings(t *testing.T) {
	a := New(100, 0, Portfolio{"AAA": 0, "BBB": -3}, priceTable(nil))

	assert.Empty(t, a.Current())
	assert.Empty(t, a.Target())
}

func TestNew_DoesNotMutateCaller(t *testing.T) {
	current := Portfolio{"AAA": 1}
	a := New(1000, 1000, current, priceTable(map[string]float64{"AAA": 10, "BBB": 10}))
	a.Add("BBB")

	assert.Equal(t, Portfolio{"AAA": 1}, current)
	assert.Equal(t, Portfolio{"AAA": 1}, a.Current())
}

func TestAdd_HeldCandidateIsNoOp(t *testing.T) {
	a := New(1000, 500, Portfolio{"AAA": 10}, priceTable(map[string]float64{"AAA": 10}))
	before := a.Target()

	assert.True(t, a.Add("AAA"))
	assert.Equal(t, before, a.Target())
	assert.Equal(t, 500.0, a.Cash())
}

func TestAdd_AcceptedCandidateIsNotChargedTwice(t *testing.T) {
	a := New(1000, 5000, Portfolio{}, priceTable(map[string]float64{"AAA": 10, "BBB": 10}))

	require.True(t, a.Add("AAA"))
	require.True(t, a.Add("BBB"))
	cash := a.Cash()
	target := a.Target()

	assert.True(t, a.Add("AAA"))
	assert.Equal(t, target, a.Target())
	assert.Equal(t, cash, a.Cash())
}

func TestAdd_CandidateWithoutPrice(t *testing.T) {
	a := New(1000, 1000, Portfolio{}, priceTable(map[string]float64{"AAA": 10}))

	// the candidate is skipped, pruned, and the empty target is unchanged
	assert.False(t, a.Add("ZZZ"))
	assert.Empty(t, a.Target())
	assert.Equal(t, 1000.0, a.Cash())
}

func TestAdd_InvalidPricesAreSkipped(t *testing.T) {
	tests := []struct {
		name  string
		price float64
	}{
		{"zero", 0},
		{"negative", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(1000, 1000, Portfolio{}, priceTable(map[string]float64{"BAD": tt.price}))
			assert.False(t, a.Add("BAD"))
			_, ok := a.Price("BAD")
			assert.False(t, ok)
		})
	}
}

func TestAdd_SkipsUnpricedMemberButAdmitsCandidate(t *testing.T) {
	// GONE is held but has no price, so it keeps its quantity
	a := New(1000, 1000, Portfolio{"GONE": 5}, priceTable(map[string]float64{"AAA": 10}))

	require.True(t, a.Add("AAA"))
	assert.Equal(t, Portfolio{"GONE": 5, "AAA": 48}, a.Target())
	assert.Equal(t, Plan{"AAA": 48}, a.Plan())
}

func TestAdd_FairShareShrinksWithMembers(t *testing.T) {
	prices := priceTable(map[string]float64{"AAA": 10, "BBB": 10, "CCC": 10})
	a := New(1000, 5000, Portfolio{}, prices)

	require.True(t, a.Add("AAA")) // 95
	require.True(t, a.Add("BBB")) // 48 (already above), 48 new
	require.True(t, a.Add("CCC")) // 32 new

	assert.Equal(t, Portfolio{"AAA": 95, "BBB": 48, "CCC": 32}, a.Target())
	assert.InDelta(t, 5000.0-950-480-320, a.Cash(), 1e-9)
}

func TestAdd_StopsWhenCashRunsOut(t *testing.T) {
	prices := priceTable(map[string]float64{"AAA": 10, "BBB": 10})
	a := New(1000, 960, Portfolio{}, prices)

	require.True(t, a.Add("AAA"))
	assert.False(t, a.Add("BBB"))
	assert.Equal(t, Portfolio{"AAA": 95}, a.Target())
	assert.InDelta(t, 10.0, a.Cash(), 1e-9)
}

func TestWithCashBuffer(t *testing.T) {
	a := New(100, 100, Portfolio{}, priceTable(map[string]float64{"AAA": 1}), WithCashBuffer(0))

	require.True(t, a.Add("AAA"))
	assert.Equal(t, Portfolio{"AAA": 100}, a.Target())
	assert.InDelta(t, 0.0, a.Cash(), 1e-9)
}

func TestRounding_HalfToEven(t *testing.T) {
	// 100 * 0.95 / 38 = 2.5
	a := New(100, 100, Portfolio{}, priceTable(map[string]float64{"AAA": 38}))
	require.True(t, a.Add("AAA"))
	assert.Equal(t, int64(2), a.Target()["AAA"])
}

func TestPriceCache_MemoizesCommittedLookups(t *testing.T) {
	src := &countingPrices{prices: map[string]float64{"AAA": 10, "BBB": 10, "CCC": 10}}
	a := New(1000, 5000, Portfolio{}, src.fetch)

	require.True(t, a.Add("AAA"))
	require.True(t, a.Add("BBB"))
	require.True(t, a.Add("CCC"))

	assert.Equal(t, 1, src.calls["AAA"])
	assert.Equal(t, 1, src.calls["BBB"])
	assert.Equal(t, 1, src.calls["CCC"])
}

func TestPriceCache_RejectedTrialLeavesCacheUntouched(t *testing.T) {
	src := &countingPrices{prices: map[string]float64{"AAA": 10, "BBB": 20}}
	a := New(1000, 500, Portfolio{"AAA": 10}, src.fetch)

	assert.Equal(t, 0, a.prices.Len())
	assert.False(t, a.Add("BBB"))
	assert.Equal(t, 0, a.prices.Len())
}

func TestPlan_IsRepeatable(t *testing.T) {
	a := New(200, 200, Portfolio{}, priceTable(map[string]float64{"AAA": 10}))
	a.Add("AAA")

	first := a.Plan()
	first["AAA"] = 0
	assert.Equal(t, Plan{"AAA": 19}, a.Plan())
}

func TestPortfolio_Symbols(t *testing.T) {
	p := Portfolio{"CCC": 1, "AAA": 2, "BBB": 3}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, p.Symbols())
}

func TestAdd_SuccessDependsOnWholeTarget(t *testing.T) {
	prices := priceTable(map[string]float64{"AAA": 10, "EXP": 300})

	t.Run("candidate too expensive for one share is rejected", func(t *testing.T) {
		a := New(100, 100, Portfolio{}, prices)
		assert.False(t, a.Add("EXP"))
		assert.Empty(t, a.Target())
	})

	t.Run("same candidate is reported added when another member grows", func(t *testing.T) {
		// initial top-up of AAA to 10 shares (90) exceeds the 50 available
		a := New(100, 50, Portfolio{"AAA": 1}, prices)
		require.Equal(t, Portfolio{"AAA": 1}, a.Target())

		// AAA 1 -> 5 (40), EXP rounds to 0 shares and is pruned
		assert.True(t, a.Add("EXP"))
		assert.Equal(t, Portfolio{"AAA": 5}, a.Target())
		assert.InDelta(t, 10.0, a.Cash(), 1e-9)
	})
}
