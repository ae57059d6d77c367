package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	closes := []float64{10, 1, 2, 3, 4, 5}

	got, err := SMA(closes, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 1e-9)

	_, err = SMA(closes, 7)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{
			name:   "only gains",
			closes: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			want:   100,
		},
		{
			name:   "balanced",
			closes: []float64{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1},
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.closes, 14)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRSI_NotEnoughData(t *testing.T) {
	_, err := RSI([]float64{1, 2, 3}, 14)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestPercentDifference(t *testing.T) {
	closes := []float64{1, 1, 2, 2}

	got, err := PercentDifference(closes, 2, 4)
	require.NoError(t, err)
	assert.InDelta(t, (2.0-1.5)/1.5, got, 1e-9)
}

func TestEWM(t *testing.T) {
	got, err := EWM([]float64{1, 2}, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, got, 1e-9)

	// com = 0 puts all the weight on the last value
	got, err = EWM([]float64{1, 2, 9}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got, 1e-9)

	_, err = EWM(nil, 0.5)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestMean(t *testing.T) {
	got, err := Mean([]float64{1, 2, 3, 6})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3, math.NaN()}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{15, 1.6},
		{50, 3},
		{90, 4.6},
		{100, 5},
	}

	for _, tt := range tests {
		got, err := Percentile(values, tt.p)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "p=%v", tt.p)
	}

	_, err := Percentile(values, 101)
	assert.Error(t, err)
}

func TestPercentileBetween(t *testing.T) {
	values := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}

	low, err := PercentileBetween(values, 0, 15)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": false, "C": false, "D": false, "E": false}, low)

	high, err := PercentileBetween(values, 90, 100)
	require.NoError(t, err)
	assert.True(t, high["E"])
	assert.False(t, high["D"])
}
