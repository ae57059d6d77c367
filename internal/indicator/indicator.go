// Package indicator computes the price indicators used by strategies.
// All inputs are closing prices ordered oldest first.
package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/markcheno/go-talib"
)

// ErrNotEnoughData is returned when a series is shorter than the window
var ErrNotEnoughData = errors.New("not enough data")

// SMA returns the simple moving average of the last period closes
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period {
		return 0, fmt.Errorf("%w: sma(%d) over %d closes", ErrNotEnoughData, period, len(closes))
	}
	out := talib.Sma(closes[len(closes)-period:], period)
	return out[len(out)-1], nil
}

// RSI returns the relative strength index over the last period price
// changes. Gains and losses are averaged without smoothing.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, fmt.Errorf("%w: rsi(%d) over %d closes", ErrNotEnoughData, period, len(closes))
	}
	out := talib.Rsi(closes[len(closes)-period-1:], period)
	return out[len(out)-1], nil
}

// PercentDifference returns (short SMA - long SMA) / long SMA
func PercentDifference(closes []float64, short, long int) (float64, error) {
	s, err := SMA(closes, short)
	if err != nil {
		return 0, err
	}
	l, err := SMA(closes, long)
	if err != nil {
		return 0, err
	}
	if l == 0 {
		return 0, fmt.Errorf("%w: zero long average", ErrNotEnoughData)
	}
	return (s - l) / l, nil
}

// EWM returns the last value of the adjusted exponentially weighted mean
// with decay given as center of mass: alpha = 1 / (1 + com).
func EWM(values []float64, com float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: ewm over empty series", ErrNotEnoughData)
	}
	if com < 0 {
		return 0, fmt.Errorf("ewm: center of mass must be >= 0, got %v", com)
	}

	decay := 1 - 1/(1+com)
	var num, den float64
	weight := 1.0
	for i := len(values) - 1; i >= 0; i-- {
		num += weight * values[i]
		den += weight
		weight *= decay
	}
	return num / den, nil
}

// Mean returns the arithmetic mean of values
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: mean over empty series", ErrNotEnoughData)
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. NaN values are ignored.
func Percentile(values []float64, p float64) (float64, error) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0, fmt.Errorf("%w: percentile over empty series", ErrNotEnoughData)
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile must be in [0, 100], got %v", p)
	}
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// PercentileBetween reports, per key, whether its value lies within the
// [minPct, maxPct] percentile band of all values (inclusive).
func PercentileBetween(values map[string]float64, minPct, maxPct float64) (map[string]bool, error) {
	all := make([]float64, 0, len(values))
	for _, v := range values {
		all = append(all, v)
	}

	lower, err := Percentile(all, minPct)
	if err != nil {
		return nil, err
	}
	upper, err := Percentile(all, maxPct)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(values))
	for key, v := range values {
		out[key] = v >= lower && v <= upper
	}
	return out, nil
}
