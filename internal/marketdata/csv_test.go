package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestSource(t *testing.T) *CSV {
	dir := t.TempDir()
	writeFile(t, dir, "SPY.csv", "Date,Close,Volume\n2024-01-03,102,300\n2024-01-01,100,100\n2024-01-02,101,200\nbad,1,1\n")
	writeFile(t, dir, "SPY_1m.csv", "timestamp,close\n2024-01-03 09:31:00,102.5\n2024-01-03 09:32:00,102.7\n")
	writeFile(t, dir, "EMPTY.csv", "date,close\n")
	return NewCSV(dir, logger.Nop())
}

func TestCSV_HistorySortedAndLimited(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	bars, err := src.History(ctx, "SPY", 2, contracts.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, []float64{101, 102}, contracts.Closes(bars))
	assert.Equal(t, int64(200), bars[0].Volume)

	bars, err = src.History(ctx, "SPY", 10, contracts.FrequencyDaily)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestCSV_ClockHidesFutureBars(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	src.SetTime(time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC))

	bars, err := src.History(ctx, "SPY", 5, contracts.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101}, contracts.Closes(bars))

	// minute bars are all after the clock
	price, err := src.Current(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 101.0, price)
}

func TestCSV_CurrentPrefersMinuteBars(t *testing.T) {
	src := newTestSource(t)

	price, err := src.Current(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 102.7, price)
}

func TestCSV_UnknownSymbol(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	_, err := src.Current(ctx, "NOPE")
	assert.ErrorIs(t, err, contracts.ErrNoPrice)
	assert.False(t, src.CanTrade(ctx, "NOPE"))
	assert.True(t, src.CanTrade(ctx, "SPY"))

	_, err = src.History(ctx, "NOPE", 1, contracts.FrequencyDaily)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSV_EmptyFile(t *testing.T) {
	src := newTestSource(t)

	_, err := src.History(context.Background(), "EMPTY", 1, contracts.FrequencyDaily)
	assert.Error(t, err)
}

func TestCSV_CanceledContext(t *testing.T) {
	src := newTestSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.History(ctx, "SPY", 1, contracts.FrequencyDaily)
	assert.ErrorIs(t, err, context.Canceled)
}
