package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Spec(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{"open + 5m", MarketOpen(5 * time.Minute), "0 35 9 * * MON-FRI"},
		{"open + 2h", MarketOpen(2 * time.Hour), "0 30 11 * * MON-FRI"},
		{"open + 11m weekly", MarketOpen(11 * time.Minute).WeekStart(), "0 41 9 * * MON"},
		{"close - 1m", MarketClose(time.Minute), "0 59 15 * * MON-FRI"},
		{"before open", BeforeOpen(45 * time.Minute), "0 45 8 * * MON-FRI"},
		{
			"every 10m",
			Every(time.Minute, 10*time.Minute, 8),
			"0 31,41,51 9 * * MON-FRI | 0 1,11,21,31,41 10 * * MON-FRI",
		},
		{
			"every minute",
			EveryMinute(),
			"0 30-59 9 * * MON-FRI | 0 0-59 10 * * MON-FRI | 0 0-59 11 * * MON-FRI | " +
				"0 0-59 12 * * MON-FRI | 0 0-59 13 * * MON-FRI | 0 0-59 14 * * MON-FRI | 0 0-59 15 * * MON-FRI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Spec())
			_, err := Parse(tt.rule.Spec())
			assert.NoError(t, err)
		})
	}
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "market open + 1h30m", MarketOpen(90*time.Minute).String())
	assert.Equal(t, "market close - 1m", MarketClose(time.Minute).String())
}

func TestEvery_MeanReversionCadence(t *testing.T) {
	// 39 runs every 10 minutes starting one minute after the open
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	rule := Every(time.Minute, 10*time.Minute, 39)
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, loc)
	times, err := Next(rule.Spec(), from, 40)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Date(2024, 1, 2, 9, 31, 0, 0, loc), times[0], 0)
	assert.WithinDuration(t, time.Date(2024, 1, 2, 15, 51, 0, 0, loc), times[38], 0)
	assert.WithinDuration(t, time.Date(2024, 1, 3, 9, 31, 0, 0, loc), times[39], 0)
}

func TestInSession(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.True(t, InSession(time.Date(2024, 1, 2, 9, 30, 0, 0, loc)))
	assert.True(t, InSession(time.Date(2024, 1, 2, 15, 59, 0, 0, loc)))
	assert.False(t, InSession(time.Date(2024, 1, 2, 16, 0, 0, 0, loc)))
	assert.False(t, InSession(time.Date(2024, 1, 2, 9, 29, 0, 0, loc)))
	assert.False(t, InSession(time.Date(2024, 1, 6, 12, 0, 0, 0, loc))) // Saturday
}

func TestMarketDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC is still the previous day in New York
	day := MarketDay(time.Date(2024, 1, 3, 3, 0, 0, 0, time.UTC), loc)
	assert.WithinDuration(t, time.Date(2024, 1, 2, 0, 0, 0, 0, loc), day, 0)
}
