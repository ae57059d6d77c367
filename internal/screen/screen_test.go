package screen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestTop(t *testing.T) {
	rows := []Row{
		{Symbol: "A", Rank: 1},
		{Symbol: "B", Rank: 3},
		{Symbol: "C", Rank: 2},
		{Symbol: "D", Rank: 3},
	}

	assert.Equal(t, []string{"B", "D"}, Symbols(Top(rows, 2)))
	assert.Equal(t, []string{"B", "D", "C", "A"}, Symbols(Top(rows, 10)))
	assert.Equal(t, "A", rows[0].Symbol, "input must not be reordered")
}

func TestWhere(t *testing.T) {
	rows := []Row{
		{Symbol: "A", Fields: map[string]float64{"yield": 0.08}},
		{Symbol: "B", Fields: map[string]float64{"yield": 0.01}},
		{Symbol: "C"},
	}

	got := Where(rows, "yield", func(v float64) bool { return v > 0.05 })
	assert.Equal(t, []string{"A"}, Symbols(got))
}

func TestFile_Rows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.yaml")
	doc := "rows:\n  - symbol: T\n    rank: 9.1\n    fields: {yield: 0.071}\n  - symbol: VZ\n    rank: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rows, err := NewFile(path).Rows(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "T", rows[0].Symbol)
	assert.Equal(t, 0.071, rows[0].Fields["yield"])
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFile(filepath.Join(dir, "missing.yaml")).Rows(context.Background(), day)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rows:\n  - rank: 1\n"), 0o644))
	_, err = NewFile(path).Rows(context.Background(), day)
	assert.Error(t, err)
}

type countingScreen struct {
	calls int
	err   error
}

func (c *countingScreen) Rows(ctx context.Context, day time.Time) ([]Row, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []Row{{Symbol: "AAA", Rank: 1}}, nil
}

func TestCached_ComputesOncePerDay(t *testing.T) {
	inner := &countingScreen{}
	cached := NewCached("dividend", inner, redis.NewCache(redis.Disabled(), "test"), logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rows, err := cached.Rows(ctx, day.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"AAA"}, Symbols(rows))
	}
	assert.Equal(t, 1, inner.calls)

	_, err := cached.Rows(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_PropagatesErrors(t *testing.T) {
	inner := &countingScreen{err: errors.New("boom")}
	cached := NewCached("dividend", inner, redis.NewCache(redis.Disabled(), "test"), logger.Nop())

	_, err := cached.Rows(context.Background(), day)
	assert.Error(t, err)

	// failures are not cached
	_, _ = cached.Rows(context.Background(), day)
	assert.Equal(t, 2, inner.calls)
}
