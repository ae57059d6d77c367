// Package screen supplies ranked candidate securities to strategies.
package screen

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Row is one screened security
type Row struct {
	Symbol string             `json:"symbol" yaml:"symbol"`
	Rank   float64            `json:"rank" yaml:"rank"`
	Fields map[string]float64 `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Screen returns the candidate rows for a market day
type Screen interface {
	Rows(ctx context.Context, day time.Time) ([]Row, error)
}

// Top returns the n rows with the highest rank, best first.
// Ties keep their input order.
func Top(rows []Row, n int) []Row {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank > sorted[j].Rank
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Symbols returns the symbols of rows in order
func Symbols(rows []Row) []string {
	return lo.Map(rows, func(r Row, _ int) string {
		return r.Symbol
	})
}

// Where keeps rows whose field satisfies keep. Rows missing the field are dropped.
func Where(rows []Row, field string, keep func(float64) bool) []Row {
	return lo.Filter(rows, func(r Row, _ int) bool {
		v, ok := r.Fields[field]
		return ok && keep(v)
	})
}
