// Package journal keeps a durable record of orders, allocation runs and
// end-of-day values.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// ErrNotFound is returned when no matching entry exists
var ErrNotFound = errors.New("not found")

// Run records one allocator cycle
type Run struct {
	ID         string           `json:"id"`
	Strategy   string           `json:"strategy"`
	Day        time.Time        `json:"day"`
	TotalValue float64          `json:"total_value"`
	Cash       float64          `json:"cash"`      // before the cycle
	CashLeft   float64          `json:"cash_left"` // tracked cash after the last commit
	Current    map[string]int64 `json:"current"`
	Target     map[string]int64 `json:"target"`
	Plan       map[string]int64 `json:"plan"`
	Accepted   []string         `json:"accepted"`
	Rejected   []string         `json:"rejected"`
	ConfigHash string           `json:"config_hash,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Record is a set of values a strategy recorded for a day
type Record struct {
	Strategy  string             `json:"strategy"`
	Day       time.Time          `json:"day"`
	Values    map[string]float64 `json:"values"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store persists journal entries
// ⭐ SSOT: orders and allocation runs are only written through a Store
type Store interface {
	SaveOrder(ctx context.Context, order contracts.Order) error
	OrdersByDate(ctx context.Context, day time.Time) ([]contracts.Order, error)
	SaveRun(ctx context.Context, run *Run) error
	LatestRun(ctx context.Context, strategy string) (*Run, error)
	Record(ctx context.Context, strategy string, day time.Time, values map[string]float64) error
	Records(ctx context.Context, strategy string, day time.Time) ([]Record, error)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
