package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trobrock/trading-algo/internal/contracts"
)

// Memory is an in-process Store used when no database is configured
type Memory struct {
	mu      sync.RWMutex
	orders  map[string]contracts.Order
	runs    []Run
	records []Record
}

// NewMemory creates an empty in-memory journal
func NewMemory() *Memory {
	return &Memory{orders: make(map[string]contracts.Order)}
}

// SaveOrder inserts or updates an order by ID
func (m *Memory) SaveOrder(ctx context.Context, order contracts.Order) error {
	if order.ID == "" {
		return fmt.Errorf("failed to save order: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

// OrdersByDate returns orders created on day, oldest first
func (m *Memory) OrdersByDate(ctx context.Context, day time.Time) ([]contracts.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := dayOf(day)
	orders := make([]contracts.Order, 0)
	for _, o := range m.orders {
		if dayOf(o.CreatedAt).Equal(want) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// SaveRun appends a run, assigning an ID and timestamp when missing
func (m *Memory) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

// LatestRun returns the most recent run, of any strategy when strategy is empty
func (m *Memory) LatestRun(ctx context.Context, strategy string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.runs) - 1; i >= 0; i-- {
		if strategy == "" || m.runs[i].Strategy == strategy {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run for %q: %w", strategy, ErrNotFound)
}

// Record appends recorded values
func (m *Memory) Record(ctx context.Context, strategy string, day time.Time, values map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, Record{
		Strategy:  strategy,
		Day:       dayOf(day),
		Values:    values,
		CreatedAt: time.Now(),
	})
	return nil
}

// Records returns the values recorded by strategy on day
func (m *Memory) Records(ctx context.Context, strategy string, day time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := dayOf(day)
	out := make([]Record, 0)
	for _, r := range m.records {
		if r.Strategy == strategy && r.Day.Equal(want) {
			out = append(out, r)
		}
	}
	return out, nil
}
