package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trobrock/trading-algo/internal/contracts"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS journal;

CREATE TABLE IF NOT EXISTS journal.orders (
	order_id    TEXT PRIMARY KEY,
	strategy    TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	order_date  DATE NOT NULL,
	side        TEXT NOT NULL,
	order_type  TEXT NOT NULL,
	limit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	qty         BIGINT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_order_date_idx ON journal.orders (order_date);

CREATE TABLE IF NOT EXISTS journal.runs (
	run_id      UUID PRIMARY KEY,
	strategy    TEXT NOT NULL,
	run_date    DATE NOT NULL,
	total_value DOUBLE PRECISION NOT NULL,
	cash        DOUBLE PRECISION NOT NULL,
	cash_left   DOUBLE PRECISION NOT NULL,
	current     JSONB NOT NULL,
	target      JSONB NOT NULL,
	plan        JSONB NOT NULL,
	accepted    TEXT[] NOT NULL,
	rejected    TEXT[] NOT NULL,
	config_hash TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_strategy_created_idx ON journal.runs (strategy, created_at DESC);

CREATE TABLE IF NOT EXISTS journal.records (
	id         BIGSERIAL PRIMARY KEY,
	strategy   TEXT NOT NULL,
	record_date DATE NOT NULL,
	record_values JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Repository handles journal persistence in PostgreSQL
// ⭐ SSOT: journal tables are only read and written here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new journal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the journal schema if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}

// SaveOrder saves an order, updating its status when it already exists
func (r *Repository) SaveOrder(ctx context.Context, order contracts.Order) error {
	query := `
		INSERT INTO journal.orders (
			order_id, strategy, symbol, order_date, side, order_type,
			limit_price, qty, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	updated := order.UpdatedAt
	if updated.IsZero() {
		updated = order.CreatedAt
	}

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.Strategy, order.Symbol, dayOf(order.CreatedAt),
		string(order.Side), string(order.OrderType), order.LimitPrice, order.Qty,
		string(order.Status), order.CreatedAt, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// OrdersByDate retrieves orders for a specific date
func (r *Repository) OrdersByDate(ctx context.Context, day time.Time) ([]contracts.Order, error) {
	query := `
		SELECT order_id, strategy, symbol, side, order_type, limit_price,
		       qty, status, created_at, updated_at
		FROM journal.orders
		WHERE order_date = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, dayOf(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]contracts.Order, 0)

	for rows.Next() {
		var order contracts.Order
		err := rows.Scan(
			&order.ID, &order.Strategy, &order.Symbol, &order.Side, &order.OrderType,
			&order.LimitPrice, &order.Qty, &order.Status, &order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// SaveRun saves an allocation run
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO journal.runs (
			run_id, strategy, run_date, total_value, cash, cash_left,
			current, target, plan, accepted, rejected, config_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Strategy, dayOf(run.Day), run.TotalValue, run.Cash, run.CashLeft,
		nonNil(run.Current), nonNil(run.Target), nonNil(run.Plan),
		nonNilSlice(run.Accepted), nonNilSlice(run.Rejected), run.ConfigHash, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// LatestRun retrieves the most recent run, of any strategy when strategy is empty
func (r *Repository) LatestRun(ctx context.Context, strategy string) (*Run, error) {
	query := `
		SELECT run_id, strategy, run_date, total_value, cash, cash_left,
		       current, target, plan, accepted, rejected, config_hash, created_at
		FROM journal.runs
		WHERE $1 = '' OR strategy = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var run Run
	err := r.pool.QueryRow(ctx, query, strategy).Scan(
		&run.ID, &run.Strategy, &run.Day, &run.TotalValue, &run.Cash, &run.CashLeft,
		&run.Current, &run.Target, &run.Plan, &run.Accepted, &run.Rejected,
		&run.ConfigHash, &run.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run for %q: %w", strategy, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

// Record saves values recorded by a strategy
func (r *Repository) Record(ctx context.Context, strategy string, day time.Time, values map[string]float64) error {
	query := `
		INSERT INTO journal.records (strategy, record_date, record_values)
		VALUES ($1, $2, $3)
	`

	if values == nil {
		values = map[string]float64{}
	}
	if _, err := r.pool.Exec(ctx, query, strategy, dayOf(day), values); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Records retrieves the values recorded by a strategy on a day
func (r *Repository) Records(ctx context.Context, strategy string, day time.Time) ([]Record, error) {
	query := `
		SELECT strategy, record_date, record_values, created_at
		FROM journal.records
		WHERE strategy = $1 AND record_date = $2
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, strategy, dayOf(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Strategy, &rec.Day, &rec.Values, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
