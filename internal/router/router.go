// Package router sends strategy orders to the broker, sells before buys,
// under a rate limit, and journals each placed order.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/trobrock/trading-algo/internal/broker"
	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// OrderJournal records placed orders
type OrderJournal interface {
	SaveOrder(ctx context.Context, order contracts.Order) error
}

// Router submits order batches to a broker
// ⭐ SSOT: every strategy order reaches the broker through Router.Submit
type Router struct {
	broker  broker.Broker
	journal OrderJournal
	limiter *rate.Limiter
	workers int
	logger  *logger.Logger
}

// New creates a router allowing perMinute submissions per minute with at
// most workers in flight per phase. journal may be nil.
func New(b broker.Broker, journal OrderJournal, perMinute, workers int, log *logger.Logger) *Router {
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Router{
		broker:  b,
		journal: journal,
		limiter: rate.NewLimiter(limit, workers),
		workers: workers,
		logger:  log,
	}
}

// Submit places orders for strategy. All sells are placed before any buy so
// that sale proceeds are available. The returned slice is in input order;
// orders the broker refused carry their rejected status. Per-order errors
// are joined into the returned error.
func (r *Router) Submit(ctx context.Context, strategy string, orders []contracts.Order) ([]contracts.Order, error) {
	results := make([]contracts.Order, len(orders))
	errs := make([]error, len(orders))

	var sells, buys []int
	for i, o := range orders {
		o.Strategy = strategy
		results[i] = o
		if o.IsBuy() {
			buys = append(buys, i)
		} else {
			sells = append(sells, i)
		}
	}

	for _, phase := range [][]int{sells, buys} {
		if err := r.submitPhase(ctx, phase, results, errs); err != nil {
			return results, err
		}
	}

	placed := 0
	for i := range results {
		if errs[i] == nil {
			placed++
		}
	}
	r.logger.WithFields(map[string]interface{}{
		"strategy": strategy,
		"orders":   len(orders),
		"placed":   placed,
		"sells":    len(sells),
		"buys":     len(buys),
	}).Info("Orders routed")

	return results, errors.Join(errs...)
}

func (r *Router) submitPhase(ctx context.Context, idx []int, results []contracts.Order, errs []error) error {
	var g errgroup.Group
	g.SetLimit(r.workers)

	for _, i := range idx {
		g.Go(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", results[i].Symbol, err)
				return nil
			}

			placed, err := r.broker.Submit(ctx, results[i])
			results[i] = placed
			if err != nil {
				errs[i] = fmt.Errorf("%s %s %d: %w", placed.Side, placed.Symbol, placed.Qty, err)
				r.logger.WithError(err).WithField("symbol", placed.Symbol).Warn("Order rejected")
			}

			if placed.ID != "" && r.journal != nil {
				if jErr := r.journal.SaveOrder(ctx, placed); jErr != nil {
					r.logger.WithError(jErr).WithField("order_id", placed.ID).Error("Failed to journal order")
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}
