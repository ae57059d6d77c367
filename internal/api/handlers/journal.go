package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/trobrock/trading-algo/internal/contracts"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// JournalReader is the read side of the order journal
type JournalReader interface {
	OrdersByDate(ctx context.Context, day time.Time) ([]contracts.Order, error)
	LatestRun(ctx context.Context, strategy string) (*journal.Run, error)
	Records(ctx context.Context, strategy string, day time.Time) ([]journal.Record, error)
}

// JournalHandler handles order journal API endpoints
type JournalHandler struct {
	journal JournalReader
	now     func() time.Time
	logger  *logger.Logger
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(j JournalReader, log *logger.Logger) *JournalHandler {
	return &JournalHandler{
		journal: j,
		now:     time.Now,
		logger:  log,
	}
}

// Orders returns the orders submitted on a day
// GET /api/orders?date=2024-03-04
func (h *JournalHandler) Orders(w http.ResponseWriter, r *http.Request) {
	day, err := parseDate(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		return
	}

	orders, err := h.journal.OrdersByDate(r.Context(), day)
	if err != nil {
		h.logger.WithError(err).WithField("date", day.Format(dateLayout)).Error("Failed to get orders")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve orders")
		return
	}
	if orders == nil {
		orders = []contracts.Order{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":   day.Format(dateLayout),
		"orders": orders,
		"count":  len(orders),
	})
}

// LatestRun returns the most recent allocation run
// GET /api/runs/latest?strategy=dividend
func (h *JournalHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")

	run, err := h.journal.LatestRun(r.Context(), strategy)
	if errors.Is(err, journal.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no allocation run recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("strategy", strategy).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve allocation run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Records returns the values recorded by a strategy on a day
// GET /api/records?strategy=meanrev&date=2024-03-04
func (h *JournalHandler) Records(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		respondError(w, http.StatusBadRequest, "strategy is required")
		return
	}
	day, err := parseDate(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		return
	}

	records, err := h.journal.Records(r.Context(), strategy, day)
	if err != nil {
		h.logger.WithError(err).WithField("strategy", strategy).Error("Failed to get records")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve records")
		return
	}
	if records == nil {
		records = []journal.Record{}
	}

	respondJSON(w, http.StatusOK, records)
}
