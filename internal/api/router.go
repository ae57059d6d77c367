package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trobrock/trading-algo/internal/api/handlers"
	"github.com/trobrock/trading-algo/pkg/database"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// HealthChecker reports database health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Deps holds the services the API reads from
type Deps struct {
	Strategy  string
	Scheduler handlers.JobScheduler
	Journal   handlers.JournalReader
	DB        HealthChecker // nil when running without a database
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are only declared here
func NewRouter(deps Deps, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps)).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()

	jobsHandler := handlers.NewJobsHandler(deps.Scheduler, log)
	api.HandleFunc("/jobs", jobsHandler.List).Methods("GET")
	api.HandleFunc("/jobs/{name}/history", jobsHandler.History).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", jobsHandler.Run).Methods("POST")

	journalHandler := handlers.NewJournalHandler(deps.Journal, log)
	api.HandleFunc("/orders", journalHandler.Orders).Methods("GET")
	api.HandleFunc("/runs/latest", journalHandler.LatestRun).Methods("GET")
	api.HandleFunc("/records", journalHandler.Records).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status, degraded when the
// database does not answer
func healthCheckHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":   "ok",
			"service":  "trading-algo",
			"strategy": deps.Strategy,
		}
		status := http.StatusOK

		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			health, err := deps.DB.HealthCheck(ctx)
			body["database"] = health
			if err != nil {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
