package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/pkg/logger"
)

// JobScheduler is the part of the scheduler the API exposes
type JobScheduler interface {
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(jobName string) (*scheduler.JobHistory, error)
	RunJob(jobName string) error
}

// JobsHandler handles scheduler API endpoints
type JobsHandler struct {
	scheduler JobScheduler
	logger    *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(s JobScheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{
		scheduler: s,
		logger:    log,
	}
}

// List returns the stats of every registered job, sorted by name
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := h.scheduler.GetJobStats()

	result := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JobName < result[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  result,
		"count": len(result),
	})
}

// History returns the latest results of a job
// GET /api/jobs/{name}/history
func (h *JobsHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	history, err := h.scheduler.GetJobHistory(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history.GetLatestResults(20))
}

// Run triggers a job outside of its schedule
// POST /api/jobs/{name}/run
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.scheduler.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}
