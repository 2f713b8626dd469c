package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/queue"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

// JobPublisher hands a job request to the worker process
type JobPublisher interface {
	PublishJob(ctx context.Context, job string, requestedBy uuid.UUID) (*queue.JobMessage, error)
}

// AdminHandler handles manual batch job triggers
type AdminHandler struct {
	publisher JobPublisher // Optional: if set, jobs run in the worker
	runner    queue.Runner
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
// If publisher is nil, jobs run synchronously through runner
// If publisher is provided, jobs are queued for the worker
func NewAdminHandler(publisher JobPublisher, runner queue.Runner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{publisher: publisher, runner: runner, logger: logger}
}

// RegisterRoutes sets up the admin job routes. The router must already
// require an admin.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", h.ListJobs)
	r.Post("/jobs/{job}", h.TriggerJob)
}

// ListJobs handles GET /admin/jobs
func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scheduler.JobNames)
}

// TriggerJob handles POST /admin/jobs/{job}
func (h *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	job := chi.URLParam(r, "job")
	if !slices.Contains(scheduler.JobNames, job) {
		writeDomainError(w, h.logger, fmt.Errorf("%w: %s", model.ErrUnknownJob, job))
		return
	}

	if h.publisher != nil {
		msg, err := h.publisher.PublishJob(r.Context(), job, p.UserID)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		h.logger.Info("job queued", zap.String("job", job), zap.String("request_id", msg.RequestID.String()))
		writeJSON(w, http.StatusAccepted, msg)
		return
	}

	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Job triggers are not available")
		return
	}
	report, err := h.runner.RunJob(r.Context(), job)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
