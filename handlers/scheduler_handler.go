package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/accstats/accstats/scheduler"
)

type SchedulerHandler struct {
	scheduler       *scheduler.Scheduler
	defaultInterval time.Duration
}

func NewSchedulerHandler(sched *scheduler.Scheduler, defaultInterval time.Duration) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler:       sched,
		defaultInterval: defaultInterval,
	}
}

// Start launches the periodic pipeline. An optional body overrides the
// configured interval for this run.
func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	interval := h.defaultInterval

	if r.ContentLength != 0 {
		var input struct {
			IntervalSeconds int `json:"interval_seconds"`
		}
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
		interval = time.Duration(input.IntervalSeconds) * time.Second
	}

	if err := h.scheduler.Start(interval); err != nil {
		mapSchedulerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, h.scheduler.Status(), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		mapSchedulerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, h.scheduler.Status(), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, h.scheduler.Status(), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func mapSchedulerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning), errors.Is(err, scheduler.ErrNotRunning):
		conflictResponse(w, r, err.Error())
	case errors.Is(err, scheduler.ErrInvalidInterval):
		badRequestResponse(w, r, err)
	default:
		serverErrorResponse(w, r, err)
	}
}
