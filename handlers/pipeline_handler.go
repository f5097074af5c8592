package handlers

import (
	"net/http"

	"github.com/accstats/accstats/services"
)

type PipelineHandler struct {
	pipelineService services.PipelineService
}

func NewPipelineHandler(pipelineService services.PipelineService) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
	}
}

// Run executes one full pull, ingest and rescore cycle and returns its
// report. Concurrent calls share a single run.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.pipelineService.Run(r.Context())
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
