package handlers

import (
	"net/http"

	"github.com/accstats/accstats/services"
)

type GroupingHandler struct {
	groupingService services.GroupingService
}

func NewGroupingHandler(groupingService services.GroupingService) *GroupingHandler {
	return &GroupingHandler{
		groupingService: groupingService,
	}
}

// Preview returns the candidate race weekends without writing anything.
func (h *GroupingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.groupingService.GroupUnassigned(r.Context())
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"clusters": clusters, "count": len(clusters)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GroupingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var input services.AssignClusterInput

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.groupingService.AssignCluster(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
