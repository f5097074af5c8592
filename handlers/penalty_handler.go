package handlers

import (
	"net/http"

	"github.com/accstats/accstats/middleware"
	"github.com/accstats/accstats/services"
)

type PenaltyHandler struct {
	penaltyService services.PenaltyService
}

func NewPenaltyHandler(penaltyService services.PenaltyService) *PenaltyHandler {
	return &PenaltyHandler{
		penaltyService: penaltyService,
	}
}

// CreatePenalty records a manual penalty against a driver in the
// championship from the URL. The applied_by audit field always comes from
// the authenticated account, never from the body.
func (h *PenaltyHandler) CreatePenalty(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	username, err := middleware.GetUsernameFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreatePenaltyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.ChampionshipID = championshipID
	input.AppliedBy = username

	penalty, err := h.penaltyService.Create(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"penalty": penalty}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PenaltyHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	activeOnly := queryBool(r, "active")

	penalties, err := h.penaltyService.ListByChampionship(r.Context(), championshipID, activeOnly)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"penalties": penalties, "count": len(penalties)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PenaltyHandler) DeactivatePenalty(w http.ResponseWriter, r *http.Request) {
	penaltyID, err := getIDFromURL(r, "penaltyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.penaltyService.Deactivate(r.Context(), penaltyID); err != nil {
		mapServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
