package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accstats/accstats/services"
)

type PointsHandler struct {
	pointsService services.PointsSystemService
}

func NewPointsHandler(pointsService services.PointsSystemService) *PointsHandler {
	return &PointsHandler{
		pointsService: pointsService,
	}
}

func (h *PointsHandler) ListPointsSystems(w http.ResponseWriter, r *http.Request) {
	activeOnly := queryBool(r, "active")

	systems, err := h.pointsService.List(r.Context(), activeOnly)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"points_systems": systems, "count": len(systems)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PointsHandler) GetPointsSystem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	system, err := h.pointsService.GetByName(r.Context(), name)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"points_system": system}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PointsHandler) CreatePointsSystem(w http.ResponseWriter, r *http.Request) {
	var input services.PointsSystemInput

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	system, err := h.pointsService.Create(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"points_system": system}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PointsHandler) UpdatePointsSystem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var input services.PointsSystemInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	system, err := h.pointsService.Update(r.Context(), name, input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"points_system": system}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PointsHandler) SetPointsSystemActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var input struct {
		Active bool `json:"active"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.pointsService.SetActive(r.Context(), name, input.Active); err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"name": name, "active": input.Active}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
