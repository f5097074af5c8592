package handlers

import (
	"net/http"

	"github.com/accstats/accstats/services"
)

type ChampionshipHandler struct {
	championshipService services.ChampionshipService
	standingsService    services.StandingsService
}

func NewChampionshipHandler(championshipService services.ChampionshipService, standingsService services.StandingsService) *ChampionshipHandler {
	return &ChampionshipHandler{
		championshipService: championshipService,
		standingsService:    standingsService,
	}
}

func (h *ChampionshipHandler) CreateChampionship(w http.ResponseWriter, r *http.Request) {
	var input services.CreateChampionshipInput

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	championship, err := h.championshipService.Create(r.Context(), input)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"championship": championship}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChampionshipHandler) ListChampionships(w http.ResponseWriter, r *http.Request) {
	championships, err := h.championshipService.List(r.Context())
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"championships": championships, "count": len(championships)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChampionshipHandler) GetChampionship(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	championship, err := h.championshipService.GetByID(r.Context(), championshipID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"championship": championship}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChampionshipHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.standingsService.ListStandings(r.Context(), championshipID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"standings": standings, "count": len(standings)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ScoreChampionship recomputes the standings table from the scored
// competitions and broadcasts the fresh table to websocket subscribers.
func (h *ChampionshipHandler) ScoreChampionship(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.standingsService.ScoreChampionship(r.Context(), championshipID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
