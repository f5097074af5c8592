package handlers

import (
	"net/http"
	"strconv"

	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/services"
)

type CompetitionHandler struct {
	competitionService services.CompetitionService
	scoringService     services.ScoringService
}

func NewCompetitionHandler(competitionService services.CompetitionService, scoringService services.ScoringService) *CompetitionHandler {
	return &CompetitionHandler{
		competitionService: competitionService,
		scoringService:     scoringService,
	}
}

func (h *CompetitionHandler) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	filter := repositories.CompetitionFilter{
		TrackName: r.URL.Query().Get("track"),
		Limit:     queryInt(r, "limit", 0),
		Offset:    queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("championshipID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(w, r, errInvalidQueryParam("championshipID", raw))
			return
		}
		filter.ChampionshipID = &id
	}
	if raw := r.URL.Query().Get("completed"); raw != "" {
		completed := queryBool(r, "completed")
		filter.Completed = &completed
	}

	competitions, err := h.competitionService.List(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"competitions": competitions, "count": len(competitions)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	detail, err := h.competitionService.Get(r.Context(), competitionID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, detail, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.competitionService.Results(r.Context(), competitionID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, results, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) ScoreCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.scoringService.ScoreCompetition(r.Context(), competitionID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetPointsSystem accepts either a named system or an inline JSON position
// map in points_system. A null value resets the competition to the default
// resolution chain.
func (h *CompetitionHandler) SetPointsSystem(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PointsSystem *string `json:"points_system"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.SetPointsSystem(r.Context(), competitionID, input.PointsSystem)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"competition": competition}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitionHandler) DeleteCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.competitionService.Delete(r.Context(), competitionID); err != nil {
		mapServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
