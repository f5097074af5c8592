package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/services"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter := repositories.SessionFilter{
		TrackName:   r.URL.Query().Get("track"),
		SessionType: r.URL.Query().Get("type"),
		Unassigned:  queryBool(r, "unassigned"),
		Limit:       queryInt(r, "limit", 0),
		Offset:      queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("competitionID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(w, r, errInvalidQueryParam("competitionID", raw))
			return
		}
		filter.CompetitionID = &id
	}

	sessions, err := h.sessionService.List(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"sessions": sessions, "count": len(sessions)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	detail, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, detail, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
