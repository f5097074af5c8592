package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/accstats/accstats/live"
	"github.com/accstats/accstats/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Standings are public reads; the socket never accepts commands.
		return true
	},
}

type WebSocketHandler struct {
	hub                 *live.Hub
	championshipService services.ChampionshipService
}

func NewWebSocketHandler(hub *live.Hub, championshipService services.ChampionshipService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                 hub,
		championshipService: championshipService,
	}
}

// ServeStandings subscribes the caller to live standings updates for one
// championship. Clients connect to /ws/standings/{championshipID}.
func (h *WebSocketHandler) ServeStandings(w http.ResponseWriter, r *http.Request) {
	championshipID, err := getIDFromURL(r, "championshipID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.championshipService.GetByID(r.Context(), championshipID); err != nil {
		mapServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Warn("websocket upgrade failed",
			slog.Int("championship_id", championshipID), slog.Any("error", err))
		return
	}

	h.hub.Subscribe(conn, championshipID)
}
