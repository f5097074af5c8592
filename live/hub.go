package live

import (
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/accstats/accstats/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

const MessageTypeStandings = "STANDINGS_UPDATED"

// StandingsMessage is the frame pushed to a championship room after a
// standings rebuild commits.
type StandingsMessage struct {
	Type           string                        `json:"type"`
	ChampionshipID int                           `json:"championship_id"`
	Standings      []models.ChampionshipStanding `json:"standings"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	room   int
	mu     sync.Mutex
	closed bool
}

// Hub fans standings snapshots out to websocket subscribers. Rooms are
// keyed by championship id and exist only while they have clients.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[int]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]bool),
		logger:     logger,
	}
}

// Run owns room membership. It must be started before the first
// Subscribe call and runs for the life of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Debug("websocket client joined",
				slog.Int("championship_id", client.room),
				slog.Int("room_size", len(h.rooms[client.room])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, known := clients[client]; known {
					client.mu.Lock()
					if !client.closed {
						close(client.send)
						client.closed = true
					}
					client.mu.Unlock()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
					h.logger.Debug("websocket client left",
						slog.Int("championship_id", client.room),
						slog.Int("room_size", len(clients)))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe attaches an upgraded connection to a championship room and
// starts its pumps.
func (h *Hub) Subscribe(conn *websocket.Conn, championshipID int) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		room: championshipID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastStandings delivers a committed standings snapshot to every
// subscriber of the championship. Slow clients are skipped, not blocked on.
func (h *Hub) BroadcastStandings(championshipID int, standings []models.ChampionshipStanding) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[championshipID]
	if !ok || len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(StandingsMessage{
		Type:           MessageTypeStandings,
		ChampionshipID: championshipID,
		Standings:      standings,
	})
	if err != nil {
		h.logger.Error("failed to marshal standings frame",
			slog.Int("championship_id", championshipID), slog.Any("error", err))
		return
	}

	h.logger.Debug("broadcasting standings",
		slog.Int("championship_id", championshipID),
		slog.Int("subscribers", len(clients)))
	for client := range clients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Full buffer means a stalled client; it will be dropped by
			// its own pumps.
		}
		client.mu.Unlock()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Subscribers are read-only; inbound frames only keep the connection
	// alive.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read failed",
					slog.Int("championship_id", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything queued behind this frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
