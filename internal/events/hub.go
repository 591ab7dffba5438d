package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 2 * time.Second

// Hub fans JSON messages out to every connected WebSocket client. Writes
// happen under mu, so each connection has at most one writer.
type Hub struct {
	mu        sync.Mutex
	wsClients map[*websocket.Conn]struct{}
	logger    zerolog.Logger
}

type Stats struct {
	WSClients int `json:"ws_clients"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		wsClients: make(map[*websocket.Conn]struct{}),
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug().Err(err).Msg("dropping ws client")
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.wsClients)
}

func (h *Hub) Stats() Stats {
	return Stats{WSClients: h.Count()}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.wsClients {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}
