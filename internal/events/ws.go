package events

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// NewUpgrader accepts same-origin requests, requests without an Origin
// header and the listed origins. A "*" entry allows everything.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] {
				return true
			}
			if allowed[strings.TrimRight(strings.ToLower(origin), "/")] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

func WSHandler(hub *Hub, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response
			return
		}

		// welcome goes out before the hub can write to this conn
		_ = ws.WriteJSON(Welcome{Type: TypeWelcome, Transport: "websocket", Clients: hub.Count() + 1})
		hub.AddWS(ws)
		hub.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("ws client connected")

		// ignore incoming messages; a read error means the client went away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.logger.Info().Str("remote", c.Request.RemoteAddr).Msg("ws client disconnected")
	}
}
