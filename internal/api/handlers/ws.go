package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/services"
)

// WebSocketHandler upgrades connections and hands them to the hub.
// Clients may send {"sports": ["basketball"]} to filter refresh events.
type WebSocketHandler struct {
	hub      *services.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *services.Hub, origins []string) *WebSocketHandler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header
				if origin == "" || allowAll {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	h.hub.Register(conn)
}
