package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

const (
	// Time allowed to write a message to the peer
	wsWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	wsPongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than wsPongWait)
	wsPingPeriod = (wsPongWait * 9) / 10

	// Maximum message size allowed from peer
	wsMaxMessageSize = 512

	// Buffer size for outbound messages per client
	wsSendBuffer = 32
)

// RefreshEvent announces freshly fetched data to websocket subscribers.
type RefreshEvent struct {
	Sport    sports.Sport `json:"sport"`
	League   string       `json:"league"`
	Resource string       `json:"resource"`
	Records  int          `json:"records"`
	Status   string       `json:"status"`
	At       time.Time    `json:"at"`
}

// Hub fans refresh events out to connected websocket clients. Clients
// that cannot keep up are dropped rather than allowed to block the
// broadcast loop.
type Hub struct {
	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
	logger     *logrus.Entry
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger.WithField("component", "hub"),
	}
}

// Run owns the client set. It exits when ctx is cancelled, closing every
// remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.WithField("client", client.id).Debug("Client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(int64(len(h.clients)))
			h.logger.WithField("client", client.id).Debug("Client disconnected")

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow client, drop it
					delete(h.clients, client)
					close(client.send)
					h.logger.WithField("client", client.id).Warn("Dropping slow websocket client")
				}
			}
			h.count.Store(int64(len(h.clients)))

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(0)
			close(h.done)
			return
		}
	}
}

// Broadcast queues an event for delivery. Never blocks the caller; if
// the hub is backed up the event is dropped.
func (h *Hub) Broadcast(event RefreshEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode refresh event")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast buffer full, dropping refresh event")
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// WSClient is one websocket subscriber. An optional sport filter limits
// which refresh events it receives.
type WSClient struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	sports atomic.Pointer[[]string]
}

// Register attaches a websocket connection to the hub and starts its
// read and write pumps. Returns nil if the hub has already shut down.
func (h *Hub) Register(conn *websocket.Conn) *WSClient {
	client := &WSClient{
		id:   uuid.New().String()[:8],
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}
	go client.writePump()
	go client.readPump()
	return client
}

// wants reports whether the client's sport filter matches the event.
// Filter checks run on the raw payload so the hub marshals only once.
func (c *WSClient) wants(payload []byte) bool {
	filter := c.sports.Load()
	if filter == nil || len(*filter) == 0 {
		return true
	}
	var event RefreshEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return true
	}
	for _, s := range *filter {
		if strings.EqualFold(s, string(event.Sport)) {
			return true
		}
	}
	return false
}

type wsSubscribeMessage struct {
	Sports []string `json:"sports"`
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg wsSubscribeMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("client", c.id).WithError(err).Debug("Unexpected websocket close")
			}
			return
		}
		filter := msg.Sports
		c.sports.Store(&filter)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
