package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the route is already behind token auth
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one operator watching the feed. An empty service filter means every service.
type Client struct {
	ID         string
	OperatorID string
	hub        *Hub
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger

	mu      sync.RWMutex
	service string
}

func (c *Client) wants(service string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.service == "" || c.service == service
}

func (c *Client) setFilter(service string) {
	c.mu.Lock()
	c.service = service
	c.mu.Unlock()
}

// ServeWs upgrades the request and streams outcomes until the client goes away.
// operatorKey names the gin context value holding the authenticated operator id.
// ?service= limits the feed to one service; clients may change it later with a
// {"event":"filter","data":{"service":"..."}} message.
func ServeWs(hub *Hub, operatorKey string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		service := c.Query("service")
		if service != "" {
			if _, ok := events.ParseService(service); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown service"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:         uuid.New().String(),
			OperatorID: c.GetString(operatorKey),
			hub:        hub,
			conn:       conn,
			send:       make(chan WSMessage, 256),
			logger:     logger,
			service:    service,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "filter":
			var payload struct {
				Service string `json:"service"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				continue
			}
			if _, ok := events.ParseService(payload.Service); ok || payload.Service == "" {
				c.setFilter(payload.Service)
			}
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
