// Package realtime streams worker outcome reports to connected operators over websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/worker"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	eventOutcome = "outcome"
)

// Bus carries encoded reports between processes.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handler func(payload []byte)) (cancel func(), err error)
}

// Hub maintains the connected clients and fans reports out to them.
// With a Bus, Publish goes through the bus and every subscribed hub delivers
// locally, so each report reaches each client once whichever process produced it.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	bus     Bus
	cancel  func()
}

var _ worker.Publisher = (*Hub)(nil)

// NewHub creates a hub. bus may be nil for a single process.
func NewHub(logger *zap.Logger, bus Bus) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger, bus: bus}
}

// Start subscribes the hub to the bus. Processes that only publish need not call it.
func (h *Hub) Start(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	cancel, err := h.bus.Subscribe(ctx, h.deliver)
	if err != nil {
		return fmt.Errorf("subscribe outcome bus: %w", err)
	}
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	return nil
}

// Stop cancels the bus subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Publish implements worker.Publisher.
func (h *Hub) Publish(ctx context.Context, r worker.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if h.bus != nil {
		return h.bus.Publish(ctx, data)
	}
	h.deliver(data)
	return nil
}

func (h *Hub) deliver(data []byte) {
	var r worker.Report
	if err := json.Unmarshal(data, &r); err != nil {
		h.logger.Warn("dropping malformed outcome report", zap.Error(err))
		return
	}
	msg := WSMessage{Event: eventOutcome, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(r.Service) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("feed client connected", zap.String("client_id", c.ID), zap.String("operator_id", c.OperatorID))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("feed client disconnected", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
