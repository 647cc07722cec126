package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/monitoring"
)

// sendBuffer bounds the messages queued for one slow client.
const sendBuffer = 64

// Hub fans execution events out to the websocket clients of their owner.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*client
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[string]*client),
		metrics: metrics,
		log:     log,
	}
}

// client is one connected socket.
type client struct {
	id     string
	userID string
	send   chan []byte

	mu          sync.RWMutex
	executionID string
}

func (c *client) subscribe(executionID string) {
	c.mu.Lock()
	c.executionID = executionID
	c.mu.Unlock()
}

func (c *client) wants(ev automation.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.executionID == "" || (ev.Execution != nil && ev.Execution.ID == c.executionID)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[string]*client)
	}
	h.clients[c.userID][c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.clients[c.userID]; set != nil {
		if _, ok := set[c.id]; ok {
			delete(set, c.id)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Publish implements automation.Notifier. Events for a client whose queue
// is full are dropped.
func (h *Hub) Publish(userID string, ev automation.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[userID]
	if len(set) == 0 {
		return
	}

	data, err := sonic.Marshal(eventMessage{Type: ev.Type, Execution: ev.Execution, Timestamp: time.Now().Unix()})
	if err != nil {
		h.log.Error("Failed to encode event", zap.Error(err))
		return
	}

	for _, c := range set {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", ev.Type)
			}
		default:
			h.log.Warn("Dropping event for slow client",
				zap.String("client_id", c.id),
				zap.String("user_id", userID))
		}
	}
}

// eventMessage is the wire form of an execution event.
type eventMessage struct {
	Type      string                `json:"type"`
	Execution *automation.Execution `json:"execution"`
	Timestamp int64                 `json:"timestamp"`
}
