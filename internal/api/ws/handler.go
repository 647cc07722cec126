package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message is a client request.
type Message struct {
	Type        string `json:"type"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// Handler upgrades authenticated requests and serves them from the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler creates a websocket handler. An empty origins list, or one
// containing "*", accepts any origin.
func NewHandler(hub *Hub, origins []string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
		log: log,
	}
}

// HandleConnection handles WebSocket upgrade and messages. It must run
// behind middleware.Auth.
func (h *Handler) HandleConnection(c *gin.Context) {
	id := middleware.Identity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:     uuid.NewString(),
		userID: id.UserID,
		send:   make(chan []byte, sendBuffer),
	}
	h.hub.register(cl)
	if h.hub.metrics != nil {
		h.hub.metrics.IncWSConnections()
	}
	log := h.log.With(zap.String("client_id", cl.id), zap.String("user_id", cl.userID))
	log.Debug("WebSocket client connected")

	done := make(chan struct{})
	go h.writePump(conn, cl, done)

	h.reply(cl, gin.H{"type": "system", "message": "connected", "client_id": cl.id})
	h.readPump(conn, cl, log)

	h.hub.unregister(cl)
	<-done
	if h.hub.metrics != nil {
		h.hub.metrics.DecWSConnections()
	}
	log.Debug("WebSocket client disconnected")
}

func (h *Handler) readPump(conn *websocket.Conn, cl *client, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(cl, "invalid message")
			continue
		}
		if h.hub.metrics != nil {
			h.hub.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "ping":
			h.reply(cl, gin.H{"type": "pong"})
		case "subscribe":
			if err := utils.ValidateID(msg.ExecutionID, "execution_id", true); err != nil {
				h.sendError(cl, err.Error())
				continue
			}
			cl.subscribe(msg.ExecutionID)
			h.reply(cl, gin.H{"type": "subscribed", "execution_id": msg.ExecutionID})
		case "unsubscribe":
			cl.subscribe("")
			h.reply(cl, gin.H{"type": "unsubscribed"})
		default:
			h.sendError(cl, "unknown message type")
		}
	}
}

// writePump owns every write to conn.
func (h *Handler) writePump(conn *websocket.Conn, cl *client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case data, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a direct answer to cl.
func (h *Handler) reply(cl *client, data gin.H) {
	data["timestamp"] = time.Now().Unix()
	payload, err := sonic.Marshal(data)
	if err != nil {
		return
	}
	select {
	case cl.send <- payload:
	default:
	}
}

func (h *Handler) sendError(cl *client, msg string) {
	h.reply(cl, gin.H{"type": "error", "message": msg})
}
