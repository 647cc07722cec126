package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
)

// MaxClientLogEntries bounds one log batch.
const MaxClientLogEntries = 100

// ClientLogEntry is one log line from the browser client
type ClientLogEntry struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// ClientLogBatch is a batch of client log entries
type ClientLogBatch struct {
	Source  string           `json:"source"`
	Entries []ClientLogEntry `json:"entries"`
}

// StreamLogs records browser client logs through the server logger
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req ClientLogBatch
	if !bind(c, &req) {
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided", "field": "entries"})
		return
	}
	if len(req.Entries) > MaxClientLogEntries {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("entries at most %d per batch", MaxClientLogEntries),
			"field": "entries",
		})
		return
	}
	if req.Source == "" {
		req.Source = "client"
	}

	logger := h.log.With(
		zap.String("source", req.Source),
		zap.String("user_id", middleware.Identity(c).UserID),
	)
	for _, entry := range req.Entries {
		logClientEntry(logger, entry)
	}

	c.JSON(http.StatusAccepted, gin.H{"entries_received": len(req.Entries)})
}

func logClientEntry(logger *zap.Logger, entry ClientLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields,
		zap.String("client_log_id", entry.ID),
		zap.String("client_timestamp", entry.Timestamp),
	)
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug", "verbose":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
