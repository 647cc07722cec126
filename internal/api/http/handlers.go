package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/assistant"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/user"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	users      *user.Service
	sessions   *session.Manager
	automation *automation.Manager
	assistant  *assistant.Service
	store      Pinger
	metrics    *MetricsSummary
	log        *zap.Logger
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(
	users *user.Service,
	sessions *session.Manager,
	automation *automation.Manager,
	assistant *assistant.Service,
	store Pinger,
	metrics *MetricsSummary,
	log *zap.Logger,
) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		users:      users,
		sessions:   sessions,
		automation: automation,
		assistant:  assistant,
		store:      store,
		metrics:    metrics,
		log:        log,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Orbit Browser Backend",
		"version": Version,
	})
}

// Health pings the document store
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"database":    "connected",
		"ai_provider": h.assistant.Provider(),
	})
}

// bind decodes the JSON body into v, answering 400 on failure.
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// notFound answers the uniform 404 for absent or foreign resources.
func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// respondError maps a service error to its HTTP answer.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	var pe *ai.ProviderError
	var fe *fetch.Error

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrTabNotFound),
		automation.IsNotFound(err),
		errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, user.ErrUsernameTaken),
		errors.Is(err, docstore.ErrDuplicate),
		errors.Is(err, automation.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case docstore.IsUnavailable(err):
		logging.WithTrace(h.log, c.Request.Context()).Error("Document store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	case errors.As(err, &pe):
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI provider failed", "reason": pe.Reason})
	case errors.As(err, &fe):
		c.JSON(http.StatusBadGateway, gin.H{"error": "page fetch failed", "reason": fe.Reason, "status_code": fe.StatusCode})
	default:
		logging.WithTrace(h.log, c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
