package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
)

// CreateSessionRequest names a new session.
type CreateSessionRequest struct {
	Name string `json:"name"`
}

// PositionRequest moves a tab on the canvas. Both coordinates are required.
type PositionRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// CreateSession opens a new browser session
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	s, err := h.sessions.CreateSession(c.Request.Context(), middleware.Identity(c).UserID, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// ListSessions lists the caller's active sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession returns one session with its tabs
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if s == nil {
		notFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateSession renames a session or changes its layout, AI context or active tab
func (h *Handlers) UpdateSession(c *gin.Context) {
	var req session.SessionUpdate
	if !bind(c, &req) {
		return
	}

	s, err := h.sessions.UpdateSession(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteSession deactivates a session
func (h *Handlers) DeleteSession(c *gin.Context) {
	ok, err := h.sessions.DeleteSession(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		notFound(c, "session")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateTab opens a tab in a session
func (h *Handlers) CreateTab(c *gin.Context) {
	var req session.TabInput
	if !bind(c, &req) {
		return
	}

	tab, err := h.sessions.CreateTab(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tab)
}

// ListTabs lists a session's tabs
func (h *Handlers) ListTabs(c *gin.Context) {
	tabs, err := h.sessions.ListTabs(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tabs)
}

// UpdateTabPosition moves a tab bubble
func (h *Handlers) UpdateTabPosition(c *gin.Context) {
	var req PositionRequest
	if !bind(c, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position requires x and y", "field": "position"})
		return
	}

	tabID := c.Param("id")
	if err := h.sessions.UpdateTabPosition(c.Request.Context(), tabID, *req.X, *req.Y, middleware.Identity(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tab_id":   tabID,
		"position": session.Position{X: *req.X, Y: *req.Y},
	})
}

// UpdateTab changes a tab's url, title, flags or metadata
func (h *Handlers) UpdateTab(c *gin.Context) {
	var req session.TabUpdate
	if !bind(c, &req) {
		return
	}

	tab, err := h.sessions.UpdateTab(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tab)
}

// CloseTab removes a tab from its session
func (h *Handlers) CloseTab(c *gin.Context) {
	if err := h.sessions.CloseTab(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
