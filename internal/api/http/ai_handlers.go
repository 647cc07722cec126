package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/assistant"
)

// Analyze summarizes or interrogates page content
func (h *Handlers) Analyze(c *gin.Context) {
	var req assistant.AnalyzeRequest
	if !bind(c, &req) {
		return
	}

	analysis, err := h.assistant.AnalyzeContent(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Navigate turns a natural-language request into a browser intent
func (h *Handlers) Navigate(c *gin.Context) {
	var req assistant.NavigateRequest
	if !bind(c, &req) {
		return
	}

	intent, err := h.assistant.Navigate(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// Chat answers a message in the context of a session
func (h *Handlers) Chat(c *gin.Context) {
	var req assistant.ChatRequest
	if !bind(c, &req) {
		return
	}

	reply, err := h.assistant.Chat(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// SuggestWorkflow drafts a workflow for a goal; the draft is not stored
func (h *Handlers) SuggestWorkflow(c *gin.Context) {
	var req assistant.SuggestRequest
	if !bind(c, &req) {
		return
	}

	draft, err := h.assistant.SuggestWorkflow(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}
