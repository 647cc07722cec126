package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// ExecuteRequest carries optional placeholder values for a run.
type ExecuteRequest struct {
	Variables map[string]string `json:"variables"`
}

// CreateWorkflow stores a workflow
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req automation.WorkflowInput
	if !bind(c, &req) {
		return
	}

	wf, err := h.automation.CreateWorkflow(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wf)
}

// ListWorkflows lists the caller's workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	workflows, err := h.automation.ListWorkflows(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// ListTemplates lists shared templates, optionally by category
func (h *Handlers) ListTemplates(c *gin.Context) {
	category := c.Query("category")
	if err := utils.ValidateCategory(category, false); err != nil {
		h.respondError(c, err)
		return
	}

	templates, err := h.automation.ListTemplates(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// GetWorkflow returns one owned workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.automation.GetWorkflow(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if wf == nil {
		notFound(c, "workflow")
		return
	}
	c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow deactivates an owned workflow
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	ok, err := h.automation.DeleteWorkflow(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		notFound(c, "workflow")
		return
	}
	c.Status(http.StatusNoContent)
}

// WorkflowStats summarizes a workflow's runs
func (h *Handlers) WorkflowStats(c *gin.Context) {
	stats, err := h.automation.WorkflowStats(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExecuteWorkflow runs a workflow and returns the finished execution
func (h *Handlers) ExecuteWorkflow(c *gin.Context) {
	var req ExecuteRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	exec, err := h.automation.ExecuteWorkflow(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID, req.Variables)
	if err != nil {
		if exec == nil {
			h.respondError(c, err)
			return
		}
		// The run finished; only the workflow counters are stale
		h.log.Warn("Workflow counters not updated", zap.String("execution_id", exec.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, exec)
}

// ListWorkflowExecutions lists a workflow's runs, newest first
func (h *Handlers) ListWorkflowExecutions(c *gin.Context) {
	execs, err := h.automation.ListExecutions(c.Request.Context(), middleware.Identity(c).UserID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, execs)
}

// ExecuteCommand runs one ad-hoc action
func (h *Handlers) ExecuteCommand(c *gin.Context) {
	var req automation.CommandInput
	if !bind(c, &req) {
		return
	}

	exec, err := h.automation.ExecuteCommand(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

// ListExecutions lists every run of the caller
func (h *Handlers) ListExecutions(c *gin.Context) {
	execs, err := h.automation.ListExecutions(c.Request.Context(), middleware.Identity(c).UserID, "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, execs)
}

// GetExecution returns one run
func (h *Handlers) GetExecution(c *gin.Context) {
	exec, err := h.automation.GetExecution(c.Request.Context(), c.Param("id"), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if exec == nil {
		notFound(c, "execution")
		return
	}
	c.JSON(http.StatusOK, exec)
}
