package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the REST API. auth guards every route except
// register, login and the health endpoints.
func RegisterRoutes(router gin.IRouter, h *Handlers, auth gin.HandlerFunc) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health)
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)

	api := v1.Group("", auth)
	{
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/me", h.Me)
		api.PATCH("/auth/me", h.UpdateMe)
		api.DELETE("/auth/me", h.DeleteMe)

		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.PATCH("/sessions/:id", h.UpdateSession)
		api.DELETE("/sessions/:id", h.DeleteSession)
		api.POST("/sessions/:id/tabs", h.CreateTab)
		api.GET("/sessions/:id/tabs", h.ListTabs)

		api.PATCH("/tabs/:id/position", h.UpdateTabPosition)
		api.PATCH("/tabs/:id", h.UpdateTab)
		api.DELETE("/tabs/:id", h.CloseTab)

		api.POST("/workflows", h.CreateWorkflow)
		api.GET("/workflows", h.ListWorkflows)
		api.GET("/workflows/templates", h.ListTemplates)
		api.GET("/workflows/:id", h.GetWorkflow)
		api.DELETE("/workflows/:id", h.DeleteWorkflow)
		api.GET("/workflows/:id/stats", h.WorkflowStats)
		api.POST("/workflows/:id/execute", h.ExecuteWorkflow)
		api.GET("/workflows/:id/executions", h.ListWorkflowExecutions)

		api.POST("/automation/command", h.ExecuteCommand)
		api.GET("/executions", h.ListExecutions)
		api.GET("/executions/:id", h.GetExecution)

		api.POST("/ai/analyze", h.Analyze)
		api.POST("/ai/navigate", h.Navigate)
		api.POST("/ai/chat", h.Chat)
		api.POST("/ai/suggest-workflow", h.SuggestWorkflow)

		api.POST("/logs", h.StreamLogs)
		api.GET("/metrics/summary", h.GetMetricsSummary)
	}
}
