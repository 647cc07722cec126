// Package http provides HTTP handlers and routing for the Orbit REST API.
//
// Endpoints (under /api/v1 unless noted):
//   - Health: / and /health (root), /health
//   - Auth: /auth/register, /auth/login, /auth/logout, /auth/me
//   - Sessions: /sessions, /sessions/:id, /sessions/:id/tabs
//   - Tabs: /tabs/:id, /tabs/:id/position
//   - Workflows: /workflows, /workflows/templates, /workflows/:id/{stats,execute,executions}
//   - Executions: /automation/command, /executions, /executions/:id
//   - AI: /ai/analyze, /ai/navigate, /ai/chat, /ai/suggest-workflow
//   - Client logs and metrics: /logs, /metrics/summary
//
// Every service error goes through respondError, which maps validation
// failures to 400, bad credentials to 401, absence (including resources of
// other users) to 404, conflicts to 409, provider and fetch failures to 502
// and storage outages to 503.
//
// Example Usage:
//
//	h := http.NewHandlers(users, sessions, workflows, assistant, store, summary, log)
//	http.RegisterRoutes(router, h, middleware.Auth(users, log))
package http
