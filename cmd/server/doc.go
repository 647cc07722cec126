// Package main is the entry point for the Orbit browser backend.
//
// The server provides:
//   - Account registration and bearer token authentication
//   - Browsing sessions with positioned tabs
//   - Automation workflows, templates and execution history
//   - AI content analysis, navigation help, chat and workflow suggestions
//   - WebSocket push of execution results
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server --port 8000 --store-driver postgres --store-dsn postgres://...
//
//	# Development mode (colored logs, debug level, in-memory store)
//	./server --dev --store-driver memory
//
// Build metadata is injected with:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%FT%TZ)"
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
