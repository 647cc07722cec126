// Package logging builds the zap logger shared by every Orbit component.
//
// Production mode writes JSON; development mode writes colored console
// output with stack traces on errors. Components receive a *zap.Logger from
// Logger.Component, which names the emitting subsystem, and log with typed
// fields rather than formatted strings. WithTrace adds the trace and span
// ids of a request context to a component logger.
//
// Example Usage:
//
//	logger, err := logging.New(cfg.Logging, logging.Options{Service: "orbit-backend", Version: info.Version})
//	sessions := logger.Component("session")
//	logging.WithTrace(sessions, ctx).Error("Failed to push tab", zap.String("session_id", sid), zap.Error(err))
package logging
