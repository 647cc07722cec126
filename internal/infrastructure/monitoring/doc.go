/*
Package monitoring provides Prometheus metrics for the backend.

# Overview

Every metric is registered on a registry owned by Metrics, so tests can build
as many collectors as they like. The collector tracks HTTP traffic, document
store operations, session and tab activity, automation executions, outbound
service calls with breaker state, and WebSocket connections.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	store = docstore.Observed(store, metrics)

	timer := monitoring.NewTimer(metrics, "openai", "complete")
	// ... perform call ...
	timer.StopErr(err)
*/
package monitoring
