// Package ws streams automation execution events to browser clients.
//
// Clients connect to /ws with a bearer token (header or ?token=) and
// receive every execution transition of their own user. The Hub implements
// automation.Notifier; each client has a bounded queue and a dedicated
// writer goroutine.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - subscribe: Narrow the stream to one execution_id
//   - unsubscribe: Receive every execution again
//
// Message Types (Server → Client):
//   - system: Connection established
//   - pong, subscribed, unsubscribed: Acknowledgements
//   - execution: Execution state change
//   - error: Rejected message
//
// Example Usage:
//
//	hub := ws.NewHub(metrics, log)
//	handler := ws.NewHandler(hub, cfg.CORS.Origins, log)
//	router.GET("/ws", middleware.Auth(users, log), handler.HandleConnection)
package ws
