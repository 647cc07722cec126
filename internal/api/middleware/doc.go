// Package middleware provides the gin middleware of the HTTP edge.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - BodyLimit: Request body size cap
//   - Auth: Bearer token authentication
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.CORSOptions{Origins: origins}))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	api.Use(middleware.Auth(users, log))
package middleware
