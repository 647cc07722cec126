package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
)

// CORSOptions configures cross-origin access for the browser shell.
type CORSOptions struct {
	// Origins lists allowed origins. Empty or "*" allows all of them.
	Origins []string
	MaxAge  time.Duration
}

// CORS answers preflights and tags responses for the allowed origins.
// Credentials are only allowed when the origins are explicit.
func CORS(opts CORSOptions) gin.HandlerFunc {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 12 * time.Hour
	}

	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Authorization",
			"Content-Type",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
			tracing.HeaderTraceID,
			tracing.HeaderSpanID,
		},
		ExposeHeaders: []string{tracing.HeaderTraceID, "Retry-After", "WWW-Authenticate"},
		MaxAge:        opts.MaxAge,
	}
	if allowsAll(opts.Origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = opts.Origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func allowsAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
