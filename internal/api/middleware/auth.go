package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/domain/user"
)

const (
	identityKey = "orbit.identity"
	tokenKey    = "orbit.token"
)

// TokenVerifier resolves bearer tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*user.Identity, error)
}

// Auth rejects requests without a valid bearer token. The token is read from
// the Authorization header, or from the token query parameter for clients
// that cannot set headers (websocket upgrades).
func Auth(v TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		id, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, user.ErrInvalidToken) {
				log.Error("Token verification failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
				return
			}
			c.Header("WWW-Authenticate", `Bearer realm="orbit"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(identityKey, id)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// BearerToken extracts the request's token, or "".
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Identity returns the authenticated caller. It panics outside Auth.
func Identity(c *gin.Context) *user.Identity {
	return c.MustGet(identityKey).(*user.Identity)
}

// Token returns the raw bearer token of the authenticated request.
func Token(c *gin.Context) string {
	return c.GetString(tokenKey)
}
