package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/user"
)

// LoginRequest accepts an email or username as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      user.Profile `json:"user"`
}

// Register creates an account and signs it in
func (h *Handlers) Register(c *gin.Context) {
	var req user.RegisterInput
	if !bind(c, &req) {
		return
	}

	u, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.signIn(c, http.StatusCreated, u)
}

// Login exchanges credentials for a token
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	u, err := h.users.Authenticate(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.signIn(c, http.StatusOK, u)
}

func (h *Handlers) signIn(c *gin.Context, status int, u *user.User) {
	tok, err := h.users.IssueToken(c.Request.Context(), u)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, AuthResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt, User: u.Profile()})
}

// Logout revokes the presented token
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.users.RevokeToken(c.Request.Context(), middleware.Token(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the caller's profile
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if u == nil {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, u.Profile())
}

// UpdateMe applies profile changes
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req user.ProfileUpdate
	if !bind(c, &req) {
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), middleware.Identity(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Profile())
}

// DeleteMe deactivates the caller's account
func (h *Handlers) DeleteMe(c *gin.Context) {
	id := middleware.Identity(c)
	if err := h.users.Deactivate(c.Request.Context(), id.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("User deactivated", zap.String("user_id", id.UserID))
	c.Status(http.StatusNoContent)
}
