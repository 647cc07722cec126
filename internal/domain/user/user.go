package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

// Mode selects the product experience for a user.
type Mode string

const (
	ModePower      Mode = "power"
	ModeConsumer   Mode = "consumer"
	ModeEnterprise Mode = "enterprise"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePower, ModeConsumer, ModeEnterprise:
		return true
	}
	return false
}

// User is a stored account.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Username     string                 `json:"username"`
	UsernameKey  string                 `json:"username_key"`
	PasswordHash string                 `json:"password_hash"`
	FullName     string                 `json:"full_name,omitempty"`
	AvatarURL    string                 `json:"avatar_url,omitempty"`
	Mode         Mode                   `json:"mode"`
	Preferences  map[string]interface{} `json:"preferences"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	LastLoginAt  *time.Time             `json:"last_login_at,omitempty"`
}

// Profile is the client-facing view of a User.
type Profile struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	Username    string                 `json:"username"`
	FullName    string                 `json:"full_name,omitempty"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	Mode        Mode                   `json:"mode"`
	Preferences map[string]interface{} `json:"preferences"`
	CreatedAt   time.Time              `json:"created_at"`
	LastLoginAt *time.Time             `json:"last_login_at,omitempty"`
}

// Profile strips credentials.
func (u *User) Profile() Profile {
	prefs := u.Preferences
	if prefs == nil {
		prefs = map[string]interface{}{}
	}
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		AvatarURL:   u.AvatarURL,
		Mode:        u.Mode,
		Preferences: prefs,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// Identity is what an authenticated request carries.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Mode     Mode   `json:"mode"`
}

// Token is an issued bearer credential. Value is only ever returned once.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Mode     Mode   `json:"mode"`
}

// ProfileUpdate carries optional profile changes. Preferences are merged key by key.
type ProfileUpdate struct {
	FullName    *string                `json:"full_name"`
	AvatarURL   *string                `json:"avatar_url"`
	Mode        *Mode                  `json:"mode"`
	Preferences map[string]interface{} `json:"preferences"`
}

// Deactivator releases resources owned by a deactivated user.
type Deactivator interface {
	DeactivateUser(ctx context.Context, userID string) (int, error)
}

// tokenRecord is the stored form of an issued token, keyed by its digest.
type tokenRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}
