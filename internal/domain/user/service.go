package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/id"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Collection names
const (
	UsersCollection  = "users"
	TokensCollection = "auth_tokens"
	KeysCollection   = "user_keys"
)

// Options tunes the service.
type Options struct {
	TokenTTL   time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Service manages accounts and tokens.
type Service struct {
	users  docstore.Collection
	tokens docstore.Collection
	keys   docstore.Collection
	opts   Options
	log    *zap.Logger

	mu           sync.RWMutex
	deactivators []Deactivator
}

// NewService creates the identity service over store.
func NewService(store docstore.Store, opts Options, log *zap.Logger) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:  docstore.Active(store.Collection(UsersCollection), "is_active", docstore.Stamp("updated_at", opts.Now)),
		tokens: store.Collection(TokensCollection),
		keys:   store.Collection(KeysCollection),
		opts:   opts,
		log:    log,
	}
}

// AddDeactivator registers a collaborator notified on user deactivation.
func (s *Service) AddDeactivator(d Deactivator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivators = append(s.deactivators, d)
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

func emailKey(email string) string       { return "email:" + strings.ToLower(strings.TrimSpace(email)) }
func usernameKey(username string) string { return "username:" + strings.ToLower(username) }

// Register creates an account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	if err := utils.ValidateEmail(in.Email, true); err != nil {
		return nil, err
	}
	if err := utils.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := utils.ValidateString(in.FullName, "full_name", 0, utils.MaxNameLength, false); err != nil {
		return nil, err
	}
	if in.Mode == "" {
		in.Mode = ModeConsumer
	}
	if !in.Mode.Valid() {
		return nil, utils.Invalid("mode", "must be one of power, consumer, enterprise")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	u := &User{
		ID:           id.NewUserID().String(),
		Email:        in.Email,
		Username:     in.Username,
		UsernameKey:  strings.ToLower(in.Username),
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Mode:         in.Mode,
		Preferences:  map[string]interface{}{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.claim(ctx, emailKey(u.Email), u.ID, ErrEmailTaken); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, usernameKey(u.Username), u.ID, ErrUsernameTaken); err != nil {
		s.release(ctx, emailKey(u.Email))
		return nil, err
	}

	doc, err := docstore.Encode(u)
	if err != nil {
		return nil, err
	}
	if err := s.users.InsertOne(ctx, doc); err != nil {
		s.release(ctx, emailKey(u.Email))
		s.release(ctx, usernameKey(u.Username))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("User registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (s *Service) claim(ctx context.Context, key, userID string, taken error) error {
	err := s.keys.InsertOne(ctx, docstore.Document{"id": key, "user_id": userID})
	if errors.Is(err, docstore.ErrDuplicate) {
		return taken
	}
	if err != nil {
		return fmt.Errorf("failed to reserve %s: %w", strings.SplitN(key, ":", 2)[0], err)
	}
	return nil
}

func (s *Service) release(ctx context.Context, key string) {
	if _, err := s.keys.DeleteOne(ctx, docstore.Filter{"id": key}); err != nil {
		s.log.Warn("Failed to release user key", zap.String("key", key), zap.Error(err))
	}
}

// Authenticate checks credentials by email or username.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	filter := docstore.Filter{"username_key": strings.ToLower(identifier)}
	if strings.Contains(identifier, "@") {
		filter = docstore.Filter{"email": strings.ToLower(identifier)}
	}

	u, err := docstore.Get[User](ctx, s.users, filter)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if _, err := s.users.UpdateOne(ctx, docstore.Filter{"id": u.ID}, docstore.NewMutation().Set("last_login_at", now)); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	u.LastLoginAt = &now
	return u, nil
}

// IssueToken creates a bearer token for u.
func (s *Service) IssueToken(ctx context.Context, u *User) (*Token, error) {
	value, err := utils.NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	rec := tokenRecord{
		ID:        utils.HashToken(value),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TokenTTL),
	}
	doc, err := docstore.Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return &Token{Value: value, ExpiresAt: rec.ExpiresAt}, nil
}

// VerifyToken resolves a bearer token to an identity.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	rec, err := docstore.Get[tokenRecord](ctx, s.tokens, docstore.Filter{"id": utils.HashToken(token)})
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Revoked || !s.now().Before(rec.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	u, err := docstore.Get[User](ctx, s.users, docstore.Filter{"id": rec.UserID})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: u.ID, Username: u.Username, Mode: u.Mode}, nil
}

// RevokeToken invalidates a token. Unknown tokens are ignored.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := s.tokens.UpdateOne(ctx, docstore.Filter{"id": utils.HashToken(token)}, docstore.NewMutation().Set("revoked", true))
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Get returns an active user, or nil when absent.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return docstore.Get[User](ctx, s.users, docstore.Filter{"id": userID})
}

// UpdateProfile applies upd and returns the refreshed user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	m := docstore.NewMutation()

	if upd.FullName != nil {
		if err := utils.ValidateString(*upd.FullName, "full_name", 0, utils.MaxNameLength, false); err != nil {
			return nil, err
		}
		m.Set("full_name", *upd.FullName)
	}
	if upd.AvatarURL != nil {
		if err := utils.ValidateURL(*upd.AvatarURL, "avatar_url", false); err != nil {
			return nil, err
		}
		m.Set("avatar_url", *upd.AvatarURL)
	}
	if upd.Mode != nil {
		if !upd.Mode.Valid() {
			return nil, utils.Invalid("mode", "must be one of power, consumer, enterprise")
		}
		m.Set("mode", *upd.Mode)
	}
	if len(upd.Preferences) > 0 {
		if err := utils.ValidateMap(upd.Preferences, "preferences"); err != nil {
			return nil, err
		}
		for k, v := range upd.Preferences {
			if k == "" || strings.Contains(k, ".") {
				return nil, utils.Invalid("preferences", "key %q is not allowed", k)
			}
			m.Set("preferences."+k, v)
		}
	}
	m.Set("updated_at", s.now())

	res, err := s.users.UpdateOne(ctx, docstore.Filter{"id": userID}, m)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if res.Matched == 0 {
		return nil, ErrUserNotFound
	}
	return s.Get(ctx, userID)
}

// Deactivate soft-deletes the user, revokes their tokens and releases
// owned sessions and workflows.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	n, err := s.users.DeleteOne(ctx, docstore.Filter{"id": userID})
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	if _, err := s.tokens.UpdateMany(ctx, docstore.Filter{"user_id": userID}, docstore.NewMutation().Set("revoked", true)); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	s.mu.RLock()
	deactivators := append([]Deactivator(nil), s.deactivators...)
	s.mu.RUnlock()

	var errs []error
	for _, d := range deactivators {
		count, err := d.DeactivateUser(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Debug("Released user resources", zap.String("user_id", userID), zap.Int("count", count))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to release user resources: %w", err)
	}

	s.log.Info("User deactivated", zap.String("user_id", userID))
	return nil
}
