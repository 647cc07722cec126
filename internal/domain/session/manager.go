package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/id"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Collection holds session documents.
const Collection = "browser_sessions"

// DefaultName is used when a session is created without one.
const DefaultName = "New Session"

// Options tunes manager behavior.
type Options struct {
	// StrictNotFound makes UpdateTabPosition and CloseTab report ErrTabNotFound
	// instead of succeeding silently when no owned session holds the tab.
	StrictNotFound bool
	Now            func() time.Time
	Metrics        Recorder
}

// Manager owns session and tab lifecycle. It holds no entity state.
type Manager struct {
	sessions docstore.Collection
	opts     Options
	log      *zap.Logger
}

// NewManager creates a manager over store.
func NewManager(store docstore.Store, opts Options, log *zap.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: docstore.Active(store.Collection(Collection), "is_active", docstore.Stamp("updated_at", opts.Now)),
		opts:     opts,
		log:      log,
	}
}

func (m *Manager) now() time.Time {
	return m.opts.Now().UTC()
}

func owned(sessionID, userID string) docstore.Filter {
	return docstore.Filter{"id": sessionID, "user_id": userID}
}

func holding(tabID, userID string) docstore.Filter {
	return docstore.Filter{"tabs.id": tabID, "user_id": userID}
}

// CreateSession persists an empty session for userID.
func (m *Manager) CreateSession(ctx context.Context, userID, name string) (*BrowserSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if err := utils.ValidateName(name, "name"); err != nil {
		return nil, err
	}

	now := m.now()
	s := &BrowserSession{
		ID:           id.NewSessionID().String(),
		UserID:       userID,
		Name:         name,
		Tabs:         []Tab{},
		WindowLayout: WindowLayout{SplitMode: SplitSingle, Splits: []Split{}},
		AIContext:    map[string]interface{}{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	doc, err := docstore.Encode(s)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.opts.Metrics.IncSessionsCreated()
	m.log.Debug("Session created", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, nil
}

// GetSession returns the session when it exists, is active and belongs to
// userID. Anything else is (nil, nil).
func (m *Manager) GetSession(ctx context.Context, sessionID, userID string) (*BrowserSession, error) {
	return docstore.Get[BrowserSession](ctx, m.sessions, owned(sessionID, userID))
}

// ListSessions returns the user's active sessions, most recently updated first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]BrowserSession, error) {
	return docstore.FindAll[BrowserSession](ctx, m.sessions, docstore.Filter{"user_id": userID}, docstore.FindOptions{
		Sort: []docstore.SortKey{docstore.Desc("updated_at")},
	})
}

// CreateTab appends a new tab to an owned session.
func (m *Manager) CreateTab(ctx context.Context, sessionID, userID string, in TabInput) (*Tab, error) {
	if err := validateTabInput(in); err != nil {
		return nil, err
	}

	n, err := m.sessions.Count(ctx, owned(sessionID, userID))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrSessionNotFound
	}

	now := m.now()
	tab := Tab{
		ID:        id.NewTabID().String(),
		URL:       in.URL,
		Title:     in.Title,
		Favicon:   in.Favicon,
		IsActive:  in.Activate,
		IsPinned:  in.IsPinned,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Position != nil {
		tab.Position = *in.Position
	}
	if tab.Metadata == nil {
		tab.Metadata = map[string]interface{}{}
	}

	mut := docstore.NewMutation()
	if in.Activate {
		// Clear the previous active tab before the new one lands
		mut.SetElem("tabs", docstore.Filter{"is_active": true}, "is_active", false).
			Set("active_tab_id", tab.ID)
	}
	mut.Push("tabs", tab).Set("updated_at", now)

	res, err := m.sessions.UpdateOne(ctx, owned(sessionID, userID), mut)
	if err != nil {
		return nil, fmt.Errorf("failed to add tab: %w", err)
	}
	// The session vanished between the check and the push
	if res.Matched == 0 {
		return nil, ErrSessionNotFound
	}

	m.opts.Metrics.IncTabsOpened()
	return &tab, nil
}

// ListTabs returns tabs in stored order, or an empty slice when the session is absent.
func (m *Manager) ListTabs(ctx context.Context, sessionID, userID string) ([]Tab, error) {
	s, err := m.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Tabs == nil {
		return []Tab{}, nil
	}
	return s.Tabs, nil
}

// UpdateTabPosition moves a tab on the canvas.
func (m *Manager) UpdateTabPosition(ctx context.Context, tabID string, x, y float64, userID string) error {
	if err := utils.ValidateCoordinate(x, "x"); err != nil {
		return err
	}
	if err := utils.ValidateCoordinate(y, "y"); err != nil {
		return err
	}

	now := m.now()
	match := docstore.Filter{"id": tabID}
	res, err := m.sessions.UpdateOne(ctx, holding(tabID, userID), docstore.NewMutation().
		SetElem("tabs", match, "position", Position{X: x, Y: y}).
		SetElem("tabs", match, "updated_at", now).
		Set("updated_at", now))
	if err != nil {
		return fmt.Errorf("failed to update tab position: %w", err)
	}
	if res.Matched == 0 && m.opts.StrictNotFound {
		return ErrTabNotFound
	}
	return nil
}

// CloseTab removes a tab from whichever owned session holds it. Closing the
// active tab clears active_tab_id.
func (m *Manager) CloseTab(ctx context.Context, tabID, userID string) error {
	res, err := m.sessions.UpdateOne(ctx, holding(tabID, userID), docstore.NewMutation().
		Pull("tabs", docstore.Filter{"id": tabID}).
		ClearIf("active_tab_id", tabID).
		Set("updated_at", m.now()))
	if err != nil {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	if res.Matched == 0 {
		if m.opts.StrictNotFound {
			return ErrTabNotFound
		}
		return nil
	}

	m.opts.Metrics.IncTabsClosed()
	return nil
}

// UpdateTab changes tab attributes and returns the updated tab.
func (m *Manager) UpdateTab(ctx context.Context, tabID, userID string, upd TabUpdate) (*Tab, error) {
	match := docstore.Filter{"id": tabID}
	now := m.now()
	mut := docstore.NewMutation()

	if upd.URL != nil {
		if err := utils.ValidateURL(*upd.URL, "url", true); err != nil {
			return nil, err
		}
		mut.SetElem("tabs", match, "url", *upd.URL)
	}
	if upd.Title != nil {
		if err := utils.ValidateString(*upd.Title, "title", 0, utils.MaxNameLength, false); err != nil {
			return nil, err
		}
		mut.SetElem("tabs", match, "title", *upd.Title)
	}
	if upd.Favicon != nil {
		if err := utils.ValidateString(*upd.Favicon, "favicon", 0, utils.MaxURLLength, false); err != nil {
			return nil, err
		}
		mut.SetElem("tabs", match, "favicon", *upd.Favicon)
	}
	if upd.IsActive != nil {
		if *upd.IsActive {
			activate(mut, tabID)
		} else {
			mut.SetElem("tabs", match, "is_active", false).ClearIf("active_tab_id", tabID)
		}
	}
	if upd.IsPinned != nil {
		mut.SetElem("tabs", match, "is_pinned", *upd.IsPinned)
	}
	if upd.Metadata != nil {
		if err := utils.ValidateMap(upd.Metadata, "metadata"); err != nil {
			return nil, err
		}
		mut.SetElem("tabs", match, "metadata", upd.Metadata)
	}
	mut.SetElem("tabs", match, "updated_at", now).Set("updated_at", now)

	res, err := m.sessions.UpdateOne(ctx, holding(tabID, userID), mut)
	if err != nil {
		return nil, fmt.Errorf("failed to update tab: %w", err)
	}
	if res.Matched == 0 {
		return nil, ErrTabNotFound
	}

	s, err := docstore.Get[BrowserSession](ctx, m.sessions, holding(tabID, userID))
	if err != nil {
		return nil, err
	}
	if s == nil || s.Tab(tabID) == nil {
		// Closed concurrently
		return nil, ErrTabNotFound
	}
	return s.Tab(tabID), nil
}

// UpdateSession changes session attributes and returns the refreshed session.
// A non-empty ActiveTabID must name a tab of the session.
func (m *Manager) UpdateSession(ctx context.Context, sessionID, userID string, upd SessionUpdate) (*BrowserSession, error) {
	filter := owned(sessionID, userID)
	mut := docstore.NewMutation()

	if upd.Name != nil {
		if err := utils.ValidateName(strings.TrimSpace(*upd.Name), "name"); err != nil {
			return nil, err
		}
		mut.Set("name", strings.TrimSpace(*upd.Name))
	}
	if upd.WindowLayout != nil {
		if !upd.WindowLayout.SplitMode.Valid() {
			return nil, utils.Invalid("window_layout.split_mode", "must be one of single, vertical, horizontal, grid")
		}
		layout := *upd.WindowLayout
		if layout.Splits == nil {
			layout.Splits = []Split{}
		}
		mut.Set("window_layout", layout)
	}
	if upd.AIContext != nil {
		if err := utils.ValidateMap(upd.AIContext, "ai_context"); err != nil {
			return nil, err
		}
		mut.Set("ai_context", upd.AIContext)
	}
	if upd.ActiveTabID != nil {
		if *upd.ActiveTabID == "" {
			mut.SetElem("tabs", docstore.Filter{"is_active": true}, "is_active", false).
				Set("active_tab_id", nil)
		} else {
			// Only matches while the tab is present
			filter["tabs.id"] = *upd.ActiveTabID
			activate(mut, *upd.ActiveTabID)
		}
	}
	mut.Set("updated_at", m.now())

	res, err := m.sessions.UpdateOne(ctx, filter, mut)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if res.Matched == 0 {
		exists, err := m.sessions.Count(ctx, owned(sessionID, userID))
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			return nil, ErrTabNotFound
		}
		return nil, ErrSessionNotFound
	}

	s, err := m.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SetActiveTab points the session at tabID.
func (m *Manager) SetActiveTab(ctx context.Context, sessionID, userID, tabID string) (*BrowserSession, error) {
	return m.UpdateSession(ctx, sessionID, userID, SessionUpdate{ActiveTabID: &tabID})
}

// DeleteSession soft-deletes an owned session and reports whether one was removed.
func (m *Manager) DeleteSession(ctx context.Context, sessionID, userID string) (bool, error) {
	n, err := m.sessions.DeleteOne(ctx, owned(sessionID, userID))
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// DeactivateUser soft-deletes every session of userID.
func (m *Manager) DeactivateUser(ctx context.Context, userID string) (int, error) {
	res, err := m.sessions.UpdateMany(ctx, docstore.Filter{"user_id": userID}, docstore.NewMutation().
		Set("is_active", false).
		Set("updated_at", m.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return res.Modified, nil
}

// activate makes tabID the only tab flagged active and points active_tab_id at it.
func activate(mut *docstore.Mutation, tabID string) {
	mut.SetElem("tabs", docstore.Filter{"is_active": true}, "is_active", false).
		SetElem("tabs", docstore.Filter{"id": tabID}, "is_active", true).
		Set("active_tab_id", tabID)
}

func validateTabInput(in TabInput) error {
	if err := utils.ValidateURL(in.URL, "url", true); err != nil {
		return err
	}
	if err := utils.ValidateString(in.Title, "title", 0, utils.MaxNameLength, false); err != nil {
		return err
	}
	if err := utils.ValidateString(in.Favicon, "favicon", 0, utils.MaxURLLength, false); err != nil {
		return err
	}
	if in.Position != nil {
		if err := utils.ValidateCoordinate(in.Position.X, "position.x"); err != nil {
			return err
		}
		if err := utils.ValidateCoordinate(in.Position.Y, "position.y"); err != nil {
			return err
		}
	}
	return utils.ValidateMap(in.Metadata, "metadata")
}
