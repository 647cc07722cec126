package session

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTabNotFound     = errors.New("tab not found")
)

// SplitMode is the window layout arrangement.
type SplitMode string

const (
	SplitSingle     SplitMode = "single"
	SplitVertical   SplitMode = "vertical"
	SplitHorizontal SplitMode = "horizontal"
	SplitGrid       SplitMode = "grid"
)

// Valid reports whether m is a known split mode.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitSingle, SplitVertical, SplitHorizontal, SplitGrid:
		return true
	}
	return false
}

// Position places a tab bubble on the 2-D canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tab is one browsing unit embedded in a session.
type Tab struct {
	ID        string                 `json:"id"`
	URL       string                 `json:"url"`
	Title     string                 `json:"title,omitempty"`
	Favicon   string                 `json:"favicon,omitempty"`
	Position  Position               `json:"position"`
	IsActive  bool                   `json:"is_active"`
	IsPinned  bool                   `json:"is_pinned"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Split is one region of a split layout.
type Split struct {
	ID     string   `json:"id"`
	TabIDs []string `json:"tab_ids"`
	Size   float64  `json:"size"`
}

// WindowLayout describes how the session window is divided.
type WindowLayout struct {
	SplitMode SplitMode `json:"split_mode"`
	Splits    []Split   `json:"splits"`
}

// BrowserSession is a user's container of tabs plus layout and AI context.
type BrowserSession struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Name         string                 `json:"name"`
	Tabs         []Tab                  `json:"tabs"`
	ActiveTabID  *string                `json:"active_tab_id"`
	WindowLayout WindowLayout           `json:"window_layout"`
	AIContext    map[string]interface{} `json:"ai_context"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Tab returns the tab with id, or nil.
func (s *BrowserSession) Tab(id string) *Tab {
	for i := range s.Tabs {
		if s.Tabs[i].ID == id {
			return &s.Tabs[i]
		}
	}
	return nil
}

// TabInput carries a new tab request.
type TabInput struct {
	URL      string                 `json:"url"`
	Title    string                 `json:"title"`
	Favicon  string                 `json:"favicon"`
	Position *Position              `json:"position"`
	IsPinned bool                   `json:"is_pinned"`
	Metadata map[string]interface{} `json:"metadata"`
	Activate bool                   `json:"activate"`
}

// TabUpdate carries optional tab changes.
type TabUpdate struct {
	URL      *string                `json:"url"`
	Title    *string                `json:"title"`
	Favicon  *string                `json:"favicon"`
	IsActive *bool                  `json:"is_active"`
	IsPinned *bool                  `json:"is_pinned"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SessionUpdate carries optional session changes. An empty ActiveTabID clears it.
type SessionUpdate struct {
	Name         *string                `json:"name"`
	WindowLayout *WindowLayout          `json:"window_layout"`
	AIContext    map[string]interface{} `json:"ai_context"`
	ActiveTabID  *string                `json:"active_tab_id"`
}

// Recorder receives session activity counts.
type Recorder interface {
	IncSessionsCreated()
	IncTabsOpened()
	IncTabsClosed()
}

type nopRecorder struct{}

func (nopRecorder) IncSessionsCreated() {}
func (nopRecorder) IncTabsOpened()      {}
func (nopRecorder) IncTabsClosed()      {}
