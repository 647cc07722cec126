// Package session manages per-user browser sessions and their embedded tabs.
//
// A session document owns an ordered array of tabs. Every tab change is one
// atomic update on the session document:
//   - CreateTab: Push onto tabs, set updated_at
//   - UpdateTabPosition: SetElem on the matching tab, set updated_at
//   - CloseTab: Pull the tab, clear active_tab_id if it pointed there, set updated_at
//
// Reads are scoped by user_id and the is_active flag, so a session owned by
// another user, or soft-deleted, is indistinguishable from a missing one.
//
// Example Usage:
//
//	manager := session.NewManager(store, session.Options{}, logger)
//	s, err := manager.CreateSession(ctx, userID, "Research")
//	tab, err := manager.CreateTab(ctx, s.ID, userID, session.TabInput{URL: "https://a.test"})
//	err = manager.CloseTab(ctx, tab.ID, userID)
package session
