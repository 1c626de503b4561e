// Package host defines the browser surface the organizer drives: windows,
// tabs, native tab groups and the recently-closed session list.
package host

import (
	"context"
	"errors"

	"github.com/hpungsan/grove/internal/rules"
)

// NoGroup is the GroupID of a tab that belongs to no native group.
const NoGroup = -1

// WindowNormal is the only window type tabs are grouped in.
const WindowNormal = "normal"

// ErrNotFound is returned for an unknown tab, group or window id.
var ErrNotFound = errors.New("not found")

// Window is a browser window.
type Window struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Focused bool   `json:"focused,omitempty"`
}

// Tab is a live browser tab.
type Tab struct {
	ID         int    `json:"id"`
	WindowID   int    `json:"windowId"`
	GroupID    int    `json:"groupId"`
	Index      int    `json:"index"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	PendingURL string `json:"pendingUrl,omitempty"`
	FavIconURL string `json:"favIconUrl,omitempty"`
	Active     bool   `json:"active,omitempty"`
	Pinned     bool   `json:"pinned,omitempty"`
}

// Key identifies a tab's content for duplicate detection: its URL, else its
// pending URL, else its title.
func (t Tab) Key() string {
	switch {
	case t.URL != "":
		return t.URL
	case t.PendingURL != "":
		return t.PendingURL
	}
	return t.Title
}

// Group is a native tab group.
type Group struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	Title    string `json:"title,omitempty"`
	Color    string `json:"color,omitempty"`
}

// TabQuery filters ListTabs. Zero WindowID means all windows; nil GroupID
// means any group.
type TabQuery struct {
	WindowID int
	GroupID  *int
}

// InGroup returns a pointer for TabQuery.GroupID.
func InGroup(id int) *int { return &id }

// TabHost is the window/tab/group API of a browser.
type TabHost interface {
	// CurrentWindow returns the focused normal window.
	CurrentWindow(ctx context.Context) (Window, error)
	// ListWindows returns the normal windows the scope selects.
	ListWindows(ctx context.Context, scope rules.Scope) ([]Window, error)
	// ListGroups returns native groups; windowID 0 means all windows.
	ListGroups(ctx context.Context, windowID int) ([]Group, error)
	ListTabs(ctx context.Context, q TabQuery) ([]Tab, error)
	GetTab(ctx context.Context, tabID int) (Tab, error)

	// CreateTab opens url in windowID (0 = current window) and returns the tab id.
	CreateTab(ctx context.Context, url string, windowID int, active bool) (int, error)
	// CreateGroup groups tabIDs into a new group in windowID.
	CreateGroup(ctx context.Context, tabIDs []int, windowID int, title, color string) (int, error)
	// AddTabsToGroup moves tabIDs into an existing group.
	AddTabsToGroup(ctx context.Context, groupID int, tabIDs []int) error
	// MoveTab moves a tab to the end of windowID.
	MoveTab(ctx context.Context, tabID, windowID int) error
	CloseTabs(ctx context.Context, tabIDs []int) error
	ActivateTab(ctx context.Context, tabID int) error
}

// ClosedTab is a tab entry in the recently closed list.
type ClosedTab struct {
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	FavIconURL string `json:"favIconUrl,omitempty"`
}

// ClosedEntry is either a closed window (Window set) or a single closed tab
// (Tab set). LastModified is in seconds.
type ClosedEntry struct {
	SessionID    string      `json:"sessionId,omitempty"`
	LastModified int64       `json:"lastModified"`
	Window       []ClosedTab `json:"window,omitempty"`
	Tab          *ClosedTab  `json:"tab,omitempty"`
}

// SessionHistory is the browser's recently-closed list, newest first.
type SessionHistory interface {
	RecentlyClosed(ctx context.Context, limit int) ([]ClosedEntry, error)
}
