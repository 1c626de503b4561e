package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hpungsan/grove/internal/rules"
)

// Memory is an in-process browser host. It backs the CLI (persisted as a
// JSON session file) and tests. Tab order within a window is slice order;
// groups with no tabs disappear, as they do in a browser.
type Memory struct {
	mu  sync.Mutex
	now func() time.Time

	nextID  int
	windows []Window
	tabs    []Tab
	groups  []Group
	closed  []ClosedEntry
}

type memoryFile struct {
	NextID  int           `json:"nextId"`
	Windows []Window      `json:"windows"`
	Tabs    []Tab         `json:"tabs"`
	Groups  []Group       `json:"groups"`
	Closed  []ClosedEntry `json:"closed"`
}

var (
	_ TabHost        = (*Memory)(nil)
	_ SessionHistory = (*Memory)(nil)
)

// NewMemory returns an empty host.
func NewMemory() *Memory {
	return &Memory{now: time.Now, nextID: 1}
}

// LoadMemory reads a session file. A missing file yields an empty host.
func LoadMemory(path string) (*Memory, error) {
	m := NewMemory()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("read host file: %w", err)
	}
	var f memoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse host file %s: %w", path, err)
	}
	m.windows, m.tabs, m.groups, m.closed = f.Windows, f.Tabs, f.Groups, f.Closed
	m.nextID = f.NextID
	for _, w := range m.windows {
		m.nextID = max(m.nextID, w.ID+1)
	}
	for _, t := range m.tabs {
		m.nextID = max(m.nextID, t.ID+1)
	}
	for _, g := range m.groups {
		m.nextID = max(m.nextID, g.ID+1)
	}
	for i := range m.windows {
		if m.windows[i].Type == "" {
			m.windows[i].Type = WindowNormal
		}
	}
	for i := range m.tabs {
		gid := m.tabs[i].GroupID
		if !slices.ContainsFunc(m.groups, func(g Group) bool { return g.ID == gid }) {
			m.tabs[i].GroupID = NoGroup
		}
	}
	m.pruneGroups()
	return m, nil
}

// Save writes the host state to path.
func (m *Memory) Save(path string) error {
	m.mu.Lock()
	f := memoryFile{NextID: m.nextID, Windows: m.windows, Tabs: m.tabs, Groups: m.groups, Closed: m.closed}
	data, err := json.MarshalIndent(f, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create host dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// SetClock replaces the clock used to stamp closed entries.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AddWindow opens an empty normal window and returns its id.
func (m *Memory) AddWindow(focused bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addWindow(focused)
}

// AddClosed prepends an entry to the recently closed list.
func (m *Memory) AddClosed(e ClosedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append([]ClosedEntry{e}, m.closed...)
}

func (m *Memory) addWindow(focused bool) int {
	id := m.id()
	if focused {
		for i := range m.windows {
			m.windows[i].Focused = false
		}
	}
	m.windows = append(m.windows, Window{ID: id, Type: WindowNormal, Focused: focused || len(m.windows) == 0})
	return id
}

func (m *Memory) id() int {
	id := m.nextID
	m.nextID++
	return id
}

func (m *Memory) CurrentWindow(ctx context.Context) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentWindow()
}

func (m *Memory) currentWindow() (Window, error) {
	var first *Window
	for i := range m.windows {
		w := &m.windows[i]
		if w.Type != WindowNormal {
			continue
		}
		if w.Focused {
			return *w, nil
		}
		if first == nil {
			first = w
		}
	}
	if first == nil {
		return Window{}, fmt.Errorf("current window: %w", ErrNotFound)
	}
	return *first, nil
}

func (m *Memory) ListWindows(ctx context.Context, scope rules.Scope) ([]Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch scope.Kind {
	case rules.ScopeAll:
		var out []Window
		for _, w := range m.windows {
			if w.Type == WindowNormal {
				out = append(out, w)
			}
		}
		return out, nil
	case rules.ScopeWindow:
		w, ok := m.window(scope.WindowID)
		if !ok || w.Type != WindowNormal {
			return nil, fmt.Errorf("window %d: %w", scope.WindowID, ErrNotFound)
		}
		return []Window{w}, nil
	}
	w, err := m.currentWindow()
	if err != nil {
		return nil, err
	}
	return []Window{w}, nil
}

func (m *Memory) ListGroups(ctx context.Context, windowID int) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Group
	for _, g := range m.groups {
		if windowID == 0 || g.WindowID == windowID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *Memory) ListTabs(ctx context.Context, q TabQuery) ([]Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listTabs(q), nil
}

// listTabs returns matching tabs grouped by window in window order, with
// Index set to the position within the window.
func (m *Memory) listTabs(q TabQuery) []Tab {
	var out []Tab
	for _, w := range m.windows {
		if q.WindowID != 0 && w.ID != q.WindowID {
			continue
		}
		idx := 0
		for _, t := range m.tabs {
			if t.WindowID != w.ID {
				continue
			}
			t.Index = idx
			idx++
			if q.GroupID != nil && t.GroupID != *q.GroupID {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) GetTab(ctx context.Context, tabID int) (Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.tabIndex(tabID)
	if i < 0 {
		return Tab{}, fmt.Errorf("tab %d: %w", tabID, ErrNotFound)
	}
	return m.tabs[i], nil
}

func (m *Memory) CreateTab(ctx context.Context, url string, windowID int, active bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if windowID == 0 {
		w, err := m.currentWindow()
		if err != nil {
			windowID = m.addWindow(true)
		} else {
			windowID = w.ID
		}
	} else if _, ok := m.window(windowID); !ok {
		return 0, fmt.Errorf("window %d: %w", windowID, ErrNotFound)
	}
	id := m.id()
	if active {
		m.deactivate(windowID)
	}
	m.tabs = append(m.tabs, Tab{ID: id, WindowID: windowID, GroupID: NoGroup, URL: url, Title: url, Active: active})
	return id, nil
}

func (m *Memory) CreateGroup(ctx context.Context, tabIDs []int, windowID int, title, color string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(tabIDs) == 0 {
		return 0, errors.New("create group: no tabs")
	}
	for _, id := range tabIDs {
		if m.tabIndex(id) < 0 {
			return 0, fmt.Errorf("tab %d: %w", id, ErrNotFound)
		}
	}
	if windowID == 0 {
		windowID = m.tabs[m.tabIndex(tabIDs[0])].WindowID
	} else if _, ok := m.window(windowID); !ok {
		return 0, fmt.Errorf("window %d: %w", windowID, ErrNotFound)
	}
	gid := m.id()
	m.groups = append(m.groups, Group{ID: gid, WindowID: windowID, Title: title, Color: color})
	m.moveToEnd(tabIDs, windowID, gid)
	m.pruneGroups()
	return gid, nil
}

func (m *Memory) AddTabsToGroup(ctx context.Context, groupID int, tabIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gi := slices.IndexFunc(m.groups, func(g Group) bool { return g.ID == groupID })
	if gi < 0 {
		return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	windowID := m.groups[gi].WindowID
	for _, id := range tabIDs {
		i := m.tabIndex(id)
		if i < 0 {
			return fmt.Errorf("tab %d: %w", id, ErrNotFound)
		}
		if m.tabs[i].WindowID != windowID {
			return fmt.Errorf("tab %d is not in window %d", id, windowID)
		}
	}
	m.moveToEnd(tabIDs, windowID, groupID)
	m.pruneGroups()
	return nil
}

func (m *Memory) MoveTab(ctx context.Context, tabID, windowID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabIndex(tabID) < 0 {
		return fmt.Errorf("tab %d: %w", tabID, ErrNotFound)
	}
	if _, ok := m.window(windowID); !ok {
		return fmt.Errorf("window %d: %w", windowID, ErrNotFound)
	}
	m.moveToEnd([]int{tabID}, windowID, NoGroup)
	m.pruneGroups()
	return nil
}

func (m *Memory) CloseTabs(ctx context.Context, tabIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range tabIDs {
		if m.tabIndex(id) < 0 {
			return fmt.Errorf("tab %d: %w", id, ErrNotFound)
		}
	}
	for _, id := range tabIDs {
		i := m.tabIndex(id)
		if i < 0 {
			continue
		}
		t := m.tabs[i]
		m.tabs = slices.Delete(m.tabs, i, i+1)
		m.closed = append([]ClosedEntry{{
			SessionID:    fmt.Sprintf("closed-%d", t.ID),
			LastModified: m.now().Unix(),
			Tab:          &ClosedTab{Title: t.Title, URL: t.URL, FavIconURL: t.FavIconURL},
		}}, m.closed...)
	}
	m.pruneGroups()
	return nil
}

func (m *Memory) ActivateTab(ctx context.Context, tabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.tabIndex(tabID)
	if i < 0 {
		return fmt.Errorf("tab %d: %w", tabID, ErrNotFound)
	}
	m.deactivate(m.tabs[i].WindowID)
	m.tabs[i].Active = true
	for j := range m.windows {
		m.windows[j].Focused = m.windows[j].ID == m.tabs[i].WindowID
	}
	return nil
}

func (m *Memory) RecentlyClosed(ctx context.Context, limit int) ([]ClosedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.closed)
	if limit > 0 && limit < n {
		n = limit
	}
	return slices.Clone(m.closed[:n]), nil
}

func (m *Memory) window(id int) (Window, bool) {
	for _, w := range m.windows {
		if w.ID == id {
			return w, true
		}
	}
	return Window{}, false
}

func (m *Memory) tabIndex(id int) int {
	return slices.IndexFunc(m.tabs, func(t Tab) bool { return t.ID == id })
}

func (m *Memory) deactivate(windowID int) {
	for i := range m.tabs {
		if m.tabs[i].WindowID == windowID {
			m.tabs[i].Active = false
		}
	}
}

// moveToEnd re-appends the tabs, in the given order, at the end of windowID
// with groupID.
func (m *Memory) moveToEnd(tabIDs []int, windowID, groupID int) {
	moved := make([]Tab, 0, len(tabIDs))
	for _, id := range tabIDs {
		i := m.tabIndex(id)
		if i < 0 {
			continue
		}
		t := m.tabs[i]
		m.tabs = slices.Delete(m.tabs, i, i+1)
		if t.WindowID != windowID {
			t.Active = false
		}
		t.WindowID = windowID
		t.GroupID = groupID
		moved = append(moved, t)
	}
	m.tabs = append(m.tabs, moved...)
}

func (m *Memory) pruneGroups() {
	m.groups = slices.DeleteFunc(m.groups, func(g Group) bool {
		return !slices.ContainsFunc(m.tabs, func(t Tab) bool { return t.GroupID == g.ID })
	})
}
