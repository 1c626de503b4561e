package ops

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/kv"
	"github.com/hpungsan/grove/internal/rules"
	"github.com/hpungsan/grove/internal/state"
)

// recordingHost wraps host.Memory, recording every call and failing the
// methods named in fail.
type recordingHost struct {
	*host.Memory

	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newRecordingHost() *recordingHost {
	return &recordingHost{Memory: host.NewMemory(), fail: map[string]error{}}
}

func (h *recordingHost) record(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, name)
	return h.fail[name]
}

func (h *recordingHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func (h *recordingHost) CurrentWindow(ctx context.Context) (host.Window, error) {
	if err := h.record("CurrentWindow"); err != nil {
		return host.Window{}, err
	}
	return h.Memory.CurrentWindow(ctx)
}

func (h *recordingHost) ListWindows(ctx context.Context, scope rules.Scope) ([]host.Window, error) {
	if err := h.record("ListWindows"); err != nil {
		return nil, err
	}
	return h.Memory.ListWindows(ctx, scope)
}

func (h *recordingHost) ListGroups(ctx context.Context, windowID int) ([]host.Group, error) {
	if err := h.record("ListGroups"); err != nil {
		return nil, err
	}
	return h.Memory.ListGroups(ctx, windowID)
}

func (h *recordingHost) ListTabs(ctx context.Context, q host.TabQuery) ([]host.Tab, error) {
	if err := h.record("ListTabs"); err != nil {
		return nil, err
	}
	return h.Memory.ListTabs(ctx, q)
}

func (h *recordingHost) GetTab(ctx context.Context, tabID int) (host.Tab, error) {
	if err := h.record("GetTab"); err != nil {
		return host.Tab{}, err
	}
	return h.Memory.GetTab(ctx, tabID)
}

func (h *recordingHost) CreateTab(ctx context.Context, url string, windowID int, active bool) (int, error) {
	if err := h.record("CreateTab"); err != nil {
		return 0, err
	}
	return h.Memory.CreateTab(ctx, url, windowID, active)
}

func (h *recordingHost) CreateGroup(ctx context.Context, tabIDs []int, windowID int, title, color string) (int, error) {
	if err := h.record("CreateGroup"); err != nil {
		return 0, err
	}
	return h.Memory.CreateGroup(ctx, tabIDs, windowID, title, color)
}

func (h *recordingHost) AddTabsToGroup(ctx context.Context, groupID int, tabIDs []int) error {
	if err := h.record("AddTabsToGroup"); err != nil {
		return err
	}
	return h.Memory.AddTabsToGroup(ctx, groupID, tabIDs)
}

func (h *recordingHost) MoveTab(ctx context.Context, tabID, windowID int) error {
	if err := h.record("MoveTab"); err != nil {
		return err
	}
	return h.Memory.MoveTab(ctx, tabID, windowID)
}

func (h *recordingHost) CloseTabs(ctx context.Context, tabIDs []int) error {
	if err := h.record("CloseTabs"); err != nil {
		return err
	}
	return h.Memory.CloseTabs(ctx, tabIDs)
}

func (h *recordingHost) ActivateTab(ctx context.Context, tabID int) error {
	if err := h.record("ActivateTab"); err != nil {
		return err
	}
	return h.Memory.ActivateTab(ctx, tabID)
}

func (h *recordingHost) RecentlyClosed(ctx context.Context, limit int) ([]host.ClosedEntry, error) {
	if err := h.record("RecentlyClosed"); err != nil {
		return nil, err
	}
	return h.Memory.RecentlyClosed(ctx, limit)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ctx  context.Context
	host *recordingHost
	kv   *kv.Memory
	c    *Coordinator
	win  int
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:  context.Background(),
		host: newRecordingHost(),
		kv:   kv.NewMemory(),
		now:  testNow,
	}
	f.win = f.host.AddWindow(true)
	f.c = NewCoordinator(f.host, f.host, state.New(f.kv, quietLogger()), quietLogger(), Options{
		Now: func() time.Time { return f.now },
	})
	return f
}

// addTabs opens urls in the fixture window, ungrouped.
func (f *fixture) addTabs(t *testing.T, urls ...string) []int {
	t.Helper()
	ids := make([]int, len(urls))
	for i, u := range urls {
		id, err := f.host.Memory.CreateTab(f.ctx, u, f.win, false)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

// addGroup opens urls and groups them.
func (f *fixture) addGroup(t *testing.T, title string, urls ...string) (int, []int) {
	t.Helper()
	ids := f.addTabs(t, urls...)
	gid, err := f.host.Memory.CreateGroup(f.ctx, ids, f.win, title, "blue")
	require.NoError(t, err)
	return gid, ids
}

func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	out, err := f.c.Refresh(f.ctx)
	require.NoError(t, err)
	require.True(t, out.Applied)
}

// reload builds a fresh coordinator over the same store and host.
func (f *fixture) reload() *Coordinator {
	return NewCoordinator(f.host, f.host, state.New(f.kv, quietLogger()), quietLogger(), Options{
		Now: func() time.Time { return f.now },
	})
}
