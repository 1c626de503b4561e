package ops

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/kv"
	"github.com/hpungsan/grove/internal/state"
)

func TestSessionGroups(t *testing.T) {
	now := testNow.UnixMilli()
	entries := []host.ClosedEntry{
		{
			SessionID:    "w1",
			LastModified: 100,
			Window: []host.ClosedTab{
				{Title: "A", URL: "https://a.example/"},
				{URL: "https://b.example/"},
			},
		},
		{SessionID: "t1", LastModified: 300, Tab: &host.ClosedTab{Title: "X", URL: "https://x.example/"}},
		{LastModified: 200, Tab: &host.ClosedTab{URL: "https://y.example/"}},
		{SessionID: "empty", LastModified: 400},
	}

	groups := SessionGroups(entries, now)
	require.Len(t, groups, 2)

	tabs := groups[0]
	require.Equal(t, group.ID("session-tabs"), tabs.ID)
	require.Equal(t, "Recently closed tabs", tabs.Title)
	require.Equal(t, int64(300_000), tabs.UpdatedAt)
	require.Equal(t, group.CategoryHistory, tabs.Category)
	require.Equal(t, "grey", tabs.Color)
	require.Len(t, tabs.Tabs, 2)
	require.Equal(t, group.ID("t1"), tabs.Tabs[0].ID)
	require.Equal(t, group.ID("session-tab-2"), tabs.Tabs[1].ID)
	require.Equal(t, "https://y.example/", tabs.Tabs[1].Title)

	win := groups[1]
	require.Equal(t, group.ID("session-window-w1"), win.ID)
	require.Equal(t, "Recently closed window 1", win.Title)
	require.Equal(t, int64(100_000), win.UpdatedAt)
	require.Equal(t, "https://b.example/", win.Tabs[1].Title)
	require.Equal(t, "Recently closed window 1|https://a.example/|https://b.example/", win.Signature)
}

func TestSessionGroups_MissingTimesUseNow(t *testing.T) {
	now := testNow.UnixMilli()
	groups := SessionGroups([]host.ClosedEntry{
		{Window: []host.ClosedTab{{URL: "https://a.example/"}}},
	}, now)
	require.Len(t, groups, 1)
	require.Equal(t, group.ID("session-window-0"), groups[0].ID)
	require.Equal(t, now, groups[0].UpdatedAt)

	require.Empty(t, SessionGroups(nil, now))
}

func TestImportClosed(t *testing.T) {
	f := newFixture(t)
	f.host.SetClock(func() time.Time { return testNow })
	ids := f.addTabs(t, "https://a.example/", "https://b.example/")
	require.NoError(t, f.host.Memory.CloseTabs(f.ctx, ids))

	out, err := f.c.ImportClosed(f.ctx)
	require.NoError(t, err)
	require.Equal(t, ImportClosedOutput{Applied: true, Imported: 1, Added: 1}, *out)

	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	require.Equal(t, testNow.UnixMilli(), closed.Groups[0].UpdatedAt)
	require.Len(t, closed.Groups[0].Tabs, 2)

	out, err = f.c.ImportClosed(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 0, out.Added)
}

func TestImportClosed_RespectsLimit(t *testing.T) {
	f := newFixture(t)
	f.c.opts.SessionMaxResults = 1
	f.host.AddClosed(host.ClosedEntry{SessionID: "old", LastModified: 1, Window: []host.ClosedTab{{URL: "https://old.example/"}}})
	f.host.AddClosed(host.ClosedEntry{SessionID: "new", LastModified: 2, Window: []host.ClosedTab{{URL: "https://new.example/"}}})

	out, err := f.c.ImportClosed(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.Imported)
	got, _, err := f.c.Get(f.ctx, ViewClosed, "session-window-new")
	require.NoError(t, err)
	require.Equal(t, "https://new.example/", got.Tabs[0].URL)
}

func TestImportClosed_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.host.fail["RecentlyClosed"] = errors.New("no sessions permission")
	out, err := f.c.ImportClosed(f.ctx)
	require.NoError(t, err)
	require.False(t, out.Applied)

	c := NewCoordinator(f.host, nil, state.New(kv.NewMemory(), quietLogger()), quietLogger(), Options{})
	out, err = c.ImportClosed(f.ctx)
	require.NoError(t, err)
	require.Equal(t, ImportClosedOutput{}, *out)
}
