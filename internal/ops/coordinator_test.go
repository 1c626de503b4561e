package ops

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	grerrors "github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
)

func requireCode(t *testing.T, err error, code grerrors.ErrorCode) *grerrors.GroveError {
	t.Helper()
	require.Error(t, err)
	var gErr *grerrors.GroveError
	require.True(t, errors.As(err, &gErr), "expected *GroveError, got %T: %v", err, err)
	require.Equal(t, code, gErr.Code, gErr.Message)
	return gErr
}

func TestRefresh_CapturesHistory(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://b.example/", "https://a.example/")

	out, err := f.c.Refresh(f.ctx)
	require.NoError(t, err)
	require.Equal(t, RefreshOutput{Applied: true, ActiveCount: 1, HistoryAdded: 1}, *out)

	active, err := f.c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, active.Groups, 1)
	g := active.Groups[0]
	require.Equal(t, group.FromHost(gid), g.ID)
	require.Equal(t, "Docs|https://a.example/|https://b.example/", g.Signature)
	require.Equal(t, group.CategoryUncategorized, g.Category)
	require.Equal(t, f.win, g.WindowID)

	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	h := closed.Groups[0]
	require.Equal(t, group.ID(fmt.Sprintf("history-%d-0", testNow.UnixMilli())), h.ID)
	require.Equal(t, group.CategoryHistory, h.Category)
	require.Equal(t, g.Signature, h.Signature)
	require.Equal(t, testNow.UnixMilli(), h.UpdatedAt)
}

func TestRefresh_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	out, err := f.c.Refresh(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 0, out.HistoryAdded)

	// Changing the tab set changes the identity.
	ids := f.addTabs(t, "https://c.example/")
	require.NoError(t, f.host.Memory.AddTabsToGroup(f.ctx, gid, ids))
	out, err = f.c.Refresh(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.HistoryAdded)
}

func TestRefresh_PersistsHistoryAcrossRestart(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	c := f.reload()
	list, err := c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)
	require.Equal(t, "Docs", list.Groups[0].Title)
}

func TestRefresh_HostFailureLeavesModel(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	f.addGroup(t, "Music", "https://m.example/")
	f.host.fail["ListTabs"] = errors.New("host gone")
	out, err := f.c.Refresh(f.ctx)
	require.NoError(t, err)
	require.False(t, out.Applied)

	list, err := f.c.List(f.ctx, ListInput{})
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)
}

func TestRefresh_PersistFailureLeavesModel(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	f.addGroup(t, "Music", "https://m.example/")
	f.kv.FailSet = errors.New("disk full")
	_, err := f.c.Refresh(f.ctx)
	requireCode(t, err, grerrors.ErrInternal)

	active, err := f.c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, active.Groups, 1)
	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
}

func TestRefresh_UntitledGroupAndTabFallbacks(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "", "https://a.example/")

	f.refresh(t)
	got, view, err := f.c.Get(f.ctx, "", group.FromHost(gid))
	require.NoError(t, err)
	require.Equal(t, ViewActive, view)
	require.Equal(t, group.UntitledGroup, got.Title)
	require.Equal(t, "https://a.example/", got.Tabs[0].Title)
}

func TestFirstUse_SnapshotsHost(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")

	// No refresh: the first action already sees the open group.
	out, err := f.c.ToggleLock(f.ctx, ToggleInput{ID: group.FromHost(gid)})
	require.NoError(t, err)
	require.True(t, out.On)
	_, err = f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid)})
	requireCode(t, err, grerrors.ErrGroupLocked)

	c := f.reload()
	f.host.fail["ListGroups"] = errors.New("host gone")
	list, err := c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Empty(t, list.Groups)
}

func TestList_SearchAndCounts(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/", "https://b.example/")
	f.addGroup(t, "Music", "https://m.example/")
	f.refresh(t)

	all, err := f.c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Equal(t, Counts{CategoryCount: 1, GroupCount: 2, TabCount: 3}, all.Counts)

	found, err := f.c.List(f.ctx, ListInput{View: ViewActive, Search: "  DOC "})
	require.NoError(t, err)
	require.Len(t, found.Groups, 1)
	require.Equal(t, "Docs", found.Groups[0].Title)

	byCategory, err := f.c.List(f.ctx, ListInput{View: ViewClosed, Search: "hist"})
	require.NoError(t, err)
	require.Len(t, byCategory.Groups, 2)
}

func TestGet_NotFoundSuggestsCloseID(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	want := fmt.Sprintf("history-%d-0", testNow.UnixMilli())
	_, _, err := f.c.Get(f.ctx, ViewClosed, group.ID(strings.TrimSuffix(want, "0")+"1"))
	gErr := requireCode(t, err, grerrors.ErrNotFound)
	require.Equal(t, want, gErr.Details["suggestion"])

	_, _, err = f.c.Get(f.ctx, "", "nothing-like-it-at-all")
	gErr = requireCode(t, err, grerrors.ErrNotFound)
	require.NotContains(t, gErr.Details, "suggestion")

	_, _, err = f.c.Get(f.ctx, "", " ")
	requireCode(t, err, grerrors.ErrInvalidRequest)
}

func TestSuggest(t *testing.T) {
	require.Equal(t, "archived-12", suggest("archived-13", []string{"1", "archived-12", "restored-3"}))
	require.Equal(t, "", suggest("zzz", []string{"archived-12"}))
	require.Equal(t, "", suggest("x", nil))
}
