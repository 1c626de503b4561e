package ops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	grerrors "github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/state"
)

func TestArchiveRestore_KeepsIdentity(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/", "https://b.example/")
	f.refresh(t)
	id := group.FromHost(gid)

	star, err := f.c.ToggleStar(f.ctx, ToggleInput{ID: id})
	require.NoError(t, err)
	require.True(t, star.On)
	sig := star.Signature

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, "archived-"+id, archived.ID)
	require.Equal(t, sig, archived.Signature)
	require.False(t, archived.ClosedTabs)

	// The archived entry replaces the refresh snapshot with the same identity.
	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	require.Equal(t, group.CategoryRecycle, closed.Groups[0].Category)
	require.True(t, closed.Groups[0].Starred)

	lock, err := f.c.ToggleLock(f.ctx, ToggleInput{View: ViewClosed, ID: archived.ID})
	require.NoError(t, err)
	require.True(t, lock.On)
	require.Equal(t, sig, lock.Signature)

	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	require.NoError(t, err)
	require.Equal(t, "restored-"+archived.ID, restored.ID)
	require.Equal(t, sig, restored.Signature)
	require.Equal(t, group.CategoryUncategorized, restored.Category)

	got, view, err := f.c.Get(f.ctx, "", restored.ID)
	require.NoError(t, err)
	require.Equal(t, ViewActive, view)
	require.True(t, got.Starred)
	require.True(t, got.Locked)

	closed, err = f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Empty(t, closed.Groups)
}

func TestRestore_UsesMappedCategory(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	_, err := f.c.SetCategory(f.ctx, SetCategoryInput{ID: group.FromHost(gid), Category: "Work"})
	require.NoError(t, err)
	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid)})
	require.NoError(t, err)

	got, _, err := f.c.Get(f.ctx, ViewClosed, archived.ID)
	require.NoError(t, err)
	require.Equal(t, group.CategoryRecycle, got.Category)

	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	require.NoError(t, err)
	require.Equal(t, "Work", restored.Category)
}

func TestRestore_Reopen(t *testing.T) {
	f := newFixture(t)
	gid, tabIDs := f.addGroup(t, "Docs", "https://a.example/", "https://b.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid), CloseTabs: ptr(true)})
	require.NoError(t, err)
	require.True(t, archived.ClosedTabs)
	_, err = f.host.Memory.GetTab(f.ctx, tabIDs[0])
	require.ErrorIs(t, err, host.ErrNotFound)

	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID, Reopen: true})
	require.NoError(t, err)
	require.True(t, restored.Reopened)

	groups := groupsByTitle(t, f, 0)
	require.Contains(t, groups, "Docs")
	require.Equal(t, "blue", groups["Docs"].Color)
	require.Len(t, tabsIn(t, f, groups["Docs"].ID), 2)

	// Reopening refreshed the active list from the host.
	list, err := f.c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)
	require.Equal(t, group.FromHost(groups["Docs"].ID), list.Groups[0].ID)
	require.Equal(t, restored.Signature, list.Groups[0].Signature)
}

func TestArchive_ClosesTabsByOption(t *testing.T) {
	f := newFixture(t)
	f.c.opts.ArchiveClosesTabs = true
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	out, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid)})
	require.NoError(t, err)
	require.True(t, out.ClosedTabs)
	require.Empty(t, groupsByTitle(t, f, 0))
}

func TestArchive_Guards(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)
	id := group.FromHost(gid)

	_, err := f.c.ToggleLock(f.ctx, ToggleInput{ID: id})
	require.NoError(t, err)
	_, err = f.c.Archive(f.ctx, ArchiveInput{ID: id})
	requireCode(t, err, grerrors.ErrGroupLocked)

	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	_, err = f.c.Archive(f.ctx, ArchiveInput{ID: closed.Groups[0].ID})
	requireCode(t, err, grerrors.ErrWrongView)

	_, err = f.c.Restore(f.ctx, RestoreInput{ID: id})
	requireCode(t, err, grerrors.ErrWrongView)

	_, err = f.c.Restore(f.ctx, RestoreInput{ID: "missing"})
	requireCode(t, err, grerrors.ErrNotFound)
}

func TestArchive_PersistFailureLeavesModel(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	f.kv.FailSet = errors.New("disk full")
	_, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid)})
	requireCode(t, err, grerrors.ErrInternal)

	got, view, err := f.c.Get(f.ctx, "", group.FromHost(gid))
	require.NoError(t, err)
	require.Equal(t, ViewActive, view)
	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	require.Equal(t, group.CategoryHistory, closed.Groups[0].Category)
	require.Equal(t, got.Signature, closed.Groups[0].Signature)
}

func TestDelete_ActiveClosesTabs(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/", "https://b.example/")
	f.addGroup(t, "Keep", "https://k.example/")
	f.refresh(t)

	out, err := f.c.Delete(f.ctx, DeleteInput{View: ViewActive, ID: group.FromHost(gid)})
	require.NoError(t, err)
	require.True(t, out.Deleted)
	require.Equal(t, ViewActive, out.View)
	require.NotContains(t, groupsByTitle(t, f, 0), "Docs")

	list, err := f.c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, list.Groups, 1)

	// History keeps the snapshot.
	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed, Search: "docs"})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
}

func TestDelete_ActiveHostFailure(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)
	f.host.fail["CloseTabs"] = errors.New("refused")

	out, err := f.c.Delete(f.ctx, DeleteInput{ID: group.FromHost(gid)})
	require.NoError(t, err)
	require.False(t, out.Deleted)

	_, _, err = f.c.Get(f.ctx, ViewActive, group.FromHost(gid))
	require.NoError(t, err)
}

func TestDelete_History(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.addGroup(t, "Music", "https://m.example/")
	f.refresh(t)

	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed, Search: "music"})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	id := closed.Groups[0].ID

	out, err := f.c.Delete(f.ctx, DeleteInput{View: ViewClosed, ID: id})
	require.NoError(t, err)
	require.True(t, out.Deleted)

	c := f.reload()
	after, err := c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, after.Groups, 1)
	require.Equal(t, "Docs", after.Groups[0].Title)
}

func TestDelete_LockedGroup(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)
	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	id := closed.Groups[0].ID

	_, err = f.c.ToggleLock(f.ctx, ToggleInput{View: ViewClosed, ID: id})
	require.NoError(t, err)
	_, err = f.c.Delete(f.ctx, DeleteInput{View: ViewClosed, ID: id})
	requireCode(t, err, grerrors.ErrGroupLocked)

	// Unlocking is a toggle.
	out, err := f.c.ToggleLock(f.ctx, ToggleInput{View: ViewClosed, ID: id})
	require.NoError(t, err)
	require.False(t, out.On)
	_, err = f.c.Delete(f.ctx, DeleteInput{View: ViewClosed, ID: id})
	require.NoError(t, err)
}

func TestToggle_PersistsAcrossRestart(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	_, err := f.c.ToggleStar(f.ctx, ToggleInput{ID: group.FromHost(gid)})
	require.NoError(t, err)

	c := f.reload()
	_, err = c.Refresh(f.ctx)
	require.NoError(t, err)
	got, _, err := c.Get(f.ctx, ViewActive, group.FromHost(gid))
	require.NoError(t, err)
	require.True(t, got.Starred)
	require.False(t, got.Locked)
}

func TestSetCategory_RelabelsEverySameGroup(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.addGroup(t, "Music", "https://m.example/")
	f.refresh(t)

	out, err := f.c.SetCategory(f.ctx, SetCategoryInput{ID: group.FromHost(gid), Category: " Work "})
	require.NoError(t, err)
	require.Equal(t, "Work", out.Category)
	require.Equal(t, 2, out.Updated)

	closed, err := f.c.List(f.ctx, ListInput{View: ViewClosed, Search: "work"})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
	require.Equal(t, []string{"Work"}, closed.Categories)

	// A fresh session resolves the category from the map.
	c := f.reload()
	_, err = c.Refresh(f.ctx)
	require.NoError(t, err)
	got, _, err := c.Get(f.ctx, ViewActive, group.FromHost(gid))
	require.NoError(t, err)
	require.Equal(t, "Work", got.Category)

	_, err = f.c.SetCategory(f.ctx, SetCategoryInput{ID: group.FromHost(gid), Category: "  "})
	requireCode(t, err, grerrors.ErrInvalidRequest)
}

func TestSetCategory_Locked(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)
	_, err := f.c.ToggleLock(f.ctx, ToggleInput{ID: group.FromHost(gid)})
	require.NoError(t, err)

	_, err = f.c.SetCategory(f.ctx, SetCategoryInput{ID: group.FromHost(gid), Category: "Work"})
	requireCode(t, err, grerrors.ErrGroupLocked)
}

func TestAddCategory(t *testing.T) {
	f := newFixture(t)

	out, err := f.c.AddCategory(f.ctx, "Reading")
	require.NoError(t, err)
	require.True(t, out.Added)

	out, err = f.c.AddCategory(f.ctx, "Reading")
	require.NoError(t, err)
	require.False(t, out.Added)
	require.Equal(t, []string{"Reading"}, out.Categories)

	_, err = f.c.AddCategory(f.ctx, "")
	requireCode(t, err, grerrors.ErrInvalidRequest)
}

func ptr[T any](v T) *T { return &v }

func TestRestore_ReopensWhenTabsWereClosed(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/", "https://b.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid), CloseTabs: ptr(true)})
	require.NoError(t, err)
	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	require.NoError(t, err)
	require.True(t, restored.Reopened)

	// The group outlives a restart because it is open again.
	c := f.reload()
	_, err = c.Refresh(f.ctx)
	require.NoError(t, err)
	active, err := c.List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, active.Groups, 1)
	require.Equal(t, restored.Signature, active.Groups[0].Signature)
	closed, err := c.List(f.ctx, ListInput{View: ViewClosed})
	require.NoError(t, err)
	require.Len(t, closed.Groups, 1)
}

func TestRestore_ReopenFailureKeepsHistory(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid), CloseTabs: ptr(true)})
	require.NoError(t, err)
	f.host.fail["CreateTab"] = errors.New("browser busy")

	_, err = f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	requireCode(t, err, grerrors.ErrInternal)

	got, view, err := f.reload().Get(f.ctx, "", archived.ID)
	require.NoError(t, err)
	require.Equal(t, ViewClosed, view)
	require.Equal(t, group.CategoryRecycle, got.Category)
}

func TestRestore_PersistFailureClosesReopenedTabs(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(gid), CloseTabs: ptr(true)})
	require.NoError(t, err)
	f.kv.FailSet = errors.New("disk full")

	_, err = f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	requireCode(t, err, grerrors.ErrInternal)
	require.Empty(t, groupsByTitle(t, f, 0))

	f.kv.FailSet = nil
	_, view, err := f.c.Get(f.ctx, "", archived.ID)
	require.NoError(t, err)
	require.Equal(t, ViewClosed, view)
}

func TestDelete_RestoredCopyOnlyClosesItsOwnTabs(t *testing.T) {
	f := newFixture(t)
	a, aTabs := f.addGroup(t, "A", "https://a.example/1", "https://a.example/2")
	b, _ := f.addGroup(t, "B", "https://b.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(a)})
	require.NoError(t, err)
	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	require.NoError(t, err)
	require.False(t, restored.Reopened)

	_, err = f.c.ToggleLock(f.ctx, ToggleInput{ID: group.FromHost(b)})
	require.NoError(t, err)
	require.NoError(t, f.host.Memory.AddTabsToGroup(f.ctx, b, aTabs[:1]))

	out, err := f.c.Delete(f.ctx, DeleteInput{View: ViewActive, ID: restored.ID})
	require.NoError(t, err)
	require.False(t, out.Deleted)
	require.Len(t, tabsIn(t, f, b), 2)
	require.Len(t, tabsIn(t, f, a), 1)
}

func TestDelete_RestoredCopyClosesLiveGroup(t *testing.T) {
	f := newFixture(t)
	a, _ := f.addGroup(t, "A", "https://a.example/1", "https://a.example/2")
	f.addGroup(t, "B", "https://b.example/")
	f.refresh(t)

	archived, err := f.c.Archive(f.ctx, ArchiveInput{ID: group.FromHost(a)})
	require.NoError(t, err)
	restored, err := f.c.Restore(f.ctx, RestoreInput{ID: archived.ID})
	require.NoError(t, err)

	out, err := f.c.Delete(f.ctx, DeleteInput{View: ViewActive, ID: restored.ID})
	require.NoError(t, err)
	require.True(t, out.Deleted)
	groups := groupsByTitle(t, f, 0)
	require.NotContains(t, groups, "A")
	require.Contains(t, groups, "B")
}

func TestSetCategory_PersistsMapLast(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.addGroup(t, "Docs", "https://a.example/")
	f.refresh(t)
	id := group.FromHost(gid)

	f.kv.FailKeys = map[string]error{state.KeyCategoryMap: errors.New("disk full")}
	_, err := f.c.SetCategory(f.ctx, SetCategoryInput{ID: id, Category: "Work"})
	requireCode(t, err, grerrors.ErrInternal)

	got, _, err := f.c.Get(f.ctx, ViewActive, id)
	require.NoError(t, err)
	require.Equal(t, group.CategoryUncategorized, got.Category)

	// No mapping reached the store, so a new session does not apply it.
	got, _, err = f.reload().Get(f.ctx, ViewActive, id)
	require.NoError(t, err)
	require.Equal(t, group.CategoryUncategorized, got.Category)

	f.kv.FailKeys = map[string]error{state.KeyCategories: errors.New("disk full")}
	_, err = f.c.SetCategory(f.ctx, SetCategoryInput{ID: id, Category: "Play"})
	requireCode(t, err, grerrors.ErrInternal)
	list, err := f.reload().List(f.ctx, ListInput{View: ViewActive})
	require.NoError(t, err)
	require.Equal(t, group.CategoryUncategorized, list.Groups[0].Category)
	require.NotContains(t, list.Categories, "Play")
}
