package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/state"
)

// ArchiveInput contains parameters for the Archive operation.
type ArchiveInput struct {
	ID group.ID
	// CloseTabs overrides Options.ArchiveClosesTabs when set.
	CloseTabs *bool
}

// ArchiveOutput contains the result of the Archive operation.
type ArchiveOutput struct {
	ID         group.ID `json:"id"`
	Signature  string   `json:"signature"`
	ClosedTabs bool     `json:"closed_tabs"`
}

// Archive moves an active group into history under the Recycle category.
// Any older history entry with the same signature is replaced.
func (c *Coordinator) Archive(ctx context.Context, input ArchiveInput) (*ArchiveOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	_, i, err := c.find("archive", ViewActive, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.active[i]
	if c.locked(g) {
		return nil, errors.NewGroupLocked(group.SignatureOf(g))
	}

	archived := group.WithSignature(g.Clone())
	archived.ID = "archived-" + g.ID
	archived.Category = group.CategoryRecycle
	archived.UpdatedAt = nowMillis(c.now)

	closed := append([]group.TabGroup{archived}, group.WithoutSignature(c.model.Closed, archived.Signature)...)
	if err := c.store.SaveClosed(ctx, closed); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	c.model.Closed = closed
	c.active = slices.Delete(slices.Clone(c.active), i, i+1)

	out := &ArchiveOutput{ID: archived.ID, Signature: archived.Signature}

	closeTabs := c.opts.ArchiveClosesTabs
	if input.CloseTabs != nil {
		closeTabs = *input.CloseTabs
	}
	if closeTabs {
		out.ClosedTabs = c.closeGroupTabs(ctx, g)
	}
	return out, nil
}

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	ID group.ID
	// Reopen recreates the group's tabs in the browser.
	Reopen bool
}

// RestoreOutput contains the result of the Restore operation.
type RestoreOutput struct {
	ID        group.ID `json:"id"`
	Signature string   `json:"signature"`
	Category  string   `json:"category"`
	Reopened  bool     `json:"reopened"`
}

// Restore moves a history entry back into the active collection. The Recycle
// category is replaced by the mapped category or Uncategorized. When no open
// group carries the entry's signature the tabs are reopened even if the
// request did not ask for it; if they cannot be opened the entry stays in
// history.
func (c *Coordinator) Restore(ctx context.Context, input RestoreInput) (*RestoreOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	_, i, err := c.find("restore", ViewClosed, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.model.Closed[i]

	restored := g.Clone()
	restored.ID = "restored-" + g.ID
	restored.Signature = group.SignatureOf(g)
	category := g.Category
	if category == group.CategoryRecycle {
		category = ""
	}
	restored.Category = c.resolveCategory(restored.Signature, category)

	out := &RestoreOutput{ID: restored.ID, Signature: restored.Signature, Category: restored.Category}
	reopen := input.Reopen
	if !reopen && len(restored.URLs()) > 0 {
		live, err := c.liveTabIDs(ctx, restored.Signature, nil)
		if err != nil {
			c.logger.Warn("restore: host snapshot failed", "group", g.ID, "error", err)
		}
		reopen = len(live) == 0
	}
	reopenedID := 0
	if reopen {
		gid, ok := c.openSnapshot(ctx, restored)
		if !ok {
			return nil, errors.NewInternal(fmt.Errorf("restore %s: tabs could not be reopened", g.ID))
		}
		reopenedID = gid
		out.Reopened = true
	}

	closed := slices.Delete(slices.Clone(c.model.Closed), i, i+1)
	if err := c.store.SaveClosed(ctx, closed); err != nil {
		if out.Reopened {
			c.closeGroupTabs(ctx, group.TabGroup{ID: group.FromHost(reopenedID)})
		}
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	c.model.Closed = closed
	c.active = append([]group.TabGroup{restored}, c.active...)
	if out.Reopened {
		c.refreshAfter(ctx, "restore")
	}
	return out, nil
}

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	View View
	ID   group.ID
}

// DeleteOutput contains the result of the Delete operation.
// For an active group Deleted is false when the host could not close its tabs.
type DeleteOutput struct {
	Deleted bool     `json:"deleted"`
	ID      group.ID `json:"id"`
	View    View     `json:"view"`
}

// Delete removes a group. An active group's tabs are closed in the browser;
// a history entry is dropped from history.
func (c *Coordinator) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find("delete", input.View, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.groups(view)[i]
	if c.locked(g) {
		return nil, errors.NewGroupLocked(group.SignatureOf(g))
	}
	out := &DeleteOutput{ID: g.ID, View: view}

	if view == ViewActive {
		if !c.closeGroupTabs(ctx, g) {
			return out, nil
		}
		c.active = slices.Delete(slices.Clone(c.active), i, i+1)
		out.Deleted = true
		c.refreshAfter(ctx, "delete")
		return out, nil
	}

	closed := slices.DeleteFunc(slices.Clone(c.model.Closed), func(x group.TabGroup) bool { return x.ID == g.ID })
	if err := c.store.SaveClosed(ctx, closed); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	c.model.Closed = closed
	out.Deleted = true
	return out, nil
}

// closeGroupTabs closes every live tab of g. It reports false when there was
// nothing to close or the host failed.
func (c *Coordinator) closeGroupTabs(ctx context.Context, g group.TabGroup) bool {
	var tabIDs []int
	if gid, ok := g.ID.HostID(); ok {
		tabs, err := c.host.ListTabs(ctx, host.TabQuery{GroupID: host.InGroup(gid)})
		if err != nil {
			c.logger.Warn("close group tabs: list tabs failed", "group", g.ID, "error", err)
			return false
		}
		for _, t := range tabs {
			tabIDs = append(tabIDs, t.ID)
		}
	} else {
		live, err := c.liveTabIDs(ctx, group.SignatureOf(g), hostTabIDs(g))
		if err != nil {
			c.logger.Warn("close group tabs: host snapshot failed", "group", g.ID, "error", err)
			return false
		}
		tabIDs = live
	}
	if len(tabIDs) == 0 {
		return false
	}
	if err := c.host.CloseTabs(ctx, tabIDs); err != nil {
		c.logger.Warn("close group tabs failed", "group", g.ID, "error", err)
		return false
	}
	return true
}

// liveTabIDs returns the ids of open tabs that sit in a group whose signature
// is sig. When only is non-nil the result is restricted to those ids.
func (c *Coordinator) liveTabIDs(ctx context.Context, sig string, only []int) ([]int, error) {
	active, err := c.snapshotActive(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, a := range active {
		if a.Signature != sig {
			continue
		}
		for _, id := range hostTabIDs(a) {
			if only == nil || slices.Contains(only, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ToggleInput addresses a group for ToggleLock and ToggleStar.
type ToggleInput struct {
	View View
	ID   group.ID
}

// ToggleOutput reports the new membership.
type ToggleOutput struct {
	Signature string `json:"signature"`
	On        bool   `json:"on"`
}

// ToggleLock flips the group's signature in the locked set.
func (c *Coordinator) ToggleLock(ctx context.Context, input ToggleInput) (*ToggleOutput, error) {
	return c.toggle(ctx, "lock", input, func(m *state.Model) *group.SignatureSet { return &m.Locked },
		c.store.SaveLocked, state.KeyLocked)
}

// ToggleStar flips the group's signature in the starred set.
func (c *Coordinator) ToggleStar(ctx context.Context, input ToggleInput) (*ToggleOutput, error) {
	return c.toggle(ctx, "star", input, func(m *state.Model) *group.SignatureSet { return &m.Starred },
		c.store.SaveStarred, state.KeyStarred)
}

func (c *Coordinator) toggle(
	ctx context.Context,
	action string,
	input ToggleInput,
	set func(*state.Model) *group.SignatureSet,
	save func(context.Context, group.SignatureSet) error,
	key string,
) (*ToggleOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find(action, input.View, input.ID)
	if err != nil {
		return nil, err
	}
	sig := group.SignatureOf(c.groups(view)[i])
	next, on := set(c.model).Toggled(sig)
	if err := save(ctx, next); err != nil {
		return nil, c.persistErr(key, err)
	}
	*set(c.model) = next
	return &ToggleOutput{Signature: sig, On: on}, nil
}

// SetCategoryInput contains parameters for the SetCategory operation.
type SetCategoryInput struct {
	View     View
	ID       group.ID
	Category string
}

// SetCategoryOutput contains the result of the SetCategory operation.
type SetCategoryOutput struct {
	Signature string `json:"signature"`
	Category  string `json:"category"`
	Updated   int    `json:"updated"`
}

// SetCategory maps the group's signature to a category. Every group with
// that signature, active or in history, takes the category.
func (c *Coordinator) SetCategory(ctx context.Context, input SetCategoryInput) (*SetCategoryOutput, error) {
	name := strings.TrimSpace(input.Category)
	if name == "" {
		return nil, errors.NewInvalidRequest("category must not be empty")
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find("set category", input.View, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.groups(view)[i]
	if c.locked(g) {
		return nil, errors.NewGroupLocked(group.SignatureOf(g))
	}
	sig := group.SignatureOf(g)

	categoryMap := make(map[string]string, len(c.model.CategoryMap)+1)
	for k, v := range c.model.CategoryMap {
		categoryMap[k] = v
	}
	categoryMap[sig] = name
	categories := c.model.Categories
	if !slices.Contains(categories, name) {
		categories = append(slices.Clone(categories), name)
	}

	updated := 0
	relabel := func(groups []group.TabGroup) []group.TabGroup {
		out := slices.Clone(groups)
		for j := range out {
			if group.SignatureOf(out[j]) == sig {
				out[j].Category = name
				updated++
			}
		}
		return out
	}
	active := relabel(c.active)
	closed := relabel(c.model.Closed)

	// Saved from least to most authoritative. A failure part way leaves an
	// extra category name or relabeled history, never a mapping to a
	// category the list does not know.
	if err := c.store.SaveCategories(ctx, categories); err != nil {
		return nil, c.persistErr(state.KeyCategories, err)
	}
	if err := c.store.SaveClosed(ctx, closed); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	if err := c.store.SaveCategoryMap(ctx, categoryMap); err != nil {
		return nil, c.persistErr(state.KeyCategoryMap, err)
	}
	c.model.CategoryMap = categoryMap
	c.model.Categories = categories
	c.active = active
	c.model.Closed = closed
	return &SetCategoryOutput{Signature: sig, Category: name, Updated: updated}, nil
}

// AddCategoryOutput contains the result of the AddCategory operation.
type AddCategoryOutput struct {
	Category   string   `json:"category"`
	Added      bool     `json:"added"`
	Categories []string `json:"categories"`
}

// AddCategory appends a category name to the known list.
func (c *Coordinator) AddCategory(ctx context.Context, name string) (*AddCategoryOutput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("category must not be empty")
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if slices.Contains(c.model.Categories, name) {
		return &AddCategoryOutput{Category: name, Categories: slices.Clone(c.model.Categories)}, nil
	}
	categories := append(slices.Clone(c.model.Categories), name)
	if err := c.store.SaveCategories(ctx, categories); err != nil {
		return nil, c.persistErr(state.KeyCategories, err)
	}
	c.model.Categories = categories
	return &AddCategoryOutput{Category: name, Added: true, Categories: slices.Clone(categories)}, nil
}
