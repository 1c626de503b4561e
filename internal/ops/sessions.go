package ops

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/state"
)

const sessionColor = "grey"

// SessionGroups turns recently closed entries into history groups: one per
// closed window, plus one "Recently closed tabs" group gathering every loose
// tab and stamped with the newest of their times. The result is sorted
// newest first. Entry times are seconds; group times are milliseconds.
func SessionGroups(entries []host.ClosedEntry, now int64) []group.TabGroup {
	var groups []group.TabGroup
	var loose []group.Tab
	var looseUpdated int64

	for i, e := range entries {
		updated := e.LastModified * 1000
		if updated <= 0 {
			updated = now
		}
		if len(e.Window) > 0 {
			tabs := make([]group.Tab, len(e.Window))
			for j, t := range e.Window {
				tabs[j] = closedTab(t, fmt.Sprintf("session-window-%d-tab-%d", i, j))
			}
			key := e.SessionID
			if key == "" {
				key = fmt.Sprint(i)
			}
			groups = append(groups, group.TabGroup{
				ID:        group.ID("session-window-" + key),
				Title:     fmt.Sprintf("Recently closed window %d", i+1),
				Color:     sessionColor,
				Category:  group.CategoryHistory,
				UpdatedAt: updated,
				Tabs:      tabs,
			})
			continue
		}
		if e.Tab != nil {
			id := e.SessionID
			if id == "" {
				id = fmt.Sprintf("session-tab-%d", i)
			}
			loose = append(loose, closedTab(*e.Tab, id))
			looseUpdated = max(looseUpdated, updated)
		}
	}

	if len(loose) > 0 {
		if looseUpdated == 0 {
			looseUpdated = now
		}
		groups = append(groups, group.TabGroup{
			ID:        "session-tabs",
			Title:     "Recently closed tabs",
			Color:     sessionColor,
			Category:  group.CategoryHistory,
			UpdatedAt: looseUpdated,
			Tabs:      loose,
		})
	}

	for i := range groups {
		groups[i] = group.WithSignature(groups[i])
	}
	slices.SortStableFunc(groups, func(a, b group.TabGroup) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})
	return groups
}

func closedTab(t host.ClosedTab, id string) group.Tab {
	title := t.Title
	if title == "" {
		title = t.URL
	}
	if title == "" {
		title = group.UntitledTab
	}
	return group.Tab{ID: group.ID(id), Title: title, URL: t.URL, FavIconURL: t.FavIconURL}
}

// ImportClosedOutput contains the result of the ImportClosed operation.
type ImportClosedOutput struct {
	Applied  bool `json:"applied"`
	Imported int  `json:"imported"`
	Added    int  `json:"added"`
}

// ImportClosed merges the browser's recently closed windows and tabs into
// history. Nothing to import is a successful zero result.
func (c *Coordinator) ImportClosed(ctx context.Context) (*ImportClosedOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if c.sessions == nil {
		return &ImportClosedOutput{}, nil
	}
	entries, err := c.sessions.RecentlyClosed(ctx, c.opts.SessionMaxResults)
	if err != nil {
		c.logger.Warn("import closed: session history failed", "error", err)
		return &ImportClosedOutput{}, nil
	}
	groups := SessionGroups(entries, nowMillis(c.now))
	if len(groups) == 0 {
		return &ImportClosedOutput{Applied: true}, nil
	}

	merged := c.withCategories(group.Merge(groups, c.model.Closed))
	if err := c.store.SaveClosed(ctx, merged); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	added := len(merged) - len(c.model.Closed)
	c.model.Closed = merged
	return &ImportClosedOutput{Applied: true, Imported: len(groups), Added: added}, nil
}
