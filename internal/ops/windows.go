package ops

import (
	"context"

	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/rules"
)

// MergeWindowsOutput contains the result of the MergeWindows operation.
type MergeWindowsOutput struct {
	Applied      bool `json:"applied"`
	MovedWindows int  `json:"moved_windows"`
	MovedTabs    int  `json:"moved_tabs"`
}

// MergeWindows moves every other normal window's tabs into the current
// window. Groups are recreated there with their title and color.
func (c *Coordinator) MergeWindows(ctx context.Context) (*MergeWindowsOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := c.mergeWindows(ctx)
	if out.MovedTabs > 0 {
		c.refreshAfter(ctx, "merge windows")
	}
	return out, nil
}

func (c *Coordinator) mergeWindows(ctx context.Context) *MergeWindowsOutput {
	out := &MergeWindowsOutput{}
	current, err := c.host.CurrentWindow(ctx)
	if err != nil {
		c.logger.Warn("merge windows: no current window", "error", err)
		return out
	}
	windows, err := c.host.ListWindows(ctx, rules.Scope{Kind: rules.ScopeAll})
	if err != nil {
		c.logger.Warn("merge windows: list windows failed", "error", err)
		return out
	}

	for _, w := range windows {
		if w.ID == current.ID {
			continue
		}
		tabs, err := c.host.ListTabs(ctx, host.TabQuery{WindowID: w.ID})
		if err != nil {
			c.logger.Warn("merge windows: list tabs failed", "window", w.ID, "error", err)
			return out
		}
		if len(tabs) == 0 {
			continue
		}
		groups, err := c.host.ListGroups(ctx, w.ID)
		if err != nil {
			c.logger.Warn("merge windows: list groups failed", "window", w.ID, "error", err)
			return out
		}

		byGroup := make(map[int][]int)
		var ungrouped []int
		for _, t := range tabs {
			if t.GroupID == host.NoGroup {
				ungrouped = append(ungrouped, t.ID)
				continue
			}
			byGroup[t.GroupID] = append(byGroup[t.GroupID], t.ID)
		}

		for _, g := range groups {
			tabIDs := byGroup[g.ID]
			if len(tabIDs) == 0 {
				continue
			}
			if !c.moveTabs(ctx, tabIDs, current.ID) {
				return out
			}
			color := g.Color
			if color == "" {
				color = NewGroupColor
			}
			if _, err := c.host.CreateGroup(ctx, tabIDs, current.ID, g.Title, color); err != nil {
				c.logger.Warn("merge windows: regroup failed", "group", g.Title, "error", err)
				out.MovedTabs += len(tabIDs)
				return out
			}
			out.MovedTabs += len(tabIDs)
		}
		if len(ungrouped) > 0 {
			if !c.moveTabs(ctx, ungrouped, current.ID) {
				return out
			}
			out.MovedTabs += len(ungrouped)
		}
		out.MovedWindows++
	}
	out.Applied = true
	return out
}

func (c *Coordinator) moveTabs(ctx context.Context, tabIDs []int, windowID int) bool {
	for _, id := range tabIDs {
		if err := c.host.MoveTab(ctx, id, windowID); err != nil {
			c.logger.Warn("move tab failed", "tab", id, "window", windowID, "error", err)
			return false
		}
	}
	return true
}

// RunClassifyInput contains parameters for the Coordinator's Classify.
type RunClassifyInput struct {
	// Scope overrides the stored scope when set.
	Scope *rules.Scope
}

// Classify runs the stored rules over the stored (or given) scope and
// refreshes active groups when anything moved.
func (c *Coordinator) Classify(ctx context.Context, input RunClassifyInput) (*ClassifyOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	scope := c.model.Scope
	if input.Scope != nil {
		scope = *input.Scope
	}
	out := Classify(ctx, c.host, c.logger, ClassifyInput{Rules: c.model.Rules, Scope: scope})
	if out.MovedTabCount > 0 {
		c.refreshAfter(ctx, "classify")
	}
	return &out, nil
}

// GroupByDomain groups ungrouped tabs by hostname and refreshes active groups.
func (c *Coordinator) GroupByDomain(ctx context.Context) (*GroupByDomainOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := GroupByDomain(ctx, c.host, c.logger)
	if out.MovedTabCount > 0 {
		c.refreshAfter(ctx, "group by domain")
	}
	return &out, nil
}
