package ops

import (
	"context"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
)

// FilterSelection applies the merge-duplicates policy to a selection bound
// for a group already holding targetURLs. With mergeDuplicates, a tab is
// dropped when its URL is already in the target or appeared earlier in the
// selection. Tabs without a URL are always kept.
func FilterSelection(selected []host.Tab, targetURLs []string, mergeDuplicates bool) []host.Tab {
	if !mergeDuplicates {
		return selected
	}
	seen := make(map[string]struct{}, len(targetURLs)+len(selected))
	for _, u := range targetURLs {
		if u != "" {
			seen[u] = struct{}{}
		}
	}
	out := make([]host.Tab, 0, len(selected))
	for _, t := range selected {
		u := liveURL(t)
		if u != "" {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}

// MoveTabsInput contains parameters for the MoveTabs operation.
type MoveTabsInput struct {
	TabIDs   []int
	SourceID group.ID
	TargetID group.ID
	// Copy opens each selected URL as a new tab in the target instead of
	// relocating the original.
	Copy bool
	// MergeDuplicates skips tabs whose URL the target already has.
	MergeDuplicates bool
}

// MoveTabsOutput contains the result of the MoveTabs operation.
// Applied is false when a host call failed; Moved counts tabs placed in the
// target before that.
type MoveTabsOutput struct {
	Applied bool `json:"applied"`
	Moved   int  `json:"moved"`
	Skipped int  `json:"skipped"`
}

// MoveTabs moves or copies selected tabs into an active target group.
// A selection that filters down to nothing is a successful no-op.
func (c *Coordinator) MoveTabs(ctx context.Context, input MoveTabsInput) (*MoveTabsOutput, error) {
	if len(input.TabIDs) == 0 {
		return nil, errors.NewNoSelection("no tabs selected")
	}
	if input.TargetID == "" {
		return nil, errors.NewNoSelection("no target group selected")
	}
	if input.SourceID != "" && input.SourceID == input.TargetID {
		return nil, errors.NewInvalidRequest("source and target group must differ")
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	target, targetHostID, err := c.liveTarget("move tabs", input.SourceID, input.TargetID)
	if err != nil {
		return nil, err
	}

	var selected []host.Tab
	for _, id := range input.TabIDs {
		t, err := c.host.GetTab(ctx, id)
		if err != nil {
			c.logger.Warn("move tabs: tab lookup failed", "tab", id, "error", err)
			continue
		}
		selected = append(selected, t)
	}
	if len(selected) == 0 {
		return nil, errors.NewNoSelection("none of the selected tabs exist")
	}

	filtered := FilterSelection(selected, target.URLs(), input.MergeDuplicates)
	out := &MoveTabsOutput{Applied: true, Skipped: len(input.TabIDs) - len(filtered)}
	if len(filtered) == 0 {
		return out, nil
	}

	if input.Copy {
		var urls []string
		for _, t := range filtered {
			if u := liveURL(t); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			return nil, errors.NewNoSelection("selected tabs have no links to copy")
		}
		out.Moved, out.Applied = c.createTabsInGroup(ctx, urls, targetHostID, target.WindowID)
	} else {
		for _, t := range filtered {
			if !c.moveTabToGroup(ctx, t, targetHostID, target.WindowID) {
				out.Applied = false
				break
			}
			out.Moved++
		}
	}
	c.refreshAfter(ctx, "move tabs")
	return out, nil
}

// MoveTabInput contains parameters for the MoveTab operation.
type MoveTabInput struct {
	TabID    int
	SourceID group.ID
	TargetID group.ID
}

// MoveTabOutput contains the result of the MoveTab operation.
type MoveTabOutput struct {
	Moved bool `json:"moved"`
}

// MoveTab moves a single live tab into another active group, crossing
// windows when needed.
func (c *Coordinator) MoveTab(ctx context.Context, input MoveTabInput) (*MoveTabOutput, error) {
	if input.TargetID == "" {
		return nil, errors.NewNoSelection("no target group selected")
	}
	if input.SourceID != "" && input.SourceID == input.TargetID {
		return nil, errors.NewInvalidRequest("source and target group must differ")
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	target, targetHostID, err := c.liveTarget("move tab", input.SourceID, input.TargetID)
	if err != nil {
		return nil, err
	}
	t, err := c.host.GetTab(ctx, input.TabID)
	if err != nil {
		c.logger.Warn("move tab: tab lookup failed", "tab", input.TabID, "error", err)
		return &MoveTabOutput{}, nil
	}
	if t.GroupID == targetHostID {
		return &MoveTabOutput{}, nil
	}
	if !c.moveTabToGroup(ctx, t, targetHostID, target.WindowID) {
		return &MoveTabOutput{}, nil
	}
	c.refreshAfter(ctx, "move tab")
	return &MoveTabOutput{Moved: true}, nil
}

// liveTarget checks the move guards and resolves the target to an active
// group backed by a native group.
func (c *Coordinator) liveTarget(action string, sourceID, targetID group.ID) (group.TabGroup, int, error) {
	if sourceID != "" {
		_, si, err := c.find(action, ViewActive, sourceID)
		if err != nil {
			return group.TabGroup{}, 0, err
		}
		if source := c.active[si]; c.locked(source) {
			return group.TabGroup{}, 0, errors.NewGroupLocked(group.SignatureOf(source))
		}
	}
	_, ti, err := c.find(action, ViewActive, targetID)
	if err != nil {
		return group.TabGroup{}, 0, err
	}
	target := c.active[ti]
	hostID, ok := target.ID.HostID()
	if !ok {
		return group.TabGroup{}, 0, errors.NewInvalidRequest("target group is not open in the browser; reopen it first")
	}
	return target, hostID, nil
}

// moveTabToGroup relocates a tab to the target's window if needed and adds
// it to the group.
func (c *Coordinator) moveTabToGroup(ctx context.Context, t host.Tab, groupID, windowID int) bool {
	if windowID != 0 && t.WindowID != windowID {
		if err := c.host.MoveTab(ctx, t.ID, windowID); err != nil {
			c.logger.Warn("move tab to window failed", "tab", t.ID, "window", windowID, "error", err)
			return false
		}
	}
	if err := c.host.AddTabsToGroup(ctx, groupID, []int{t.ID}); err != nil {
		c.logger.Warn("add tab to group failed", "tab", t.ID, "group", groupID, "error", err)
		return false
	}
	return true
}

// createTabsInGroup opens urls in windowID and adds them to groupID. It
// returns how many tabs ended up in the group and whether every step
// succeeded. Tabs created before a failure are left open.
func (c *Coordinator) createTabsInGroup(ctx context.Context, urls []string, groupID, windowID int) (int, bool) {
	created := make([]int, 0, len(urls))
	ok := true
	for i, u := range urls {
		id, err := c.host.CreateTab(ctx, u, windowID, i == 0)
		if err != nil {
			c.logger.Warn("create tab failed", "url", u, "error", err)
			ok = false
			continue
		}
		created = append(created, id)
	}
	if len(created) == 0 {
		return 0, false
	}
	if err := c.host.AddTabsToGroup(ctx, groupID, created); err != nil {
		c.logger.Warn("add created tabs to group failed", "group", groupID, "error", err)
		return 0, false
	}
	return len(created), ok
}
