package ops

import (
	"context"
	"slices"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/state"
)

// DedupeInput contains parameters for the Dedupe operation.
type DedupeInput struct {
	View View
	ID   group.ID
}

// DedupeOutput contains the result of the Dedupe operation.
type DedupeOutput struct {
	Removed int `json:"removed"`
}

// Dedupe keeps the first tab of each distinct URL (else title) in a group.
// For an active group the duplicates are closed in the browser; a host
// failure reports zero removed.
func (c *Coordinator) Dedupe(ctx context.Context, input DedupeInput) (*DedupeOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find("dedupe", input.View, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.groups(view)[i]
	if c.locked(g) {
		return nil, errors.NewGroupLocked(group.SignatureOf(g))
	}

	if view == ViewActive {
		removed := c.dedupeLive(ctx, g)
		if removed > 0 {
			c.refreshAfter(ctx, "dedupe")
		}
		return &DedupeOutput{Removed: removed}, nil
	}

	tabs, removed := group.DedupeTabs(g.Tabs)
	if removed == 0 {
		return &DedupeOutput{}, nil
	}
	updated := g.Clone()
	updated.Tabs = tabs
	updated = group.WithSignature(updated)

	closed := slices.Clone(c.model.Closed)
	closed[i] = updated
	if err := c.store.SaveClosed(ctx, closed); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	c.model.Closed = closed
	return &DedupeOutput{Removed: removed}, nil
}

func (c *Coordinator) dedupeLive(ctx context.Context, g group.TabGroup) int {
	gid, ok := g.ID.HostID()
	if !ok {
		return 0
	}
	tabs, err := c.host.ListTabs(ctx, host.TabQuery{GroupID: host.InGroup(gid)})
	if err != nil {
		c.logger.Warn("dedupe: list tabs failed", "group", gid, "error", err)
		return 0
	}
	seen := make(map[string]struct{}, len(tabs))
	var duplicates []int
	for _, t := range tabs {
		k := t.Key()
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			duplicates = append(duplicates, t.ID)
			continue
		}
		seen[k] = struct{}{}
	}
	if len(duplicates) == 0 {
		return 0
	}
	if err := c.host.CloseTabs(ctx, duplicates); err != nil {
		c.logger.Warn("dedupe: close tabs failed", "group", gid, "error", err)
		return 0
	}
	return len(duplicates)
}
