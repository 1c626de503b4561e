package ops

import (
	"context"
	"slices"
	"strings"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/rules"
)

// OpenInput contains parameters for the Open operation.
type OpenInput struct {
	View View
	ID   group.ID
}

// OpenOutput contains the result of the Open operation.
type OpenOutput struct {
	Opened  bool `json:"opened"`
	GroupID int  `json:"group_id,omitempty"`
}

// Open focuses an active group's first tab, or reopens a history entry as a
// new native group with its title and color.
func (c *Coordinator) Open(ctx context.Context, input OpenInput) (*OpenOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find("open", input.View, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.groups(view)[i]

	if view == ViewActive {
		if gid, ok := g.ID.HostID(); ok {
			return &OpenOutput{Opened: c.focusGroup(ctx, gid), GroupID: gid}, nil
		}
	}
	gid, ok := c.openSnapshot(ctx, g)
	if !ok {
		return &OpenOutput{}, nil
	}
	c.refreshAfter(ctx, "open")
	return &OpenOutput{Opened: true, GroupID: gid}, nil
}

func (c *Coordinator) focusGroup(ctx context.Context, gid int) bool {
	tabs, err := c.host.ListTabs(ctx, host.TabQuery{GroupID: host.InGroup(gid)})
	if err != nil || len(tabs) == 0 {
		if err != nil {
			c.logger.Warn("focus group: list tabs failed", "group", gid, "error", err)
		}
		return false
	}
	if err := c.host.ActivateTab(ctx, tabs[0].ID); err != nil {
		c.logger.Warn("focus group: activate failed", "group", gid, "error", err)
		return false
	}
	return true
}

// openSnapshot recreates g's URLs as new tabs and groups them. Tabs created
// before a failure stay open.
func (c *Coordinator) openSnapshot(ctx context.Context, g group.TabGroup) (int, bool) {
	urls := g.URLs()
	if len(urls) == 0 {
		return 0, false
	}
	created := make([]int, 0, len(urls))
	for i, u := range urls {
		id, err := c.host.CreateTab(ctx, u, 0, i == 0)
		if err != nil {
			c.logger.Warn("open group: create tab failed", "url", u, "error", err)
			continue
		}
		created = append(created, id)
	}
	if len(created) == 0 {
		return 0, false
	}
	color := g.Color
	if !slices.Contains(rules.Palette, color) {
		color = NewGroupColor
	}
	gid, err := c.host.CreateGroup(ctx, created, 0, g.Title, color)
	if err != nil {
		c.logger.Warn("open group: create group failed", "title", g.Title, "error", err)
		return 0, false
	}
	return gid, true
}

// CreateGroupInput contains parameters for the CreateGroup operation.
type CreateGroupInput struct {
	Title string
	Color string
}

// CreateGroupOutput contains the result of the CreateGroup operation.
type CreateGroupOutput struct {
	Created bool `json:"created"`
	GroupID int  `json:"group_id,omitempty"`
}

// CreateGroup opens a new tab in the current window and puts it in a new
// group.
func (c *Coordinator) CreateGroup(ctx context.Context, input CreateGroupInput) (*CreateGroupOutput, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = NewGroupTitle
	}
	color := strings.ToLower(strings.TrimSpace(input.Color))
	if color == "" {
		color = NewGroupColor
	}
	if !slices.Contains(rules.Palette, color) {
		return nil, errors.NewInvalidRequest("color must be one of " + strings.Join(rules.Palette, ", "))
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	tabID, err := c.host.CreateTab(ctx, NewTabURL, 0, true)
	if err != nil {
		c.logger.Warn("create group: create tab failed", "error", err)
		return &CreateGroupOutput{}, nil
	}
	gid, err := c.host.CreateGroup(ctx, []int{tabID}, 0, title, color)
	if err != nil {
		c.logger.Warn("create group failed", "title", title, "error", err)
		return &CreateGroupOutput{}, nil
	}
	c.refreshAfter(ctx, "create group")
	return &CreateGroupOutput{Created: true, GroupID: gid}, nil
}
