package ops

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/state"
)

// Options tune a Coordinator.
type Options struct {
	// SessionMaxResults caps ImportClosed. Zero means 60.
	SessionMaxResults int

	// ArchiveClosesTabs closes a group's live tabs after archiving it,
	// unless the request says otherwise.
	ArchiveClosesTabs bool

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Coordinator owns the in-memory model (active groups from the host, plus the
// persisted history, categories, signature sets and rules) and applies user
// actions to it. Actions run one at a time: each acquires the coordinator
// before reading state and releases it after persisting. Memory is updated
// only after the store accepted the new state.
type Coordinator struct {
	host     host.TabHost
	sessions host.SessionHistory
	store    *state.Store
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	sem    *semaphore.Weighted
	model  *state.Model
	active []group.TabGroup
}

// NewCoordinator wires a coordinator. sessions may be nil when the host has
// no recently-closed list.
func NewCoordinator(h host.TabHost, sessions host.SessionHistory, store *state.Store, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionMaxResults <= 0 {
		opts.SessionMaxResults = 60
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		host:     h,
		sessions: sessions,
		store:    store,
		logger:   logger,
		opts:     opts,
		now:      now,
		sem:      semaphore.NewWeighted(1),
	}
}

// acquire waits for exclusive use of the model. On first use it loads the
// persisted model and snapshots the host's active groups.
func (c *Coordinator) acquire(ctx context.Context) (release func(), err error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if c.model == nil {
		m, err := c.store.Load(ctx)
		if err != nil {
			c.sem.Release(1)
			return nil, errors.NewInternal(err)
		}
		c.model = m
		active, err := c.snapshotActive(ctx)
		if err != nil {
			c.logger.Warn("load: host snapshot failed", "error", err)
		} else {
			c.active = active
		}
	}
	return func() { c.sem.Release(1) }, nil
}

// persistErr converts a store failure into the error returned to callers.
func (c *Coordinator) persistErr(key string, err error) error {
	c.logger.Error("persist failed", "key", key, "error", err)
	if gErr, ok := err.(*errors.GroveError); ok {
		return gErr
	}
	return errors.NewInternal(err)
}

func (c *Coordinator) groups(v View) []group.TabGroup {
	if v == ViewClosed {
		return c.model.Closed
	}
	return c.active
}

// find locates a group by id. An empty view searches active then closed.
// A group found only in the other view than the one asked for is reported
// as WRONG_VIEW for the named action.
func (c *Coordinator) find(action string, v View, id group.ID) (View, int, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", -1, errors.NewInvalidRequest("group id is required")
	}
	views := []View{ViewActive, ViewClosed}
	if v != "" {
		views = []View{v}
	}
	for _, view := range views {
		if i := group.IndexByID(c.groups(view), id); i >= 0 {
			return view, i, nil
		}
	}
	if v != "" {
		other := ViewClosed
		if v == ViewClosed {
			other = ViewActive
		}
		if group.IndexByID(c.groups(other), id) >= 0 {
			return "", -1, errors.NewWrongView(action, string(v))
		}
	}
	return "", -1, errors.NewNotFound("group", string(id), suggest(string(id), c.knownGroupNames()))
}

func (c *Coordinator) knownGroupNames() []string {
	var names []string
	for _, gs := range [][]group.TabGroup{c.active, c.model.Closed} {
		for _, g := range gs {
			names = append(names, string(g.ID))
		}
	}
	return names
}

func (c *Coordinator) locked(g group.TabGroup) bool {
	return c.model.Locked.Has(group.SignatureOf(g))
}

// resolveCategory returns the mapped category for g's signature, else
// fallback, else Uncategorized.
func (c *Coordinator) resolveCategory(sig, fallback string) string {
	if mapped := c.model.CategoryMap[sig]; mapped != "" {
		return mapped
	}
	if fallback != "" {
		return fallback
	}
	return group.CategoryUncategorized
}

// withCategories returns copies of groups with signatures and categories
// resolved through the category map. Archived entries keep the Recycle
// category until restored.
func (c *Coordinator) withCategories(groups []group.TabGroup) []group.TabGroup {
	out := make([]group.TabGroup, len(groups))
	for i, g := range groups {
		g.Signature = group.SignatureOf(g)
		if g.Category != group.CategoryRecycle {
			g.Category = c.resolveCategory(g.Signature, g.Category)
		}
		out[i] = g
	}
	return out
}

// RefreshOutput contains the result of the Refresh operation.
type RefreshOutput struct {
	Applied      bool `json:"applied"`
	ActiveCount  int  `json:"active_count"`
	HistoryAdded int  `json:"history_added"`
}

// Refresh re-reads active groups from the host and records each one in
// history (existing history entries win). A host failure leaves the model
// unchanged and reports Applied=false.
func (c *Coordinator) Refresh(ctx context.Context) (*RefreshOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.refresh(ctx)
}

func (c *Coordinator) refresh(ctx context.Context) (*RefreshOutput, error) {
	active, err := c.snapshotActive(ctx)
	if err != nil {
		c.logger.Warn("refresh: host snapshot failed", "error", err)
		return &RefreshOutput{}, nil
	}

	ts := nowMillis(c.now)
	snapshots := make([]group.TabGroup, len(active))
	for i, g := range active {
		s := g.Clone()
		s.ID = group.ID(fmt.Sprintf("history-%d-%d", ts, i))
		s.Category = c.model.CategoryMap[g.Signature]
		if s.Category == "" {
			s.Category = group.CategoryHistory
		}
		s.UpdatedAt = ts
		snapshots[i] = s
	}
	merged := c.withCategories(group.Merge(snapshots, c.model.Closed))

	if err := c.store.SaveClosed(ctx, merged); err != nil {
		return nil, c.persistErr(state.KeyClosedGroups, err)
	}
	added := len(merged) - len(c.model.Closed)
	c.active = active
	c.model.Closed = merged
	return &RefreshOutput{Applied: true, ActiveCount: len(active), HistoryAdded: added}, nil
}

// refreshAfter re-reads the host after a host-mutating action. Failures are
// logged; the action's own result stands.
func (c *Coordinator) refreshAfter(ctx context.Context, action string) {
	if out, err := c.refresh(ctx); err != nil || !out.Applied {
		c.logger.Warn("refresh after action failed", "action", action, "error", err)
	}
}

// snapshotActive captures the host's native groups as TabGroups.
func (c *Coordinator) snapshotActive(ctx context.Context) ([]group.TabGroup, error) {
	hostGroups, err := c.host.ListGroups(ctx, 0)
	if err != nil {
		return nil, err
	}
	tabs, err := c.host.ListTabs(ctx, host.TabQuery{})
	if err != nil {
		return nil, err
	}
	byGroup := make(map[int][]group.Tab)
	for _, t := range tabs {
		if t.GroupID == host.NoGroup {
			continue
		}
		byGroup[t.GroupID] = append(byGroup[t.GroupID], fromHostTab(t))
	}

	ts := nowMillis(c.now)
	out := make([]group.TabGroup, 0, len(hostGroups))
	for _, hg := range hostGroups {
		title := hg.Title
		if title == "" {
			title = group.UntitledGroup
		}
		g := group.WithSignature(group.TabGroup{
			ID:        group.FromHost(hg.ID),
			Title:     title,
			Color:     hg.Color,
			WindowID:  hg.WindowID,
			UpdatedAt: ts,
			Tabs:      byGroup[hg.ID],
		})
		if g.Tabs == nil {
			g.Tabs = []group.Tab{}
		}
		g.Category = c.resolveCategory(g.Signature, "")
		out = append(out, g)
	}
	return out, nil
}

// GroupView is a group as presented to callers.
type GroupView struct {
	group.TabGroup
	Locked  bool `json:"locked"`
	Starred bool `json:"starred"`
}

// Counts summarizes a listing.
type Counts struct {
	CategoryCount int `json:"category_count"`
	GroupCount    int `json:"group_count"`
	TabCount      int `json:"tab_count"`
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	View   View
	Search string
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	View       View        `json:"view"`
	Groups     []GroupView `json:"groups"`
	Categories []string    `json:"categories"`
	Counts     Counts      `json:"counts"`
}

// List returns the groups of a view, filtered by a case-insensitive
// substring of title or category, with the known categories and counts.
func (c *Coordinator) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view := input.View
	if view == "" {
		view = ViewActive
	}
	term := strings.ToLower(strings.TrimSpace(input.Search))

	out := &ListOutput{View: view, Groups: []GroupView{}, Categories: []string{}}
	for _, g := range c.groups(view) {
		if term != "" &&
			!strings.Contains(strings.ToLower(g.Title), term) &&
			!strings.Contains(strings.ToLower(g.Category), term) {
			continue
		}
		sig := group.SignatureOf(g)
		out.Groups = append(out.Groups, GroupView{
			TabGroup: g.Clone(),
			Locked:   c.model.Locked.Has(sig),
			Starred:  c.model.Starred.Has(sig),
		})
	}
	for _, name := range c.model.Categories {
		if term == "" || strings.Contains(strings.ToLower(name), term) {
			out.Categories = append(out.Categories, name)
		}
	}

	categories := slices.Clone(c.model.Categories)
	for _, g := range out.Groups {
		out.Counts.TabCount += len(g.Tabs)
		cat := g.Category
		if cat == "" {
			cat = group.CategoryUncategorized
		}
		categories = append(categories, cat)
	}
	slices.Sort(categories)
	out.Counts.CategoryCount = len(slices.Compact(categories))
	out.Counts.GroupCount = len(out.Groups)
	return out, nil
}

// Get returns one group by id from either view.
func (c *Coordinator) Get(ctx context.Context, v View, id group.ID) (*GroupView, View, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, "", err
	}
	defer release()

	view, i, err := c.find("get", v, id)
	if err != nil {
		return nil, "", err
	}
	g := c.groups(view)[i]
	sig := group.SignatureOf(g)
	return &GroupView{TabGroup: g.Clone(), Locked: c.model.Locked.Has(sig), Starred: c.model.Starred.Has(sig)}, view, nil
}
