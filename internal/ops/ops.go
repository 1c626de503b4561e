package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/host"
)

// View selects one of the two group collections.
type View string

const (
	ViewActive View = "active"
	ViewClosed View = "closed"
)

// ParseView validates a view name. Empty means "either", resolved by the
// operation.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "", ViewActive, ViewClosed:
		return v, nil
	}
	return "", errors.NewInvalidRequest("view must be active or closed")
}

// Defaults for host-created groups.
const (
	NewGroupTitle = "New tab group"
	NewGroupColor = "blue"
	NewTabURL     = "chrome://newtab/"
)

func nowMillis(now func() time.Time) int64 {
	return now().UnixMilli()
}

func newULID(now func() time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now()), entropy).String()
}

// fromHostTab captures a live tab. Title falls back to the URL and then a
// placeholder; URL falls back to the pending URL.
func fromHostTab(t host.Tab) group.Tab {
	title := t.Title
	if title == "" {
		title = t.PendingURL
	}
	if title == "" {
		title = t.URL
	}
	if title == "" {
		title = group.UntitledTab
	}
	url := t.URL
	if url == "" {
		url = t.PendingURL
	}
	return group.Tab{
		ID:         group.FromHost(t.ID),
		Title:      title,
		URL:        url,
		FavIconURL: t.FavIconURL,
		Active:     t.Active,
		Pinned:     t.Pinned,
	}
}

// liveURL is the URL a live tab is loading or showing.
func liveURL(t host.Tab) string {
	if t.URL != "" {
		return t.URL
	}
	return t.PendingURL
}

// hostTabIDs returns the host ids of a snapshot's tabs that still carry one.
func hostTabIDs(g group.TabGroup) []int {
	ids := make([]int, 0, len(g.Tabs))
	for _, t := range g.Tabs {
		if id, ok := t.ID.HostID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// suggest returns the candidate closest to want by edit distance, or "" if
// nothing is close enough to be a plausible typo.
func suggest(want string, candidates []string) string {
	want = strings.ToLower(want)
	best, bestDist := "", -1
	for _, c := range candidates {
		if c == "" {
			continue
		}
		d := levenshtein.ComputeDistance(want, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(want)/3) {
		return ""
	}
	return best
}
