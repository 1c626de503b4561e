// Package group holds the tab-group model shared by the host adapters, the
// persisted history and the lifecycle operations, together with the
// content-based identity used to recognize a group across snapshots.
package group

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Reserved category and title labels.
const (
	CategoryUncategorized = "Uncategorized"
	CategoryRecycle       = "Recycle"
	CategoryHistory       = "History"

	UntitledGroup = "Untitled group"
	UntitledTab   = "Untitled"
)

// ID is a group or tab identifier. Host-assigned ids are numeric; ids rewritten
// at lifecycle boundaries ("archived-12", "session-window-3") are not.
// Legacy records store numeric ids as JSON numbers, so both forms decode.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// FromHost converts a host-assigned numeric id.
func FromHost(n int) ID {
	return ID(strconv.Itoa(n))
}

// HostID returns the numeric host id, if this id is one.
func (id ID) HostID() (int, bool) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Tab is a captured tab. A snapshot tab is a distinct value from the live tab
// it was copied from.
type Tab struct {
	ID         ID     `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FavIconURL string `json:"favIconUrl,omitempty"`
	Active     bool   `json:"active,omitempty"`
	Pinned     bool   `json:"pinned,omitempty"`
}

// Key is the tab's identity within a group: its URL, else its title.
func (t Tab) Key() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Title
}

// TabGroup is a named, colored, ordered collection of tabs.
// ID is volatile; Signature is the stable identity.
type TabGroup struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Color     string `json:"color,omitempty"`
	WindowID  int    `json:"windowId,omitempty"`
	Category  string `json:"category,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"` // unix millis
	Tabs      []Tab  `json:"tabs"`
	Signature string `json:"signature,omitempty"`
}

// URLs returns the non-empty tab URLs in order.
func (g TabGroup) URLs() []string {
	urls := make([]string, 0, len(g.Tabs))
	for _, t := range g.Tabs {
		if t.URL != "" {
			urls = append(urls, t.URL)
		}
	}
	return urls
}

// Clone returns a copy whose Tabs slice does not alias g's.
func (g TabGroup) Clone() TabGroup {
	c := g
	if g.Tabs != nil {
		c.Tabs = make([]Tab, len(g.Tabs))
		copy(c.Tabs, g.Tabs)
	}
	return c
}

// IndexByID returns the position of the group with the given id, or -1.
func IndexByID(groups []TabGroup, id ID) int {
	for i := range groups {
		if groups[i].ID == id {
			return i
		}
	}
	return -1
}
