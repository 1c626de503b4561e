package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind selects which windows classification runs over.
type ScopeKind string

const (
	ScopeCurrent ScopeKind = "current"
	ScopeAll     ScopeKind = "all"
	ScopeWindow  ScopeKind = "window"
)

const windowPrefix = "window:"

// Scope is a window selection: the current window, all windows, or one
// window by id.
type Scope struct {
	Kind     ScopeKind
	WindowID int
}

// DefaultScope is the current window.
var DefaultScope = Scope{Kind: ScopeCurrent}

// ParseScope reads "current", "all" or "window:<id>".
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == string(ScopeCurrent):
		return DefaultScope, nil
	case s == string(ScopeAll):
		return Scope{Kind: ScopeAll}, nil
	case strings.HasPrefix(s, windowPrefix):
		id, err := strconv.Atoi(strings.TrimPrefix(s, windowPrefix))
		if err != nil || id <= 0 {
			return Scope{}, fmt.Errorf("invalid window id in scope %q", s)
		}
		return Scope{Kind: ScopeWindow, WindowID: id}, nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q (want current, all or window:<id>)", s)
}

// String returns the persisted form.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeAll:
		return string(ScopeAll)
	case ScopeWindow:
		return windowPrefix + strconv.Itoa(s.WindowID)
	}
	return string(ScopeCurrent)
}
