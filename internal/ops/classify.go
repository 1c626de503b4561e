package ops

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hpungsan/grove/internal/host"
	"github.com/hpungsan/grove/internal/rules"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Rules []rules.Rule
	Scope rules.Scope
}

// ClassifyOutput contains the result of the Classify operation.
// Failed is set when a host call failed; the counts then cover only the
// work that completed before the failure.
type ClassifyOutput struct {
	CreatedGroupCount int  `json:"created_group_count"`
	MovedTabCount     int  `json:"moved_tab_count"`
	Failed            bool `json:"failed,omitempty"`
}

// Classify places tabs into named groups by the first matching rule.
// Within each window of the scope, matching tabs are added to the existing
// group with the rule's name (case-insensitive) or to a new group titled
// with the name and colored by its hash. Tabs already in their target group
// are left alone. No rules, or no matches, is a zero result.
func Classify(ctx context.Context, h host.TabHost, logger *slog.Logger, in ClassifyInput) ClassifyOutput {
	var out ClassifyOutput
	if len(in.Rules) == 0 {
		return out
	}
	matcher := rules.NewMatcher(in.Rules)

	windows, err := h.ListWindows(ctx, in.Scope)
	if err != nil {
		logger.Warn("classify: list windows failed", "scope", in.Scope.String(), "error", err)
		out.Failed = true
		return out
	}

	for _, w := range windows {
		tabs, err := h.ListTabs(ctx, host.TabQuery{WindowID: w.ID})
		if err != nil {
			logger.Warn("classify: list tabs failed", "window", w.ID, "error", err)
			out.Failed = true
			return out
		}
		if len(tabs) == 0 {
			continue
		}
		groups, err := h.ListGroups(ctx, w.ID)
		if err != nil {
			logger.Warn("classify: list groups failed", "window", w.ID, "error", err)
			out.Failed = true
			return out
		}

		// Later groups with the same name shadow earlier ones.
		existing := make(map[string]int, len(groups))
		for _, g := range groups {
			if g.Title != "" {
				existing[strings.ToLower(g.Title)] = g.ID
			}
		}

		var order []string
		pending := make(map[string][]int)
		for _, t := range tabs {
			rule, ok := matcher.Match(fromHostTab(t))
			if !ok {
				continue
			}
			if gid, ok := existing[strings.ToLower(rule.GroupName)]; ok && t.GroupID == gid {
				continue
			}
			if _, seen := pending[rule.GroupName]; !seen {
				order = append(order, rule.GroupName)
			}
			pending[rule.GroupName] = append(pending[rule.GroupName], t.ID)
		}

		for _, name := range order {
			tabIDs := pending[name]
			if gid, ok := existing[strings.ToLower(name)]; ok {
				if err := h.AddTabsToGroup(ctx, gid, tabIDs); err != nil {
					logger.Warn("classify: add tabs to group failed", "group", name, "error", err)
					out.Failed = true
					return out
				}
				out.MovedTabCount += len(tabIDs)
				continue
			}
			if _, err := h.CreateGroup(ctx, tabIDs, w.ID, name, rules.ColorFor(name)); err != nil {
				logger.Warn("classify: create group failed", "group", name, "error", err)
				out.Failed = true
				return out
			}
			out.CreatedGroupCount++
			out.MovedTabCount += len(tabIDs)
		}
	}
	return out
}

// GroupByDomainOutput contains the result of the GroupByDomain operation.
type GroupByDomainOutput struct {
	CreatedGroupCount int  `json:"created_group_count"`
	MovedTabCount     int  `json:"moved_tab_count"`
	Failed            bool `json:"failed,omitempty"`
}

// GroupByDomain groups every ungrouped tab by hostname, one new group per
// window and hostname, titled with the hostname.
func GroupByDomain(ctx context.Context, h host.TabHost, logger *slog.Logger) GroupByDomainOutput {
	var out GroupByDomainOutput
	tabs, err := h.ListTabs(ctx, host.TabQuery{GroupID: host.InGroup(host.NoGroup)})
	if err != nil {
		logger.Warn("group by domain: list tabs failed", "error", err)
		out.Failed = true
		return out
	}

	type bucket struct {
		domain   string
		windowID int
		tabIDs   []int
	}
	var order []*bucket
	type bucketKey struct {
		windowID int
		domain   string
	}
	byKey := make(map[bucketKey]*bucket)
	for _, t := range tabs {
		domain := rules.Hostname(liveURL(t))
		if domain == "" {
			continue
		}
		key := bucketKey{t.WindowID, domain}
		b, ok := byKey[key]
		if !ok {
			b = &bucket{domain: domain, windowID: t.WindowID}
			byKey[key] = b
			order = append(order, b)
		}
		b.tabIDs = append(b.tabIDs, t.ID)
	}

	for _, b := range order {
		if _, err := h.CreateGroup(ctx, b.tabIDs, b.windowID, b.domain, rules.ColorFor(b.domain)); err != nil {
			logger.Warn("group by domain: create group failed", "domain", b.domain, "error", err)
			out.Failed = true
			return out
		}
		out.CreatedGroupCount++
		out.MovedTabCount += len(b.tabIDs)
	}
	return out
}
