package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hpungsan/grove/internal/group"
)

// Matcher evaluates an ordered rule list. Regex patterns are compiled once;
// rules whose pattern does not compile never match.
type Matcher struct {
	rules   []Rule
	regexes []*regexp.Regexp
}

// NewMatcher prepares rs for repeated matching. The slice order is the
// match priority.
func NewMatcher(rs []Rule) *Matcher {
	m := &Matcher{rules: rs, regexes: make([]*regexp.Regexp, len(rs))}
	for i, r := range rs {
		if r.Type != TypeRegex || r.Pattern == "" {
			continue
		}
		if re, err := compile(r.Pattern); err == nil {
			m.regexes[i] = re
		}
	}
	return m
}

// Match returns the first rule whose predicate holds for t.
func (m *Matcher) Match(t group.Tab) (Rule, bool) {
	haystack := strings.ToLower(t.Title + " " + t.URL)
	host := Hostname(t.URL)

	for i, r := range m.rules {
		if r.Pattern == "" || r.GroupName == "" {
			continue
		}
		switch r.Type {
		case TypeDomain:
			if host != "" && MatchDomain(host, r.Pattern) {
				return r, true
			}
		case TypeKeyword:
			if strings.Contains(haystack, strings.ToLower(r.Pattern)) {
				return r, true
			}
		case TypeRegex:
			if re := m.regexes[i]; re != nil && re.MatchString(haystack) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// Match is a one-shot NewMatcher(rs).Match(t).
func Match(t group.Tab, rs []Rule) (Rule, bool) {
	return NewMatcher(rs).Match(t)
}

// Hostname returns the lowercase ASCII hostname of rawURL without a leading
// "www.", or "" when the URL has no host.
func Hostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return asciiHost(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
}

// MatchDomain reports whether host equals domain or is a subdomain of it.
func MatchDomain(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
