// Package rules implements ordered tab classification rules: their
// normalized form, backward-compatible decoding of stored records, and
// first-match evaluation against a tab.
package rules

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
)

// Type selects how a rule's pattern is compared against a tab.
type Type string

const (
	TypeDomain  Type = "domain"
	TypeKeyword Type = "keyword"
	TypeRegex   Type = "regex"
)

// Rule assigns matching tabs to the group named GroupName. Rules are kept as
// an ordered list; the first matching rule wins. Pattern is stored already
// normalized for its Type.
type Rule struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Pattern   string `json:"pattern"`
	GroupName string `json:"groupName"`
}

var (
	// ErrIncomplete is returned when a rule has no pattern or no group name
	// after normalization.
	ErrIncomplete = errors.New("rule needs a pattern and a group name")

	// ErrInvalidRegex is returned when a regex rule's pattern does not compile.
	ErrInvalidRegex = errors.New("invalid regular expression")
)

var regexLiteral = regexp.MustCompile(`^/(.+)/([gimsuy]*)$`)

var validate = validator.New()

type ruleInput struct {
	Type      Type   `validate:"oneof=domain keyword regex"`
	Pattern   string `validate:"required"`
	GroupName string `validate:"required"`
}

// SanitizeType maps unknown type names to TypeDomain.
func SanitizeType(s string) Type {
	switch t := Type(strings.TrimSpace(s)); t {
	case TypeDomain, TypeKeyword, TypeRegex:
		return t
	}
	return TypeDomain
}

// NormalizeDomainInput reduces user input such as "https://www.Example.com/x"
// to a bare lowercase ASCII hostname ("example.com").
func NormalizeDomainInput(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	raw := v
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	var host string
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	} else {
		host, _, _ = strings.Cut(v, "/")
	}
	return asciiHost(strings.TrimPrefix(host, "www."))
}

// NormalizePattern prepares a pattern for storage.
func NormalizePattern(t Type, pattern string) string {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return ""
	}
	switch t {
	case TypeDomain:
		return NormalizeDomainInput(p)
	case TypeRegex:
		if m := regexLiteral.FindStringSubmatch(p); m != nil {
			return m[1]
		}
	}
	return p
}

// New builds a rule from user input: the type is sanitized, the pattern
// normalized and the group name trimmed.
func New(id, typ, pattern, groupName string) (Rule, error) {
	t := SanitizeType(typ)
	r := Rule{
		ID:        id,
		Type:      t,
		Pattern:   NormalizePattern(t, pattern),
		GroupName: strings.TrimSpace(groupName),
	}
	if err := validate.Struct(ruleInput{Type: r.Type, Pattern: r.Pattern, GroupName: r.GroupName}); err != nil {
		return Rule{}, ErrIncomplete
	}
	if r.Type == TypeRegex {
		if _, err := compile(r.Pattern); err != nil {
			return Rule{}, ErrInvalidRegex
		}
	}
	return r, nil
}

// SameAs reports whether two rules have the same type and pattern,
// ignoring pattern case.
func (r Rule) SameAs(o Rule) bool {
	return r.Type == o.Type && strings.EqualFold(r.Pattern, o.Pattern)
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

func asciiHost(host string) string {
	if a, err := idna.Punycode.ToASCII(host); err == nil {
		return a
	}
	return host
}
