package group

import (
	"slices"
	"strings"
)

// Signature computes the content identity of a group: its title verbatim,
// then the sorted distinct tab keys, joined with "|".
//
// Tab order, duplicate tabs and host ids do not affect the result. A group
// with no title and no tabs has signature "|"; all such groups are treated
// as the same group.
func Signature(g TabGroup) string {
	seen := make(map[string]struct{}, len(g.Tabs))
	keys := make([]string, 0, len(g.Tabs))
	for _, t := range g.Tabs {
		k := t.Key()
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return g.Title + "|" + strings.Join(keys, "|")
}

// WithSignature returns g with its signature recomputed.
func WithSignature(g TabGroup) TabGroup {
	g.Signature = Signature(g)
	return g
}

// SignatureOf returns the stored signature, computing it for legacy records
// that lack one.
func SignatureOf(g TabGroup) string {
	if g.Signature != "" {
		return g.Signature
	}
	return Signature(g)
}

// SignatureSet is a set of group signatures. It persists as a sorted JSON array.
type SignatureSet map[string]struct{}

// NewSignatureSet builds a set from a list, ignoring empty entries.
func NewSignatureSet(sigs []string) SignatureSet {
	s := make(SignatureSet, len(sigs))
	for _, sig := range sigs {
		if sig != "" {
			s[sig] = struct{}{}
		}
	}
	return s
}

// Has reports membership.
func (s SignatureSet) Has(sig string) bool {
	_, ok := s[sig]
	return ok
}

// Toggled returns a copy of s with sig flipped, and whether sig is now a member.
func (s SignatureSet) Toggled(sig string) (SignatureSet, bool) {
	next := make(SignatureSet, len(s)+1)
	for k := range s {
		next[k] = struct{}{}
	}
	if _, ok := next[sig]; ok {
		delete(next, sig)
		return next, false
	}
	next[sig] = struct{}{}
	return next, true
}

// List returns the members sorted.
func (s SignatureSet) List() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
