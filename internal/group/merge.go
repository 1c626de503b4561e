package group

import (
	"cmp"
	"slices"
)

// Merge folds newly observed groups into existing history.
//
// Existing entries win: a new group whose signature is already known is
// dropped, including duplicates within newGroups itself. The result is sorted
// by UpdatedAt descending (stable, missing timestamps sort oldest). Inputs are
// not modified, and merging the same groups twice changes nothing.
func Merge(newGroups, existing []TabGroup) []TabGroup {
	merged := make([]TabGroup, 0, len(existing)+len(newGroups))
	known := make(map[string]struct{}, len(existing)+len(newGroups))

	for _, g := range existing {
		g.Signature = SignatureOf(g)
		known[g.Signature] = struct{}{}
		merged = append(merged, g)
	}
	for _, g := range newGroups {
		g.Signature = SignatureOf(g)
		if _, ok := known[g.Signature]; ok {
			continue
		}
		known[g.Signature] = struct{}{}
		merged = append(merged, g)
	}

	slices.SortStableFunc(merged, func(a, b TabGroup) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})
	return merged
}

// WithoutSignature returns groups minus every entry with the given signature.
func WithoutSignature(groups []TabGroup, sig string) []TabGroup {
	out := make([]TabGroup, 0, len(groups))
	for _, g := range groups {
		if SignatureOf(g) != sig {
			out = append(out, g)
		}
	}
	return out
}
