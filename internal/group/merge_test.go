package group

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func hist(id, title string, updated int64, urls ...string) TabGroup {
	return TabGroup{ID: ID(id), Title: title, UpdatedAt: updated, Tabs: tabs(urls...)}
}

func TestMerge_ExistingWins(t *testing.T) {
	existing := []TabGroup{hist("old", "A", 100, "x")}
	incoming := []TabGroup{hist("new", "A", 500, "x"), hist("other", "B", 200, "y")}

	merged := Merge(incoming, existing)

	require.Len(t, merged, 2)
	require.Equal(t, ID("other"), merged[0].ID)
	require.Equal(t, ID("old"), merged[1].ID)
	require.Equal(t, int64(100), merged[1].UpdatedAt)
}

func TestMerge_DropsDuplicatesWithinNewGroups(t *testing.T) {
	incoming := []TabGroup{hist("1", "A", 10, "x"), hist("2", "A", 20, "x", "x")}
	merged := Merge(incoming, nil)
	require.Len(t, merged, 1)
	require.Equal(t, ID("1"), merged[0].ID)
}

func TestMerge_SortsByUpdatedAtDescending(t *testing.T) {
	existing := []TabGroup{hist("a", "A", 0, "x"), hist("b", "B", 300, "y")}
	incoming := []TabGroup{hist("c", "C", 200, "z")}

	merged := Merge(incoming, existing)

	ids := []ID{merged[0].ID, merged[1].ID, merged[2].ID}
	require.Equal(t, []ID{"b", "c", "a"}, ids)
}

func TestMerge_ComputesMissingSignatures(t *testing.T) {
	existing := []TabGroup{hist("a", "A", 1, "x")}
	merged := Merge(nil, existing)
	require.Equal(t, "A|x", merged[0].Signature)
	require.Empty(t, existing[0].Signature, "input must not be mutated")
}

func TestMerge_Idempotent(t *testing.T) {
	a := []TabGroup{hist("1", "A", 5, "x"), hist("2", "B", 7, "y"), hist("3", "A", 9, "x")}
	b := []TabGroup{hist("4", "C", 6, "z"), hist("5", "B", 1, "y")}

	once := Merge(a, b)
	require.Equal(t, once, Merge(nil, once))
	require.Equal(t, once, Merge(a, once))
}

func TestMerge_UniqueSignatures(t *testing.T) {
	inputs := [][]TabGroup{
		{hist("1", "", 0), hist("2", "", 0)},
		{hist("1", "A", 3, "x", "y"), hist("2", "A", 4, "y", "x")},
		{hist("1", "A", 3, "x"), hist("2", "B", 4, "x"), hist("3", "A", 1, "x")},
	}
	for _, in := range inputs {
		merged := Merge(in, in)
		seen := map[string]bool{}
		for _, g := range merged {
			require.False(t, seen[g.Signature], "duplicate signature %q", g.Signature)
			seen[g.Signature] = true
		}
	}
}

func TestWithoutSignature(t *testing.T) {
	groups := []TabGroup{hist("1", "A", 0, "x"), hist("2", "B", 0, "y")}
	out := WithoutSignature(groups, "A|x")
	require.Len(t, out, 1)
	require.Equal(t, ID("2"), out[0].ID)
}

func TestDedupeTabs(t *testing.T) {
	in := []Tab{{URL: "x"}, {URL: "x"}, {URL: "y"}}
	kept, removed := DedupeTabs(in)
	require.Equal(t, []Tab{{URL: "x"}, {URL: "y"}}, kept)
	require.Equal(t, 1, removed)
}

func TestDedupeTabs_TitleKeyAndKeyless(t *testing.T) {
	in := []Tab{{Title: "New Tab"}, {Title: "New Tab"}, {}, {}}
	kept, removed := DedupeTabs(in)
	require.Len(t, kept, 3)
	require.Equal(t, 1, removed)
}

func TestDedupeTabs_NothingToRemove(t *testing.T) {
	kept, removed := DedupeTabs([]Tab{{URL: "a"}, {URL: "b"}})
	require.Len(t, kept, 2)
	require.Zero(t, removed)
}
