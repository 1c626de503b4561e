package ops

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	grerrors "github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/rules"
)

func ruleIDs(rs []rules.Rule) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func TestAddRule(t *testing.T) {
	f := newFixture(t)

	out, err := f.c.AddRule(f.ctx, RuleInput{Type: "domain", Pattern: " https://www.GitHub.com/x ", GroupName: " Dev "})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.Rule.ID, "rule-"))
	require.Equal(t, rules.TypeDomain, out.Rule.Type)
	require.Equal(t, "github.com", out.Rule.Pattern)
	require.Equal(t, "Dev", out.Rule.GroupName)

	// Unknown types are treated as domain rules.
	_, err = f.c.AddRule(f.ctx, RuleInput{Type: "host", Pattern: "GITHUB.COM", GroupName: "Other"})
	requireCode(t, err, grerrors.ErrDuplicateRule)

	_, err = f.c.AddRule(f.ctx, RuleInput{Type: "regex", Pattern: "/(unclosed/", GroupName: "X"})
	gErr := requireCode(t, err, grerrors.ErrInvalidPattern)
	require.Equal(t, "(unclosed", gErr.Details["pattern"])

	_, err = f.c.AddRule(f.ctx, RuleInput{Type: "keyword", Pattern: "  ", GroupName: "X"})
	requireCode(t, err, grerrors.ErrInvalidRequest)

	list, err := f.c.ListRules(f.ctx)
	require.NoError(t, err)
	require.Len(t, list.Rules, 1)
	require.Equal(t, "current", list.Scope)
}

func TestRuleEdits(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, in := range []RuleInput{
		{Type: "domain", Pattern: "github.com", GroupName: "Dev"},
		{Type: "keyword", Pattern: "docs", GroupName: "Docs"},
		{Type: "regex", Pattern: "/news|blog/i", GroupName: "Reading"},
	} {
		out, err := f.c.AddRule(f.ctx, in)
		require.NoError(t, err)
		ids = append(ids, out.Rule.ID)
	}

	updated, err := f.c.UpdateRule(f.ctx, ids[1], RuleInput{Type: "keyword", Pattern: "manual", GroupName: "Docs"})
	require.NoError(t, err)
	require.Equal(t, ids[1], updated.Rule.ID)
	require.Equal(t, "manual", updated.Rule.Pattern)

	_, err = f.c.UpdateRule(f.ctx, ids[1], RuleInput{Type: "domain", Pattern: "GitHub.com", GroupName: "Docs"})
	requireCode(t, err, grerrors.ErrDuplicateRule)

	// Updating a rule to its own pattern is not a duplicate.
	_, err = f.c.UpdateRule(f.ctx, ids[0], RuleInput{Type: "domain", Pattern: "github.com", GroupName: "Code"})
	require.NoError(t, err)

	moved, err := f.c.MoveRule(f.ctx, ids[2], 0)
	require.NoError(t, err)
	require.Equal(t, []string{ids[2], ids[0], ids[1]}, ruleIDs(moved.Rules))

	_, err = f.c.MoveRule(f.ctx, ids[2], 3)
	requireCode(t, err, grerrors.ErrInvalidRequest)

	del, err := f.c.DeleteRule(f.ctx, ids[0])
	require.NoError(t, err)
	require.True(t, del.Deleted)

	_, err = f.c.DeleteRule(f.ctx, ids[0])
	requireCode(t, err, grerrors.ErrNotFound)

	c := f.reload()
	list, err := c.ListRules(f.ctx)
	require.NoError(t, err)
	require.Equal(t, []string{ids[2], ids[1]}, ruleIDs(list.Rules))
	require.Equal(t, "news|blog", list.Rules[0].Pattern)
}

func TestRuleNotFoundSuggestion(t *testing.T) {
	f := newFixture(t)
	out, err := f.c.AddRule(f.ctx, RuleInput{Type: "domain", Pattern: "github.com", GroupName: "Dev"})
	require.NoError(t, err)

	typo := out.Rule.ID[:len(out.Rule.ID)-1] + "?"
	_, err = f.c.DeleteRule(f.ctx, typo)
	gErr := requireCode(t, err, grerrors.ErrNotFound)
	require.Equal(t, out.Rule.ID, gErr.Details["suggestion"])
}

func TestSetScope(t *testing.T) {
	f := newFixture(t)

	out, err := f.c.SetScope(f.ctx, "window:7")
	require.NoError(t, err)
	require.Equal(t, "window:7", out.Scope)

	_, err = f.c.SetScope(f.ctx, "galaxy")
	requireCode(t, err, grerrors.ErrInvalidRequest)

	list, err := f.reload().ListRules(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "window:7", list.Scope)
}

func TestRules_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.kv.FailSet = errors.New("disk full")

	_, err := f.c.AddRule(f.ctx, RuleInput{Type: "domain", Pattern: "github.com", GroupName: "Dev"})
	requireCode(t, err, grerrors.ErrInternal)

	f.kv.FailSet = nil
	list, err := f.c.ListRules(f.ctx)
	require.NoError(t, err)
	require.Empty(t, list.Rules)
}

func TestImportExportRules(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(src, []byte(`scope: all
rules:
  - id: gh
    type: domain
    pattern: https://github.com
    group: Dev
  - type: keyword
    pattern: docs
    group: Docs
  - type: regex
    pattern: "(broken"
    group: Bad
  - type: domain
    pattern: GITHUB.com
    group: Again
  - type: keyword
    pattern: ""
    group: Empty
`), 0o600))

	out, err := f.c.ImportRules(f.ctx, ImportRulesInput{Path: src})
	require.NoError(t, err)
	require.Equal(t, ImportRulesOutput{Imported: 2, Skipped: 3, Total: 2, Scope: "all"}, *out)

	list, err := f.c.ListRules(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "gh", list.Rules[0].ID)
	require.Equal(t, "github.com", list.Rules[0].Pattern)

	dst := filepath.Join(dir, "out.yaml")
	exp, err := f.c.ExportRules(f.ctx, dst)
	require.NoError(t, err)
	require.Equal(t, 2, exp.Count)

	// Appending the exported file adds nothing new.
	again, err := f.c.ImportRules(f.ctx, ImportRulesInput{Path: dst, Append: true})
	require.NoError(t, err)
	require.Equal(t, 0, again.Imported)
	require.Equal(t, 2, again.Skipped)
	require.Equal(t, 2, again.Total)

	// Replacing keeps ids from the file.
	replaced, err := f.c.ImportRules(f.ctx, ImportRulesInput{Path: dst})
	require.NoError(t, err)
	require.Equal(t, 2, replaced.Imported)
	list, err = f.c.ListRules(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "gh", list.Rules[0].ID)

	_, err = f.c.ImportRules(f.ctx, ImportRulesInput{Path: filepath.Join(dir, "missing.yaml")})
	requireCode(t, err, grerrors.ErrInvalidRequest)
	_, err = f.c.ImportRules(f.ctx, ImportRulesInput{})
	requireCode(t, err, grerrors.ErrInvalidRequest)
}
