package ops

import (
	"context"
	stderrors "errors"
	"os"
	"slices"
	"strings"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/rules"
	"github.com/hpungsan/grove/internal/state"
)

// RuleInput carries the user-editable fields of a rule.
type RuleInput struct {
	Type      string
	Pattern   string
	GroupName string
}

// RuleOutput returns a single rule.
type RuleOutput struct {
	Rule rules.Rule `json:"rule"`
}

// ListRulesOutput contains the result of the ListRules operation.
type ListRulesOutput struct {
	Rules []rules.Rule `json:"rules"`
	Scope string       `json:"scope"`
}

// ListRules returns the ordered rule list and the classification scope.
func (c *Coordinator) ListRules(ctx context.Context) (*ListRulesOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rs := slices.Clone(c.model.Rules)
	if rs == nil {
		rs = []rules.Rule{}
	}
	return &ListRulesOutput{Rules: rs, Scope: c.model.Scope.String()}, nil
}

// buildRule normalizes input into a rule and maps validation failures to
// user-facing errors.
func buildRule(id string, input RuleInput) (rules.Rule, error) {
	r, err := rules.New(id, input.Type, input.Pattern, input.GroupName)
	switch {
	case stderrors.Is(err, rules.ErrInvalidRegex):
		return rules.Rule{}, errors.NewInvalidPattern(rules.NormalizePattern(rules.TypeRegex, input.Pattern))
	case err != nil:
		return rules.Rule{}, errors.NewInvalidRequest("rule needs a pattern and a group name")
	}
	return r, nil
}

func duplicateOf(r rules.Rule, existing []rules.Rule, skipID string) bool {
	return slices.ContainsFunc(existing, func(o rules.Rule) bool {
		return o.ID != skipID && o.SameAs(r)
	})
}

// AddRule appends a rule. A rule with the same type and pattern
// (case-insensitive) is rejected.
func (c *Coordinator) AddRule(ctx context.Context, input RuleInput) (*RuleOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := buildRule("rule-"+newULID(c.now), input)
	if err != nil {
		return nil, err
	}
	if duplicateOf(r, c.model.Rules, "") {
		return nil, errors.NewDuplicateRule(string(r.Type), r.Pattern)
	}
	next := append(slices.Clone(c.model.Rules), r)
	if err := c.saveRules(ctx, next); err != nil {
		return nil, err
	}
	return &RuleOutput{Rule: r}, nil
}

// UpdateRule replaces a rule's fields, keeping its id and position.
func (c *Coordinator) UpdateRule(ctx context.Context, id string, input RuleInput) (*RuleOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	i, err := c.ruleIndex(id)
	if err != nil {
		return nil, err
	}
	r, err := buildRule(c.model.Rules[i].ID, input)
	if err != nil {
		return nil, err
	}
	if duplicateOf(r, c.model.Rules, r.ID) {
		return nil, errors.NewDuplicateRule(string(r.Type), r.Pattern)
	}
	next := slices.Clone(c.model.Rules)
	next[i] = r
	if err := c.saveRules(ctx, next); err != nil {
		return nil, err
	}
	return &RuleOutput{Rule: r}, nil
}

// DeleteRuleOutput contains the result of the DeleteRule operation.
type DeleteRuleOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteRule removes a rule by id.
func (c *Coordinator) DeleteRule(ctx context.Context, id string) (*DeleteRuleOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	i, err := c.ruleIndex(id)
	if err != nil {
		return nil, err
	}
	next := slices.Delete(slices.Clone(c.model.Rules), i, i+1)
	if err := c.saveRules(ctx, next); err != nil {
		return nil, err
	}
	return &DeleteRuleOutput{Deleted: true, ID: id}, nil
}

// MoveRule changes a rule's priority by moving it to position (0-based).
func (c *Coordinator) MoveRule(ctx context.Context, id string, position int) (*ListRulesOutput, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	i, err := c.ruleIndex(id)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= len(c.model.Rules) {
		return nil, errors.NewInvalidRequest("position out of range")
	}
	next := slices.Clone(c.model.Rules)
	r := next[i]
	next = slices.Delete(next, i, i+1)
	next = slices.Insert(next, position, r)
	if err := c.saveRules(ctx, next); err != nil {
		return nil, err
	}
	return &ListRulesOutput{Rules: slices.Clone(next), Scope: c.model.Scope.String()}, nil
}

// SetScope stores the classification scope ("current", "all" or "window:<id>").
func (c *Coordinator) SetScope(ctx context.Context, scope string) (*ListRulesOutput, error) {
	parsed, err := rules.ParseScope(scope)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.store.SaveScope(ctx, parsed); err != nil {
		return nil, c.persistErr(state.KeyScope, err)
	}
	c.model.Scope = parsed
	return &ListRulesOutput{Rules: slices.Clone(c.model.Rules), Scope: parsed.String()}, nil
}

func (c *Coordinator) ruleIndex(id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1, errors.NewInvalidRequest("rule id is required")
	}
	i := slices.IndexFunc(c.model.Rules, func(r rules.Rule) bool { return r.ID == id })
	if i < 0 {
		ids := make([]string, len(c.model.Rules))
		for j, r := range c.model.Rules {
			ids[j] = r.ID
		}
		return -1, errors.NewNotFound("rule", id, suggest(id, ids))
	}
	return i, nil
}

func (c *Coordinator) saveRules(ctx context.Context, next []rules.Rule) error {
	if err := c.store.SaveRules(ctx, next); err != nil {
		return c.persistErr(state.KeyRules, err)
	}
	c.model.Rules = next
	return nil
}

// ImportRulesInput contains parameters for the ImportRules operation.
type ImportRulesInput struct {
	Path string
	// Append keeps existing rules and adds the file's rules after them.
	// Otherwise the file replaces the rule list.
	Append bool
}

// ImportRulesOutput contains the result of the ImportRules operation.
type ImportRulesOutput struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Total    int    `json:"total"`
	Scope    string `json:"scope"`
}

// ImportRules loads a YAML rules file. Entries that fail validation or
// duplicate an earlier rule are skipped. A scope in the file replaces the
// stored scope.
func (c *Coordinator) ImportRules(ctx context.Context, input ImportRulesInput) (*ImportRulesOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("rules file path is required")
	}
	f, err := rules.ReadFile(input.Path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewInvalidRequest("rules file not found: " + input.Path)
		}
		return nil, errors.NewInvalidRequest(err.Error())
	}
	var scope *rules.Scope
	if f.Scope != "" {
		parsed, err := rules.ParseScope(f.Scope)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		scope = &parsed
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var next []rules.Rule
	if input.Append {
		next = slices.Clone(c.model.Rules)
	}
	out := &ImportRulesOutput{}
	for _, fr := range f.Rules {
		id := strings.TrimSpace(fr.ID)
		if id == "" || slices.ContainsFunc(next, func(r rules.Rule) bool { return r.ID == id }) {
			id = "rule-" + newULID(c.now)
		}
		r, err := buildRule(id, RuleInput{Type: fr.Type, Pattern: fr.Pattern, GroupName: fr.Group})
		if err != nil || duplicateOf(r, next, "") {
			c.logger.Warn("skipping rule from file", "path", input.Path, "type", fr.Type, "pattern", fr.Pattern, "error", err)
			out.Skipped++
			continue
		}
		next = append(next, r)
		out.Imported++
	}

	if err := c.saveRules(ctx, next); err != nil {
		return nil, err
	}
	if scope != nil {
		if err := c.store.SaveScope(ctx, *scope); err != nil {
			return nil, c.persistErr(state.KeyScope, err)
		}
		c.model.Scope = *scope
	}
	out.Total = len(c.model.Rules)
	out.Scope = c.model.Scope.String()
	return out, nil
}

// ExportRulesOutput contains the result of the ExportRules operation.
type ExportRulesOutput struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ExportRules writes the rule list and scope to a YAML rules file.
func (c *Coordinator) ExportRules(ctx context.Context, path string) (*ExportRulesOutput, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInvalidRequest("rules file path is required")
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := rules.WriteFile(path, c.model.Rules, c.model.Scope); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ExportRulesOutput{Path: path, Count: len(c.model.Rules)}, nil
}
