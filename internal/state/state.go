// Package state persists the organizer's durable model over a kv.Store.
// Each piece lives under its own key; reads fall back to an empty default
// when a value is missing or malformed.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/kv"
	"github.com/hpungsan/grove/internal/rules"
)

// Storage keys.
const (
	KeyClosedGroups = "grove_closed_groups"
	KeyCategories   = "grove_categories"
	KeyCategoryMap  = "grove_category_map"
	KeyLocked       = "grove_locked"
	KeyStarred      = "grove_starred"
	KeyRules        = "grove_rules"
	KeyScope        = "grove_scope"
)

// Store reads and writes typed state.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// New wraps s. logger receives data-defect warnings.
func New(s kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: s, logger: logger}
}

// Model is the full persisted state.
type Model struct {
	Closed      []group.TabGroup
	Categories  []string
	CategoryMap map[string]string
	Locked      group.SignatureSet
	Starred     group.SignatureSet
	Rules       []rules.Rule
	Scope       rules.Scope
}

// Load reads every key. Read errors other than a missing key are returned;
// malformed values fall back to defaults.
func (s *Store) Load(ctx context.Context) (*Model, error) {
	m := &Model{}
	var err error

	if m.Closed, err = getJSON[[]group.TabGroup](ctx, s, KeyClosedGroups, nil); err != nil {
		return nil, err
	}
	for i := range m.Closed {
		m.Closed[i].Signature = group.SignatureOf(m.Closed[i])
	}
	if m.Categories, err = getJSON[[]string](ctx, s, KeyCategories, nil); err != nil {
		return nil, err
	}
	if m.CategoryMap, err = getJSON(ctx, s, KeyCategoryMap, map[string]string{}); err != nil {
		return nil, err
	}
	if m.CategoryMap == nil {
		m.CategoryMap = map[string]string{}
	}

	locked, err := getJSON[[]string](ctx, s, KeyLocked, nil)
	if err != nil {
		return nil, err
	}
	starred, err := getJSON[[]string](ctx, s, KeyStarred, nil)
	if err != nil {
		return nil, err
	}
	m.Locked = group.NewSignatureSet(locked)
	m.Starred = group.NewSignatureSet(starred)

	raw, err := s.get(ctx, KeyRules)
	if err != nil {
		return nil, err
	}
	m.Rules = rules.Decode(raw)

	m.Scope = rules.DefaultScope
	scope, err := getJSON(ctx, s, KeyScope, "")
	if err != nil {
		return nil, err
	}
	if scope != "" {
		if parsed, err := rules.ParseScope(scope); err == nil {
			m.Scope = parsed
		} else {
			s.logger.Warn("ignoring stored scope", "key", KeyScope, "value", scope, "error", err)
		}
	}
	return m, nil
}

func (s *Store) SaveClosed(ctx context.Context, groups []group.TabGroup) error {
	if groups == nil {
		groups = []group.TabGroup{}
	}
	return s.setJSON(ctx, KeyClosedGroups, groups)
}

func (s *Store) SaveCategories(ctx context.Context, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	return s.setJSON(ctx, KeyCategories, categories)
}

func (s *Store) SaveCategoryMap(ctx context.Context, m map[string]string) error {
	return s.setJSON(ctx, KeyCategoryMap, m)
}

func (s *Store) SaveLocked(ctx context.Context, set group.SignatureSet) error {
	return s.setJSON(ctx, KeyLocked, set.List())
}

func (s *Store) SaveStarred(ctx context.Context, set group.SignatureSet) error {
	return s.setJSON(ctx, KeyStarred, set.List())
}

func (s *Store) SaveRules(ctx context.Context, rs []rules.Rule) error {
	return s.setJSON(ctx, KeyRules, rules.Records(rs))
}

func (s *Store) SaveScope(ctx context.Context, scope rules.Scope) error {
	return s.setJSON(ctx, KeyScope, scope.String())
}

// get returns nil, nil for a missing key.
func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// getJSON decodes key, returning fallback when the key is missing or the
// value does not decode.
func getJSON[T any](ctx context.Context, s *Store, key string, fallback T) (T, error) {
	raw, err := s.get(ctx, key)
	if err != nil {
		return fallback, err
	}
	if len(raw) == 0 {
		return fallback, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("ignoring malformed stored value", "key", key, "error", err)
		return fallback, nil
	}
	return v, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}
