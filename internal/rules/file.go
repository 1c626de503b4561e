package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML rules document:
//
//	scope: all
//	rules:
//	  - type: domain
//	    pattern: github.com
//	    group: Dev
type File struct {
	Scope string     `yaml:"scope,omitempty"`
	Rules []FileRule `yaml:"rules"`
}

// FileRule is one entry of a rules file. Order in the file is priority.
type FileRule struct {
	ID      string `yaml:"id,omitempty"`
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
	Group   string `yaml:"group"`
}

// ReadFile loads a rules file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return f, nil
}

// WriteFile writes rs and scope as a rules file.
func WriteFile(path string, rs []Rule, scope Scope) error {
	f := File{Scope: scope.String(), Rules: make([]FileRule, len(rs))}
	for i, r := range rs {
		f.Rules[i] = FileRule{ID: r.ID, Type: string(r.Type), Pattern: r.Pattern, Group: r.GroupName}
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
