package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Stored is the persisted shape of a rule. Older records carry only a
// domain (in Domain or Pattern) and a group name.
type Stored struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Domain    string `json:"domain,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

// Decode parses a persisted rule list. Anything that is not a JSON array
// yields no rules; elements that do not decode are skipped.
func Decode(data []byte) []Rule {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	records := make([]Stored, 0, len(raw))
	for _, r := range raw {
		var s Stored
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		records = append(records, s)
	}
	return Normalize(records)
}

// Normalize migrates stored records to the current form. Records without
// both a type and a pattern are read as domain rules. Rules left without a
// pattern or group name are dropped. Records without an id get one derived
// from their content and position, so re-normalizing is stable.
func Normalize(records []Stored) []Rule {
	out := make([]Rule, 0, len(records))
	for i, s := range records {
		var r Rule
		if s.Pattern != "" && s.Type != "" {
			r.Type = SanitizeType(s.Type)
			r.Pattern = NormalizePattern(r.Type, s.Pattern)
		} else {
			domain := s.Domain
			if domain == "" {
				domain = s.Pattern
			}
			r.Type = TypeDomain
			r.Pattern = NormalizeDomainInput(domain)
		}
		r.GroupName = strings.TrimSpace(s.GroupName)
		if r.Pattern == "" || r.GroupName == "" {
			continue
		}
		r.ID = s.ID
		if r.ID == "" {
			r.ID = legacyID(i, r)
		}
		out = append(out, r)
	}
	return out
}

// Records converts rules to their persisted shape.
func Records(rs []Rule) []Stored {
	out := make([]Stored, len(rs))
	for i, r := range rs {
		out[i] = Stored{ID: r.ID, Type: string(r.Type), Pattern: r.Pattern, GroupName: r.GroupName}
	}
	return out
}

func legacyID(index int, r Rule) string {
	key := fmt.Sprintf("%d|%s|%s|%s", index, r.Type, r.Pattern, r.GroupName)
	return "rule-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
