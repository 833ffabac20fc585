// internal/plugin/bundle.go
package plugin

import (
	"fmt"

	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// Set is several plugins merged for one evaluation. Input carries no record;
// the caller sets Input.Record per project.
type Set struct {
	Input           rules.BatchInput
	ElectricalRules []types.ElectricalRule
	PluginIDs       []string
}

// Bundle merges plugins in order. Rule, lookup-table and computed-field ids
// must be unique across the set; regulations shared by several plugins are
// kept once. A rule's area is its plugin's Area unless the plugin has none.
func Bundle(plugins []types.Plugin) (*Set, error) {
	s := &Set{Input: rules.BatchInput{Areas: make(map[string]string)}}
	ruleIDs := make(map[string]string)
	tableIDs := make(map[string]string)
	fieldIDs := make(map[string]string)
	regulations := make(map[string]bool)

	claim := func(seen map[string]string, kind, id, pluginID string) error {
		if owner, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s %q in plugins %s and %s", types.ErrDuplicateID, kind, id, owner, pluginID)
		}
		seen[id] = pluginID
		return nil
	}

	for i := range plugins {
		p := &plugins[i]
		s.PluginIDs = append(s.PluginIDs, p.ID)

		for _, r := range p.Rules {
			if err := claim(ruleIDs, "rule", r.ID, p.ID); err != nil {
				return nil, err
			}
			s.Input.Rules = append(s.Input.Rules, r)
			if p.Area != "" {
				s.Input.Areas[r.ID] = p.Area
			}
		}
		for _, r := range p.ElectricalRules {
			if err := claim(ruleIDs, "rule", r.ID, p.ID); err != nil {
				return nil, err
			}
			s.ElectricalRules = append(s.ElectricalRules, r)
		}
		for _, t := range p.LookupTables {
			if err := claim(tableIDs, "lookup table", t.ID, p.ID); err != nil {
				return nil, err
			}
			s.Input.LookupTables = append(s.Input.LookupTables, t)
		}
		for _, f := range p.ComputedFields {
			if err := claim(fieldIDs, "computed field", f.ID, p.ID); err != nil {
				return nil, err
			}
			s.Input.ComputedFields = append(s.Input.ComputedFields, f)
		}
		for _, reg := range p.Regulations {
			if regulations[reg.ID] {
				continue
			}
			regulations[reg.ID] = true
			s.Input.Regulations = append(s.Input.Regulations, reg)
		}
	}
	return s, nil
}

// ForRecord returns a copy of the batch input bound to record.
func (s *Set) ForRecord(record types.Record) *rules.BatchInput {
	in := s.Input
	in.Record = record
	return &in
}
