// internal/plugin/validate.go
package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/regcheck/internal/formula"
	"github.com/solatis/regcheck/internal/mathexpr"
	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// Issue is one static defect found in a plugin definition. Loaders reject a
// document with any issue as a whole; see Err.
type Issue struct {
	PluginID string
	ItemID   string // rule, table or computed field id; empty for plugin-level issues
	Err      error
}

func (i Issue) Error() string {
	if i.ItemID == "" {
		return fmt.Sprintf("%s: %v", i.PluginID, i.Err)
	}
	return fmt.Sprintf("%s/%s: %v", i.PluginID, i.ItemID, i.Err)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Validate checks a plugin definition without project data.
func Validate(p *types.Plugin) []Issue {
	v := &validator{plugin: p, tables: make(map[string]bool)}
	if strings.TrimSpace(p.ID) == "" {
		v.add("", fmt.Errorf("%w: plugin id is empty", types.ErrInvalidDefinition))
	}

	for _, t := range p.LookupTables {
		if v.tables[t.ID] {
			v.add(t.ID, fmt.Errorf("%w: lookup table %q", types.ErrDuplicateID, t.ID))
		}
		v.tables[t.ID] = true
		if len(t.Keys) == 0 {
			v.add(t.ID, fmt.Errorf("%w: lookup table has no keys", types.ErrInvalidDefinition))
		}
		if len(t.Keys) > types.MaxTableDepth {
			v.add(t.ID, fmt.Errorf("%w: lookup table has %d keys, limit %d", types.ErrInvalidDefinition, len(t.Keys), types.MaxTableDepth))
		}
	}

	computed := make(map[string]bool)
	for _, f := range p.ComputedFields {
		if computed[f.ID] {
			v.add(f.ID, fmt.Errorf("%w: computed field %q", types.ErrDuplicateID, f.ID))
		}
		computed[f.ID] = true
		if err := rules.ComputeError(f); err != nil {
			v.add(f.ID, err)
		}
	}

	regulations := make(map[string]bool)
	for _, r := range p.Regulations {
		regulations[r.ID] = true
	}

	ruleIDs := make(map[string]bool)
	checkID := func(id string) {
		if id == "" {
			v.add("", fmt.Errorf("%w: rule without id", types.ErrInvalidDefinition))
			return
		}
		if ruleIDs[id] {
			v.add(id, fmt.Errorf("%w: rule %q", types.ErrDuplicateID, id))
		}
		ruleIDs[id] = true
	}

	for i := range p.Rules {
		r := &p.Rules[i]
		checkID(r.ID)
		if !r.Severity.Valid() {
			v.add(r.ID, fmt.Errorf("%w: severity %q", types.ErrInvalidDefinition, r.Severity))
		}
		if len(r.Conditions) == 0 {
			v.add(r.ID, fmt.Errorf("%w: rule has no conditions", types.ErrInvalidDefinition))
		}
		if r.RegulationID != "" && len(regulations) > 0 && !regulations[r.RegulationID] {
			v.add(r.ID, fmt.Errorf("%w: unknown regulation %q", types.ErrInvalidDefinition, r.RegulationID))
		}
		for _, c := range r.Conditions {
			v.condition(r.ID, c)
		}
		for _, c := range r.Exclusions {
			v.condition(r.ID, c)
		}
	}

	for i := range p.ElectricalRules {
		r := &p.ElectricalRules[i]
		checkID(r.ID)
		if !r.Severity.Valid() {
			v.add(r.ID, fmt.Errorf("%w: severity %q", types.ErrInvalidDefinition, r.Severity))
		}
		if err := formula.Check(r.Formula); err != nil {
			v.add(r.ID, err)
			continue
		}
		for _, name := range formula.LookupNames(r.Formula) {
			if !v.tables[name] && !v.tables["lookup_"+name] && r.LookupTables[name] == nil && r.LookupTables["lookup_"+name] == nil {
				v.add(r.ID, fmt.Errorf("%w: lookup_%s", types.ErrTableNotFound, name))
			}
		}
	}

	return v.issues
}

type validator struct {
	plugin *types.Plugin
	tables map[string]bool
	issues []Issue
}

func (v *validator) add(item string, err error) {
	v.issues = append(v.issues, Issue{PluginID: v.plugin.ID, ItemID: item, Err: err})
}

func (v *validator) condition(ruleID string, c types.Condition) {
	op := c.Operator
	if !op.Valid() {
		v.add(ruleID, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op))
		return
	}
	if strings.TrimSpace(c.Field) == "" {
		v.add(ruleID, fmt.Errorf("%w: %s condition has no field", types.ErrInvalidDefinition, op))
	} else if depth := len(strings.Split(c.Field, ".")); depth > types.MaxPathDepth {
		v.add(ruleID, fmt.Errorf("%w: %s", types.ErrPathTooDeep, c.Field))
	}

	switch {
	case op.IsLookup():
		if c.Table == "" {
			v.add(ruleID, fmt.Errorf("%w: %s condition has no table", types.ErrInvalidDefinition, op))
		} else if !v.tables[c.Table] {
			v.add(ruleID, fmt.Errorf("%w: %q", types.ErrTableNotFound, c.Table))
		}
	case op.IsOrdinal():
		if len(c.Scale) == 0 {
			v.add(ruleID, fmt.Errorf("%w: %s condition has no scale", types.ErrInvalidDefinition, op))
		}
	case op.IsFormula():
		v.expression(ruleID, c)
	case op == types.OpIn || op == types.OpNotIn:
		list, ok := c.Value.([]any)
		if !ok {
			v.add(ruleID, fmt.Errorf("%w: %s value must be a list", types.ErrInvalidDefinition, op))
		} else if len(list) > types.MaxInOperatorValues {
			v.add(ruleID, fmt.Errorf("%w: %d values", types.ErrTooManyInValues, len(list)))
		}
	case op == types.OpBetween || op == types.OpNotInRange:
		if list, ok := c.Value.([]any); !ok || len(list) != 2 {
			v.add(ruleID, fmt.Errorf("%w: %s value must be [min, max]", types.ErrInvalidDefinition, op))
		}
	}
}

// expression parses the arithmetic expression of a formula_* or computed_*
// condition. Unresolved variables are a runtime matter, not a defect.
func (v *validator) expression(ruleID string, c types.Condition) {
	src := c.Formula
	if strings.HasPrefix(string(c.Operator), "formula_") {
		s, ok := c.Value.(string)
		if !ok {
			if _, isNum := rules.ToFloat64(c.Value); isNum {
				return
			}
			v.add(ruleID, fmt.Errorf("%w: %s value must be an expression", types.ErrUnparseableFormula, c.Operator))
			return
		}
		src = s
	}
	if strings.TrimSpace(src) == "" {
		v.add(ruleID, fmt.Errorf("%w: %s condition has no expression", types.ErrInvalidDefinition, c.Operator))
		return
	}
	if _, err := mathexpr.Parse(src); err != nil {
		v.add(ruleID, fmt.Errorf("%w: %v", types.ErrUnparseableFormula, err))
	}
}

// Err joins issues into one error, or nil.
func Err(issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}
	errs := make([]error, len(issues))
	for i, is := range issues {
		errs[i] = is
	}
	return errors.Join(errs...)
}
