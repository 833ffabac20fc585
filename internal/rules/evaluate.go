// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Rule evaluation state machine.
 *
 * Per rule, per pass:
 *
 *   disabled                          -> OutcomeDisabled
 *   any condition field unresolvable  -> OutcomeSkipped
 *   any condition false               -> OutcomeNoFire
 *   any exclusion true                -> OutcomeNoFire
 *   otherwise                         -> OutcomeFired + Finding
 *
 * "Unresolvable" means the field is absent and the operator does not
 * tolerate that (only not_exists and lookup_* do), or a formula_* or
 * computed_* expression names a variable the record lacks. Conditions are ANDed and
 * short-circuit on the first false; exclusions are ORed and short-circuit on
 * the first true.
 *
 * Any error or panic during evaluation is converted to OutcomeSkipped with
 * the cause in RuleResult.Err. Nothing escapes to the batch.
 */

// Outcome is the result state of one rule evaluation.
type Outcome int

const (
	OutcomeDisabled Outcome = iota
	OutcomeSkipped
	OutcomeNoFire
	OutcomeFired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoFire:
		return "no_fire"
	case OutcomeFired:
		return "fired"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RuleResult is the outcome of EvaluateRule. Finding is set only when
// Outcome is OutcomeFired; its ID, Area and Regulation are left for the
// caller to fill.
type RuleResult struct {
	RuleID  string
	Outcome Outcome
	Finding *types.Finding
	Err     error
}

// EvaluateRule runs rule against env.
func EvaluateRule(rule *types.Rule, env *Env) (result RuleResult) {
	result.RuleID = rule.ID
	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeSkipped
			result.Finding = nil
			result.Err = fmt.Errorf("rule %s: panic: %v", rule.ID, r)
		}
	}()

	if !rule.Enabled {
		result.Outcome = OutcomeDisabled
		return result
	}

	if !resolvable(rule.Conditions, env) {
		result.Outcome = OutcomeSkipped
		return result
	}

	for _, cond := range rule.Conditions {
		ok, err := EvaluateCondition(cond, env)
		if err != nil {
			result.Outcome = OutcomeSkipped
			result.Err = fmt.Errorf("rule %s: %w", rule.ID, err)
			return result
		}
		if !ok {
			result.Outcome = OutcomeNoFire
			return result
		}
	}

	for _, excl := range rule.Exclusions {
		ok, err := EvaluateCondition(excl, env)
		if err != nil {
			result.Outcome = OutcomeSkipped
			result.Err = fmt.Errorf("rule %s: exclusion: %w", rule.ID, err)
			return result
		}
		if ok {
			result.Outcome = OutcomeNoFire
			return result
		}
	}

	result.Outcome = OutcomeFired
	result.Finding = buildFinding(rule, env)
	return result
}

// resolvable reports whether every condition has the data it needs,
// including the variables of formula_* and computed_* expressions.
func resolvable(conds []types.Condition, env *Env) bool {
	for _, cond := range conds {
		if !expressionResolvable(cond, env) {
			return false
		}
		if cond.Operator.ToleratesMissingField() {
			continue
		}
		if _, ok := env.Resolve(cond.Field); !ok {
			return false
		}
	}
	return true
}

// buildFinding interpolates the rule's templates. {{value}} is the first
// condition's field value and {{required}} its declared value.
func buildFinding(rule *types.Rule, env *Env) *types.Finding {
	extra := make(map[string]string, 2)
	var current string
	if len(rule.Conditions) > 0 {
		first := rule.Conditions[0]
		if v, ok := env.Resolve(first.Field); ok {
			current = FormatValue(v)
			extra["value"] = current
		}
		if first.Value != nil {
			extra["required"] = FormatValue(first.Value)
		}
	}

	f := &types.Finding{
		SourceRuleID: rule.ID,
		Article:      rule.Article,
		Description:  Interpolate(rule.Description, env, extra),
		Severity:     rule.Severity,
		Remediation:  Interpolate(rule.Remediation, env, extra),
	}
	if rule.CurrentValueTemplate != "" {
		f.CurrentValue = Interpolate(rule.CurrentValueTemplate, env, extra)
	} else {
		f.CurrentValue = current
	}
	if rule.RequiredValue != "" {
		f.RequiredValue = Interpolate(rule.RequiredValue, env, extra)
	}
	return f
}
