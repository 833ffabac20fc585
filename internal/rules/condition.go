// internal/rules/condition.go
package rules

import (
	"fmt"

	"github.com/solatis/regcheck/internal/mathexpr"
	"github.com/solatis/regcheck/internal/types"
)

/*
 * Single-condition evaluation.
 *
 * Resolves the condition's field against the Env and dispatches on the
 * operator family:
 *
 *   direct, set/range  -> Compare(field, condition.value)
 *   lookup_*           -> Compare(field, table value)
 *   ordinal_*          -> positions in condition.scale
 *   reaction_class_*   -> positions in ReactionClassScale
 *   formula_*          -> Compare(field, expr(condition.value))
 *   computed_*         -> Compare(field, expr(condition.formula))
 *
 * An absent field makes every operator false except not_exists. Missing
 * table branches are false. Errors are reserved for authoring defects
 * (unknown operator, unknown table, unparseable or unresolvable expression)
 * and turn the enclosing rule into a skip.
 */

// Env is the read-only context conditions are evaluated in.
type Env struct {
	Record   types.Record
	Computed types.Computed
	Tables   map[string]*types.LookupTable

	vars map[string]float64 // NumericContext, built once by NewEnv
}

// NewEnv builds an Env. Tables are indexed by id; later duplicates win.
func NewEnv(record types.Record, computed types.Computed, tables []types.LookupTable) *Env {
	idx := make(map[string]*types.LookupTable, len(tables))
	for i := range tables {
		idx[tables[i].ID] = &tables[i]
	}
	return &Env{
		Record:   record,
		Computed: computed,
		Tables:   idx,
		vars:     NumericContext(record, computed),
	}
}

// Resolve resolves path against the Env's record and computed namespace.
func (e *Env) Resolve(path string) (any, bool) {
	return Resolve(path, e.Record, e.Computed)
}

func (e *Env) numericContext() map[string]float64 {
	if e.vars != nil {
		return e.vars
	}
	return NumericContext(e.Record, e.Computed)
}

// EvaluateCondition evaluates cond in env.
func EvaluateCondition(cond types.Condition, env *Env) (bool, error) {
	op := cond.Operator
	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
	}

	value, present := env.Resolve(cond.Field)

	switch {
	case op == types.OpExists:
		return present && IsPresent(value), nil
	case op == types.OpNotExists:
		return !present || !IsPresent(value), nil
	case op.IsLookup():
		return evaluateLookup(cond, env, value, present)
	}

	if !present {
		return false, nil
	}

	switch {
	case op.IsOrdinal():
		return compareIndex(op, scaleIndex(cond.Scale, value), scaleIndex(cond.Scale, cond.Value)), nil
	case isReactionClass(op):
		return compareIndex(op, reactionClassIndex(value), reactionClassIndex(cond.Value)), nil
	case op.IsFormula():
		return evaluateFormula(cond, env, value)
	case op == types.OpIn || op == types.OpNotIn:
		if list, ok := asList(cond.Value); ok && len(list) > types.MaxInOperatorValues {
			return false, fmt.Errorf("%w: %d values", types.ErrTooManyInValues, len(list))
		}
	}
	return Compare(op, value, cond.Value), nil
}

func isReactionClass(op types.Operator) bool {
	switch op {
	case types.OpReactionClassLt, types.OpReactionClassLte, types.OpReactionClassGt, types.OpReactionClassGte:
		return true
	}
	return false
}

// lookupOperators maps lookup_* to the direct comparison applied to the table value.
var lookupOperators = map[types.Operator]types.Operator{
	types.OpLookupGt:  types.OpGt,
	types.OpLookupGte: types.OpGte,
	types.OpLookupLt:  types.OpLt,
	types.OpLookupLte: types.OpLte,
	types.OpLookupEq:  types.OpEq,
	types.OpLookupNeq: types.OpNeq,
}

// evaluateLookup compares the field against the table value. Both must be
// present; a missing key branch is simply false.
func evaluateLookup(cond types.Condition, env *Env, value any, present bool) (bool, error) {
	table, ok := env.Tables[cond.Table]
	if !ok {
		return false, fmt.Errorf("%w: %q", types.ErrTableNotFound, cond.Table)
	}
	target, found := LookupTableValue(table, cond.Keys, env.Record, env.Computed)
	if !present || !found {
		return false, nil
	}
	return Compare(lookupOperators[cond.Operator], value, target), nil
}

// formulaOperators maps formula_* and computed_* to the direct comparison
// applied to the expression result.
var formulaOperators = map[types.Operator]types.Operator{
	types.OpFormulaGt:   types.OpGt,
	types.OpFormulaGte:  types.OpGte,
	types.OpFormulaLt:   types.OpLt,
	types.OpFormulaLte:  types.OpLte,
	types.OpComputedGt:  types.OpGt,
	types.OpComputedGte: types.OpGte,
	types.OpComputedLt:  types.OpLt,
	types.OpComputedLte: types.OpLte,
}

// formulaSource returns the expression a formula_* or computed_* condition
// compares against. ok is false for a formula_* value that is a bare
// number, returned in n.
func formulaSource(cond types.Condition) (src string, n float64, ok bool, err error) {
	switch cond.Operator {
	case types.OpFormulaGt, types.OpFormulaGte, types.OpFormulaLt, types.OpFormulaLte:
		s, isStr := cond.Value.(string)
		if isStr {
			return s, 0, true, nil
		}
		// a bare number is a valid (if degenerate) expression
		n, isNum := ToFloat64(cond.Value)
		if !isNum {
			return "", 0, false, fmt.Errorf("%w: formula value is %T", types.ErrUnparseableFormula, cond.Value)
		}
		return "", n, false, nil
	}
	return cond.Formula, 0, true, nil
}

// expressionResolvable reports whether every variable of the condition's
// expression is in the numeric context. Non-expression conditions and
// expressions that do not parse count as resolvable; the latter surface
// as errors when evaluated.
func expressionResolvable(cond types.Condition, env *Env) bool {
	if _, isFormula := formulaOperators[cond.Operator]; !isFormula {
		return true
	}
	src, _, ok, err := formulaSource(cond)
	if err != nil || !ok {
		return true
	}
	expr, err := mathexpr.Parse(src)
	if err != nil {
		return true
	}
	vars := env.numericContext()
	for _, name := range expr.Variables() {
		if _, found := vars[name]; !found {
			return false
		}
	}
	return true
}

// evaluateFormula evaluates the condition's expression in the numeric
// context and compares the field against the result. An expression over
// data the record lacks is false.
func evaluateFormula(cond types.Condition, env *Env, value any) (bool, error) {
	src, n, ok, err := formulaSource(cond)
	if err != nil {
		return false, err
	}
	if !ok {
		return Compare(formulaOperators[cond.Operator], value, n), nil
	}
	if !expressionResolvable(cond, env) {
		return false, nil
	}

	result, err := mathexpr.Eval(src, mathexpr.MapResolver(env.numericContext()))
	if err != nil {
		return false, fmt.Errorf("condition on %s: %w", cond.Field, err)
	}
	return Compare(formulaOperators[cond.Operator], value, result), nil
}
