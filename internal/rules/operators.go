// internal/rules/operators.go
package rules

import (
	"github.com/solatis/regcheck/internal/types"
)

/*
 * Operator comparison logic for value-vs-target operators.
 *
 * Covers the existence, direct and set/range families. Lookup, ordinal,
 * reaction-class and formula operators first derive their target (a table
 * value, scale positions, an expression result) in condition.go and then
 * come back here for the final comparison.
 *
 * Operators:
 *   - exists/not_exists: presence (nil, false and "" are absent)
 *   - ==/!=: equality of any scalar type; numeric kinds compare by value
 *   - > >= < <=: numeric only, anything else is false
 *   - in/not_in: membership in a list using == semantics
 *   - between: inclusive [min, max]; not_in_range: strictly outside
 *
 * Why function-based: a switch over the closed operator set reads better than
 * one type per operator with almost no behaviour each.
 */

// Compare applies a direct or set/range operator. Unknown operators are false.
func Compare(op types.Operator, value, target any) bool {
	switch op {
	case types.OpExists:
		return IsPresent(value)
	case types.OpNotExists:
		return !IsPresent(value)
	case types.OpEq:
		return compareEqual(value, target)
	case types.OpNeq:
		return !compareEqual(value, target)
	case types.OpGt, types.OpGte, types.OpLt, types.OpLte:
		return compareOrdered(op, value, target)
	case types.OpIn:
		return compareIn(value, target)
	case types.OpNotIn:
		list, ok := asList(target)
		if !ok {
			return false
		}
		return !contains(list, value)
	case types.OpBetween:
		lo, hi, ok := asRange(target)
		if !ok {
			return false
		}
		n, ok := ToFloat64(value)
		return ok && n >= lo && n <= hi
	case types.OpNotInRange:
		lo, hi, ok := asRange(target)
		if !ok {
			return false
		}
		n, ok := ToFloat64(value)
		return ok && (n < lo || n > hi)
	default:
		return false
	}
}

// compareOrdered applies > >= < <= to two numeric values.
func compareOrdered(op types.Operator, value, target any) bool {
	c, ok := compareNumeric(value, target)
	if !ok {
		return false
	}
	switch op {
	case types.OpGt:
		return c > 0
	case types.OpGte:
		return c >= 0
	case types.OpLt:
		return c < 0
	case types.OpLte:
		return c <= 0
	default:
		return false
	}
}

// compareEqual performs equality with numeric kind normalisation.
// Maps and lists never compare equal; only scalars do.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// ok is false when either side is not numeric.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers converts both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := ToFloat64(a)
	nb, okb := ToFloat64(b)
	return na, nb, oka && okb
}

// compareIn checks membership using equality semantics.
func compareIn(value, set any) bool {
	list, ok := asList(set)
	if !ok {
		return false
	}
	return contains(list, value)
}

func contains(list []any, value any) bool {
	for _, elem := range list {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// asList accepts the list shapes decoders and Go callers produce.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// asRange reads a [min, max] pair. Reversed bounds are normalised.
func asRange(v any) (float64, float64, bool) {
	list, ok := asList(v)
	if !ok || len(list) != 2 {
		return 0, 0, false
	}
	lo, ok1 := ToFloat64(list[0])
	hi, ok2 := ToFloat64(list[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}
