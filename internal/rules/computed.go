// internal/rules/computed.go
package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Computed field derivation.
 *
 * Runs before any rule, in declaration order, so a later field may read an
 * earlier one as "computed.<id>". Each derivation is one of:
 *
 *   - arithmetic: operands[0] <operation> operands[1]; operands are paths or
 *     numeric literals
 *   - tier: first band with min <= field < max wins; nil bounds are open
 *   - conditional: truthiness of field picks ifTrue or ifFalse
 *
 * A derivation that cannot produce a value (absent input, division by zero,
 * non-finite result, no matching tier, or a panic) leaves the id out of the
 * namespace. Rules reading it then see an absent field and skip.
 */

// ComputeFields derives every field into a fresh Computed namespace.
// The second return lists ids that could not be derived.
func ComputeFields(fields []types.ComputedField, record types.Record) (types.Computed, []string) {
	computed := make(types.Computed, len(fields))
	var absent []string
	for _, f := range fields {
		v, ok := computeField(f, record, computed)
		if !ok {
			absent = append(absent, f.ID)
			continue
		}
		computed[f.ID] = v
	}
	return computed, absent
}

func computeField(f types.ComputedField, record types.Record, computed types.Computed) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = nil, false
		}
	}()

	c := f.Computation
	switch c.Kind {
	case types.ComputationArithmetic:
		n, ok := computeArithmetic(c, record, computed)
		return n, ok
	case types.ComputationTier:
		return computeTier(c, record, computed)
	case types.ComputationConditional:
		return computeConditional(c, record, computed)
	default:
		return nil, false
	}
}

// arithmeticOps accepts both the symbolic and the spelled-out operation names.
var arithmeticOps = map[string]func(a, b float64) (float64, bool){
	"+": add, "add": add, "sum": add, "plus": add,
	"-": sub, "subtract": sub, "sub": sub, "minus": sub,
	"*": mul, "multiply": mul, "mul": mul, "times": mul,
	"/": div, "divide": div, "div": div,
}

func add(a, b float64) (float64, bool) { return a + b, true }
func sub(a, b float64) (float64, bool) { return a - b, true }
func mul(a, b float64) (float64, bool) { return a * b, true }
func div(a, b float64) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

func computeArithmetic(c types.Computation, record types.Record, computed types.Computed) (float64, bool) {
	if len(c.Operands) != 2 {
		return 0, false
	}
	fn, ok := arithmeticOps[strings.ToLower(strings.TrimSpace(c.Operation))]
	if !ok {
		return 0, false
	}
	a, ok := operand(c.Operands[0], record, computed)
	if !ok {
		return 0, false
	}
	b, ok := operand(c.Operands[1], record, computed)
	if !ok {
		return 0, false
	}
	n, ok := fn(a, b)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// operand reads a numeric literal or resolves a path to a number.
func operand(s string, record types.Record, computed types.Computed) (float64, bool) {
	if n, ok := ParseNumber(s); ok {
		return n, true
	}
	v, ok := Resolve(s, record, computed)
	if !ok {
		return 0, false
	}
	return ParseNumber(v)
}

func computeTier(c types.Computation, record types.Record, computed types.Computed) (any, bool) {
	v, ok := Resolve(c.Field, record, computed)
	if !ok {
		return nil, false
	}
	n, ok := ParseNumber(v)
	if !ok {
		return nil, false
	}
	for _, t := range c.Tiers {
		if t.Min != nil && n < *t.Min {
			continue
		}
		if t.Max != nil && n >= *t.Max {
			continue
		}
		if t.Result == nil {
			return nil, false
		}
		return t.Result, true
	}
	return nil, false
}

func computeConditional(c types.Computation, record types.Record, computed types.Computed) (any, bool) {
	v, ok := Resolve(c.Field, record, computed)
	if !ok {
		return nil, false
	}
	out := c.IfFalse
	if Truthy(v) {
		out = c.IfTrue
	}
	if out == nil {
		return nil, false
	}
	return out, true
}

// ComputeError describes why a computed field was left out, for validation output.
func ComputeError(f types.ComputedField) error {
	c := f.Computation
	switch c.Kind {
	case types.ComputationArithmetic:
		if len(c.Operands) != 2 {
			return fmt.Errorf("%w: computed %s: arithmetic needs 2 operands, got %d", types.ErrInvalidDefinition, f.ID, len(c.Operands))
		}
		if _, ok := arithmeticOps[strings.ToLower(strings.TrimSpace(c.Operation))]; !ok {
			return fmt.Errorf("%w: computed %s: unknown operation %q", types.ErrInvalidDefinition, f.ID, c.Operation)
		}
	case types.ComputationTier:
		if c.Field == "" || len(c.Tiers) == 0 {
			return fmt.Errorf("%w: computed %s: tier needs a field and at least one tier", types.ErrInvalidDefinition, f.ID)
		}
	case types.ComputationConditional:
		if c.Field == "" {
			return fmt.Errorf("%w: computed %s: conditional needs a field", types.ErrInvalidDefinition, f.ID)
		}
	default:
		return fmt.Errorf("%w: computed %s: unknown computation type %q", types.ErrInvalidDefinition, f.ID, c.Kind)
	}
	return nil
}
