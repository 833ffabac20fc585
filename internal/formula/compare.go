// internal/formula/compare.go
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/regcheck/internal/mathexpr"
	"github.com/solatis/regcheck/internal/types"
)

/*
 * Comparison chains.
 *
 * "a OP b" and chained "a OP b OP c" (e.g. "IB <= In <= Iz", "16<S_fase<=35")
 * are split at top level (outside parentheses and quotes); each operand is an
 * arithmetic expression evaluated through mathexpr in the formula Context.
 * A chain holds when every adjacent pair holds.
 *
 * Equality and the non-strict orderings accept a relative error of 1e-9 so
 * "S_pe >= S_fase/2" is not defeated by float rounding.
 */

const epsilon = 1e-9

// comparators in match order: two-rune forms before their one-rune prefixes.
var comparators = []string{"<=", ">=", "==", "!=", "≤", "≥", "≠", "<", ">", "="}

var canonicalOps = map[string]string{"≤": "<=", "≥": ">=", "≠": "!="}

type chain struct {
	operands []string
	ops      []string
}

// splitComparison splits s at its top-level comparison operators.
func splitComparison(s string) (chain, bool) {
	var (
		c     chain
		depth int
		quote rune
		start int
	)
	for i := 0; i < len(s); {
		r := rune(s[i])
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			i++
			continue
		case r == '"' || r == '\'':
			quote = r
			i++
			continue
		case r == '(':
			depth++
			i++
			continue
		case r == ')':
			depth--
			i++
			continue
		}
		if depth == 0 {
			if op := comparatorAt(s, i); op != "" {
				c.operands = append(c.operands, strings.TrimSpace(s[start:i]))
				if canon, ok := canonicalOps[op]; ok {
					c.ops = append(c.ops, canon)
				} else {
					c.ops = append(c.ops, op)
				}
				i += len(op)
				start = i
				continue
			}
		}
		i++
	}
	c.operands = append(c.operands, strings.TrimSpace(s[start:]))
	if len(c.ops) == 0 || len(c.ops) > types.MaxFormulaClauses {
		return chain{}, false
	}
	for _, o := range c.operands {
		if o == "" {
			return chain{}, false
		}
	}
	return c, true
}

func comparatorAt(s string, i int) string {
	for _, op := range comparators {
		if strings.HasPrefix(s[i:], op) {
			return op
		}
	}
	return ""
}

// compare applies op to a and b.
func compare(a float64, op string, b float64) bool {
	near := math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	switch op {
	case "<=":
		return a <= b || near
	case ">=":
		return a >= b || near
	case "<":
		return a < b && !near
	case ">":
		return a > b && !near
	case "==", "=":
		return near
	case "!=":
		return !near
	default:
		return false
	}
}

// evaluation is the outcome of one comparison chain.
type evaluation struct {
	holds    bool
	missing  []string // set when operands reference unresolvable symbols
	calc     string
	actual   string
	expected string
}

// evalChain evaluates every operand and tests the chain. When eqIsLimit is
// set a bare "=" reads as "must not exceed" (<=). Unresolvable symbols are
// reported in missing rather than as an error; err is reserved for
// operands that are not arithmetic at all. A link whose two operands both
// resolved and that does not hold fails the chain even when other operands
// are missing.
func evalChain(c chain, ctx *Context, eqIsLimit bool) (evaluation, error) {
	exprs := make([]*mathexpr.Expr, len(c.operands))
	for i, src := range c.operands {
		e, err := mathexpr.Parse(src)
		if err != nil {
			return evaluation{}, fmt.Errorf("%w: %q: %v", types.ErrUnparseableFormula, src, err)
		}
		exprs[i] = e
	}

	var missing []string
	vals := make([]float64, len(exprs))
	known := make([]bool, len(exprs))
	for i, e := range exprs {
		if m := ctx.Missing(e.Variables()); len(m) > 0 {
			missing = append(missing, m...)
			continue
		}
		v, err := e.Eval(ctx.resolver)
		if err != nil {
			// division by zero and friends: the data cannot be judged
			missing = append(missing, c.operands[i])
			continue
		}
		vals[i], known[i] = v, true
	}

	ev := evaluation{holds: true}
	parts := make([]string, 0, 2*len(vals))
	for i := range vals {
		if i > 0 {
			op := c.ops[i-1]
			if op == "=" && eqIsLimit {
				op = "<="
			}
			if known[i-1] && known[i] && !compare(vals[i-1], op, vals[i]) {
				ev.holds = false
			}
			parts = append(parts, op)
		}
		if known[i] {
			parts = append(parts, describe(c.operands[i], vals[i]))
		} else {
			parts = append(parts, c.operands[i]+" (?)")
		}
	}
	if ev.holds && len(missing) > 0 {
		return evaluation{missing: dedupe(missing)}, nil
	}

	ev.calc = strings.Join(parts, " ")
	ev.actual = formatNumber(vals[0])
	if !known[0] {
		ev.actual = "?"
	}
	if len(vals) == 2 {
		op := c.ops[0]
		if op == "=" && eqIsLimit {
			op = "<="
		}
		ev.expected = op + " " + formatNumber(vals[1])
		if !known[1] {
			ev.expected = op + " ?"
		}
	} else {
		ev.expected = strings.Join(c.ops, ", ") + " chain"
	}
	return ev, nil
}

// evalComparison splits and evaluates s in one step.
func evalComparison(s string, ctx *Context, eqIsLimit bool) (evaluation, error) {
	c, ok := splitComparison(s)
	if !ok {
		return evaluation{}, fmt.Errorf("%w: no comparison in %q", types.ErrUnparseableFormula, s)
	}
	return evalChain(c, ctx, eqIsLimit)
}

// describe renders an operand for the calculation trace: literals as-is,
// expressions with their value.
func describe(src string, v float64) string {
	if _, err := strconv.ParseFloat(strings.TrimSpace(src), 64); err == nil {
		return formatNumber(v)
	}
	return fmt.Sprintf("%s (%s)", src, formatNumber(v))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
