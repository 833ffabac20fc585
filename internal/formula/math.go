// internal/formula/math.go
package formula

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/solatis/regcheck/internal/mathexpr"
	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

/*
 * Engineering formula catalogue.
 *
 * Formulas classified as math are matched against a fixed list of named
 * patterns, tried in order. Each entry resolves its own inputs and is skipped
 * independently when they are missing. A formula no entry recognises is
 * reported as skipped, never failed.
 *
 *   product               v1 * v2 OP rhs
 *   pe_sizing             S_pe >= sqrt(I^2 * t) / k
 *   energy_let_through    Icc^2 * t <= k^2 * S^2
 *   coordination          IB <= In <= Iz
 *   conventional_tripping I2 <= f * Iz
 *   polynomial            y = <expression>          informational only
 *   earthing_rb_re        RB <= 50 * RE / (Uo - 50)
 *   leakage_fraction      I_leak <= f * IDn
 *   idn_fraction          v OP IDn / n
 *
 * k for the conductor formulas comes from the record or rule parameters
 * when given directly, otherwise from the table named by parameters.k_table
 * (default "k_factor") keyed by insulation type then conductor material.
 */

// DefaultKTable names the k-factor table consulted when a rule does not set k_table.
const DefaultKTable = "k_factor"

type catalogueEntry struct {
	name    string
	pattern *regexp.Regexp
	eval    func(e *Evaluator, m []string, formula string, ctx *Context, rule *types.ElectricalRule) outcome
}

var catalogue = []catalogueEntry{
	{
		name:    "product",
		pattern: regexp.MustCompile(`^\s*(\w+)\s*\*\s*(\w+)\s*(<=|>=|<|>)\s*([\w.]+)\s*$`),
		eval:    evalCatalogueComparison,
	},
	{
		name:    "pe_sizing",
		pattern: regexp.MustCompile(`^\s*(S_pe|S_PE)\s*>=\s*sqrt\s*\(\s*(I\w*)\s*\^\s*2\s*\*?\s*t\s*\)\s*/\s*k\s*$`),
		eval:    evalPESizing,
	},
	{
		name:    "energy_let_through",
		pattern: regexp.MustCompile(`^\s*(Icc|Ik|I)\s*\^\s*2\s*\*?\s*t\s*<=\s*k\s*\^\s*2\s*\*?\s*(S\w*)\s*\^\s*2\s*$`),
		eval:    evalLetThrough,
	},
	{
		name:    "coordination",
		pattern: regexp.MustCompile(`^\s*(IB|Ib)\s*<=\s*In\s*<=\s*(Iz\w*)\s*$`),
		eval:    evalCatalogueComparison,
	},
	{
		name:    "conventional_tripping",
		pattern: regexp.MustCompile(`^\s*I2\s*<=\s*([\d.]+)\s*\*\s*(Iz\w*)\s*$`),
		eval:    evalCatalogueComparison,
	},
	{
		name:    "polynomial",
		pattern: regexp.MustCompile(`^\s*(\w+)\s*=\s*([^=<>!]+)$`),
		eval:    evalPolynomial,
	},
	{
		name:    "earthing_rb_re",
		pattern: regexp.MustCompile(`^\s*RB\s*<=\s*50\s*\*\s*RE\s*/\s*\(\s*Uo\s*-\s*50\s*\)\s*$`),
		eval:    evalEarthing,
	},
	{
		name:    "leakage_fraction",
		pattern: regexp.MustCompile(`^\s*(I_?leak\w*|I_?fuga\w*)\s*(<=|<)\s*([\d.]+)\s*\*\s*(IDn\w*)\s*$`),
		eval:    evalCatalogueComparison,
	},
	{
		name:    "idn_fraction",
		pattern: regexp.MustCompile(`^\s*(\w+)\s*(<=|>=|<|>)\s*(IDn\w*)\s*/\s*([\d.]+)\s*$`),
		eval:    evalCatalogueComparison,
	},
}

var inequalityNormalizer = strings.NewReplacer("≤", "<=", "≥", ">=", "≠", "!=")

// normalizeMath rewrites typographic notation into the ASCII the catalogue matches.
func normalizeMath(formula string) string {
	return strings.TrimSpace(mathexpr.Normalize(inequalityNormalizer.Replace(formula)))
}

func (e *Evaluator) evalMath(formula string, ctx *Context, rule *types.ElectricalRule) outcome {
	n := normalizeMath(formula)
	for _, entry := range catalogue {
		m := entry.pattern.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		out := entry.eval(e, m, n, ctx, rule)
		if out.details.Calculation != "" {
			out.details.Calculation = "[" + entry.name + "] " + out.details.Calculation
		}
		return out
	}
	return skip("unrecognized math pattern: %s", formula)
}

// evalCatalogueComparison covers entries whose semantics are exactly the
// written inequality.
func evalCatalogueComparison(_ *Evaluator, _ []string, formula string, ctx *Context, _ *types.ElectricalRule) outcome {
	return fromEvaluation(evalComparison(formula, ctx, false))
}

func evalPESizing(e *Evaluator, m []string, _ string, ctx *Context, rule *types.ElectricalRule) outcome {
	peName, iName := m[1], m[2]
	var missing []string
	sPE, ok := ctx.Number(peName)
	if !ok {
		missing = append(missing, peName)
	}
	current, ok := ctx.Number(iName)
	if !ok {
		missing = append(missing, iName)
	}
	t, ok := ctx.Number("t")
	if !ok {
		missing = append(missing, "t")
	}
	if len(missing) > 0 {
		return skipMissing(missing)
	}
	k, kCalc, out, ok := e.kFactor(ctx, rule)
	if !ok {
		return out
	}
	if k <= 0 {
		return skip("k factor must be positive, got %s", formatNumber(k))
	}

	required := math.Sqrt(current*current*t) / k
	return judge(evaluation{
		holds:    compare(sPE, ">=", required),
		calc:     fmt.Sprintf("%s (%s) >= sqrt(%s^2 × %s) / %s = %s", peName, formatNumber(sPE), formatNumber(current), formatNumber(t), kCalc, formatNumber(required)),
		actual:   formatNumber(sPE),
		expected: ">= " + formatNumber(required),
	})
}

func evalLetThrough(e *Evaluator, m []string, _ string, ctx *Context, rule *types.ElectricalRule) outcome {
	iName, sName := m[1], m[2]
	var missing []string
	current, ok := ctx.Number(iName)
	if !ok {
		missing = append(missing, iName)
	}
	t, ok := ctx.Number("t")
	if !ok {
		missing = append(missing, "t")
	}
	section, ok := ctx.Number(sName)
	if !ok {
		missing = append(missing, sName)
	}
	if len(missing) > 0 {
		return skipMissing(missing)
	}
	k, kCalc, out, ok := e.kFactor(ctx, rule)
	if !ok {
		return out
	}

	energy := current * current * t
	withstand := k * k * section * section
	return judge(evaluation{
		holds:    compare(energy, "<=", withstand),
		calc:     fmt.Sprintf("%s^2 × t = %s <= %s^2 × %s^2 = %s", formatNumber(current), formatNumber(energy), kCalc, formatNumber(section), formatNumber(withstand)),
		actual:   formatNumber(energy),
		expected: "<= " + formatNumber(withstand),
	})
}

// kFactor resolves k directly or through the k-factor table.
func (e *Evaluator) kFactor(ctx *Context, rule *types.ElectricalRule) (float64, string, outcome, bool) {
	if k, ok := ctx.Number("k"); ok {
		return k, "k (" + formatNumber(k) + ")", outcome{}, true
	}
	tableName := DefaultKTable
	if v, ok := ctx.Param("k_table"); ok {
		if s, isStr := v.(string); isStr && s != "" {
			tableName = s
		}
	}
	return e.lookup(tableName, "insulation_type, material", ctx, rule)
}

// evalPolynomial records the inputs of a defining formula. It always passes.
func evalPolynomial(_ *Evaluator, m []string, _ string, ctx *Context, _ *types.ElectricalRule) outcome {
	target, rhs := m[1], strings.TrimSpace(m[2])
	expr, err := mathexpr.Parse(rhs)
	if err != nil {
		return skipUnparseable(err)
	}

	vars := expr.Variables()
	sort.Strings(vars)
	inputs := make([]string, 0, len(vars))
	for _, v := range vars {
		if n, ok := ctx.Number(v); ok {
			inputs = append(inputs, fmt.Sprintf("%s=%s", v, formatNumber(n)))
		} else {
			inputs = append(inputs, v+"=n/a")
		}
	}

	out := outcome{passed: true, message: fmt.Sprintf("Informational: %s = %s", target, rhs)}
	out.details.Calculation = fmt.Sprintf("%s = %s with %s", target, rhs, strings.Join(inputs, ", "))
	if v, err := expr.Eval(ctx.resolver); err == nil {
		out.details.Actual = formatNumber(v)
		out.message += " = " + formatNumber(v)
	}
	return out
}

func evalEarthing(_ *Evaluator, _ []string, formula string, ctx *Context, _ *types.ElectricalRule) outcome {
	uo, ok := ctx.Number("Uo")
	if ok && uo <= 50 {
		return skip("Uo must exceed 50 V, got %s", formatNumber(uo))
	}
	return fromEvaluation(evalComparison(formula, ctx, false))
}

// Variables lists the symbols a formula references, in first-use order, for
// validation and for reporting which inputs a rule needs. Lookup calls and
// IF/THEN/AND/OR keywords are not symbols.
func Variables(formula string) []string {
	n := quotedPattern.ReplaceAllString(normalizeMath(formula), " ")
	n = lookupCallPattern.ReplaceAllStringFunc(n, func(call string) string {
		m := lookupCallPattern.FindStringSubmatch(call)
		return " " + strings.ReplaceAll(m[2], ",", " ") + " "
	})
	seen := make(map[string]bool)
	var out []string
	for _, tok := range identPattern.FindAllString(n, -1) {
		if keywords[strings.ToUpper(tok)] || seen[tok] {
			continue
		}
		if _, isNum := rules.ParseNumber(tok); isNum {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

var (
	identPattern  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)
	quotedPattern = regexp.MustCompile(`"[^"]*"|'[^']*'`)
)

var keywords = map[string]bool{
	"IF": true, "THEN": true, "AND": true, "OR": true,
	"MAX": true, "MIN": true, "ABS": true, "SQRT": true,
	"TRUE": true, "FALSE": true,
}
