// internal/formula/handlers.go
package formula

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// outcome is what every category handler returns. A skipped outcome always
// passes: a check that cannot be evaluated for lack of data never blocks.
type outcome struct {
	passed  bool
	skipped bool
	message string
	details types.FormulaDetails
}

func pass(ev evaluation) outcome {
	return outcome{
		passed:  true,
		message: "OK: " + ev.calc,
		details: types.FormulaDetails{Expected: ev.expected, Actual: ev.actual, Calculation: ev.calc},
	}
}

func fail(ev evaluation) outcome {
	return outcome{
		passed:  false,
		message: "Not met: " + ev.calc,
		details: types.FormulaDetails{Expected: ev.expected, Actual: ev.actual, Calculation: ev.calc},
	}
}

func judge(ev evaluation) outcome {
	if ev.holds {
		return pass(ev)
	}
	return fail(ev)
}

func skip(format string, args ...any) outcome {
	return outcome{passed: true, skipped: true, message: "Skipped: " + fmt.Sprintf(format, args...)}
}

func skipMissing(missing []string) outcome {
	return skip("insufficient data (missing %s)", strings.Join(missing, ", "))
}

func skipUnparseable(err error) outcome {
	return skip("unparseable formula: %v", err)
}

// fromEvaluation maps a chain evaluation (or its error) to an outcome.
func fromEvaluation(ev evaluation, err error) outcome {
	if err != nil {
		return skipUnparseable(err)
	}
	if len(ev.missing) > 0 {
		return skipMissing(ev.missing)
	}
	return judge(ev)
}

// --- boolean ---

func (e *Evaluator) evalBoolean(formula string, ctx *Context) outcome {
	m := booleanPattern.FindStringSubmatch(formula)
	if m == nil {
		return skipUnparseable(fmt.Errorf("%w: %q", types.ErrUnparseableFormula, formula))
	}
	name := m[1]
	want := strings.EqualFold(m[2], "true")
	v, ok := ctx.Value(name)
	if !ok {
		return skipMissing([]string{name})
	}
	got := rules.Truthy(v)
	ev := evaluation{
		holds:    got == want,
		calc:     fmt.Sprintf("%s (%t) == %t", name, got, want),
		actual:   strconv.FormatBool(got),
		expected: strconv.FormatBool(want),
	}
	return judge(ev)
}

// --- simple ---

var ipCodePattern = regexp.MustCompile(`(?i)^IP([0-9X])([0-9X])[A-Z]?$`)

func (e *Evaluator) evalSimple(formula string, ctx *Context, rule *types.ElectricalRule) outcome {
	c, ok := splitComparison(formula)
	if !ok {
		// not a comparison at all: maybe a catalogued engineering formula
		return e.evalMath(formula, ctx, rule)
	}
	if len(c.operands) == 2 {
		if out, ok := evalIPRating(c, ctx); ok {
			return out
		}
	}
	ev, err := evalChain(c, ctx, false)
	if err != nil {
		return e.evalMath(formula, ctx, rule)
	}
	return fromEvaluation(ev, nil)
}

// evalIPRating compares ingress protection codes on their digits. Either
// side may be a quoted code or a symbol bound to one. ok is false when
// neither side is an IP code.
func evalIPRating(c chain, ctx *Context) (outcome, bool) {
	left, lok := ipOperand(c.operands[0], ctx)
	right, rok := ipOperand(c.operands[1], ctx)
	if !lok && !rok {
		return outcome{}, false
	}
	if !lok || !rok {
		name := c.operands[0]
		if lok {
			name = c.operands[1]
		}
		return skipMissing([]string{name}), true
	}
	a, b := ipLevel(left), ipLevel(right)
	ev := evaluation{
		holds:    compare(float64(a), c.ops[0], float64(b)),
		calc:     fmt.Sprintf("%s %s %s", left, c.ops[0], right),
		actual:   left,
		expected: c.ops[0] + " " + right,
	}
	return judge(ev), true
}

func ipOperand(src string, ctx *Context) (string, bool) {
	s, quoted := unquote(strings.TrimSpace(src))
	if !quoted {
		v, ok := ctx.Text(strings.TrimSpace(src))
		if !ok {
			return "", false
		}
		s = v
	}
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if !ipCodePattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// ipLevel reads the two protection digits as a number; X counts as 0.
func ipLevel(code string) int {
	m := ipCodePattern.FindStringSubmatch(code)
	digit := func(s string) int {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return 0
	}
	return digit(m[1])*10 + digit(m[2])
}

// --- lookup ---

var lookupCallPattern = regexp.MustCompile(`lookup_(\w+)\s*\(([^()]*)\)`)

var lookupFormulaPattern = regexp.MustCompile(`^\s*(.+?)\s*(<=|>=|==|!=|≤|≥|<|>|=)\s*lookup_(\w+)\s*\(([^()]*)\)\s*$`)

func (e *Evaluator) evalLookup(formula string, ctx *Context, rule *types.ElectricalRule) outcome {
	m := lookupFormulaPattern.FindStringSubmatch(formula)
	if m == nil {
		return skipUnparseable(fmt.Errorf("%w: expected VAR OP lookup_NAME(args)", types.ErrUnparseableFormula))
	}
	lhs, op, name, args := m[1], m[2], m[3], m[4]
	if canon, ok := canonicalOps[op]; ok {
		op = canon
	}

	limit, calc, out, ok := e.lookup(name, args, ctx, rule)
	if !ok {
		return out
	}

	// bind the looked-up scalar so the left side can be any expression
	c := chain{operands: []string{lhs, "__lookup"}, ops: []string{op}}
	bound := &Context{values: map[string]any{"__lookup": limit}, params: nil}
	ev, err := evalChain(c, mergeContexts(ctx, bound), true)
	if err != nil {
		return skipUnparseable(err)
	}
	if len(ev.missing) > 0 {
		return skipMissing(ev.missing)
	}
	ev.calc = strings.Replace(ev.calc, "__lookup", calc, 1)
	return judge(ev)
}

// lookup navigates table name with the resolved args. On failure the
// returned outcome is the skip to report.
func (e *Evaluator) lookup(name, rawArgs string, ctx *Context, rule *types.ElectricalRule) (float64, string, outcome, bool) {
	table, ok := e.table(name, rule)
	if !ok {
		return 0, "", skip("lookup table %s not available", name), false
	}
	var keys []any
	var missing []string
	for _, a := range splitArgs(rawArgs) {
		v, ok := ctx.argument(a)
		if !ok {
			missing = append(missing, a)
			continue
		}
		keys = append(keys, v)
	}
	if len(missing) > 0 {
		return 0, "", skipMissing(missing), false
	}
	v, found := rules.NavigateTable(table, keys)
	if !found {
		return 0, "", skip("no entry in lookup_%s for %s", name, rules.FormatValue(keys)), false
	}
	n, ok := rules.ParseNumber(v)
	if !ok {
		return 0, "", skip("lookup_%s entry for %s is not numeric", name, rules.FormatValue(keys)), false
	}
	return n, fmt.Sprintf("lookup_%s(%s)", name, rules.FormatValue(keys)), outcome{}, true
}

// table finds lookup table name: the rule's own tables first, then the
// plugin-level tables the Evaluator was built with.
func (e *Evaluator) table(name string, rule *types.ElectricalRule) (any, bool) {
	if rule != nil {
		for _, key := range []string{name, "lookup_" + name} {
			if t, ok := rule.LookupTables[key]; ok && t != nil {
				return t, true
			}
		}
	}
	for _, key := range []string{name, "lookup_" + name} {
		if t, ok := e.tables[key]; ok {
			return t, true
		}
	}
	return nil, false
}

func splitArgs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// mergeContexts layers overlay values on top of base.
func mergeContexts(base, overlay *Context) *Context {
	values := make(map[string]any, len(base.values)+len(overlay.values))
	for k, v := range base.values {
		values[k] = v
	}
	for k, v := range overlay.values {
		values[k] = v
	}
	return &Context{values: values, params: base.params}
}

// --- correction ---

// CorrectionTolerance is the relative error allowed between a declared
// corrected ampacity and Iz_base times its factors.
const CorrectionTolerance = 0.05

var correctionSplit = regexp.MustCompile(`^\s*Iz_corrected\s*=\s*Iz_base\s*\*(.+)$`)

func (e *Evaluator) evalCorrection(formula string, ctx *Context, rule *types.ElectricalRule) outcome {
	m := correctionSplit.FindStringSubmatch(formula)
	if m == nil {
		return skipUnparseable(fmt.Errorf("%w: expected Iz_corrected = Iz_base * factors", types.ErrUnparseableFormula))
	}

	var missing []string
	corrected, ok := ctx.Number("Iz_corrected")
	if !ok {
		missing = append(missing, "Iz_corrected")
	}
	base, ok := ctx.Number("Iz_base")
	if !ok {
		missing = append(missing, "Iz_base")
	}
	if len(missing) > 0 {
		return skipMissing(missing)
	}

	product := 1.0
	trace := []string{"Iz_base (" + formatNumber(base) + ")"}
	for _, factor := range splitFactors(m[1]) {
		if call := lookupCallPattern.FindStringSubmatch(factor); call != nil {
			v, calc, out, ok := e.lookup(call[1], call[2], ctx, rule)
			if !ok {
				return out
			}
			product *= v
			trace = append(trace, fmt.Sprintf("%s (%s)", calc, formatNumber(v)))
			continue
		}
		if n, err := strconv.ParseFloat(factor, 64); err == nil {
			product *= n
			trace = append(trace, formatNumber(n))
			continue
		}
		v, ok := ctx.Number(factor)
		if !ok {
			return skipMissing([]string{factor})
		}
		product *= v
		trace = append(trace, fmt.Sprintf("%s (%s)", factor, formatNumber(v)))
	}

	expected := base * product
	diff := math.Abs(corrected - expected)
	holds := diff <= CorrectionTolerance*math.Abs(expected)
	ev := evaluation{
		holds:    holds,
		calc:     fmt.Sprintf("Iz_corrected (%s) ≈ %s = %s", formatNumber(corrected), strings.Join(trace, " × "), formatNumber(expected)),
		actual:   formatNumber(corrected),
		expected: fmt.Sprintf("%s ±%g%%", formatNumber(expected), CorrectionTolerance*100),
	}
	return judge(ev)
}

// splitFactors splits a product at top-level '*'.
func splitFactors(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '*', '×', '·':
			if depth == 0 {
				if f := strings.TrimSpace(s[start:i]); f != "" {
					out = append(out, f)
				}
				start = i + len(string(r))
			}
		}
	}
	if f := strings.TrimSpace(s[start:]); f != "" {
		out = append(out, f)
	}
	return out
}

// --- conditional ---

var (
	clauseSplit = regexp.MustCompile(`(?i);\s*IF\s+`)
	leadingIF   = regexp.MustCompile(`(?i)^\s*IF\s+`)
	thenSplit   = regexp.MustCompile(`(?i)\s+THEN\s+`)
	andSplit    = regexp.MustCompile(`\s+AND\s+`)
	orSplit     = regexp.MustCompile(`\s+OR\s+`)
)

// evalConditional evaluates "IF c1 THEN r1; IF c2 THEN r2; ..." clauses in
// order. The first clause whose condition resolves and holds decides.
func (e *Evaluator) evalConditional(formula string, ctx *Context) outcome {
	body := leadingIF.ReplaceAllString(strings.TrimSpace(formula), "")
	clauses := clauseSplit.Split(body, -1)
	if len(clauses) > types.MaxFormulaClauses {
		return skipUnparseable(fmt.Errorf("%w: %d clauses", types.ErrUnparseableFormula, len(clauses)))
	}

	anyResolvable := false
	var missing []string
	for i, clause := range clauses {
		parts := thenSplit.Split(strings.TrimSpace(clause), 2)
		if len(parts) != 2 {
			return skipUnparseable(fmt.Errorf("%w: clause %d has no THEN", types.ErrUnparseableFormula, i+1))
		}
		cond, err := evalConjunction(parts[0], ctx)
		if err != nil {
			return skipUnparseable(err)
		}
		if len(cond.missing) > 0 {
			missing = append(missing, cond.missing...)
			continue
		}
		anyResolvable = true
		if !cond.holds {
			continue
		}

		req, err := evalConjunction(parts[1], ctx)
		if err != nil {
			return skipUnparseable(err)
		}
		if len(req.missing) > 0 {
			return skipMissing(req.missing)
		}
		req.calc = fmt.Sprintf("clause %d [%s]: %s", i+1, cond.calc, req.calc)
		return judge(req)
	}

	if !anyResolvable {
		return skipMissing(dedupe(missing))
	}
	return outcome{passed: true, message: "OK: no applicable clause"}
}

// evalConjunction evaluates "a AND b AND ..." where each conjunct is a
// comparison chain.
func evalConjunction(s string, ctx *Context) (evaluation, error) {
	conjuncts := andSplit.Split(strings.TrimSpace(s), -1)
	if len(conjuncts) > types.MaxFormulaClauses {
		return evaluation{}, fmt.Errorf("%w: %d conjuncts", types.ErrUnparseableFormula, len(conjuncts))
	}
	out := evaluation{holds: true}
	var missing, calcs, actuals, expecteds []string
	for _, conj := range conjuncts {
		ev, err := evalComparison(conj, ctx, false)
		if err != nil {
			return evaluation{}, err
		}
		if len(ev.missing) > 0 {
			missing = append(missing, ev.missing...)
			continue
		}
		out.holds = out.holds && ev.holds
		calcs = append(calcs, ev.calc)
		actuals = append(actuals, ev.actual)
		expecteds = append(expecteds, ev.expected)
	}
	// a resolved conjunct that fails decides the conjunction
	if out.holds && len(missing) > 0 {
		return evaluation{missing: dedupe(missing)}, nil
	}
	out.calc = strings.Join(calcs, " AND ")
	out.actual = strings.Join(actuals, "; ")
	out.expected = strings.Join(expecteds, "; ")
	return out, nil
}

// --- compound ---

// evalCompound evaluates OR-of-AND comparison groups. MAX/MIN calls are
// ordinary mathexpr functions, so "S_neutral >= MAX(16, S_phase/2)" reduces
// MAX to its value while its operand is evaluated.
func (e *Evaluator) evalCompound(formula string, ctx *Context) outcome {
	groups := orSplit.Split(strings.TrimSpace(formula), -1)
	if len(groups) > types.MaxFormulaClauses {
		return skipUnparseable(fmt.Errorf("%w: %d groups", types.ErrUnparseableFormula, len(groups)))
	}

	var (
		missing []string
		last    evaluation
		failed  bool
	)
	for _, g := range groups {
		ev, err := evalConjunction(g, ctx)
		if err != nil {
			return skipUnparseable(err)
		}
		if len(ev.missing) > 0 {
			missing = append(missing, ev.missing...)
			continue
		}
		if ev.holds {
			return pass(ev)
		}
		last, failed = ev, true
	}
	if len(missing) > 0 {
		return skipMissing(dedupe(missing))
	}
	if failed {
		return fail(last)
	}
	return skipUnparseable(errors.New("no comparison groups"))
}
