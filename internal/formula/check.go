// internal/formula/check.go
package formula

import (
	"fmt"
	"strings"

	"github.com/solatis/regcheck/internal/mathexpr"
	"github.com/solatis/regcheck/internal/types"
)

// Check reports whether formula is structurally evaluable by its category's
// handler, without any project data. It returns nil for a formula that can
// only ever be skipped for missing inputs, and an error wrapping
// ErrUnparseableFormula for one that would always be skipped as unparseable.
func Check(formula string) error {
	f := strings.TrimSpace(formula)
	if f == "" {
		return fmt.Errorf("%w: empty formula", types.ErrUnparseableFormula)
	}

	switch Classify(f) {
	case CategoryBoolean:
		return nil
	case CategoryConditional:
		return checkConditional(f)
	case CategoryCorrection:
		if !correctionSplit.MatchString(f) {
			return fmt.Errorf("%w: expected Iz_corrected = Iz_base * factors", types.ErrUnparseableFormula)
		}
		return nil
	case CategoryLookup:
		m := lookupFormulaPattern.FindStringSubmatch(f)
		if m == nil {
			return fmt.Errorf("%w: expected VAR OP lookup_NAME(args)", types.ErrUnparseableFormula)
		}
		return checkOperand(m[1])
	case CategoryMath:
		return checkMath(f)
	case CategoryCompound:
		for _, g := range orSplit.Split(f, -1) {
			if err := checkConjunction(g); err != nil {
				return err
			}
		}
		return nil
	default:
		err := checkComparison(f)
		if err != nil && checkMath(f) == nil {
			return nil
		}
		return err
	}
}

func checkConditional(f string) error {
	body := leadingIF.ReplaceAllString(f, "")
	clauses := clauseSplit.Split(body, -1)
	if len(clauses) > types.MaxFormulaClauses {
		return fmt.Errorf("%w: %d clauses", types.ErrUnparseableFormula, len(clauses))
	}
	for i, clause := range clauses {
		parts := thenSplit.Split(strings.TrimSpace(clause), 2)
		if len(parts) != 2 {
			return fmt.Errorf("%w: clause %d has no THEN", types.ErrUnparseableFormula, i+1)
		}
		for _, p := range parts {
			if err := checkConjunction(p); err != nil {
				return fmt.Errorf("clause %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func checkConjunction(s string) error {
	for _, conj := range andSplit.Split(strings.TrimSpace(s), -1) {
		if err := checkComparison(conj); err != nil {
			return err
		}
	}
	return nil
}

func checkComparison(s string) error {
	c, ok := splitComparison(s)
	if !ok {
		return fmt.Errorf("%w: no comparison in %q", types.ErrUnparseableFormula, s)
	}
	for _, o := range c.operands {
		if err := checkOperand(o); err != nil {
			return err
		}
	}
	return nil
}

// checkOperand parses one side of a comparison. Quoted literals (IP codes)
// are not arithmetic and always pass.
func checkOperand(src string) error {
	if _, quoted := unquote(strings.TrimSpace(src)); quoted {
		return nil
	}
	if _, err := mathexpr.Parse(src); err != nil {
		return fmt.Errorf("%w: %q: %v", types.ErrUnparseableFormula, src, err)
	}
	return nil
}

func checkMath(f string) error {
	n := normalizeMath(f)
	for _, entry := range catalogue {
		if entry.pattern.MatchString(n) {
			return nil
		}
	}
	return fmt.Errorf("%w: unrecognized math pattern %q", types.ErrUnparseableFormula, f)
}

// LookupNames lists the lookup_NAME tables a formula calls, in order.
func LookupNames(formula string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range lookupCallPattern.FindAllStringSubmatch(formula, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
