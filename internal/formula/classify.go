// internal/formula/classify.go
package formula

import (
	"regexp"
	"strings"
)

/*
 * Formula classification.
 *
 * A formula string is assigned to exactly one Category by an ordered list of
 * matchers; the first match wins. Order matters where patterns overlap:
 *
 *   1. boolean      NAME == True|False
 *   2. conditional  "IF ..." or "...; IF ..."
 *   3. correction   Iz_corrected = Iz_base * ...   (before lookup: it also
 *                   contains lookup calls)
 *   4. lookup       lookup_NAME(
 *   5. math         ^, sqrt, I²t, Icc^2, or a var*var comparison
 *   6. compound     AND / OR / MAX( / MIN(
 *   7. simple       everything else
 */

// Category selects the evaluation strategy for a formula.
type Category int

const (
	CategorySimple Category = iota
	CategoryBoolean
	CategoryConditional
	CategoryCorrection
	CategoryLookup
	CategoryMath
	CategoryCompound
)

var categoryNames = map[Category]string{
	CategorySimple:      "simple",
	CategoryBoolean:     "boolean",
	CategoryConditional: "conditional",
	CategoryCorrection:  "correction",
	CategoryLookup:      "lookup",
	CategoryMath:        "math",
	CategoryCompound:    "compound",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseCategory maps a category name back to its value.
func ParseCategory(s string) (Category, bool) {
	for c, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return c, true
		}
	}
	return CategorySimple, false
}

var (
	booleanPattern     = regexp.MustCompile(`(?i)^\s*(\w+)\s*==\s*(true|false)\s*$`)
	conditionalPattern = regexp.MustCompile(`(?i)^\s*IF\s|;\s*IF\s`)
	correctionPattern  = regexp.MustCompile(`Iz_corrected\s*=\s*Iz_base\s*\*`)
	lookupPattern      = regexp.MustCompile(`lookup_\w+\s*\(`)
	mathPattern        = regexp.MustCompile(`\^|(?i:sqrt)|√|I²t|Icc\^2|Icc²`)
	productPattern     = regexp.MustCompile(`\w+\s*\*\s*\w+\s*(<=|>=|<|>|≤|≥)\s*\w+`)
	compoundPattern    = regexp.MustCompile(`\b(?:AND|OR)\b|(?i:\b(?:MAX|MIN)\s*\()`)
)

type matcher struct {
	category Category
	match    func(string) bool
}

var matchers = []matcher{
	{CategoryBoolean, booleanPattern.MatchString},
	{CategoryConditional, conditionalPattern.MatchString},
	{CategoryCorrection, correctionPattern.MatchString},
	{CategoryLookup, lookupPattern.MatchString},
	{CategoryMath, func(s string) bool { return mathPattern.MatchString(s) || productPattern.MatchString(s) }},
	{CategoryCompound, compoundPattern.MatchString},
}

// Classify returns the category of formula.
func Classify(formula string) Category {
	for _, m := range matchers {
		if m.match(formula) {
			return m.category
		}
	}
	return CategorySimple
}
