// internal/types/rules.go
package types

import "time"

/*
 * Domain types for declarative rule evaluation.
 *
 * Provides Rule, Condition, LookupTable, ComputedField and Finding used by
 * internal/rules, plus ElectricalRule and FormulaReport used by
 * internal/formula. Wire-format agnostic: the YAML/JSON tags describe the
 * plugin document format read by internal/plugin and the report format
 * returned by the API.
 *
 * Key types:
 *   - Rule: conditions (AND) + exclusions (OR) + outcome templates
 *   - Condition: one field/operator/value triple with optional table/scale/formula
 *   - LookupTable: nested mapping navigated by an ordered key list
 *   - ComputedField: closed set of derivations evaluated before rules
 *   - Finding: one fired rule instance
 *
 * Rule.Enabled carries yaml:"-" because the loader defaults it to true when a
 * document omits the key; see internal/plugin.
 */

// Operator is a condition operator tag.
type Operator string

// Condition operators. The set is closed; anything else is ErrUnknownOperator.
const (
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"

	OpEq  Operator = "=="
	OpNeq Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="

	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpBetween    Operator = "between"
	OpNotInRange Operator = "not_in_range"

	OpLookupGt  Operator = "lookup_gt"
	OpLookupGte Operator = "lookup_gte"
	OpLookupLt  Operator = "lookup_lt"
	OpLookupLte Operator = "lookup_lte"
	OpLookupEq  Operator = "lookup_eq"
	OpLookupNeq Operator = "lookup_neq"

	OpOrdinalLt  Operator = "ordinal_lt"
	OpOrdinalLte Operator = "ordinal_lte"
	OpOrdinalGt  Operator = "ordinal_gt"
	OpOrdinalGte Operator = "ordinal_gte"

	OpReactionClassLt  Operator = "reaction_class_lt"
	OpReactionClassLte Operator = "reaction_class_lte"
	OpReactionClassGt  Operator = "reaction_class_gt"
	OpReactionClassGte Operator = "reaction_class_gte"

	OpFormulaGt  Operator = "formula_gt"
	OpFormulaGte Operator = "formula_gte"
	OpFormulaLt  Operator = "formula_lt"
	OpFormulaLte Operator = "formula_lte"

	OpComputedLt  Operator = "computed_lt"
	OpComputedLte Operator = "computed_lte"
	OpComputedGt  Operator = "computed_gt"
	OpComputedGte Operator = "computed_gte"
)

var operators = map[Operator]struct{}{
	OpExists: {}, OpNotExists: {},
	OpEq: {}, OpNeq: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNotIn: {}, OpBetween: {}, OpNotInRange: {},
	OpLookupGt: {}, OpLookupGte: {}, OpLookupLt: {}, OpLookupLte: {}, OpLookupEq: {}, OpLookupNeq: {},
	OpOrdinalLt: {}, OpOrdinalLte: {}, OpOrdinalGt: {}, OpOrdinalGte: {},
	OpReactionClassLt: {}, OpReactionClassLte: {}, OpReactionClassGt: {}, OpReactionClassGte: {},
	OpFormulaGt: {}, OpFormulaGte: {}, OpFormulaLt: {}, OpFormulaLte: {},
	OpComputedLt: {}, OpComputedLte: {}, OpComputedGt: {}, OpComputedGte: {},
}

// Valid reports whether op belongs to the closed operator set.
func (op Operator) Valid() bool {
	_, ok := operators[op]
	return ok
}

// IsLookup reports whether op compares against a lookup-table value.
func (op Operator) IsLookup() bool {
	switch op {
	case OpLookupGt, OpLookupGte, OpLookupLt, OpLookupLte, OpLookupEq, OpLookupNeq:
		return true
	}
	return false
}

// IsOrdinal reports whether op compares positions in a condition-supplied scale.
func (op Operator) IsOrdinal() bool {
	switch op {
	case OpOrdinalLt, OpOrdinalLte, OpOrdinalGt, OpOrdinalGte:
		return true
	}
	return false
}

// IsFormula reports whether op evaluates an arithmetic expression (formula_* or computed_*).
func (op Operator) IsFormula() bool {
	switch op {
	case OpFormulaGt, OpFormulaGte, OpFormulaLt, OpFormulaLte,
		OpComputedLt, OpComputedLte, OpComputedGt, OpComputedGte:
		return true
	}
	return false
}

// ToleratesMissingField reports whether a condition with op is still evaluated
// when its field is absent. Every other operator makes the rule a skip.
func (op Operator) ToleratesMissingField() bool {
	return op == OpNotExists || op.IsLookup()
}

// Severity of a rule's finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityPass     Severity = "pass"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo, SeverityPass:
		return true
	}
	return false
}

// Condition is one declarative comparison.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`     // number, string, [min,max] or list
	Table    string   `json:"table,omitempty" yaml:"table,omitempty"`     // lookup_* operators
	Keys     []string `json:"keys,omitempty" yaml:"keys,omitempty"`       // overrides LookupTable.Keys
	Scale    []string `json:"scale,omitempty" yaml:"scale,omitempty"`     // ordinal_* operators
	Formula  string   `json:"formula,omitempty" yaml:"formula,omitempty"` // computed_* operators
}

// Rule is a data-described compliance check.
type Rule struct {
	ID                   string      `json:"id" yaml:"id"`
	RegulationID         string      `json:"regulationId" yaml:"regulationId"`
	Article              string      `json:"article" yaml:"article"`
	Description          string      `json:"description" yaml:"description"`
	Severity             Severity    `json:"severity" yaml:"severity"`
	Conditions           []Condition `json:"conditions" yaml:"conditions"`
	Exclusions           []Condition `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	Remediation          string      `json:"remediation" yaml:"remediation"`
	RequiredValue        string      `json:"requiredValue,omitempty" yaml:"requiredValue,omitempty"`
	CurrentValueTemplate string      `json:"currentValueTemplate,omitempty" yaml:"currentValueTemplate,omitempty"`
	Enabled              bool        `json:"enabled" yaml:"-"`
	Tags                 []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// LookupTable is a nested mapping navigated by resolving Keys in order.
type LookupTable struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Keys        []string       `json:"keys" yaml:"keys"`
	SubKey      string         `json:"subKey,omitempty" yaml:"subKey,omitempty"`
	Values      map[string]any `json:"values" yaml:"values"`
}

// ComputationKind selects the derivation a ComputedField performs.
type ComputationKind string

const (
	ComputationArithmetic  ComputationKind = "arithmetic"
	ComputationTier        ComputationKind = "tier"
	ComputationConditional ComputationKind = "conditional"
)

// Tier is one band of a tier computation. Nil bounds are open.
type Tier struct {
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Result any      `json:"result" yaml:"result"`
}

// Computation is a tagged variant; Kind decides which fields apply.
type Computation struct {
	Kind ComputationKind `json:"type" yaml:"type"`

	// arithmetic: Operands[0] <Operation> Operands[1]; operands are paths or numeric literals
	Operands  []string `json:"operands,omitempty" yaml:"operands,omitempty"`
	Operation string   `json:"operation,omitempty" yaml:"operation,omitempty"`

	// tier and conditional
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	Tiers []Tier `json:"tiers,omitempty" yaml:"tiers,omitempty"`

	// conditional
	IfTrue  any `json:"ifTrue,omitempty" yaml:"ifTrue,omitempty"`
	IfFalse any `json:"ifFalse,omitempty" yaml:"ifFalse,omitempty"`
}

// ComputedField derives one value into the Computed namespace.
type ComputedField struct {
	ID          string      `json:"id" yaml:"id"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Computation Computation `json:"computation" yaml:"computation"`
}

// Regulation names the legal source rules are attached to.
type Regulation struct {
	ID       string `json:"id" yaml:"id"`
	ShortRef string `json:"shortRef" yaml:"shortRef"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Finding is one fired rule. Never mutated after creation.
type Finding struct {
	ID            string   `json:"id"`
	SourceRuleID  string   `json:"sourceRuleId"`
	Area          string   `json:"area"`
	Regulation    string   `json:"regulation"`
	Article       string   `json:"article"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	CurrentValue  string   `json:"currentValue,omitempty"`
	RequiredValue string   `json:"requiredValue,omitempty"`
	Remediation   string   `json:"remediation"`
}

// RuleError records a rule whose evaluation failed internally and was skipped.
type RuleError struct {
	RuleID  string `json:"ruleId"`
	Message string `json:"message"`
}

// BatchReport is the output of one batch evaluation.
type BatchReport struct {
	EvaluationID       EvaluationID `json:"evaluationId"`
	Findings           []Finding    `json:"findings"`
	TotalActiveRules   int          `json:"totalActiveRules"`
	RulesEvaluated     int          `json:"rulesEvaluated"`
	RulesFired         int          `json:"rulesFired"`
	RulesSkipped       int          `json:"rulesSkipped"`
	SkippedRuleIDs     []string     `json:"skippedRuleIds,omitempty"`
	RuleErrors         []RuleError  `json:"ruleErrors,omitempty"`
	RegulationsUsed    []string     `json:"regulationsUsed"`
	RegulationsSkipped []string     `json:"regulationsSkipped"`
	Coverage           float64      `json:"coverage"`
	EvaluatedAt        time.Time    `json:"evaluatedAt"`
}

// ElectricalRule is an engineering check expressed in the formula DSL.
type ElectricalRule struct {
	ID           string         `json:"id" yaml:"id"`
	Formula      string         `json:"formula" yaml:"formula"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	RegulationID string         `json:"regulation_id,omitempty" yaml:"regulation_id,omitempty"`
	Article      string         `json:"article,omitempty" yaml:"article,omitempty"`
	Severity     Severity       `json:"severity" yaml:"severity"`
	LookupTables map[string]any `json:"lookup_tables,omitempty" yaml:"lookup_tables,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Remediation  string         `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// FormulaDetails explains a formula outcome for report consumers.
type FormulaDetails struct {
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Calculation string `json:"calculation,omitempty"`
}

// FormulaReport is the outcome of evaluating one ElectricalRule.
// Skipped reports always carry Passed=true: missing data never blocks.
type FormulaReport struct {
	RuleID   string         `json:"ruleId"`
	Passed   bool           `json:"passed"`
	Skipped  bool           `json:"skipped"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  FormulaDetails `json:"details"`
}

// Plugin bundles the definitions for one regulatory area.
type Plugin struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Area            string           `json:"area" yaml:"area"`
	Version         string           `json:"version,omitempty" yaml:"version,omitempty"`
	Regulations     []Regulation     `json:"regulations,omitempty" yaml:"regulations,omitempty"`
	Rules           []Rule           `json:"rules,omitempty" yaml:"-"`
	LookupTables    []LookupTable    `json:"lookupTables,omitempty" yaml:"lookupTables,omitempty"`
	ComputedFields  []ComputedField  `json:"computedFields,omitempty" yaml:"computedFields,omitempty"`
	ElectricalRules []ElectricalRule `json:"electricalRules,omitempty" yaml:"electricalRules,omitempty"`
}
