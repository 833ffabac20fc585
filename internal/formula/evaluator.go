// Package formula evaluates engineering rules written in the formula DSL.
//
// A formula such as "IDn_mA <= 30" or "IF S_fase<=16 THEN S_pe>=S_fase; ..."
// is classified into one of seven categories and evaluated by that
// category's handler against a project record. Symbols are resolved through
// an alias table so regulation notation maps onto intake keys.
//
// Missing data never fails a check: it yields a skipped report with
// Passed=true and an explanatory message. All arithmetic goes through
// internal/mathexpr; nothing here executes authored code.
package formula

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

// Evaluator evaluates ElectricalRules. Safe for concurrent use.
type Evaluator struct {
	tables map[string]any
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. tables are plugin-level lookup tables,
// consulted by lookup_NAME calls after the rule's own tables.
func NewEvaluator(tables []types.LookupTable, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	idx := make(map[string]any, len(tables))
	for _, t := range tables {
		idx[t.ID] = t.Values
	}
	return &Evaluator{tables: idx, logger: logger}
}

// Evaluate classifies and evaluates rule.Formula against data.
func (e *Evaluator) Evaluate(rule *types.ElectricalRule, data types.Record) (report types.FormulaReport) {
	report = types.FormulaReport{RuleID: rule.ID, Severity: rule.Severity}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("formula evaluation panicked", "rule_id", rule.ID, "panic", r)
			report.Passed = true
			report.Skipped = true
			report.Message = fmt.Sprintf("Skipped: internal error: %v", r)
			report.Details = types.FormulaDetails{}
		}
	}()

	formula := strings.TrimSpace(rule.Formula)
	if formula == "" {
		report.Passed, report.Skipped = true, true
		report.Message = "Skipped: empty formula"
		return report
	}

	ctx := NewContext(data, rule.Parameters)
	category := Classify(formula)

	var out outcome
	switch category {
	case CategoryBoolean:
		out = e.evalBoolean(formula, ctx)
	case CategoryConditional:
		out = e.evalConditional(formula, ctx)
	case CategoryCorrection:
		out = e.evalCorrection(formula, ctx, rule)
	case CategoryLookup:
		out = e.evalLookup(formula, ctx, rule)
	case CategoryMath:
		out = e.evalMath(formula, ctx, rule)
	case CategoryCompound:
		out = e.evalCompound(formula, ctx)
	case CategorySimple:
		out = e.evalSimple(formula, ctx, rule)
	}

	report.Passed = out.passed || out.skipped
	report.Skipped = out.skipped
	report.Message = out.message
	report.Details = out.details
	if !report.Passed && rule.Remediation != "" {
		report.Message += ". " + rule.Remediation
	}

	e.logger.Debug("formula evaluated",
		"rule_id", rule.ID,
		"category", category.String(),
		"passed", report.Passed,
		"skipped", report.Skipped,
	)
	return report
}

// Summary aggregates the reports of one EvaluateAll call.
type Summary struct {
	Reports []types.FormulaReport `json:"reports"`
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Skipped int                   `json:"skipped"`

	// FailedBySeverity counts failures per severity.
	FailedBySeverity map[types.Severity]int `json:"failedBySeverity,omitempty"`
}

// Coverage is the share of rules actually judged, as a percentage.
func (s Summary) Coverage() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Total-s.Skipped) * 100 / float64(s.Total)
}

// EvaluateAll evaluates every rule in order. Skipped reports count as
// passed in Passed as well as in Skipped.
func (e *Evaluator) EvaluateAll(rules []types.ElectricalRule, data types.Record) Summary {
	s := Summary{
		Reports:          make([]types.FormulaReport, 0, len(rules)),
		FailedBySeverity: make(map[types.Severity]int),
	}
	for i := range rules {
		r := e.Evaluate(&rules[i], data)
		s.Reports = append(s.Reports, r)
		s.Total++
		switch {
		case r.Skipped:
			s.Skipped++
			s.Passed++
		case r.Passed:
			s.Passed++
		default:
			s.Failed++
			s.FailedBySeverity[r.Severity]++
		}
	}
	return s
}
