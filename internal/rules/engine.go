// internal/rules/engine.go
package rules

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Batch evaluation.
 *
 * Flow per batch:
 *   1. derive computed fields
 *   2. index lookup tables and build the read-only Env
 *   3. evaluate every rule (optionally on a bounded worker pool)
 *   4. merge results in rule order: assign finding ids, count skips,
 *      collect regulation usage and coverage
 *
 * Workers write into an index-addressed results slice, so the merge sees
 * the same order whatever the pool size and finding ids come out identical
 * between sequential and parallel runs. The Env, rules and tables are never
 * written after step 2.
 */

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// GeneralArea is the area assigned to rules with no explicit area and no tags.
const GeneralArea = "general"

// BatchInput is everything one batch evaluates.
type BatchInput struct {
	Record         types.Record
	Rules          []types.Rule
	LookupTables   []types.LookupTable
	ComputedFields []types.ComputedField
	Regulations    []types.Regulation

	// Areas maps rule id to the project area findings are filed under.
	// Rules missing here fall back to their first tag, then GeneralArea.
	Areas map[string]string
}

// Engine evaluates rule batches. Safe for concurrent use.
type Engine struct {
	logger  *slog.Logger
	workers int
}

// NewEngine creates an engine. workers <= 0 selects DefaultWorkers; 1 runs
// sequentially.
func NewEngine(logger *slog.Logger, workers int) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{logger: logger, workers: workers}
}

// Workers returns the configured pool size.
func (e *Engine) Workers() int {
	return e.workers
}

// EvaluateBatch runs every rule in input against its record. counter hands
// out finding ids; pass a fresh or reset counter for stable ids.
func (e *Engine) EvaluateBatch(input *BatchInput, counter *Counter) *types.BatchReport {
	if counter == nil {
		counter = NewCounter()
	}

	computed, absent := ComputeFields(input.ComputedFields, input.Record)
	if len(absent) > 0 {
		e.logger.Debug("computed fields not derived", "ids", absent)
	}
	env := NewEnv(input.Record, computed, input.LookupTables)

	results := e.run(input.Rules, env)
	report := e.merge(input, results, counter)

	e.logger.Info("batch evaluated",
		"evaluation_id", report.EvaluationID,
		"active_rules", report.TotalActiveRules,
		"fired", report.RulesFired,
		"skipped", report.RulesSkipped,
		"coverage", report.Coverage,
	)
	return report
}

// run evaluates rules into an index-addressed slice.
func (e *Engine) run(rules []types.Rule, env *Env) []RuleResult {
	results := make([]RuleResult, len(rules))
	if e.workers == 1 || len(rules) < 2 {
		for i := range rules {
			results[i] = EvaluateRule(&rules[i], env)
		}
		return results
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for i := range rules {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = EvaluateRule(&rules[idx], env)
		}(i)
	}
	wg.Wait()
	return results
}

func (e *Engine) merge(input *BatchInput, results []RuleResult, counter *Counter) *types.BatchReport {
	regNames := make(map[string]string, len(input.Regulations))
	for _, r := range input.Regulations {
		if r.ShortRef != "" {
			regNames[r.ID] = r.ShortRef
		}
	}

	report := &types.BatchReport{
		EvaluationID: types.NewEvaluationID(),
		Findings:     []types.Finding{},
		EvaluatedAt:  time.Now().UTC(),
	}

	evaluatedRegs := make(map[string]bool)
	skippedRegs := make(map[string]bool)

	for i, res := range results {
		rule := &input.Rules[i]
		if res.Outcome == OutcomeDisabled {
			continue
		}
		report.TotalActiveRules++
		reg := regulationName(rule.RegulationID, regNames)

		switch res.Outcome {
		case OutcomeSkipped:
			report.RulesSkipped++
			report.SkippedRuleIDs = append(report.SkippedRuleIDs, rule.ID)
			if res.Err != nil {
				report.RuleErrors = append(report.RuleErrors, types.RuleError{RuleID: rule.ID, Message: res.Err.Error()})
				e.logger.Warn("rule skipped on error", "rule_id", rule.ID, "error", res.Err)
			}
			if reg != "" {
				skippedRegs[reg] = true
			}
			continue
		case OutcomeFired:
			f := *res.Finding
			f.ID = counter.Next()
			f.Area = areaFor(rule, input.Areas)
			f.Regulation = reg
			report.Findings = append(report.Findings, f)
			report.RulesFired++
		}
		report.RulesEvaluated++
		if reg != "" {
			evaluatedRegs[reg] = true
		}
	}

	report.RegulationsUsed = sortedKeys(evaluatedRegs, nil)
	report.RegulationsSkipped = sortedKeys(skippedRegs, evaluatedRegs)
	report.Coverage = coverage(report.RulesEvaluated, report.TotalActiveRules)
	return report
}

func regulationName(id string, names map[string]string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

func areaFor(rule *types.Rule, areas map[string]string) string {
	if a, ok := areas[rule.ID]; ok && a != "" {
		return a
	}
	if len(rule.Tags) > 0 && rule.Tags[0] != "" {
		return rule.Tags[0]
	}
	return GeneralArea
}

// sortedKeys returns the keys of set not present in exclude, sorted.
func sortedKeys(set, exclude map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if exclude[k] {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// coverage is the evaluated share of active rules as a percentage rounded to
// one decimal. An empty batch is fully covered.
func coverage(evaluated, active int) float64 {
	if active == 0 {
		return 100
	}
	pct := float64(evaluated) * 100 / float64(active)
	return float64(int(pct*10+0.5)) / 10
}
