// internal/rules/evaluate_test.go
package rules

import (
	"strings"
	"testing"

	"github.com/solatis/regcheck/internal/types"
)

func rcdRule() types.Rule {
	return types.Rule{
		ID:           "ELEC-RCD-001",
		RegulationID: "rebt",
		Article:      "ITC-BT-25",
		Description:  "RCD sensitivity {{value}} mA exceeds {{required}} mA",
		Severity:     types.SeverityCritical,
		Conditions: []types.Condition{
			{Field: "electrical.rcdSensitivity", Operator: types.OpGt, Value: 30},
		},
		Remediation:          "Install a {{required}} mA RCD on circuit {{electrical.circuit}}",
		RequiredValue:        "<= {{required}} mA",
		CurrentValueTemplate: "{{electrical.rcdSensitivity}} mA",
		Enabled:              true,
		Tags:                 []string{"electrical"},
	}
}

func TestEvaluateRule_Fires(t *testing.T) {
	rule := rcdRule()
	env := NewEnv(types.Record{"electrical": map[string]any{"rcdSensitivity": 100}}, nil, nil)

	result := EvaluateRule(&rule, env)
	if result.Outcome != OutcomeFired {
		t.Fatalf("Outcome = %v, want fired (err=%v)", result.Outcome, result.Err)
	}
	f := result.Finding
	if f == nil {
		t.Fatal("Finding = nil, want finding")
	}
	if f.Severity != types.SeverityCritical {
		t.Errorf("Severity = %v, want critical", f.Severity)
	}
	if f.SourceRuleID != rule.ID {
		t.Errorf("SourceRuleID = %q, want %q", f.SourceRuleID, rule.ID)
	}
	if f.CurrentValue != "100 mA" {
		t.Errorf("CurrentValue = %q, want %q", f.CurrentValue, "100 mA")
	}
	if f.RequiredValue != "<= 30 mA" {
		t.Errorf("RequiredValue = %q, want %q", f.RequiredValue, "<= 30 mA")
	}
	if f.Description != "RCD sensitivity 100 mA exceeds 30 mA" {
		t.Errorf("Description = %q", f.Description)
	}
	if f.Remediation != "Install a 30 mA RCD on circuit n/a" {
		t.Errorf("Remediation = %q", f.Remediation)
	}
}

func TestEvaluateRule_States(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *types.Rule)
		record types.Record
		want   Outcome
	}{
		{
			name:   "disabled",
			mutate: func(r *types.Rule) { r.Enabled = false },
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 100}},
			want:   OutcomeDisabled,
		},
		{
			name:   "condition false",
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 30}},
			want:   OutcomeNoFire,
		},
		{
			name:   "field absent skips",
			record: types.Record{"electrical": map[string]any{}},
			want:   OutcomeSkipped,
		},
		{
			name: "exclusion suppresses",
			mutate: func(r *types.Rule) {
				r.Exclusions = []types.Condition{
					{Field: "electrical.supply", Operator: types.OpEq, Value: "IT"},
					{Field: "electrical.exempt", Operator: types.OpExists},
				}
			},
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 100, "exempt": true}},
			want:   OutcomeNoFire,
		},
		{
			name: "exclusion with absent field does not skip",
			mutate: func(r *types.Rule) {
				r.Exclusions = []types.Condition{{Field: "electrical.exempt", Operator: types.OpExists}}
			},
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 100}},
			want:   OutcomeFired,
		},
		{
			name: "not_exists tolerates missing field",
			mutate: func(r *types.Rule) {
				r.Conditions = []types.Condition{{Field: "electrical.rcd", Operator: types.OpNotExists}}
			},
			record: types.Record{"electrical": map[string]any{}},
			want:   OutcomeFired,
		},
		{
			name: "absent expression variable skips",
			mutate: func(r *types.Rule) {
				r.Conditions[0] = types.Condition{Field: "electrical.rcdSensitivity", Operator: types.OpFormulaGt, Value: "ratedSensitivity / 10"}
			},
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 100}},
			want:   OutcomeSkipped,
		},
		{
			name: "unknown operator skips",
			mutate: func(r *types.Rule) {
				r.Conditions[0].Operator = "approx"
			},
			record: types.Record{"electrical": map[string]any{"rcdSensitivity": 100}},
			want:   OutcomeSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := rcdRule()
			if tt.mutate != nil {
				tt.mutate(&rule)
			}
			result := EvaluateRule(&rule, NewEnv(tt.record, nil, nil))
			if result.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v (err=%v)", result.Outcome, tt.want, result.Err)
			}
			if tt.name == "absent expression variable skips" && result.Err != nil {
				t.Errorf("Err = %v, want a silent skip", result.Err)
			}
			if tt.want != OutcomeFired && result.Finding != nil {
				t.Errorf("Finding = %+v, want nil", result.Finding)
			}
		})
	}
}

func TestEvaluateRule_ErrorRecorded(t *testing.T) {
	rule := rcdRule()
	rule.Conditions = append(rule.Conditions, types.Condition{
		Field: "electrical.rcdSensitivity", Operator: types.OpLookupLte, Table: "missing",
	})
	result := EvaluateRule(&rule, NewEnv(types.Record{"electrical": map[string]any{"rcdSensitivity": 100}}, nil, nil))
	if result.Outcome != OutcomeSkipped {
		t.Fatalf("Outcome = %v, want skipped", result.Outcome)
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), rule.ID) {
		t.Errorf("Err = %v, want error naming %s", result.Err, rule.ID)
	}
}

func TestEvaluateRule_PanicBecomesSkip(t *testing.T) {
	rule := rcdRule()
	// a nil Env panics on first use
	result := EvaluateRule(&rule, nil)
	if result.Outcome != OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", result.Outcome)
	}
	if result.Err == nil {
		t.Error("Err = nil, want panic recorded")
	}
}

func TestInterpolate(t *testing.T) {
	env := NewEnv(types.Record{"a": map[string]any{"b": 2.5}}, types.Computed{"c": "x"}, nil)
	tests := []struct {
		tmpl string
		want string
	}{
		{"plain", "plain"},
		{"{{a.b}} m", "2.5 m"},
		{"{{ a.b }}", "2.5"},
		{"{{computed.c}}", "x"},
		{"{{value}}/{{missing}}", "9/n/a"},
	}
	for _, tt := range tests {
		if got := Interpolate(tt.tmpl, env, map[string]string{"value": "9"}); got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}
