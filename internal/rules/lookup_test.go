package rules

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/regcheck/internal/types"
)

func ampacityTable() map[string]any {
	return map[string]any{
		"4":  map[string]any{"B": 32},
		"6":  map[string]any{"B": 41},
		"10": map[string]any{"B": 57},
	}
}

func TestNavigateTable(t *testing.T) {
	tests := []struct {
		name  string
		keys  []any
		want  any
		found bool
	}{
		{name: "exact numeric key", keys: []any{6, "B"}, want: 41, found: true},
		{name: "exact string key", keys: []any{"10", "B"}, want: 57, found: true},
		{name: "closest key not exceeding", keys: []any{8, "B"}, want: 41, found: true},
		{name: "float key between rows", keys: []any{9.99, "B"}, want: 41, found: true},
		{name: "above every key", keys: []any{240, "B"}, want: 57, found: true},
		{name: "below every key falls back to smallest", keys: []any{1.5, "B"}, want: 32, found: true},
		{name: "numeric string key", keys: []any{"8", "B"}, want: 41, found: true},
		{name: "missing sub key", keys: []any{6, "C"}, found: false},
		{name: "non-numeric miss", keys: []any{"XLPE"}, found: false},
		{name: "walk past leaf", keys: []any{6, "B", "x"}, found: false},
		{name: "no keys returns the table", keys: nil, found: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NavigateTable(ampacityTable(), tt.keys)
			if ok != tt.found {
				t.Fatalf("NavigateTable(%v) found = %v, want %v", tt.keys, ok, tt.found)
			}
			if ok && tt.want != nil && got != tt.want {
				t.Errorf("NavigateTable(%v) = %v, want %v", tt.keys, got, tt.want)
			}
		})
	}
}

func TestNavigateTable_TooDeep(t *testing.T) {
	keys := make([]any, types.MaxTableDepth+1)
	for i := range keys {
		keys[i] = "k"
	}
	if _, ok := NavigateTable(map[string]any{"k": "v"}, keys); ok {
		t.Error("NavigateTable() accepted more keys than MaxTableDepth")
	}
}

func TestLookupTableValue(t *testing.T) {
	table := &types.LookupTable{
		ID:     "ampacity",
		Keys:   []string{"electrical.section", "electrical.method"},
		Values: ampacityTable(),
	}
	record := types.Record{"electrical": map[string]any{"section": 8, "method": "B"}}

	got, ok := LookupTableValue(table, nil, record, nil)
	if !ok || got != 41 {
		t.Errorf("LookupTableValue() = %v, %v, want 41, true", got, ok)
	}

	// condition keys override the table's
	got, ok = LookupTableValue(table, []string{"alt.section", "electrical.method"},
		types.Record{"alt": map[string]any{"section": 10}, "electrical": map[string]any{"method": "B"}}, nil)
	if !ok || got != 57 {
		t.Errorf("LookupTableValue(override) = %v, %v, want 57, true", got, ok)
	}

	// unresolvable key path short-circuits
	if _, ok := LookupTableValue(table, nil, types.Record{}, nil); ok {
		t.Error("LookupTableValue() found value with missing keys")
	}

	sub := &types.LookupTable{
		ID:     "limits",
		Keys:   []string{"use"},
		SubKey: "max",
		Values: map[string]any{"residential": map[string]any{"max": 30, "min": 10}},
	}
	got, ok = LookupTableValue(sub, nil, types.Record{"use": "residential"}, nil)
	if !ok || got != 30 {
		t.Errorf("LookupTableValue(subKey) = %v, %v, want 30, true", got, ok)
	}
}

// Property-based test: the chosen row never exceeds the requested value
// unless every row does.
func TestNavigateTable_PropertyNeverRoundsUp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sections := []float64{1.5, 2.5, 4, 6, 10, 16, 25, 35, 50, 70, 95, 120}
	table := make(map[string]any, len(sections))
	for _, s := range sections {
		table[strconv.FormatFloat(s, 'f', -1, 64)] = s
	}

	properties.Property("greatest key not exceeding the request", prop.ForAll(
		func(req float64) bool {
			got, ok := NavigateTable(table, []any{req})
			if !ok {
				return false
			}
			chosen := got.(float64)
			if req < sections[0] {
				return chosen == sections[0]
			}
			if chosen > req {
				return false
			}
			for _, s := range sections {
				if s <= req && s > chosen {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 200),
	))

	properties.TestingRun(t)
}
