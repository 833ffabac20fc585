package rules

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{name: "float64 passthrough", value: 42.5, want: 42.5, wantOK: true},
		{name: "int", value: 100, want: 100, wantOK: true},
		{name: "int64", value: int64(999), want: 999, wantOK: true},
		{name: "uint8", value: uint8(7), want: 7, wantOK: true},
		{name: "float32", value: float32(1.5), want: 1.5, wantOK: true},
		{name: "json.Number", value: json.Number("30"), want: 30, wantOK: true},
		{name: "numeric string rejected", value: "30", wantOK: false},
		{name: "bool rejected", value: true, wantOK: false},
		{name: "nil rejected", value: nil, wantOK: false},
		{name: "NaN rejected", value: math.NaN(), wantOK: false},
		{name: "infinity rejected", value: math.Inf(1), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("ToFloat64(%v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{name: "numeric string", value: "25", want: 25, wantOK: true},
		{name: "string with whitespace", value: "  42  ", want: 42, wantOK: true},
		{name: "decimal comma", value: "2,5", want: 2.5, wantOK: true},
		{name: "scientific", value: "1e3", want: 1000, wantOK: true},
		{name: "int passthrough", value: 16, want: 16, wantOK: true},
		{name: "empty string", value: "", wantOK: false},
		{name: "whitespace only", value: "   ", wantOK: false},
		{name: "word", value: "PVC", wantOK: false},
		{name: "NaN string", value: "NaN", wantOK: false},
		{name: "bool", value: false, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsPresentAndTruthy(t *testing.T) {
	tests := []struct {
		value       any
		wantPresent bool
		wantTruthy  bool
	}{
		{nil, false, false},
		{false, false, false},
		{true, true, true},
		{"", false, false},
		{"yes", true, true},
		{"no", true, false},
		{"OFF", true, false},
		{0, true, false},
		{0.0, true, false},
		{3, true, true},
		{map[string]any{}, true, true},
	}

	for _, tt := range tests {
		if got := IsPresent(tt.value); got != tt.wantPresent {
			t.Errorf("IsPresent(%#v) = %v, want %v", tt.value, got, tt.wantPresent)
		}
		if got := Truthy(tt.value); got != tt.wantTruthy {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.value, got, tt.wantTruthy)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"B-s1,d0", "B-s1,d0"},
		{30, "30"},
		{30.0, "30"},
		{2.5, "2.5"},
		{true, "true"},
		{[]any{1, "a", 2.5}, "1, a, 2.5"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.value); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
