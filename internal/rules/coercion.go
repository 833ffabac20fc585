// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
 * Value coercion for rule evaluation.
 *
 * Project records arrive from JSON (float64), YAML (int) and form intake
 * (strings), so the engine normalises at the edges:
 *
 *   - ToFloat64: strict numeric; only numeric kinds, never strings or bools.
 *     Ordering operators (>, <=, between, lookup_gt...) use this, so "30"
 *     does not compare as 30.
 *   - ParseNumber: lenient; also trims and parses numeric strings. Used where
 *     formula variables come from document extraction.
 *   - IsPresent: the exists operator's notion of "has a value".
 *   - Truthy: boolean reading for conditional computed fields and boolean
 *     formulas, accepting the yes/no vocabulary intake forms use.
 *   - FormatValue: canonical string form for table keys and templates.
 */

// ToFloat64 converts numeric kinds to float64. Non-finite values are rejected.
func ToFloat64(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumber is ToFloat64 plus numeric strings. Whitespace-only strings are not numbers.
func ParseNumber(v any) (float64, bool) {
	if f, ok := ToFloat64(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// decimal comma from European forms: "2,5"
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsPresent is false for nil, false and the empty string; true otherwise.
func IsPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}

// Truthy reads v as a boolean.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "no", "n", "0", "off", "none":
			return false
		}
		return true
	}
	if f, ok := ToFloat64(v); ok {
		return f != 0
	}
	return true
}

// FormatValue renders v for table keys and templates: integers without a
// decimal point, floats in shortest form, lists comma-separated.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ", ")
	}
	if f, ok := ToFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
