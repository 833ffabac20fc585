// internal/rules/lookup.go
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Lookup-table navigation.
 *
 * Walks an ordered key sequence through nested mappings. Each key is matched
 * as a string first. A numeric key with no exact match falls back to the
 * greatest table key not exceeding it; if every table key is larger, the
 * smallest key is used. Never interpolate and never round up: when a 8 mm²
 * conductor is not tabulated, the 6 mm² ampacity is the safe answer, not the
 * 10 mm² one.
 *
 * Navigation never fails loudly. A missing branch, a non-mapping, or a
 * non-numeric miss all yield "absent".
 */

// NavigateTable walks values with keys in order.
func NavigateTable(values any, keys []any) (any, bool) {
	if len(keys) > types.MaxTableDepth {
		return nil, false
	}
	current := values
	for _, key := range keys {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = selectKey(m, key)
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// selectKey picks the entry for key: exact string match, else closest numeric key.
func selectKey(m map[string]any, key any) (any, bool) {
	ks := strings.TrimSpace(FormatValue(key))
	if v, ok := m[ks]; ok {
		return v, true
	}
	n, ok := ParseNumber(key)
	if !ok {
		return nil, false
	}
	closest, ok := closestKey(m, n)
	if !ok {
		return nil, false
	}
	return m[closest], true
}

// closestKey returns the greatest numeric key <= n, or the smallest numeric
// key when none qualifies. Equal numeric values resolve to the lexically
// smaller key so the choice is deterministic.
func closestKey(m map[string]any, n float64) (string, bool) {
	var (
		floorKey, minKey string
		floorVal         = math.Inf(-1)
		minVal           = math.Inf(1)
		haveFloor        bool
		haveMin          bool
	)
	for k := range m {
		kv, err := strconv.ParseFloat(strings.TrimSpace(k), 64)
		if err != nil || math.IsNaN(kv) || math.IsInf(kv, 0) {
			continue
		}
		if kv <= n && (!haveFloor || kv > floorVal || (kv == floorVal && k < floorKey)) {
			floorKey, floorVal, haveFloor = k, kv, true
		}
		if !haveMin || kv < minVal || (kv == minVal && k < minKey) {
			minKey, minVal, haveMin = k, kv, true
		}
	}
	if haveFloor {
		return floorKey, true
	}
	return minKey, haveMin
}

// LookupTableValue resolves keyPaths against the record, navigates table with
// the results and drills into SubKey when set. Any unresolvable key path
// short-circuits to absent.
func LookupTableValue(table *types.LookupTable, keyPaths []string, record types.Record, computed types.Computed) (any, bool) {
	if table == nil {
		return nil, false
	}
	if len(keyPaths) == 0 {
		keyPaths = table.Keys
	}
	keys := make([]any, 0, len(keyPaths)+1)
	for _, p := range keyPaths {
		v, ok := Resolve(p, record, computed)
		if !ok {
			return nil, false
		}
		keys = append(keys, v)
	}
	if table.SubKey != "" {
		keys = append(keys, table.SubKey)
	}
	return NavigateTable(table.Values, keys)
}
