// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Field path resolution for project records.
 *
 * Resolves dotted paths ("electrical.contractedPower") through nested
 * mappings. Paths starting with "computed." consult the Computed namespace
 * first and fall through to the record when the id is not there, so a record
 * may itself carry a "computed" object.
 *
 * Resolution never fails loudly: the moment a segment meets a non-mapping or
 * a missing key the result is "absent". A nil leaf is also absent; callers
 * never have to distinguish null from missing.
 *
 * Key functions:
 *   - Resolve: record/computed lookup used by every operator
 *   - Flatten: scalar leaves under dotted and shallow names (formula contexts)
 *   - NumericContext: numeric subset of Flatten plus computed ids
 */

// Resolve returns the value at path and whether it is present.
func Resolve(path string, record types.Record, computed types.Computed) (any, bool) {
	if rest, ok := strings.CutPrefix(path, types.ComputedPrefix); ok && computed != nil {
		if v, found := computed[rest]; found && v != nil {
			return v, true
		}
	}
	return resolvePath(splitPath(path), map[string]any(record))
}

// ResolveString resolves path and renders the value as a string key.
func ResolveString(path string, record types.Record, computed types.Computed) (string, bool) {
	v, ok := Resolve(path, record, computed)
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// resolvePath walks successive mapping lookups. Depth beyond MaxPathDepth is absent.
func resolvePath(segments []string, current any) (any, bool) {
	if len(segments) == 0 || len(segments) > types.MaxPathDepth {
		return nil, false
	}
	for _, seg := range segments {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// asMap accepts the mapping shapes JSON and YAML decoding produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.Record:
		return map[string]any(m), true
	case types.Computed:
		return map[string]any(m), true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Flatten collects every scalar leaf of record under its dotted path and,
// when unambiguous, under its leaf name. Dotted names always win; a shallow
// name is bound by the first leaf reaching it in sorted-key order, and a
// top-level key is never shadowed by a nested leaf.
func Flatten(record types.Record) map[string]any {
	out := make(map[string]any)
	shallow := make(map[string]any)
	flattenInto(out, shallow, "", map[string]any(record), 0)
	for k, v := range shallow {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

func flattenInto(out, shallow map[string]any, prefix string, m map[string]any, depth int) {
	if depth >= types.MaxPathDepth {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		v := m[k]
		if nested, ok := asMap(v); ok {
			flattenInto(out, shallow, name, nested, depth+1)
			continue
		}
		if v == nil {
			continue
		}
		out[name] = v
		if prefix != "" {
			if _, taken := shallow[k]; !taken {
				shallow[k] = v
			}
		}
	}
}

// NumericContext is the variable set formula_* and computed_* expressions
// evaluate in: numeric leaves of the record (dotted and shallow names) plus
// computed fields under "computed.<id>" and "<id>". Record names win over
// bare computed ids.
func NumericContext(record types.Record, computed types.Computed) map[string]float64 {
	vars := make(map[string]float64)
	for name, v := range Flatten(record) {
		if n, ok := ToFloat64(v); ok {
			vars[name] = n
		}
	}
	for id, v := range computed {
		n, ok := ToFloat64(v)
		if !ok {
			continue
		}
		vars[types.ComputedPrefix+id] = n
		if _, taken := vars[id]; !taken {
			vars[id] = n
		}
	}
	return vars
}
