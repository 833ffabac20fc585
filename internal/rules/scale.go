// internal/rules/scale.go
package rules

import (
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

// ReactionClassScale is the Euroclass reaction-to-fire ordering, best first.
// A higher index is a worse class.
var ReactionClassScale = []string{
	"A1", "A2", "B", "C", "D", "E", "F",
	"CFL-s1", "CFL-s2", "DFL-s1", "EFL", "FFL",
}

// scaleIndex returns the position of v in scale, or -1.
func scaleIndex(scale []string, v any) int {
	s, ok := v.(string)
	if !ok {
		return -1
	}
	s = strings.TrimSpace(s)
	for i, step := range scale {
		if strings.EqualFold(step, s) {
			return i
		}
	}
	return -1
}

// reactionClassIndex finds a declared class on the Euroclass scale. Full
// declarations carry smoke and droplet suffixes ("B-s1,d0"); those are
// stripped until a scale step matches.
func reactionClassIndex(v any) int {
	s, ok := v.(string)
	if !ok {
		return -1
	}
	s = strings.TrimSpace(s)
	if i := scaleIndex(ReactionClassScale, s); i >= 0 {
		return i
	}
	if base, _, found := strings.Cut(s, ","); found {
		s = base
		if i := scaleIndex(ReactionClassScale, s); i >= 0 {
			return i
		}
	}
	if cut := strings.Index(strings.ToLower(s), "-s"); cut > 0 {
		return scaleIndex(ReactionClassScale, s[:cut])
	}
	return -1
}

// compareIndex applies the ordinal comparison for op to two scale positions.
// Both positions must be known.
func compareIndex(op types.Operator, field, target int) bool {
	if field < 0 || target < 0 {
		return false
	}
	switch op {
	case types.OpOrdinalLt:
		return field < target
	case types.OpOrdinalLte:
		return field <= target
	case types.OpOrdinalGt:
		return field > target
	case types.OpOrdinalGte:
		return field >= target

	// reaction classes: _lt is "worse than", i.e. further down the scale
	case types.OpReactionClassLt:
		return field > target
	case types.OpReactionClassLte:
		return field >= target
	case types.OpReactionClassGt:
		return field < target
	case types.OpReactionClassGte:
		return field <= target
	default:
		return false
	}
}
