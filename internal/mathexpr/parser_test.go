package mathexpr

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/regcheck/internal/types"
)

func TestEval(t *testing.T) {
	vars := MapResolver(map[string]float64{
		"I":                 3000,
		"t":                 0.1,
		"k":                 115,
		"S_fase":            50,
		"electrical.Ib":     20,
		"negative":          -4,
		"conductor.section": 2.5,
	})

	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"24 / 4 / 3", 2},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"(-2) ^ 2", 4},
		{"--3", 3},
		{"+3", 3},
		{"1.5e2", 150},
		{".5 * 4", 2},
		{"S_fase / 2", 25},
		{"electrical.Ib * 2", 40},
		{"conductor.section", 2.5},
		{"sqrt(I^2 * t) / k", math.Sqrt(3000*3000*0.1) / 115},
		{"SQRT(16)", 4},
		{"abs(negative)", 4},
		{"ABS(-1.5)", 1.5},
		{"MAX(16, S_fase/2)", 25},
		{"max(1, 7, 3)", 7},
		{"MIN(S_fase, 16)", 16},
		{"min(2)", 2},
		{"I²", 9000000},
		{"2 × 3 · 4", 24},
		{"5 − 2", 3},
		{"√(16)", 4},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		expr string
		err  error
	}{
		{"", types.ErrInvalidExpression},
		{"1 +", types.ErrInvalidExpression},
		{"(1 + 2", types.ErrInvalidExpression},
		{"1 + 2)", types.ErrInvalidExpression},
		{"1 $ 2", types.ErrInvalidExpression},
		{"foo(1)", types.ErrInvalidExpression},
		{"sqrt(1, 2)", types.ErrInvalidExpression},
		{"max()", types.ErrInvalidExpression},
		{"1 2", types.ErrInvalidExpression},
		{"missing + 1", types.ErrUnknownVariable},
		{"1 / 0", types.ErrDivisionByZero},
		{"1 / (2 - 2)", types.ErrDivisionByZero},
		{"sqrt(-1)", types.ErrNonFinite},
		{"10 ^ 400", types.ErrNonFinite},
		{strings.Repeat("1+", types.MaxExpressionLength) + "1", types.ErrExpressionTooLong},
		{strings.Repeat("(", types.MaxExpressionDepth+1) + "1" + strings.Repeat(")", types.MaxExpressionDepth+1), types.ErrExpressionTooDeep},
		{strings.Repeat("-", types.MaxExpressionDepth+1) + "1", types.ErrExpressionTooDeep},
	}

	for _, tt := range tests {
		name := tt.expr
		if len(name) > 40 {
			name = name[:40]
		}
		t.Run(name, func(t *testing.T) {
			_, err := Eval(tt.expr, nil)
			if !errors.Is(err, tt.err) {
				t.Errorf("Eval(%q) error = %v, want %v", tt.expr, err, tt.err)
			}
		})
	}
}

func TestExpr_Variables(t *testing.T) {
	e, err := Parse("MAX(S_phase / 2, k) + S_phase * electrical.Ib - sqrt(t)")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := []string{"S_phase", "k", "electrical.Ib", "t"}
	got := e.Variables()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Variables() = %v, want %v", got, want)
	}

	// callers may not mutate the parsed expression through the slice
	got[0] = "changed"
	if e.Variables()[0] != "S_phase" {
		t.Error("Variables() exposes internal state")
	}
}

func TestExpr_StringNormalizes(t *testing.T) {
	e, err := Parse("  k² × S²  ")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if e.String() != "k^2 * S^2" {
		t.Errorf("String() = %q, want %q", e.String(), "k^2 * S^2")
	}
}

func TestExpr_ReusableAcrossResolvers(t *testing.T) {
	e, err := Parse("a * 2")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	for _, a := range []float64{1, 2, 3} {
		got, err := e.Eval(MapResolver(map[string]float64{"a": a}))
		if err != nil || got != a*2 {
			t.Errorf("Eval(a=%v) = %v, %v, want %v", a, got, err, a*2)
		}
	}
}

// Property-based test: arbitrary input never panics; it either parses or
// returns an error
func TestParse_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	alphabet := []rune("0123456789.+-*/^(),eEabcxyz_ ²√×")
	properties.Property("parse and eval terminate without panic", prop.ForAll(
		func(idx []int) (ok bool) {
			defer func() {
				if recover() != nil {
					ok = false
				}
			}()
			src := make([]rune, len(idx))
			for i, n := range idx {
				src[i] = alphabet[n]
			}
			_, _ = Eval(string(src), MapResolver(map[string]float64{"a": 1, "x": 2}))
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(alphabet)-1)),
	))

	properties.TestingRun(t)
}

// Property-based test: addition and multiplication of literals agree with Go
func TestEval_PropertyArithmetic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a + b * c", prop.ForAll(
		func(a, b, c float64) bool {
			got, err := Eval("a + b * c", MapResolver(map[string]float64{"a": a, "b": b, "c": c}))
			return err == nil && got == a+float64(b*c)
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
