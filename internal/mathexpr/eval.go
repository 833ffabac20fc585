package mathexpr

import (
	"fmt"
	"math"

	"github.com/solatis/regcheck/internal/types"
)

// Resolver returns the numeric value of a variable and whether it exists.
type Resolver func(name string) (float64, bool)

// MapResolver resolves variables from a plain map.
func MapResolver(vars map[string]float64) Resolver {
	return func(name string) (float64, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

type node interface {
	eval(r Resolver) (float64, error)
}

type numberNode float64

func (n numberNode) eval(Resolver) (float64, error) {
	return float64(n), nil
}

type varNode string

func (n varNode) eval(r Resolver) (float64, error) {
	v, ok := r(string(n))
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownVariable, string(n))
	}
	return finite(v)
}

type negNode struct {
	operand node
}

func (n *negNode) eval(r Resolver) (float64, error) {
	v, err := n.operand.eval(r)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n *binaryNode) eval(r Resolver) (float64, error) {
	a, err := n.left.eval(r)
	if err != nil {
		return 0, err
	}
	b, err := n.right.eval(r)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return finite(a + b)
	case tokMinus:
		return finite(a - b)
	case tokStar:
		return finite(a * b)
	case tokSlash:
		if b == 0 {
			return 0, types.ErrDivisionByZero
		}
		return finite(a / b)
	case tokCaret:
		return finite(math.Pow(a, b))
	default:
		return 0, fmt.Errorf("%w: unknown operator", types.ErrInvalidExpression)
	}
}

type function struct {
	minArgs int
	maxArgs int // 0 = variadic
	apply   func(args []float64) float64
}

func (f function) arity() string {
	switch {
	case f.maxArgs == 0:
		return fmt.Sprintf("at least %d argument(s)", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("exactly %d argument(s)", f.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
	}
}

var functions = map[string]function{
	"sqrt": {minArgs: 1, maxArgs: 1, apply: func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"abs":  {minArgs: 1, maxArgs: 1, apply: func(a []float64) float64 { return math.Abs(a[0]) }},
	"max": {minArgs: 1, apply: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"min": {minArgs: 1, apply: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n *callNode) eval(r Resolver) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(r)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return finite(n.fn.apply(vals))
}

// finite rejects NaN and infinities so they never reach a comparison.
func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, types.ErrNonFinite
	}
	return v, nil
}
