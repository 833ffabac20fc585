// Package mathexpr evaluates short arithmetic expressions over an explicit
// variable set.
//
// It is the only place authored arithmetic is executed. The grammar is closed
// (+ - * / ^, parentheses, sqrt, ABS, MAX, MIN), evaluation has no side
// effects, and both input length and nesting depth are bounded, so a hostile
// rule can at worst produce an error.
package mathexpr

import (
	"fmt"
	"strings"

	"github.com/solatis/regcheck/internal/types"
)

// Grammar (lowest to highest precedence):
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('+' | '-') unary | power
//	power   := primary ('^' unary)?
//	primary := number | ident | ident '(' expr (',' expr)* ')' | '(' expr ')'
//
// '^' is right associative and binds tighter than unary minus: -2^2 == -4.

// Expr is a parsed expression, safe for concurrent evaluation.
type Expr struct {
	src  string
	root node
	vars []string
}

// Parse normalizes and parses src.
func Parse(src string) (*Expr, error) {
	norm := Normalize(strings.TrimSpace(src))
	if norm == "" {
		return nil, fmt.Errorf("%w: empty expression", types.ErrInvalidExpression)
	}
	tokens, err := tokenize(norm)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, seen: make(map[string]bool)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		t := p.peek()
		return nil, fmt.Errorf("%w: unexpected %q at %d", types.ErrInvalidExpression, t.text, t.pos)
	}
	return &Expr{src: norm, root: root, vars: p.vars}, nil
}

// Eval parses and evaluates src in one step.
func Eval(src string, resolve Resolver) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(resolve)
}

// Eval evaluates the expression, resolving variables through resolve.
func (e *Expr) Eval(resolve Resolver) (float64, error) {
	if resolve == nil {
		resolve = func(string) (float64, bool) { return 0, false }
	}
	return e.root.eval(resolve)
}

// Variables returns identifiers referenced by the expression in first-use order.
func (e *Expr) Variables() []string {
	out := make([]string, len(e.vars))
	copy(out, e.vars)
	return out
}

// String returns the normalized source.
func (e *Expr) String() string {
	return e.src
}

type parser struct {
	tokens []token
	pos    int
	depth  int
	vars   []string
	seen   map[string]bool
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > types.MaxExpressionDepth {
		return types.ErrExpressionTooDeep
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseExpr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.peek().kind {
	case tokMinus:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	case tokPlus:
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCaret {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: tokCaret, left: base, right: exp}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.vars = append(p.vars, t.text)
		}
		return varNode(t.text), nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing ')' for '(' at %d", types.ErrInvalidExpression, t.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", types.ErrInvalidExpression)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", types.ErrInvalidExpression, t.text, t.pos)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[strings.ToLower(name.text)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %q", types.ErrInvalidExpression, name.text)
	}
	p.next() // '('

	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		if t.kind == tokRParen {
			break
		}
		if t.kind != tokComma {
			return nil, fmt.Errorf("%w: expected ',' or ')' in %s() at %d", types.ErrInvalidExpression, name.text, t.pos)
		}
	}
	if len(args) < fn.minArgs || (fn.maxArgs > 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%w: %s() takes %s", types.ErrInvalidExpression, name.text, fn.arity())
	}
	return &callNode{name: strings.ToLower(name.text), fn: fn, args: args}, nil
}
