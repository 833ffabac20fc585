// internal/mathexpr/lexer.go
package mathexpr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Tokenizer for the arithmetic expression grammar.
 *
 * Tokens: numbers (decimal, optional exponent), identifiers (letters, digits,
 * '_' and '.', so dotted record paths read as one variable), the operators
 * + - * / ^, parentheses and commas. Anything else is rejected.
 *
 * Normalize rewrites the typographic forms regulation texts use (I², ×, ·,
 * unicode minus) into the ASCII grammar before tokenizing.
 */

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokCaret
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var normalizer = strings.NewReplacer(
	"²", "^2",
	"³", "^3",
	"×", "*",
	"·", "*",
	"⋅", "*",
	"−", "-",
	"√", "sqrt",
)

// Normalize rewrites typographic operators into the ASCII grammar.
func Normalize(src string) string {
	return normalizer.Replace(src)
}

// tokenize splits src into tokens. Input must already be normalized.
func tokenize(src string) ([]token, error) {
	if len(src) > types.MaxExpressionLength {
		return nil, types.ErrExpressionTooLong
	}

	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// exponent: 1e3, 2.5E-4
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					i = j
					for i < len(runes) && unicode.IsDigit(runes[i]) {
						i++
					}
				}
			}
			text := string(runes[start:i])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", types.ErrInvalidExpression, text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: n, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: strings.TrimSuffix(string(runes[start:i]), "."), pos: start})
		default:
			kind, ok := punctuation[r]
			if !ok {
				return nil, fmt.Errorf("%w: unexpected %q at %d", types.ErrInvalidExpression, r, i)
			}
			tokens = append(tokens, token{kind: kind, text: string(r), pos: i})
			i++
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

var punctuation = map[rune]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'^': tokCaret,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
}
