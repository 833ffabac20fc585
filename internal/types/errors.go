package types

import "errors"

// Sentinel errors for regcheck operations.
//
// The evaluation core never surfaces these to report consumers: unresolvable
// references become skips and malformed formulas become skipped diagnostics.
// They exist so internal callers can tell the two apart with errors.Is.
var (
	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTableNotFound indicates a condition or formula references an unknown lookup table.
	ErrTableNotFound = errors.New("lookup table not found")

	// ErrTableKeyNotFound indicates lookup-table navigation hit a missing branch.
	ErrTableKeyNotFound = errors.New("lookup table key not found")

	// ErrUnknownOperator indicates an operator outside the closed operator set.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrTooManyInValues indicates an in/not_in list exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("in operator has too many values")

	// ErrUnparseableFormula indicates a formula matches no recognized structure.
	ErrUnparseableFormula = errors.New("unparseable formula")

	// ErrUnknownVariable indicates an expression references a variable absent from its context.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDivisionByZero indicates an expression divided by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNonFinite indicates an expression produced NaN or an infinity.
	ErrNonFinite = errors.New("non-finite result")

	// ErrExpressionTooLong indicates an expression exceeds MaxExpressionLength.
	ErrExpressionTooLong = errors.New("expression exceeds maximum length")

	// ErrExpressionTooDeep indicates an expression nests deeper than MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression exceeds maximum nesting depth")

	// ErrInvalidExpression indicates an arithmetic expression failed to parse.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrNotNumeric indicates a value required to be numeric was not.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrDuplicateID indicates two definitions share an identifier.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrInvalidDefinition indicates a plugin definition failed static validation.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrNotFound indicates a stored record does not exist.
	ErrNotFound = errors.New("record not found")
)
