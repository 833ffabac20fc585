// Package types provides the domain model shared across regcheck components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the standard
// library so the engine packages stay importable by any ingestion front-end.
// ID utilities in ids.go import uuid and are isolated for that reason.
//
// Everything here is data: rules, lookup tables and computed-field definitions
// are authored by compliance engineers and loaded by internal/plugin. The
// engine treats them as immutable for the duration of a batch.
package types

// Record is a project's attribute set: an arbitrarily deep mapping of string
// keys to numbers, strings, booleans, nested records, lists or nil.
// Read-only input; no engine component mutates it.
type Record map[string]any

// Computed is the flat namespace produced by computed-field evaluation.
// Keys are ComputedField.ID values, consumed through "computed.<id>" paths.
type Computed map[string]any

// ComputedPrefix marks paths that resolve against the Computed namespace first.
const ComputedPrefix = "computed."

// Resource limits enforced by the engine so authored data cannot cause
// unbounded work.
const (
	// MaxPathDepth bounds dotted-path resolution.
	// 16 levels covers every project schema seen so far with room to spare.
	MaxPathDepth = 16

	// MaxTableDepth bounds lookup-table navigation (keys plus subKey).
	MaxTableDepth = 8

	// MaxInOperatorValues limits in/not_in lists to keep membership linear and small.
	MaxInOperatorValues = 256

	// MaxExpressionLength caps arithmetic expressions before tokenizing.
	// Regulation formulas are a few dozen characters; 512 leaves margin.
	MaxExpressionLength = 512

	// MaxExpressionDepth caps parser recursion (nested parentheses and calls).
	MaxExpressionDepth = 32

	// MaxFormulaClauses caps "; IF" clauses and AND/OR conjuncts per formula.
	MaxFormulaClauses = 32
)
