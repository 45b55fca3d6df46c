// Package queryir provides the filter and write intermediate representation
// shared by the data-access layer and the document store backends.
//
// The IR is the abstraction boundary between callers and the store:
//
//	[caller filter] → [queryir] → [access pipeline] → [querysql] → SQLite
//
// The pipeline inspects filters (identity-only? primary-key conditions? tag
// filters?) and rewrites them to concrete identities before they reach the
// backend. Backends only ever see the IR, never caller-specific shapes.
//
// SEALED INTERFACES:
//
// Predicate and Write are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can use exhaustive
// type switches.
//
// Predicates:
//   - Equals: field = literal
//   - In: field IN (literals...)
//   - HasTags: the document's tags share at least one key
//   - And: conjunction (empty = always true)
//
// There is no OR and no negation. Literal values are ir.IRValue scalars
// (string, int, bool, ref); floats never reach a filter.
package queryir
