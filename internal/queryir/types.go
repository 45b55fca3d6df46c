package queryir

import "github.com/roach88/canon/internal/ir"

// Predicate represents a filter condition.
//
// Predicate types:
//   - Equals: field = literal
//   - In: field IN (literals)
//   - HasTags: at least one shared tag key
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select is a read against a single entity kind.
//
// Semantics:
//
//	SELECT documents FROM <kind> WHERE <filter> ORDER BY seq, id LIMIT <limit>
//
// A nil Filter matches every document of the kind. Limit <= 0 means no limit.
type Select struct {
	Kind   string
	Filter Predicate
	Limit  int
}

// Equals represents a field-equals-literal predicate.
//
// Example:
//
//	Equals{Field: "token", Value: ir.IRString("sword-001")}
//
// References compare against the referenced id; strings never match a
// reference field and vice versa.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In represents a field-in-set predicate. An empty set matches nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// HasTags matches documents whose tags contain at least one of Keys.
//
// For index resolution the keys are scored against weighted index tags;
// against raw documents it is a plain membership test.
type HasTags struct {
	Keys []string
}

func (HasTags) predicateNode() {}

// And represents a conjunction of predicates.
// An empty Predicates slice means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Eq builds an Equals predicate.
func Eq(field string, value ir.IRValue) Equals {
	return Equals{Field: field, Value: value}
}

// AnyOf builds an In predicate.
func AnyOf(field string, values ...ir.IRValue) In {
	return In{Field: field, Values: values}
}

// Tags builds a HasTags predicate.
func Tags(keys ...string) HasTags {
	return HasTags{Keys: keys}
}

// All builds an And predicate.
func All(preds ...Predicate) And {
	return And{Predicates: preds}
}

// ByIdentity builds the filter for concrete physical identities.
// A single id yields an Equals, several yield an In; a non-empty scope is
// added as an extra equality.
func ByIdentity(scope string, ids ...string) Predicate {
	var idPred Predicate
	if len(ids) == 1 {
		idPred = Eq(ir.FieldID, ir.IRString(ids[0]))
	} else {
		values := make([]ir.IRValue, len(ids))
		for i, id := range ids {
			values[i] = ir.IRString(id)
		}
		idPred = AnyOf(ir.FieldID, values...)
	}

	if scope == "" {
		return idPred
	}
	return All(idPred, Eq(ir.FieldScope, ir.IRString(scope)))
}
