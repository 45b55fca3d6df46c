package queryir

import "github.com/roach88/canon/internal/ir"

// Flatten returns the leaf predicates of p, expanding nested And nodes
// in order. A nil predicate flattens to nothing.
func Flatten(p Predicate) []Predicate {
	if p == nil {
		return nil
	}
	and, ok := p.(And)
	if !ok {
		return []Predicate{p}
	}

	var leaves []Predicate
	for _, child := range and.Predicates {
		leaves = append(leaves, Flatten(child)...)
	}
	return leaves
}

// Identity is a filter reduced to concrete physical identities.
type Identity struct {
	Scope string
	IDs   []string
}

// IdentityOnly reports whether p consists solely of an identity condition
// (id equals / id in) with at most a scope equality alongside it.
//
// Any other leaf, including a tag filter, disqualifies the filter.
func IdentityOnly(p Predicate) (Identity, bool) {
	var (
		id       Identity
		sawID    bool
		sawScope bool
	)

	for _, leaf := range Flatten(p) {
		switch pred := leaf.(type) {
		case Equals:
			switch pred.Field {
			case ir.FieldID:
				s, ok := ir.StringOf(pred.Value)
				if !ok || sawID {
					return Identity{}, false
				}
				id.IDs = []string{s}
				sawID = true
			case ir.FieldScope:
				s, ok := ir.StringOf(pred.Value)
				if !ok || sawScope {
					return Identity{}, false
				}
				id.Scope = s
				sawScope = true
			default:
				return Identity{}, false
			}
		case In:
			if pred.Field != ir.FieldID || sawID {
				return Identity{}, false
			}
			ids := make([]string, 0, len(pred.Values))
			for _, v := range pred.Values {
				s, ok := ir.StringOf(v)
				if !ok {
					return Identity{}, false
				}
				ids = append(ids, s)
			}
			id.IDs = ids
			sawID = true
		default:
			return Identity{}, false
		}
	}

	if !sawID {
		return Identity{}, false
	}
	return id, true
}

// Equalities returns the equality leaves of p keyed by field.
// When a field is constrained twice the first constraint wins.
func Equalities(p Predicate) map[string]ir.IRValue {
	out := make(map[string]ir.IRValue)
	for _, leaf := range Flatten(p) {
		eq, ok := leaf.(Equals)
		if !ok {
			continue
		}
		if _, seen := out[eq.Field]; !seen {
			out[eq.Field] = eq.Value
		}
	}
	return out
}

// EqualityFields returns the fields of the equality leaves of p in filter order.
func EqualityFields(p Predicate) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, leaf := range Flatten(p) {
		eq, ok := leaf.(Equals)
		if !ok || seen[eq.Field] {
			continue
		}
		seen[eq.Field] = true
		fields = append(fields, eq.Field)
	}
	return fields
}

// TagKeys returns the tag keys requested by p, deduplicated, in filter order.
// Returns nil when p has no tag filter.
func TagKeys(p Predicate) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, leaf := range Flatten(p) {
		tags, ok := leaf.(HasTags)
		if !ok {
			continue
		}
		for _, k := range tags.Keys {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// ScopeOf returns the scope equality value of p, or "" when unscoped.
func ScopeOf(p Predicate) string {
	s, _ := ir.StringOf(Equalities(p)[ir.FieldScope])
	return s
}
