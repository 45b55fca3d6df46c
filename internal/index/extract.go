package index

import (
	"strconv"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

// Extract builds the Index Record describing doc.
//
// Returns false when doc carries no alias: a record needs a primary key.
func Extract(schema Schema, kind string, doc ir.Document) (Record, bool) {
	keys := aliases(schema.KeyFields, doc)
	if len(keys) == 0 {
		return Record{}, false
	}

	scope := doc.Scope()
	rec := Record{
		ID:              ir.IndexRecordID(kind, scope, keys[0]),
		Kind:            kind,
		ScopeID:         scope,
		Keys:            keys,
		PrimaryKey:      keys[0],
		Tags:            documentTags(doc),
		CurrentID:       doc.ID(),
		CurrentRevision: doc.Revision(),
	}

	for _, field := range schema.PKFields {
		if isIdentityField(field) {
			continue
		}
		v, ok := doc[field]
		if !ok {
			continue
		}
		rec.PK = append(rec.PK, typedEntries(schema, field, v)...)
	}
	rec.PK = dedupePK(rec.PK)

	return rec, true
}

// Conditions returns the pk conditions implied by filter: one per equality
// on a declared pk field other than id and scope_id.
func Conditions(schema Schema, filter queryir.Predicate) []PKEntry {
	declared := make(map[string]bool, len(schema.PKFields))
	for _, f := range schema.PKFields {
		declared[f] = true
	}

	var conds []PKEntry
	eq := queryir.Equalities(filter)
	for _, field := range queryir.EqualityFields(filter) {
		if !declared[field] || isIdentityField(field) {
			continue
		}
		entry, ok := typedEntry(schema, field, eq[field])
		if !ok {
			continue
		}
		conds = append(conds, entry)
	}
	return conds
}

// TagsOf returns the tag keys requested by filter.
func TagsOf(filter queryir.Predicate) []string {
	return queryir.TagKeys(filter)
}

func isIdentityField(field string) bool {
	return field == ir.FieldID || field == ir.FieldScope
}

func aliases(fields []string, doc ir.Document) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, field := range fields {
		s, ok := ir.StringOf(doc[field])
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, s)
	}
	return keys
}

// typeOf returns the pk type for a value of field. The declared type wins
// when the value is compatible with it.
func typeOf(schema Schema, field string, v ir.IRValue) (PKType, bool) {
	declared := schema.FieldTypes[field]
	switch v.(type) {
	case ir.IRString:
		if declared == PKReference {
			return PKReference, true
		}
		return PKString, true
	case ir.IRRef:
		if declared == PKString {
			return PKString, true
		}
		return PKReference, true
	case ir.IRInt:
		return PKNumber, true
	case ir.IRBool:
		return PKBoolean, true
	default:
		return "", false
	}
}

// typedEntry converts v into the single entry used for matching.
func typedEntry(schema Schema, field string, v ir.IRValue) (PKEntry, bool) {
	typ, ok := typeOf(schema, field, v)
	if !ok {
		return PKEntry{}, false
	}
	switch typ {
	case PKReference:
		id, _ := ir.StringOf(v)
		return PKEntry{Field: field, Type: PKReference, Value: ir.IRRef(id)}, true
	case PKString:
		s, _ := ir.StringOf(v)
		return PKEntry{Field: field, Type: PKString, Value: ir.IRString(s)}, true
	default:
		return PKEntry{Field: field, Type: typ, Value: v}, true
	}
}

// typedEntries converts v into the stored entries. References are kept both
// natively and as their string form so either query shape matches.
func typedEntries(schema Schema, field string, v ir.IRValue) []PKEntry {
	entry, ok := typedEntry(schema, field, v)
	if !ok {
		return nil
	}
	if entry.Type != PKReference {
		return []PKEntry{entry}
	}
	id, _ := ir.StringOf(entry.Value)
	return []PKEntry{entry, {Field: field, Type: PKString, Value: ir.IRString(id)}}
}

// documentTags reads the tags field: plain strings weigh 1.0, objects carry
// {key, weight}. Weights are integers (0 or 1) or decimal strings such as
// "0.5" since documents cannot hold floats.
func documentTags(doc ir.Document) []Tag {
	arr, ok := doc[ir.FieldTags].(ir.IRArray)
	if !ok {
		return nil
	}

	var tags []Tag
	for _, elem := range arr {
		switch val := elem.(type) {
		case ir.IRString:
			if val != "" {
				tags = append(tags, Tag{Key: string(val), Weight: 1})
			}
		case ir.IRObject:
			key, ok := val["key"].(ir.IRString)
			if !ok || key == "" {
				continue
			}
			tags = append(tags, Tag{Key: string(key), Weight: tagWeight(val["weight"])})
		}
	}
	return dedupeTags(tags)
}

func tagWeight(v ir.IRValue) float64 {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return 1
	case ir.IRInt:
		return clampWeight(float64(val))
	case ir.IRString:
		w, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0
		}
		return clampWeight(w)
	default:
		return 0
	}
}

func clampWeight(w float64) float64 {
	switch {
	case w < 0 || w != w:
		return 0
	case w > 1:
		return 1
	default:
		return w
	}
}
