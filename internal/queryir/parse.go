package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/canon/internal/ir"
)

// opIn is the operator key accepted for set membership in map filters.
const opIn = "$in"

// FromMap converts a JSON/YAML style filter into a predicate.
//
// Shapes:
//
//	{"token": "sword-001"}              → Equals
//	{"id": ["X", "Y"]}                  → In
//	{"id": {"$in": ["X", "Y"]}}         → In
//	{"owner": {"$ref": "p-1"}}          → Equals with an IRRef
//	{"tags": ["legendary", "sword"]}    → HasTags
//
// Keys are processed in sorted order so the resulting predicate is
// deterministic. An empty map yields an empty And (match all).
func FromMap(m map[string]any) (Predicate, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, field := range keys {
		pred, err := parseField(field, m[field])
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return All(preds...), nil
}

// ParseJSON parses a JSON object filter. An empty input matches all.
func ParseJSON(data []byte) (Predicate, error) {
	if len(data) == 0 {
		return All(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	return FromMap(m)
}

func parseField(field string, raw any) (Predicate, error) {
	if field == ir.FieldTags {
		keys, err := parseTagKeys(raw)
		if err != nil {
			return nil, err
		}
		return Tags(keys...), nil
	}

	if obj, ok := raw.(map[string]any); ok {
		if list, ok := obj[opIn]; ok && len(obj) == 1 {
			raw = list
		}
	}

	if list, ok := raw.([]any); ok {
		values := make([]ir.IRValue, len(list))
		for i, elem := range list {
			v, err := scalar(field, elem)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return AnyOf(field, values...), nil
	}

	v, err := scalar(field, raw)
	if err != nil {
		return nil, err
	}
	return Eq(field, v), nil
}

func parseTagKeys(raw any) ([]string, error) {
	switch val := raw.(type) {
	case string:
		return []string{val}, nil
	case []any:
		keys := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, &ValidationError{Field: ir.FieldTags, Message: fmt.Sprintf("tag %d is %T, want string", i, elem)}
			}
			keys = append(keys, s)
		}
		return keys, nil
	default:
		return nil, &ValidationError{Field: ir.FieldTags, Message: fmt.Sprintf("tags filter is %T, want string list", raw)}
	}
}

func scalar(field string, raw any) (ir.IRValue, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: err.Error()}
	}
	if !isScalar(v) {
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("unsupported filter value %T", v)}
	}
	return v, nil
}
