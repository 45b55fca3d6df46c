package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
)

// recordOrder ranks candidates by recency before scoring.
const recordOrder = "r.updated_at DESC, r.id COLLATE BINARY ASC"

// CompileRecordSearch compiles an Index Record search into a query
// returning matching record ids.
//
// Each pk condition becomes an EXISTS over index_pk on the value column
// for its type, so the per-type lookup indexes serve it.
func (c *SQLCompiler) CompileRecordSearch(s index.Search) (string, []any, error) {
	if s.Kind == "" {
		return "", nil, fmt.Errorf("cannot compile record search without kind")
	}

	where := []string{"r.kind = ?", "r.scope_id = ?"}
	params := []any{s.Kind, s.ScopeID}

	for _, cond := range s.Conditions {
		column, value, err := PKValueColumn(cond)
		if err != nil {
			return "", nil, fmt.Errorf("compile condition on %q: %w", cond.Field, err)
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM index_pk p WHERE p.record_id = r.id AND p.kind = r.kind AND p.scope_id = r.scope_id AND p.field = ? AND p.type = ? AND p.%s = ?)",
			column))
		params = append(params, cond.Field, string(cond.Type), value)
	}

	if len(s.Tags) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM index_tags t WHERE t.record_id = r.id AND t.key IN (%s))",
			placeholders(len(s.Tags))))
		for _, k := range s.Tags {
			params = append(params, k)
		}
	}

	sql := fmt.Sprintf("SELECT r.id FROM index_records r WHERE %s ORDER BY %s",
		strings.Join(where, " AND "), recordOrder)
	return sql, params, nil
}

// PKValueColumn returns the index_pk column holding values of entry's type
// and the SQL parameter for its value.
func PKValueColumn(entry index.PKEntry) (string, any, error) {
	switch entry.Type {
	case index.PKString, index.PKReference:
		s, ok := ir.StringOf(entry.Value)
		if !ok {
			return "", nil, fmt.Errorf("%s value must be text, got %T", entry.Type, entry.Value)
		}
		return "value_text", s, nil
	case index.PKNumber:
		n, ok := entry.Value.(ir.IRInt)
		if !ok {
			return "", nil, fmt.Errorf("number value must be an integer, got %T", entry.Value)
		}
		return "value_num", int64(n), nil
	case index.PKBoolean:
		b, ok := entry.Value.(ir.IRBool)
		if !ok {
			return "", nil, fmt.Errorf("boolean value must be a bool, got %T", entry.Value)
		}
		if b {
			return "value_bool", 1, nil
		}
		return "value_bool", 0, nil
	default:
		return "", nil, fmt.Errorf("unknown pk type %q", entry.Type)
	}
}
