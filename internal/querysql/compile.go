package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

// Document columns promoted out of the JSON body.
var columnFields = map[string]string{
	ir.FieldID:       "id",
	ir.FieldScope:    "scope_id",
	ir.FieldRevision: "revision",
}

// documentOrder is the deterministic order of every document read.
const documentOrder = "seq ASC, id COLLATE BINARY ASC"

// SQLCompiler compiles queryir filters to parameterized SQL for SQLite.
//
// All queries include ORDER BY for deterministic results and all values are
// parameterized. Field names are validated identifiers before they are
// placed into JSON paths.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a Select into a query returning the id and body of
// every matching document.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if q.Kind == "" {
		return "", nil, fmt.Errorf("cannot compile select without kind")
	}

	where, params, err := c.CompileWhere(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	sql := fmt.Sprintf("SELECT id, body FROM documents WHERE kind = ? AND (%s) ORDER BY %s",
		where, documentOrder)
	params = append([]any{q.Kind}, params...)

	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}

	return sql, params, nil
}

// CompileWhere compiles a filter into a WHERE fragment over the documents
// table. A nil filter compiles to "1 = 1".
func (c *SQLCompiler) CompileWhere(p queryir.Predicate) (string, []any, error) {
	if err := queryir.Validate(p); err != nil {
		return "", nil, err
	}
	return c.compilePredicate(p)
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case queryir.In:
		return c.compileIn(pred)
	case queryir.HasTags:
		return c.compileHasTags(pred)
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles "field = ?".
//
// Body fields compare by JSON type: references match only references,
// booleans only booleans.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if col, ok := columnFields[eq.Field]; ok {
		param, err := columnParam(eq.Field, eq.Value)
		if err != nil {
			return "", nil, err
		}
		return col + " = ?", []any{param}, nil
	}

	path := jsonPath(eq.Field)
	switch val := eq.Value.(type) {
	case ir.IRRef:
		return fmt.Sprintf("json_extract(body, '%s.\"$ref\"') = ?", path), []any{string(val)}, nil
	case ir.IRBool:
		return fmt.Sprintf("json_type(body, '%s') = ?", path), []any{boolJSONType(bool(val))}, nil
	case ir.IRString:
		return fmt.Sprintf("json_type(body, '%s') = 'text' AND json_extract(body, '%s') = ?", path, path), []any{string(val)}, nil
	case ir.IRInt:
		return fmt.Sprintf("json_type(body, '%s') = 'integer' AND json_extract(body, '%s') = ?", path, path), []any{int64(val)}, nil
	default:
		return "", nil, fmt.Errorf("unsupported value type for %q: %T", eq.Field, eq.Value)
	}
}

// compileIn compiles set membership. An empty set matches nothing.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}

	if col, ok := columnFields[in.Field]; ok {
		params := make([]any, len(in.Values))
		for i, v := range in.Values {
			param, err := columnParam(in.Field, v)
			if err != nil {
				return "", nil, err
			}
			params[i] = param
		}
		return fmt.Sprintf("%s IN (%s)", col, placeholders(len(params))), params, nil
	}

	var parts []string
	var params []any
	for _, v := range in.Values {
		sql, p, err := c.compileEquals(queryir.Eq(in.Field, v))
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " OR ") + ")", params, nil
}

// compileHasTags matches documents whose tags array holds at least one of
// the keys, either as a plain string or as an object's key.
func (c *SQLCompiler) compileHasTags(tags queryir.HasTags) (string, []any, error) {
	params := make([]any, len(tags.Keys))
	for i, k := range tags.Keys {
		params[i] = k
	}

	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(documents.body, '$.tags') t "+
		"WHERE (CASE WHEN t.type = 'object' THEN json_extract(t.value, '$.key') ELSE t.value END) IN (%s))",
		placeholders(len(params)))
	return sql, params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// jsonPath quotes a validated field name as a JSON path label.
func jsonPath(field string) string {
	return `$."` + field + `"`
}

func columnParam(field string, v ir.IRValue) (any, error) {
	if field == ir.FieldRevision {
		n, ok := v.(ir.IRInt)
		if !ok {
			return nil, fmt.Errorf("%s must be an integer, got %T", field, v)
		}
		return int64(n), nil
	}
	s, ok := ir.StringOf(v)
	if !ok {
		return nil, fmt.Errorf("%s must be a string, got %T", field, v)
	}
	return s, nil
}

func boolJSONType(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
