package querysql

import (
	"fmt"
	"strings"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// DefaultTable is the records table created by internal/store.
const DefaultTable = "records"

// Columns selected by Select, in scan order.
const Columns = "id, key, body, seq"

// Compiler compiles query.Query values into parameterized SQLite SQL over
// the records table. Record bodies are JSON; fields are read with
// json_extract.
//
// CRITICAL: values are always parameterized, never interpolated. Field
// paths are interpolated only after query.Validate accepted them.
// CRITICAL: every SELECT ends with "id ASC" so results are deterministic
// and follow insertion order.
type Compiler struct {
	Table string
}

// NewCompiler creates a Compiler for DefaultTable.
func NewCompiler() *Compiler {
	return &Compiler{Table: DefaultTable}
}

// Select compiles q into a statement returning Columns.
func (c *Compiler) Select(q query.Query) (string, []any, error) {
	where, params, err := c.Where(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		Columns, c.table(), where, orderBy(q.Order)), params, nil
}

// Count compiles q into a statement returning the number of matches.
func (c *Compiler) Count(q query.Query) (string, []any, error) {
	where, params, err := c.Where(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.table(), where), params, nil
}

// Delete compiles q into a statement deleting every match.
func (c *Compiler) Delete(q query.Query) (string, []any, error) {
	where, params, err := c.Where(q)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", c.table(), where), params, nil
}

// Where compiles the WHERE clause of q, including the kind filter.
func (c *Compiler) Where(q query.Query) (string, []any, error) {
	if err := query.Validate(q); err != nil {
		return "", nil, err
	}
	params := []any{q.Kind}
	if q.Where == nil {
		return "kind = ?", params, nil
	}
	pred, predParams, err := compilePredicate(q.Where)
	if err != nil {
		return "", nil, fmt.Errorf("compile predicate: %w", err)
	}
	return "kind = ? AND " + pred, append(params, predParams...), nil
}

func (c *Compiler) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// orderBy renders the sort keys followed by the insertion-order tiebreaker.
func orderBy(order []query.Order) string {
	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", fieldExpr(o.Field), dir))
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", ")
}

func jsonPath(field string) string {
	return "'$." + field + "'"
}

func fieldExpr(field string) string {
	return "json_extract(body, " + jsonPath(field) + ")"
}

func compilePredicate(p query.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case query.Equals:
		if _, ok := pred.Value.(record.Null); ok || pred.Value == nil {
			return fieldExpr(pred.Field) + " IS NULL", nil, nil
		}
		param, err := toParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s AND %s = ?)", typeGuard(pred.Field, pred.Value), fieldExpr(pred.Field)),
			[]any{param}, nil

	case query.Compare:
		param, err := toParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s AND %s %s ?)", typeGuard(pred.Field, pred.Value), fieldExpr(pred.Field), pred.Op),
			[]any{param}, nil

	case query.In:
		if len(pred.Values) == 0 {
			return "0 = 1", nil, nil
		}
		parts := make([]string, len(pred.Values))
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := toParam(v)
			if err != nil {
				return "", nil, err
			}
			parts[i] = fmt.Sprintf("(%s AND %s = ?)", typeGuard(pred.Field, v), fieldExpr(pred.Field))
			params[i] = param
		}
		return "(" + strings.Join(parts, " OR ") + ")", params, nil

	case query.And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1")

	case query.Or:
		return compileJunction(pred.Predicates, " OR ", "0 = 1")

	case query.Not:
		inner, params, err := compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		// Two-valued logic: an unknown inner result counts as false.
		return "NOT COALESCE(" + inner + ", 0)", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileJunction(preds []query.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// typeGuard restricts a comparison to fields holding the same JSON type as
// v, so 1 never equals "1" and ints never order against strings.
func typeGuard(field string, v record.Value) string {
	typ := "json_type(body, " + jsonPath(field) + ")"
	switch v.(type) {
	case record.Int:
		return typ + " = 'integer'"
	case record.Bool:
		return typ + " IN ('true', 'false')"
	default:
		return typ + " = 'text'"
	}
}

// toParam converts a scalar record.Value into a driver parameter.
func toParam(v record.Value) (any, error) {
	switch val := v.(type) {
	case record.String:
		return string(val), nil
	case record.Int:
		return int64(val), nil
	case record.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("%T cannot be used as a SQL parameter", v)
	}
}
