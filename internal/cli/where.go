package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// operators in match order; two-character operators come first.
var operators = []query.Op{query.OpGreaterEqual, query.OpLessEqual, query.OpNotEqual, "=", query.OpGreater, query.OpLess}

// parseWhere turns --where terms such as "age>=30" or "name=Ann" into a
// predicate. Terms are combined with And. Nil means match everything.
func parseWhere(terms []string) (query.Predicate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	preds := make([]query.Predicate, 0, len(terms))
	for _, term := range terms {
		p, err := parseTerm(term)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return query.AllOf(preds...), nil
}

func parseTerm(term string) (query.Predicate, error) {
	at := strings.IndexAny(term, "=!<>")
	if at <= 0 {
		return nil, fmt.Errorf("where %q: expected field<op>value", term)
	}
	field, rest := strings.TrimSpace(term[:at]), term[at:]
	for _, op := range operators {
		raw, ok := strings.CutPrefix(rest, string(op))
		if !ok {
			continue
		}
		v := parseValue(raw)
		if op == "=" {
			return query.Eq(field, v), nil
		}
		return query.Compare{Field: field, Op: op, Value: v}, nil
	}
	return nil, fmt.Errorf("where %q: unknown operator", term)
}

// parseValue reads raw as a JSON scalar, falling back to a plain string so
// name=Ann needs no quoting.
func parseValue(raw string) record.Value {
	if !json.Valid([]byte(raw)) {
		return record.String(raw)
	}
	v, err := record.UnmarshalValue([]byte(raw))
	if err != nil {
		return record.String(raw)
	}
	switch v.(type) {
	case record.Array, record.Object:
		return record.String(raw)
	}
	return v
}

// buildQuery assembles the query for kind from the shared query flags.
func buildQuery(kind string, opts *QueryOptions) (query.Query, error) {
	where, err := parseWhere(opts.Where)
	if err != nil {
		return query.Query{}, WrapExitError(ExitCommandError, "invalid --where", err)
	}
	q := query.Where(kind, where)
	for _, field := range opts.Order {
		desc := strings.HasPrefix(field, "-")
		q = q.OrderBy(strings.TrimPrefix(field, "-"), desc)
	}
	if err := query.Validate(q); err != nil {
		return query.Query{}, WrapExitError(ExitCommandError, "invalid query", err)
	}
	return q, nil
}
