package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// fieldPattern allows dotted paths of identifiers, e.g. "address.city".
// Backends embed field paths into SQL, so nothing else is accepted.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidationError lists every problem found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// ValidField reports whether name is an acceptable field path.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks q for problems backends cannot handle. It returns nil or
// a *ValidationError.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	if q.Kind == "" {
		v.add("empty kind")
	}
	if q.Where != nil {
		v.predicate(q.Where)
	}
	for _, o := range q.Order {
		v.field("order", o.Field)
	}
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) field(ctx, name string) {
	if !ValidField(name) {
		v.add("%s: invalid field %q", ctx, name)
	}
}

func (v *validator) scalar(ctx string, val record.Value, allowNull bool) {
	switch val.(type) {
	case record.String, record.Int, record.Bool:
	case record.Null, nil:
		if !allowNull {
			v.add("%s: null not allowed", ctx)
		}
	default:
		v.add("%s: %T is not a scalar", ctx, val)
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.add("nil predicate")
	case Equals:
		v.field("equals", pred.Field)
		v.scalar("equals "+pred.Field, pred.Value, true)
	case Compare:
		v.field("compare", pred.Field)
		switch pred.Op {
		case OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			v.add("compare %s: unknown operator %q", pred.Field, pred.Op)
		}
		v.scalar("compare "+pred.Field, pred.Value, false)
	case In:
		v.field("in", pred.Field)
		for i, val := range pred.Values {
			v.scalar(fmt.Sprintf("in %s[%d]", pred.Field, i), val, false)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case Not:
		v.predicate(pred.Predicate)
	default:
		v.add("unknown predicate type %T", p)
	}
}
