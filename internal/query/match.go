package query

import (
	"strings"

	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// Match evaluates p against obj in memory. A nil predicate matches.
// Semantics mirror the SQL backend: a missing field behaves as null, and
// comparisons against null never match.
func Match(p Predicate, obj record.Object) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		got := Lookup(obj, pred.Field)
		if isNull(pred.Value) {
			return isNull(got)
		}
		return !isNull(got) && record.Equal(got, pred.Value)
	case Compare:
		got := Lookup(obj, pred.Field)
		if isNull(got) || isNull(pred.Value) || !sameType(got, pred.Value) {
			return false
		}
		c := record.Compare(got, pred.Value)
		switch pred.Op {
		case OpNotEqual:
			return c != 0
		case OpLess:
			return c < 0
		case OpLessEqual:
			return c <= 0
		case OpGreater:
			return c > 0
		case OpGreaterEqual:
			return c >= 0
		}
		return false
	case In:
		got := Lookup(obj, pred.Field)
		if isNull(got) {
			return false
		}
		for _, v := range pred.Values {
			if record.Equal(got, v) {
				return true
			}
		}
		return false
	case And:
		for _, sub := range pred.Predicates {
			if !Match(sub, obj) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range pred.Predicates {
			if Match(sub, obj) {
				return true
			}
		}
		return false
	case Not:
		return !Match(pred.Predicate, obj)
	default:
		return false
	}
}

// Lookup resolves a dotted field path in obj. Missing fields yield nil.
func Lookup(obj record.Object, field string) record.Value {
	var cur record.Value = obj
	for _, part := range strings.Split(field, ".") {
		o, ok := cur.(record.Object)
		if !ok {
			return nil
		}
		cur, ok = o[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func isNull(v record.Value) bool {
	switch v.(type) {
	case nil, record.Null:
		return true
	}
	return false
}

func sameType(a, b record.Value) bool {
	switch a.(type) {
	case record.String:
		_, ok := b.(record.String)
		return ok
	case record.Int:
		_, ok := b.(record.Int)
		return ok
	case record.Bool:
		_, ok := b.(record.Bool)
		return ok
	}
	return false
}
