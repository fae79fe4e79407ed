package record

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the storable value types.
type Value interface {
	recordValue()
}

// Null is the JSON null value.
type Null struct{}

func (Null) recordValue() {}

// String is a string value.
type String string

func (String) recordValue() {}

// Int is an integer value. Always int64, never float.
type Int int64

func (Int) recordValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) recordValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) recordValue() {}

// Object maps field names to values. A stored record is an Object.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) recordValue() {}

// Get returns the value of field, if present.
func (o Object) Get(field string) (Value, bool) {
	v, ok := o[field]
	return v, ok
}

// StringField returns field as a Go string.
func (o Object) StringField(field string) (string, bool) {
	s, ok := o[field].(String)
	return string(s), ok
}

// Objects returns field as a list of objects. A missing or null field is an
// empty list. Non-object elements make it fail.
func (o Object) Objects(field string) ([]Object, error) {
	v, ok := o[field]
	if !ok {
		return nil, nil
	}
	if _, null := v.(Null); null {
		return nil, nil
	}
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("field %q: expected array, got %T", field, v)
	}
	out := make([]Object, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(Object)
		if !ok {
			return nil, fmt.Errorf("field %q[%d]: expected object, got %T", field, i, elem)
		}
		out[i] = obj
	}
	return out, nil
}

// WithObjects returns a shallow copy of o with field set to objs.
func (o Object) WithObjects(field string, objs []Object) Object {
	arr := make(Array, len(objs))
	for i, obj := range objs {
		arr[i] = obj
	}
	out := maps.Clone(o)
	if out == nil {
		out = Object{}
	}
	out[field] = arr
	return out
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	return cloneValue(o).(Object)
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string ordering compares UTF-8 bytes and differs for non-BMP runes.
func (o Object) SortedKeys() []string {
	keys := slices.Collect(maps.Keys(o))
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Equal reports whether a and b are structurally equal. A nil Value equals
// Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		return ok && slices.EqualFunc(av, bv, Equal)
	case Object:
		bv, ok := b.(Object)
		return ok && maps.EqualFunc(av, bv, Equal)
	default:
		return a == b
	}
}

// Compare orders scalar values of the same type. Mixed or non-scalar
// operands are ordered by type rank (null < bool < int < string < array <
// object) so sorting never fails.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int:
		return cmp.Compare(av, b.(Int))
	case String:
		return cmp.Compare(av, b.(String))
	default:
		return 0
	}
}

func rank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int:
		return 2
	case String:
		return 3
	case Array:
		return 4
	case Object:
		return 5
	default:
		return 6
	}
}
