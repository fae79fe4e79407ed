package record

import (
	"encoding/json"
	"fmt"
)

// FromStruct converts a JSON-tagged Go value into an Object.
func FromStruct(v any) (Object, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	obj, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return obj, nil
}

// ToStruct decodes obj into the JSON-tagged value pointed to by out.
func ToStruct(obj Object, out any) error {
	data, err := Marshal(obj)
	if err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode into %T: %w", out, err)
	}
	return nil
}

// JSONDecoder returns a mapper from Object to T using T's JSON tags.
func JSONDecoder[T any]() func(Object) (T, error) {
	return func(obj Object) (T, error) {
		var v T
		err := ToStruct(obj, &v)
		return v, err
	}
}

// JSONEncoder returns a mapper from T to Object using T's JSON tags.
func JSONEncoder[T any]() func(T) (Object, error) {
	return func(v T) (Object, error) {
		return FromStruct(v)
	}
}
