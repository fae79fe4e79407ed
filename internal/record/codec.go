package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces the canonical JSON body for obj.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings NFC normalized
func Marshal(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalValue is Marshal for any Value.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		return writeString(buf, string(val))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// writeString writes s NFC-normalized, escaping only quotes, backslashes and
// control characters.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// Encoder appends a newline.
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// emits back into literal characters. Escaped backslashes are skipped as a
// pair so `\\u2028` text survives.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] == 'u' && i+5 < len(data) && string(data[i+2:i+5]) == "202" {
			switch data[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// Unmarshal decodes a JSON object into an Object. Floats are rejected.
func Unmarshal(data []byte) (Object, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

// UnmarshalValue decodes any JSON value. Floats are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON (as produced by encoding/json with
// UseNumber) or plain Go scalars into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not storable: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not storable: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			rv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = rv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			rv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = rv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts v into plain Go values (string, int64, bool, nil, []any,
// map[string]any), e.g. for SQL parameters or output formatting.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON makes Object usable with encoding/json; output is canonical.
func (o Object) MarshalJSON() ([]byte, error) {
	return Marshal(o)
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (o *Object) UnmarshalJSON(data []byte) error {
	obj, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*o = obj
	return nil
}
