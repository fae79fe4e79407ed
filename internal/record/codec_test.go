package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Canonical(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"int", Int(-42), "-42"},
		{"bool", Bool(false), "false"},
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"sorted keys", Object{"zebra": Int(1), "alpha": Int(2)}, `{"alpha":2,"zebra":1}`},
		{"nested", Object{"z": Object{"b": Int(1), "a": Int(2)}, "a": Int(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"no html escape", String("<a & b>"), `"<a & b>"`},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash text", String(`\u2028`), `"\\u2028"`},
		{"control char", String("a\nb"), `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalValue(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	obj := Object{
		"id":    String("c1"),
		"age":   Int(30),
		"admin": Bool(true),
		"note":  Null{},
		"users": Array{Object{"id": String("u1")}},
	}
	data, err := Marshal(obj)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, Equal(obj, got))
}

func TestUnmarshal_RejectsFloats(t *testing.T) {
	_, err := Unmarshal([]byte(`{"score": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")

	_, err = Unmarshal([]byte(`{"score": 1e3}`))
	assert.Error(t, err)
}

func TestUnmarshal_RequiresObject(t *testing.T) {
	_, err := Unmarshal([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{`))
	assert.Error(t, err)
}

func TestToAny(t *testing.T) {
	got := ToAny(Object{"a": Array{Int(1), String("x"), Bool(true), Null{}}})
	assert.Equal(t, map[string]any{"a": []any{int64(1), "x", true, nil}}, got)
}
