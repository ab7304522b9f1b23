package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"null", nil, "null"},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"integral float", float64(3), "3"},
		{"fraction", 0.75, "0.75"},
		{"large float", 1e21, "1e+21"},
		{"tiny float", 1e-7, "1e-7"},
		{"json number", json.Number("12.50"), "12.5"},
		{"bool true", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"payload", Payload{"a": 1}, `{"a":1}`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"control escaped", "a\nb\u0001", `"a\nb\u0001"`},
		{"line separator literal", "x\u2028y", "\"x\u2028y\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": true, "x": false},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":false,"y":true},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D..., which sort before U+FFFD in UTF-16
	// but after it in UTF-8.
	obj := map[string]any{"\uFFFD": 1, "\U0001F600": 2}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFFFD\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(math.Inf(1))
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": math.NaN()})
	assert.Error(t, err)
}

func TestMarshalCanonicalStruct(t *testing.T) {
	type point struct {
		Y int `json:"y"`
		X int `json:"x"`
	}
	result, err := MarshalCanonical(point{Y: 2, X: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"x":1,"y":2}`, string(result))
}
