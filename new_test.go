package schemadiff_test

import (
	json "github.com/goccy/go-json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvardanyan/schemadiff"
)

func TestNewObjectBasic(t *testing.T) {
	a := map[string]any{"a": 1.0, "b": map[string]any{"x": 10.0}}
	b := map[string]any{"a": 2.0, "b": map[string]any{"x": 10.0, "y": 20.0}}

	p, err := schemadiff.New(a, b)
	require.NoError(t, err)
	out, err := schemadiff.Apply(a, p)
	require.NoError(t, err)
	assert.True(t, deepEqualJSON(t, out, b))
}

func TestNewArrayInsertRemoveMove(t *testing.T) {
	cases := []struct {
		name string
		a, b any
	}{
		{
			name: "insert middle",
			a:    map[string]any{"arr": []any{"bar", "baz"}},
			b:    map[string]any{"arr": []any{"bar", "qux", "baz"}},
		},
		{
			name: "remove middle",
			a:    map[string]any{"arr": []any{"bar", "qux", "baz"}},
			b:    map[string]any{"arr": []any{"bar", "baz"}},
		},
		{
			name: "simple move",
			a:    map[string]any{"arr": []any{"a", "b", "c", "d"}},
			b:    map[string]any{"arr": []any{"a", "c", "b", "d"}},
		},
		{
			name: "duplicates not guaranteed move",
			a:    map[string]any{"arr": []any{"a", "b", "a"}},
			b:    map[string]any{"arr": []any{"a", "a", "b"}},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := schemadiff.New(c.a, c.b)
			require.NoError(t, err)
			out, err := schemadiff.Apply(c.a, p)
			require.NoError(t, err)
			assert.True(t, deepEqualJSON(t, out, c.b))
		})
	}
}

func TestNewMixedInputs(t *testing.T) {
	aJSON := []byte(`{"a":1,"arr":["x","y"]}`)
	bMap := map[string]any{"a": 1.0, "arr": []any{"x", "y", "z"}}

	p, err := schemadiff.New(aJSON, bMap)
	require.NoError(t, err)

	var a any
	require.NoError(t, json.Unmarshal(aJSON, &a))
	out, err := schemadiff.Apply(a, p)
	require.NoError(t, err)
	assert.True(t, deepEqualJSON(t, out, bMap))
}

func TestNewRootReplaceTypeChange(t *testing.T) {
	a := map[string]any{"x": 1.0}
	b := []any{1.0, 2.0}

	p, err := schemadiff.New(a, b)
	require.NoError(t, err)
	out, err := schemadiff.Apply(a, p)
	require.NoError(t, err)
	assert.True(t, deepEqualJSON(t, out, b))
}

func TestNewNumericNormalizationAcrossStructAndMap(t *testing.T) {
	type doc struct {
		N int `json:"n"`
	}
	a := doc{N: 1}
	b := map[string]any{"n": 1.0}

	p, err := schemadiff.New(a, b)
	require.NoError(t, err)

	var av any
	require.NoError(t, json.Unmarshal([]byte(`{"n":1}`), &av))
	out, err := schemadiff.Apply(av, p)
	require.NoError(t, err)
	assert.True(t, deepEqualJSON(t, out, b))
}

func TestNewNoOpWhenEqual(t *testing.T) {
	a := map[string]any{"a": 1.0, "b": []any{1.0, 2.0}}
	p, err := schemadiff.New(a, a)
	require.NoError(t, err)
	assert.Empty(t, p)
}
