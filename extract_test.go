package schemadiff_test

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvardanyan/schemadiff"
)

func mustUnmarshalValue(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestExtractAddedArrayAppendDash(t *testing.T) {
	after := mustUnmarshalValue(t, `["a","b","c"]`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "/-", Value: "c"},
	}
	rem, add, err := schemadiff.ExtractAdded(after, patch)
	require.NoError(t, err)

	assert.True(t, deepEqualJSON(t, rem, mustUnmarshalValue(t, `["a","b"]`)))
	assert.True(t, deepEqualJSON(t, add, mustUnmarshalValue(t, `["c"]`)))
	assert.True(t, deepEqualJSON(t, after, mustUnmarshalValue(t, `["a","b","c"]`)))
}

func TestExtractAddedArrayNumericInsideBase(t *testing.T) {
	after := mustUnmarshalValue(t, `["a","x","b"]`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "/1", Value: "x"},
	}
	rem, add, err := schemadiff.ExtractAdded(after, patch)
	require.NoError(t, err)

	assert.True(t, deepEqualJSON(t, rem, mustUnmarshalValue(t, `["a","b"]`)))
	assert.True(t, deepEqualJSON(t, add, mustUnmarshalValue(t, `["x"]`)))
}

func TestExtractAddedObjectNested(t *testing.T) {
	after := mustUnmarshalValue(t, `{"a":{"b":{"c":1}}}`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "/a/b/c", Value: 1},
	}
	rem, add, err := schemadiff.ExtractAdded(after, patch)
	require.NoError(t, err)

	assert.True(t, deepEqualJSON(t, rem, mustUnmarshalValue(t, `{"a":{"b":{}}}`)))
	assert.True(t, deepEqualJSON(t, add, mustUnmarshalValue(t, `{"a":{"b":{"c":1}}}`)))
}

func TestExtractAddedObjectRepeatedKeyLastWins(t *testing.T) {
	after := mustUnmarshalValue(t, `{"x":2}`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "/x", Value: 1},
		{Op: schemadiff.Add, Path: "/x", Value: 2},
	}
	rem, add, err := schemadiff.ExtractAdded(after, patch)
	require.NoError(t, err)

	assert.True(t, deepEqualJSON(t, rem, mustUnmarshalValue(t, `{}`)))
	assert.True(t, deepEqualJSON(t, add, mustUnmarshalValue(t, `{"x":2}`)))
}

func TestExtractAddedErrRootAdd(t *testing.T) {
	after := mustUnmarshalValue(t, `{"a":1}`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "", Value: map[string]any{"b": 2}},
	}
	_, _, err := schemadiff.ExtractAdded(after, patch)
	assert.Error(t, err)
}

func TestExtractAddedErrMissingParent(t *testing.T) {
	after := mustUnmarshalValue(t, `{"z":1}`)
	patch := schemadiff.Patch{
		{Op: schemadiff.Add, Path: "/a/b", Value: 1},
	}
	_, _, err := schemadiff.ExtractAdded(after, patch)
	assert.Error(t, err)
}
