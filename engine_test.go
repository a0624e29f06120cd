package schemadiff_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvardanyan/schemadiff"
)

func TestCreatePatchNoOpForEqualDocuments(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{})
	require.NoError(t, err)

	doc := map[string]any{"a": 1.0, "b": []any{1.0, 2.0}}
	patch, err := e.CreatePatch(doc, doc, nil)
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestCreatePatchRootTypeChangeIsReplace(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{})
	require.NoError(t, err)

	a := map[string]any{"x": 1.0}
	b := []any{1.0, 2.0}
	patch, err := e.CreatePatch(a, b, nil)
	require.NoError(t, err)
	require.Len(t, patch, 1)
	assert.Equal(t, schemadiff.Replace, patch[0].Op)
	assert.Equal(t, "", patch[0].Path)
}

func TestCreatePatchObjectAddRemoveReplace(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{})
	require.NoError(t, err)

	a := map[string]any{"a": 1.0, "b": 2.0}
	b := map[string]any{"a": 3.0, "c": 4.0}
	patch, err := e.CreatePatch(a, b, nil)
	require.NoError(t, err)

	out, err := schemadiff.Apply(a, patch)
	require.NoError(t, err)
	assert.Equal(t, b, out)
}

func TestCreatePatchDepthExceededDegradesToReplace(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{MaxDepth: 2})
	require.NoError(t, err)

	a := map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": 1.0}}}}
	b := map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": 2.0}}}}
	patch, err := e.CreatePatch(a, b, nil)
	require.NoError(t, err)
	require.NotEmpty(t, patch)

	out, err := schemadiff.Apply(a, patch)
	require.NoError(t, err)
	assert.Equal(t, b, out)
}

func TestCreatePatchRoundTripMatchesExactlyViaGoCmp(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{})
	require.NoError(t, err)

	a := map[string]any{
		"name":   "svc",
		"ports":  []any{80.0, 443.0},
		"labels": map[string]any{"tier": "front", "env": "prod"},
	}
	b := map[string]any{
		"name":   "svc",
		"ports":  []any{80.0, 8443.0, 443.0},
		"labels": map[string]any{"tier": "front", "env": "staging"},
	}

	patch, err := e.CreatePatch(a, b, nil)
	require.NoError(t, err)

	out, err := schemadiff.Apply(a, patch)
	require.NoError(t, err)

	// cmp.Diff pinpoints exactly which nested field diverges, which is more
	// useful here than assert.Equal's flat mismatch message given how deep
	// this document is.
	if diff := cmp.Diff(b, out); diff != "" {
		t.Fatalf("round-tripped document mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatePatchMissingKeyOnEitherSide(t *testing.T) {
	e, err := schemadiff.NewEngine(schemadiff.EngineOptions{})
	require.NoError(t, err)

	a := map[string]any{"a": 1.0}
	b := map[string]any{"b": 2.0}
	patch, err := e.CreatePatch(a, b, nil)
	require.NoError(t, err)

	out, err := schemadiff.Apply(a, patch)
	require.NoError(t, err)
	assert.Equal(t, b, out)
}
