package schemadiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvardanyan/schemadiff"
)

func TestCreatePatchPackageLevelWrapper(t *testing.T) {
	a := map[string]any{"x": 1.0}
	b := map[string]any{"x": 2.0}
	patch, err := schemadiff.CreatePatch(a, b, nil)
	require.NoError(t, err)
	require.Len(t, patch, 1)
	assert.Equal(t, schemadiff.Replace, patch[0].Op)
}

func TestStructuredDiffPackageLevelWrapper(t *testing.T) {
	src := map[string]any{"tags": []any{"a"}}
	dst := map[string]any{"tags": []any{"a", "b"}}
	sd, err := schemadiff.StructuredDiff(src, dst, nil, "/tags", nil)
	require.NoError(t, err)
	require.NotNil(t, sd.ParentDiff)
}

func TestCompilePlanPackageLevelEntrypoint(t *testing.T) {
	schema := mustSchema(t, `{"type":"object","properties":{"n":{"type":"integer"}}}`)
	plan, err := schemadiff.CompilePlan(schema, schemadiff.CompileOptions{})
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestPackageLevelWrappersShareOneDefaultEngine(t *testing.T) {
	// Concurrent calls through the package-level facade must not race or
	// panic; they share a single lazily constructed Engine.
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			_, err := schemadiff.CreatePatch(map[string]any{"n": float64(n)}, map[string]any{"n": float64(n + 1)}, nil)
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}
