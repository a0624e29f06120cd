package schemadiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPathMapRootCoversWholeDocument(t *testing.T) {
	doc := map[string]any{"a": 1.0, "b": []any{1.0, 2.0}}
	pm := buildPathMap(doc)
	r, ok := pm.ranges[""]
	require.True(t, ok)
	assert.Equal(t, 1, r.Start)
	assert.Equal(t, len(pm.Lines), r.End)
}

func TestBuildPathMapRecordsNestedPointers(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": "c"}}
	pm := buildPathMap(doc)
	r, ok := pm.ranges["/a/b"]
	require.True(t, ok)
	assert.Contains(t, pm.Lines[r.Start-1], `"b": "c"`)
}

func TestBuildPathMapArrayElementRanges(t *testing.T) {
	doc := map[string]any{"arr": []any{1.0, 2.0, 3.0}}
	pm := buildPathMap(doc)
	r0, ok0 := pm.ranges["/arr/0"]
	r2, ok2 := pm.ranges["/arr/2"]
	require.True(t, ok0)
	require.True(t, ok2)
	assert.NotEqual(t, r0.Start, r2.Start)
}

func TestBuildPathMapEmptyContainers(t *testing.T) {
	doc := map[string]any{"obj": map[string]any{}, "arr": []any{}}
	pm := buildPathMap(doc)
	objR, ok := pm.ranges["/obj"]
	require.True(t, ok)
	assert.Equal(t, "{}", trimIndent(pm.Lines[objR.Start-1]))
	arrR, ok := pm.ranges["/arr"]
	require.True(t, ok)
	assert.Equal(t, "[]", trimIndent(pm.Lines[arrR.Start-1]))
}

func trimIndent(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

func TestResolvePathForSideDashOnOldSideReturnsParent(t *testing.T) {
	assert.Equal(t, "/arr", resolvePathForSide("/arr/-", 3, false))
}

func TestResolvePathForSideDashOnNewSideReturnsAppendedIndex(t *testing.T) {
	assert.Equal(t, "/arr/2", resolvePathForSide("/arr/-", 3, true))
}

func TestResolvePathForSideNonDashPassthrough(t *testing.T) {
	assert.Equal(t, "/arr/1", resolvePathForSide("/arr/1", 3, true))
}

func TestResolvePointerUsesLiveArrayLength(t *testing.T) {
	doc := map[string]any{"arr": []any{1.0, 2.0, 3.0, 4.0}}
	assert.Equal(t, "/arr/3", resolvePointer("/arr/-", doc, true))
}

func TestRangeForFallsBackToAncestor(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": "c"}}
	pm := buildPathMap(doc)
	r, ok := rangeFor(pm, "/a/b/nonexistent")
	require.True(t, ok)
	expected := pm.ranges["/a/b"]
	assert.Equal(t, expected, r)
}

func TestRangeForFallsBackToRootWhenNoAncestorMatches(t *testing.T) {
	doc := map[string]any{"a": 1.0}
	pm := buildPathMap(doc)
	r, ok := rangeFor(pm, "/z/y")
	require.True(t, ok)
	assert.Equal(t, pm.ranges[""], r)
}
