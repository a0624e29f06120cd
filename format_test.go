package schemadiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDiffMarksReplacedLinesBothSides(t *testing.T) {
	e, err := NewEngine(EngineOptions{})
	require.NoError(t, err)

	src := map[string]any{"a": "old", "b": "unchanged"}
	dst := map[string]any{"a": "new", "b": "unchanged"}
	patch, err := e.CreatePatch(src, dst, nil)
	require.NoError(t, err)

	block := e.formatDiff(src, dst, patch)
	require.NotNil(t, block)

	var sawRemoved, sawAdded, sawUnchanged bool
	for _, l := range block.UnifiedLines {
		switch l.Kind {
		case LineRemoved:
			sawRemoved = true
		case LineAdded:
			sawAdded = true
		case LineUnchanged:
			sawUnchanged = true
		}
	}
	assert.True(t, sawRemoved)
	assert.True(t, sawAdded)
	assert.True(t, sawUnchanged)
	assert.Equal(t, 1, block.Added)
	assert.Equal(t, 1, block.Removed)
}

func TestFormatDiffCachedReturnsSameBlockForSameInputs(t *testing.T) {
	e, err := NewEngine(EngineOptions{})
	require.NoError(t, err)

	src := map[string]any{"a": 1.0}
	dst := map[string]any{"a": 2.0}
	patch, err := e.CreatePatch(src, dst, nil)
	require.NoError(t, err)

	b1 := e.formatDiffCached(src, dst, patch, nil)
	b2 := e.formatDiffCached(src, dst, patch, nil)
	assert.Same(t, b1, b2)
}

func TestMergeLinesTerminatesOnUnbalancedMarks(t *testing.T) {
	srcLines := []string{"x", "y"}
	srcMarks := []lineMark{markNone, markNone}
	dstLines := []string{"x"}
	dstMarks := []lineMark{markNone}

	records, added, removed := mergeLines(srcLines, srcMarks, dstLines, dstMarks)
	assert.NotEmpty(t, records)
	assert.GreaterOrEqual(t, removed, 0)
	assert.GreaterOrEqual(t, added, 0)
}

func TestMergeLinesAllUnchangedWhenIdentical(t *testing.T) {
	lines := []string{"a", "b", "c"}
	marks := []lineMark{markNone, markNone, markNone}
	records, added, removed := mergeLines(lines, marks, lines, marks)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, removed)
	for _, r := range records {
		assert.Equal(t, LineUnchanged, r.Kind)
	}
}

func TestMarkRangeAppliesToInclusiveBounds(t *testing.T) {
	marks := make([]lineMark, 5)
	markRange(marks, LineRange{Start: 2, End: 4}, markRemoved)
	assert.Equal(t, []lineMark{markNone, markRemoved, markRemoved, markRemoved, markNone}, marks)
}
