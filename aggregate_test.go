package schemadiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvardanyan/schemadiff"
)

func primaryKeyPlan(t *testing.T, pointer, key string) *schemadiff.Plan {
	t.Helper()
	schema := mustSchema(t, `{
		"type": "object",
		"properties": {
			"servers": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["`+key+`"],
					"properties": {
						"`+key+`": {"type": "string"},
						"port": {"type": "integer"}
					}
				}
			}
		}
	}`)
	plan, err := schemadiff.CompilePlan(schema, schemadiff.CompileOptions{})
	require.NoError(t, err)
	return plan
}

func TestStructuredDiffSplitsParentAndChildren(t *testing.T) {
	plan := primaryKeyPlan(t, "/servers", "id")

	src := map[string]any{
		"name": "cluster-a",
		"servers": []any{
			map[string]any{"id": "s1", "port": float64(80)},
			map[string]any{"id": "s2", "port": float64(443)},
		},
	}
	dst := map[string]any{
		"name": "cluster-b",
		"servers": []any{
			map[string]any{"id": "s1", "port": float64(8080)},
			map[string]any{"id": "s3", "port": float64(9090)},
		},
	}

	sd, err := schemadiff.StructuredDiff(src, dst, plan, "/servers", nil)
	require.NoError(t, err)
	require.NotNil(t, sd)
	require.NotNil(t, sd.ParentDiff)

	assert.Contains(t, sd.ChildDiffs, "s1")
	assert.Contains(t, sd.ChildDiffs, "s2")
	assert.Contains(t, sd.ChildDiffs, "s3")

	removed := sd.ChildDiffs["s2"]
	assert.Nil(t, removed.New)
	assert.Equal(t, len(removed.UnifiedLines), removed.Removed)

	added := sd.ChildDiffs["s3"]
	assert.Nil(t, added.Original)
	assert.Equal(t, len(added.UnifiedLines), added.Added)
}

func TestStructuredDiffRejectsInvalidPointer(t *testing.T) {
	plan := primaryKeyPlan(t, "/servers", "id")
	src := map[string]any{"servers": []any{}}
	dst := map[string]any{"servers": []any{}}

	_, err := schemadiff.StructuredDiff(src, dst, plan, "not-a-pointer", nil)
	assert.Error(t, err)
}

func TestStructuredDiffWithoutPrimaryKeyPlanStripsArrayFromParent(t *testing.T) {
	src := map[string]any{"tags": []any{"a", "b"}, "name": "x"}
	dst := map[string]any{"tags": []any{"a", "c"}, "name": "y"}

	sd, err := schemadiff.StructuredDiff(src, dst, nil, "/tags", nil)
	require.NoError(t, err)
	require.NotNil(t, sd.ParentDiff)
	assert.Empty(t, sd.ChildDiffs)
}

func TestStructuredDiffComputesPatchWhenNilGiven(t *testing.T) {
	plan := primaryKeyPlan(t, "/servers", "id")
	src := map[string]any{"servers": []any{map[string]any{"id": "s1", "port": float64(1)}}}
	dst := map[string]any{"servers": []any{map[string]any{"id": "s1", "port": float64(2)}}}

	sd, err := schemadiff.StructuredDiff(src, dst, plan, "/servers", nil)
	require.NoError(t, err)
	assert.Contains(t, sd.ChildDiffs, "s1")
}
