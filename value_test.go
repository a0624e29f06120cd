package schemadiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeUnescapeTokenRoundTrip(t *testing.T) {
	cases := []string{"plain", "with/slash", "with~tilde", "both~/combo"}
	for _, c := range cases {
		assert.Equal(t, c, unescapeToken(escapeToken(c)))
	}
}

func TestJoinPathAndSplitPointerRoundTrip(t *testing.T) {
	p := joinPath(joinPath("", "a"), "b/c")
	assert.Equal(t, "/a/b~1c", p)
	assert.Equal(t, []string{"a", "b/c"}, splitPointer(p))
}

func TestSplitPointerRoot(t *testing.T) {
	assert.Nil(t, splitPointer(""))
}

func TestNormalizePointerStripsArrayIndices(t *testing.T) {
	assert.Equal(t, "/servers/port", normalizePointer("/servers/0/port"))
	assert.Equal(t, "/servers/port", normalizePointer("/servers/12/port"))
}

func TestIsArrayIndexTokenRejectsLeadingZero(t *testing.T) {
	assert.True(t, isArrayIndexToken("0"))
	assert.True(t, isArrayIndexToken("12"))
	assert.False(t, isArrayIndexToken("01"))
	assert.False(t, isArrayIndexToken("a1"))
	assert.False(t, isArrayIndexToken(""))
}

func TestCanonicalRenderSortsObjectKeys(t *testing.T) {
	a := map[string]any{"b": 1.0, "a": 2.0}
	b := map[string]any{"a": 2.0, "b": 1.0}
	assert.Equal(t, canonicalRender(a), canonicalRender(b))
}

func TestDeepCopyAnyIsIndependent(t *testing.T) {
	orig := map[string]any{"x": []any{1.0, 2.0}}
	cp, err := deepCopyAny(orig)
	assert.NoError(t, err)
	cpMap := cp.(map[string]any)
	cpMap["x"].([]any)[0] = 99.0
	assert.Equal(t, 1.0, orig["x"].([]any)[0])
}

func TestShallowCloneMapAndSlice(t *testing.T) {
	m := map[string]any{"a": 1}
	cm := shallowCloneMap(m)
	cm["a"] = 2
	assert.Equal(t, 1, m["a"])

	s := []any{1, 2, 3}
	cs := shallowCloneSlice(s)
	cs[0] = 99
	assert.Equal(t, 1, s[0])
}
