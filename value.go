package schemadiff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Op represents a JSON Patch operation type.
type Op string

const (
	Add     Op = "add"
	Remove  Op = "remove"
	Replace Op = "replace"
	Move    Op = "move"
	Copy    Op = "copy"
	Test    Op = "test"
)

// Operation represents a single patch operation. It extends RFC 6902 with
// OldValue, carried on Remove/Replace for downstream consumers; producers in
// this package always populate it, but appliers ignore it on input.
type Operation struct {
	Op       Op     `json:"op"`
	Path     string `json:"path"`
	From     string `json:"from,omitempty"`
	Value    any    `json:"value,omitempty"`
	OldValue any    `json:"oldValue,omitempty"`
}

// Patch represents an ordered sequence of Operations. Order matters: applying
// ops left-to-right against the source document reproduces the target.
type Patch []Operation

// Diagnostic records a non-fatal condition observed by the compiler or the
// diff engine (an unresolved $ref, a depth-exceeded subtree, ...).
type Diagnostic struct {
	Pointer string
	Reason  string
}

// Delta represents a single path change captured during Prepare.
// Move/copy expand into one or more add/remove deltas during preparation.
type Delta struct {
	Path          string `json:"path"`
	Op            Op     `json:"op"`
	Before        any    `json:"before,omitempty"`
	After         any    `json:"after,omitempty"`
	ExistedBefore bool   `json:"existed_before"`
	ExistedAfter  bool   `json:"existed_after"`
}

// Diff encapsulates ordered deltas and precompiled forward/reverse patches.
type Diff struct {
	Deltas  []Delta `json:"deltas"`
	forward Patch   `json:"-"`
	reverse Patch   `json:"-"`
}

// Apply reproduces the patch effect on document using captured deltas.
func (d Diff) Apply(document any) (any, error) {
	return ApplyInPlace(document, d.forward)
}

// Revert undoes the effect on document using captured deltas (reverse order).
func (d Diff) Revert(document any) (any, error) {
	return ApplyInPlace(document, d.reverse)
}

// deepCopyAny performs a JSON round-trip to safely copy arbitrary JSON-like values.
func deepCopyAny(value any) (any, error) {
	bytes, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(bytes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeJSONInput canonicalizes arbitrary input into encoding/json's standard
// Go representation: map[string]any, []any, float64, string, bool, nil.
func normalizeJSONInput(v any) (any, error) {
	switch tv := v.(type) {
	case []byte:
		var out any
		if err := json.Unmarshal(tv, &out); err != nil {
			return nil, fmt.Errorf("invalid JSON bytes: %w", err)
		}
		return out, nil
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(tv, &out); err != nil {
			return nil, fmt.Errorf("invalid json.RawMessage: %w", err)
		}
		return out, nil
	default:
		return deepCopyAny(tv)
	}
}

// escapeToken applies RFC 6901 escaping for '~' and '/' characters.
func escapeToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// unescapeToken reverses escapeToken.
func unescapeToken(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// joinPath concatenates RFC 6901 tokens onto a JSON Pointer path.
func joinPath(base, token string) string {
	if base == "" {
		return "/" + escapeToken(token)
	}
	return base + "/" + escapeToken(token)
}

// splitPointer splits a JSON Pointer into its (unescaped) tokens. The root
// pointer "" splits to an empty slice.
func splitPointer(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")[1:]
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unescapeToken(p)
	}
	return out
}

// joinPointer rebuilds a JSON Pointer from raw (unescaped) tokens.
func joinPointer(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(escapeToken(t))
	}
	return b.String()
}

// isArrayIndexToken reports whether a pointer token names an array index
// (all-digit, no leading zero unless the token is exactly "0").
func isArrayIndexToken(tok string) bool {
	if tok == "" {
		return false
	}
	if tok == "0" {
		return true
	}
	if tok[0] == '0' {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizePointer strips numeric array-index segments from a runtime
// pointer, producing the schema-shaped pointer used as a Plan key. Plans
// never contain indexed pointers (spec invariant); callers normalize before
// lookup.
func normalizePointer(path string) string {
	tokens := splitPointer(path)
	out := tokens[:0:0]
	for _, t := range tokens {
		if isArrayIndexToken(t) {
			continue
		}
		out = append(out, t)
	}
	return joinPointer(out)
}

// canonicalRender renders a value as JSON with object keys sorted, for use
// as a stable dedup/hash key. It never fails on well-formed JSON-like values.
func canonicalRender(v any) string {
	var b strings.Builder
	canonicalRenderTo(&b, v)
	return b.String()
}

func canonicalRenderTo(b *strings.Builder, v any) {
	switch tv := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if tv {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		bs, _ := json.Marshal(tv)
		b.Write(bs)
	case float64:
		b.WriteString(strconv.FormatFloat(tv, 'g', -1, 64))
	case []any:
		b.WriteByte('[')
		for i, e := range tv {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalRenderTo(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			canonicalRenderTo(b, tv[k])
		}
		b.WriteByte('}')
	default:
		bs, err := json.Marshal(tv)
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", tv))
			return
		}
		b.Write(bs)
	}
}

func shallowCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func shallowCloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	cp := make([]any, len(s))
	copy(cp, s)
	return cp
}
