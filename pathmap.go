package schemadiff

import (
	"sort"
	"strconv"
	"strings"

	jsonpointer "github.com/agentflare-ai/go-jsonpointer"
	json "github.com/goccy/go-json"
)

// LineRange is a 1-based, inclusive source line range within a pretty-printed
// rendering.
type LineRange struct {
	Start int
	End   int
}

// PathMap maps every JSON Pointer that names a value in a rendered document
// to the line range it occupies. The root pointer "" always covers the
// whole document.
type PathMap struct {
	Lines       []string
	ranges      map[string]LineRange
	fingerprint string
}

// buildPathMap pretty-prints v with two-space indentation and records the
// line range of every JSON Pointer it contains, per spec.md §4.2.
func buildPathMap(v any) *PathMap {
	b := &pathMapBuilder{ranges: make(map[string]LineRange)}
	b.render(v, "", 0)
	return &PathMap{Lines: b.lines, ranges: b.ranges, fingerprint: quickHashString(v)}
}

// buildPathMapCached is buildPathMap backed by the engine's shared LRU, per
// spec.md §4.2's "PathMaps are expensive" caching note.
func (e *Engine) buildPathMapCached(v any) *PathMap {
	key := quickHashString(v)
	if pm, ok := e.pathMapLRU.Get(key); ok {
		return pm
	}
	pm := buildPathMap(v)
	e.pathMapLRU.Add(key, pm)
	return pm
}

func quickHashString(v any) string {
	return strconv.FormatUint(quickHash(v), 16)
}

type pathMapBuilder struct {
	lines  []string
	ranges map[string]LineRange
}

func (b *pathMapBuilder) emit(indent int, s string) int {
	b.lines = append(b.lines, strings.Repeat("  ", indent)+s)
	return len(b.lines) // 1-based line number of the line just written
}

// render pretty-prints v at the given indent depth under pointer, recording
// its line range, and returns the (start,end) range it occupied.
func (b *pathMapBuilder) render(v any, pointer string, indent int) LineRange {
	switch tv := v.(type) {
	case map[string]any:
		if len(tv) == 0 {
			ln := b.emit(indent, "{}")
			r := LineRange{Start: ln, End: ln}
			b.ranges[pointer] = r
			return r
		}
		start := b.emit(indent, "{")
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			childPointer := joinPath(pointer, k)
			b.renderKeyed(k, tv[k], childPointer, indent+1, i == len(keys)-1)
		}
		end := b.emit(indent, "}")
		r := LineRange{Start: start, End: end}
		b.ranges[pointer] = r
		return r

	case []any:
		if len(tv) == 0 {
			ln := b.emit(indent, "[]")
			r := LineRange{Start: ln, End: ln}
			b.ranges[pointer] = r
			return r
		}
		start := b.emit(indent, "[")
		for i, el := range tv {
			childPointer := joinPath(pointer, strconv.Itoa(i))
			b.renderElement(el, childPointer, indent+1, i == len(tv)-1)
		}
		end := b.emit(indent, "]")
		r := LineRange{Start: start, End: end}
		b.ranges[pointer] = r
		return r

	default:
		ln := b.emit(indent, scalarJSON(tv))
		r := LineRange{Start: ln, End: ln}
		b.ranges[pointer] = r
		return r
	}
}

// renderKeyed renders one "key": value line/block inside an object.
func (b *pathMapBuilder) renderKeyed(key string, v any, pointer string, indent int, last bool) {
	keyJSON, _ := json.Marshal(key)
	switch v.(type) {
	case map[string]any, []any:
		// Composite values open their bracket on the same line as the key.
		prefix := string(keyJSON) + ": "
		b.renderInline(prefix, v, pointer, indent, last)
	default:
		suffix := ""
		if !last {
			suffix = ","
		}
		ln := b.emit(indent, string(keyJSON)+": "+scalarJSON(v)+suffix)
		b.ranges[pointer] = LineRange{Start: ln, End: ln}
	}
}

// renderElement renders one array element, which may itself be a composite.
func (b *pathMapBuilder) renderElement(v any, pointer string, indent int, last bool) {
	switch v.(type) {
	case map[string]any, []any:
		b.renderInline("", v, pointer, indent, last)
	default:
		suffix := ""
		if !last {
			suffix = ","
		}
		ln := b.emit(indent, scalarJSON(v)+suffix)
		b.ranges[pointer] = LineRange{Start: ln, End: ln}
	}
}

// renderInline renders a composite value whose opening bracket shares a line
// with prefix (a rendered object key, or empty for an array element).
func (b *pathMapBuilder) renderInline(prefix string, v any, pointer string, indent int, last bool) {
	suffix := ""
	if !last {
		suffix = ","
	}
	switch tv := v.(type) {
	case map[string]any:
		if len(tv) == 0 {
			ln := b.emit(indent, prefix+"{}"+suffix)
			b.ranges[pointer] = LineRange{Start: ln, End: ln}
			return
		}
		start := b.emit(indent, prefix+"{")
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			childPointer := joinPath(pointer, k)
			b.renderKeyed(k, tv[k], childPointer, indent+1, i == len(keys)-1)
		}
		end := b.emit(indent, "}"+suffix)
		b.ranges[pointer] = LineRange{Start: start, End: end}

	case []any:
		if len(tv) == 0 {
			ln := b.emit(indent, prefix+"[]"+suffix)
			b.ranges[pointer] = LineRange{Start: ln, End: ln}
			return
		}
		start := b.emit(indent, prefix+"[")
		for i, el := range tv {
			childPointer := joinPath(pointer, strconv.Itoa(i))
			b.renderElement(el, childPointer, indent+1, i == len(tv)-1)
		}
		end := b.emit(indent, "]"+suffix)
		b.ranges[pointer] = LineRange{Start: start, End: end}
	}
}

func scalarJSON(v any) string {
	bs, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(bs)
}

// resolvePathForSide implements §4.2's append-pointer resolution. When path
// ends in "/-", it names the parent array on the source side, or the final
// (newly appended) element on the destination side.
func resolvePathForSide(path string, newLen int, forNewSide bool) string {
	if !strings.HasSuffix(path, "/-") {
		return path
	}
	parent := strings.TrimSuffix(path, "/-")
	if !forNewSide {
		return parent
	}
	return joinPath(parent, strconv.Itoa(newLen-1))
}

// resolvePointer is the doc-aware form of resolvePathForSide: it looks up
// the live length of the parent array in doc to resolve a trailing "/-" into
// a concrete appended-element pointer on the new side.
func resolvePointer(path string, doc any, forNewSide bool) string {
	if !strings.HasSuffix(path, "/-") {
		return path
	}
	parent := strings.TrimSuffix(path, "/-")
	if !forNewSide {
		return parent
	}
	val, err := jsonpointer.Get(doc, parent)
	if err != nil {
		return parent
	}
	arr, ok := val.([]any)
	if !ok {
		return parent
	}
	return resolvePathForSide(path, len(arr), true)
}

// rangeFor implements §4.2's range(PathMap, pointer) lookup: exact pointer
// first, else walk up by stripping trailing segments until an ancestor with
// a recorded range is found.
func rangeFor(pm *PathMap, pointer string) (LineRange, bool) {
	if r, ok := pm.ranges[pointer]; ok {
		return r, true
	}
	tokens := splitPointer(pointer)
	for i := len(tokens) - 1; i >= 0; i-- {
		ancestor := joinPointer(tokens[:i])
		if r, ok := pm.ranges[ancestor]; ok {
			return r, true
		}
	}
	if r, ok := pm.ranges[""]; ok {
		return r, true
	}
	return LineRange{}, false
}
