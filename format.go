package schemadiff

import (
	"strconv"
	"strings"
)

// LineKind tags a LineRecord as unchanged context, a removal from the source
// rendering, or an addition from the destination rendering.
type LineKind int

const (
	LineUnchanged LineKind = iota
	LineRemoved
	LineAdded
)

// LineRecord is one line of a unified rendering of two pretty-printed
// documents, carrying both source/destination line numbers where relevant.
type LineRecord struct {
	Kind    LineKind
	Content string
	OldLine int // 0 means absent
	NewLine int // 0 means absent
	Key     string
}

// ChildBlock is a single original/new document pair together with the
// patches between them and their pre-rendered unified line list.
type ChildBlock struct {
	Original     any
	New          any
	Patches      Patch
	UnifiedLines []LineRecord
	Added        int
	Removed      int
}

type lineMark int

const (
	markNone lineMark = iota
	markRemoved
	markAdded
)

// formatDiffCached wraps formatDiff with the shared content-addressed LRU
// described in spec.md §4.6/§5, keyed by a fingerprint of (src, dst,
// patches, plan fingerprint).
func (e *Engine) formatDiffCached(src, dst any, patches Patch, plan *Plan) *ChildBlock {
	key := formatCacheKey(src, dst, patches, plan)
	if cb, ok := e.formatLRU.Get(key); ok {
		return cb
	}
	cb := e.formatDiff(src, dst, patches)
	e.formatLRU.Add(key, cb)
	return cb
}

func formatCacheKey(src, dst any, patches Patch, plan *Plan) string {
	var b strings.Builder
	b.WriteString(canonicalRender(src))
	b.WriteByte('|')
	b.WriteString(canonicalRender(dst))
	b.WriteByte('|')
	for _, op := range patches {
		b.WriteString(string(op.Op))
		b.WriteByte(':')
		b.WriteString(op.Path)
		b.WriteByte(':')
		b.WriteString(op.From)
		b.WriteByte(';')
	}
	b.WriteByte('|')
	b.WriteString(plan.fingerprint())
	return b.String()
}

// formatDiff implements §4.6: pretty-print both sides, mark lines touched by
// patches, then walk the two line lists with two cursors to produce a
// stable unified line sequence.
func (e *Engine) formatDiff(src, dst any, patches Patch) *ChildBlock {
	srcMap := e.buildPathMapCached(src)
	dstMap := e.buildPathMapCached(dst)

	srcMarks := make([]lineMark, len(srcMap.Lines))
	dstMarks := make([]lineMark, len(dstMap.Lines))

	for _, op := range patches {
		switch op.Op {
		case Remove, Replace:
			resolved := resolvePointer(op.Path, src, false)
			if r, ok := rangeFor(srcMap, resolved); ok {
				markRange(srcMarks, r, markRemoved)
			}
		}
		switch op.Op {
		case Add, Replace:
			resolved := resolvePointer(op.Path, dst, true)
			if r, ok := rangeFor(dstMap, resolved); ok {
				markRange(dstMarks, r, markAdded)
			}
		}
	}

	lines, added, removed := mergeLines(srcMap.Lines, srcMarks, dstMap.Lines, dstMarks)

	return &ChildBlock{
		Original:     src,
		New:          dst,
		Patches:      patches,
		UnifiedLines: lines,
		Added:        added,
		Removed:      removed,
	}
}

func markRange(marks []lineMark, r LineRange, kind lineMark) {
	for i := r.Start; i <= r.End && i <= len(marks); i++ {
		if i >= 1 {
			marks[i-1] = kind
		}
	}
}

// mergeLines walks srcLines/dstLines with two cursors, per §4.6 step 3:
// unchanged pairs emit one record with both line numbers; a run of removed
// source lines drains fully before a run of added destination lines.
func mergeLines(srcLines []string, srcMarks []lineMark, dstLines []string, dstMarks []lineMark) ([]LineRecord, int, int) {
	var out []LineRecord
	i, j := 0, 0
	added, removed := 0, 0

	for i < len(srcLines) || j < len(dstLines) {
		advanced := false

		if i < len(srcLines) && j < len(dstLines) && srcMarks[i] == markNone && dstMarks[j] == markNone {
			out = append(out, LineRecord{
				Kind:    LineUnchanged,
				Content: srcLines[i],
				OldLine: i + 1,
				NewLine: j + 1,
				Key:     "unchanged-" + strconv.Itoa(i+1) + "-" + strconv.Itoa(j+1),
			})
			i++
			j++
			advanced = true
		} else {
			for i < len(srcLines) && srcMarks[i] == markRemoved {
				out = append(out, LineRecord{
					Kind:    LineRemoved,
					Content: srcLines[i],
					OldLine: i + 1,
					Key:     "removed-" + strconv.Itoa(i+1),
				})
				removed++
				i++
				advanced = true
			}
			for j < len(dstLines) && dstMarks[j] == markAdded {
				out = append(out, LineRecord{
					Kind:    LineAdded,
					Content: dstLines[j],
					NewLine: j + 1,
					Key:     "added-" + strconv.Itoa(j+1),
				})
				added++
				j++
				advanced = true
			}
		}

		if advanced {
			continue
		}

		// Neither cursor has a matching run at its current mark state
		// (stray unchanged line with no unchanged counterpart, or vice
		// versa); force progress so the walk always terminates.
		switch {
		case i < len(srcLines):
			out = append(out, LineRecord{Kind: LineRemoved, Content: srcLines[i], OldLine: i + 1, Key: "removed-" + strconv.Itoa(i+1)})
			removed++
			i++
		case j < len(dstLines):
			out = append(out, LineRecord{Kind: LineAdded, Content: dstLines[j], NewLine: j + 1, Key: "added-" + strconv.Itoa(j+1)})
			added++
			j++
		}
	}

	return out, added, removed
}
