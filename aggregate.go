package schemadiff

import (
	"fmt"
	"strconv"
	"strings"

	jsonpointer "github.com/agentflare-ai/go-jsonpointer"
)

// StructuredDiff is the parent/child split of a patch around a designated
// keyed array, produced by StructuredDiff (§4.7).
type StructuredDiff struct {
	ParentDiff *ChildBlock
	ChildDiffs map[string]*ChildBlock
}

// StructuredDiff splits the patch between src and dst into a parent diff
// (everything outside targetPath) and one ChildBlock per primary-key value
// observed in the array at targetPath. If patches is nil it is computed via
// CreatePatch(src, dst, plan) first.
func (e *Engine) StructuredDiff(src, dst any, plan *Plan, targetPath string, patches Patch) (*StructuredDiff, error) {
	if _, err := jsonpointer.New(targetPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPointer, targetPath)
	}

	if patches == nil {
		computed, err := e.CreatePatch(src, dst, plan)
		if err != nil {
			return nil, err
		}
		patches = computed
	}

	ap := lookupArrayPlan(plan, targetPath)
	if ap == nil || ap.Strategy != StrategyPrimaryKey {
		strippedSrc, _ := removeAtPointer(src, targetPath)
		strippedDst, _ := removeAtPointer(dst, targetPath)
		return &StructuredDiff{
			ParentDiff: e.formatDiffCached(strippedSrc, strippedDst, patches, plan),
			ChildDiffs: map[string]*ChildBlock{},
		}, nil
	}

	srcArr, srcOK := getArrayAt(src, targetPath)
	dstArr, dstOK := getArrayAt(dst, targetPath)
	if !srcOK || !dstOK {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, targetPath)
	}

	var parentPatches Patch
	childPatchesByKey := make(map[string]Patch)

	for _, op := range patches {
		key, relPath, belongsToChild := classifyOp(op, targetPath, ap, srcArr)
		if !belongsToChild {
			parentPatches = append(parentPatches, op)
			continue
		}
		rewritten := op
		rewritten.Path = relPath
		if op.From != "" {
			rewritten.From = relPath
		}
		childPatchesByKey[key] = append(childPatchesByKey[key], rewritten)
	}

	strippedSrc, _ := removeAtPointer(src, targetPath)
	strippedDst, _ := removeAtPointer(dst, targetPath)
	parentBlock := e.formatDiffCached(strippedSrc, strippedDst, parentPatches, plan)

	childDiffs := make(map[string]*ChildBlock)

	srcByKey := make(map[string]any, len(srcArr))
	for _, el := range srcArr {
		if k, ok := extractPrimaryKey(el, ap.PrimaryKey); ok {
			srcByKey[k] = el
		}
	}
	dstByKey := make(map[string]any, len(dstArr))
	for _, el := range dstArr {
		if k, ok := extractPrimaryKey(el, ap.PrimaryKey); ok {
			dstByKey[k] = el
		}
	}

	allKeys := make(map[string]struct{}, len(srcByKey)+len(dstByKey))
	for k := range srcByKey {
		allKeys[k] = struct{}{}
	}
	for k := range dstByKey {
		allKeys[k] = struct{}{}
	}

	for k := range allKeys {
		origChild, hasOrig := srcByKey[k]
		newChild, hasNew := dstByKey[k]
		childPatches := childPatchesByKey[k]

		switch {
		case hasOrig && hasNew:
			childDiffs[k] = e.formatDiffCached(origChild, newChild, childPatches, plan)
		case hasOrig && !hasNew:
			childDiffs[k] = syntheticRemovedChild(origChild)
		case !hasOrig && hasNew:
			childDiffs[k] = syntheticAddedChild(newChild)
		}
	}

	return &StructuredDiff{ParentDiff: parentBlock, ChildDiffs: childDiffs}, nil
}

// classifyOp implements §4.7 step 2's op→child-key mapping. An op whose path
// does not fall under targetPath belongs to the parent.
func classifyOp(op Operation, targetPath string, ap *ArrayPlan, srcArr []any) (key string, relPath string, belongs bool) {
	prefix := targetPath + "/"
	if !strings.HasPrefix(op.Path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(op.Path, prefix)
	segs := strings.SplitN(rest, "/", 2)
	head := segs[0]

	if head == "-" {
		if op.Op != Add {
			return "", "", false
		}
		k, ok := extractPrimaryKey(op.Value, ap.PrimaryKey)
		if !ok {
			return "", "", false
		}
		return k, "", true
	}

	idx, err := jsonpointer.ParseArrayIndex(head)
	if err != nil {
		return "", "", false
	}

	if len(segs) == 1 {
		// Leaf op directly at target_path/i.
		if op.Op == Add {
			k, ok := extractPrimaryKey(op.Value, ap.PrimaryKey)
			if !ok {
				return "", "", false
			}
			return k, "", true
		}
		if int(idx) >= len(srcArr) {
			return "", "", false
		}
		k, ok := extractPrimaryKey(srcArr[idx], ap.PrimaryKey)
		if !ok {
			return "", "", false
		}
		return k, "", true
	}

	// Deeper op under target_path/i/...
	if int(idx) >= len(srcArr) {
		return "", "", false
	}
	k, ok := extractPrimaryKey(srcArr[idx], ap.PrimaryKey)
	if !ok {
		return "", "", false
	}
	return k, "/" + segs[1], true
}

func syntheticRemovedChild(orig any) *ChildBlock {
	pm := buildPathMap(orig)
	lines := make([]LineRecord, 0, len(pm.Lines))
	for i, content := range pm.Lines {
		lines = append(lines, LineRecord{
			Kind:    LineRemoved,
			Content: content,
			OldLine: i + 1,
			Key:     "removed-" + strconv.Itoa(i+1),
		})
	}
	return &ChildBlock{
		Original:     orig,
		New:          nil,
		UnifiedLines: lines,
		Added:        0,
		Removed:      len(lines),
	}
}

func syntheticAddedChild(newVal any) *ChildBlock {
	pm := buildPathMap(newVal)
	lines := make([]LineRecord, 0, len(pm.Lines))
	for i, content := range pm.Lines {
		lines = append(lines, LineRecord{
			Kind:    LineAdded,
			Content: content,
			NewLine: i + 1,
			Key:     "added-" + strconv.Itoa(i+1),
		})
	}
	return &ChildBlock{
		Original:     nil,
		New:          newVal,
		UnifiedLines: lines,
		Added:        len(lines),
		Removed:      0,
	}
}

// getArrayAt resolves pointer against doc and reports whether it names an
// array.
func getArrayAt(doc any, pointer string) ([]any, bool) {
	v, err := jsonpointer.Get(doc, pointer)
	if err != nil {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// removeAtPointer returns a copy of doc with the value at pointer removed
// (COW along the path), used to strip the target array before rendering the
// parent diff.
func removeAtPointer(doc any, pointer string) (any, error) {
	if pointer == "" {
		return nil, fmt.Errorf("%w: cannot strip root", ErrInvalidTarget)
	}
	return jsonpointer.Remove(doc, pointer)
}
