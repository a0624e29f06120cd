package schemadiff

import (
	"fmt"

	jsonpointer "github.com/agentflare-ai/go-jsonpointer"
)

// ExtractAdded splits `after` using only Add ops in `patch`.
//   - remaining: `after` with added elements/keys removed (copy-on-write)
//   - addedOnly: partial structure with only the added content
//
// Hot path: no JSON serialization; no deep copies of values; only container COW.
// C7's "fully-added child" synthesis reuses this same split, keyed by
// primary key instead of "every Add op" (see aggregate.go).
func ExtractAdded(after any, patch Patch) (remaining any, addedOnly any, err error) {
	switch root := after.(type) {
	case map[string]any:
		remaining = shallowCloneMap(root)
	case []any:
		remaining = shallowCloneSlice(root)
	default:
		remaining = after
	}

	type addOp struct {
		parent jsonpointer.Pointer
		child  string
		value  any
		order  int
	}
	groups := make(map[string][]addOp)
	parentByKey := make(map[string]jsonpointer.Pointer)
	for i, op := range patch {
		if op.Op != Add {
			continue
		}
		if op.Path == "" {
			return nil, nil, fmt.Errorf("schemadiff: root-level add is not supported by ExtractAdded")
		}
		tokens, perr := jsonpointer.New(op.Path)
		if perr != nil {
			return nil, nil, perr
		}
		if len(tokens) == 0 {
			return nil, nil, fmt.Errorf("schemadiff: invalid empty path in add")
		}
		parent := jsonpointer.Pointer(tokens[:len(tokens)-1])
		child := tokens[len(tokens)-1]
		key := parent.String()
		groups[key] = append(groups[key], addOp{
			parent: parent,
			child:  child,
			value:  op.Value,
			order:  i,
		})
		parentByKey[key] = parent
	}

	if len(groups) == 0 {
		return remaining, nil, nil
	}

	type parentEntry struct {
		key    string
		tokens jsonpointer.Pointer
	}
	orderParents := make([]parentEntry, 0, len(groups))
	for k, p := range parentByKey {
		orderParents = append(orderParents, parentEntry{key: k, tokens: p})
	}
	for i := 0; i < len(orderParents)-1; i++ {
		for j := i + 1; j < len(orderParents); j++ {
			if len(orderParents[i].tokens) > len(orderParents[j].tokens) {
				orderParents[i], orderParents[j] = orderParents[j], orderParents[i]
			}
		}
	}

	for _, pe := range orderParents {
		parentTokens := pe.tokens
		ops := groups[pe.key]

		parentAfter, gerr := parentTokens.Get(after)
		if gerr != nil {
			return nil, nil, fmt.Errorf("schemadiff: parent '%s' not found in after: %w", parentTokens.String(), gerr)
		}

		switch pa := parentAfter.(type) {
		case map[string]any:
			final := make(map[string]any, len(ops))
			for _, op := range ops {
				if _, numErr := jsonpointer.ParseArrayIndex(op.child); numErr == nil || op.child == "-" {
					return nil, nil, fmt.Errorf("schemadiff: object parent '%s' received array-style add at child '%s'", parentTokens.String(), op.child)
				}
				final[op.child] = op.value
			}

			parentRem, gerr := parentTokens.Get(remaining)
			if gerr != nil {
				return nil, nil, fmt.Errorf("schemadiff: parent '%s' not found in remaining: %w", parentTokens.String(), gerr)
			}
			pm, ok := parentRem.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("schemadiff: parent '%s' expected object in remaining", parentTokens.String())
			}
			newMap := shallowCloneMap(pm)
			for k := range final {
				delete(newMap, k)
			}
			remaining, err = cowSetAtPath(remaining, parentTokens, newMap)
			if err != nil {
				return nil, nil, err
			}

			addedOnly, err = ensureAddedOnlyParent(addedOnly, parentTokens, false)
			if err != nil {
				return nil, nil, err
			}
			aoPar, gerr := parentTokens.Get(addedOnly)
			if gerr != nil {
				return nil, nil, fmt.Errorf("schemadiff: failed to get addedOnly parent '%s': %w", parentTokens.String(), gerr)
			}
			aoMap, ok := aoPar.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("schemadiff: addedOnly parent '%s' is not object", parentTokens.String())
			}
			for k := range final {
				v, ok := pa[k]
				if !ok {
					aoMap[k] = nil
					continue
				}
				aoMap[k] = v
			}

		case []any:
			lAfter := len(pa)
			numAdds := len(ops)
			baseLen := lAfter - numAdds
			if baseLen < 0 {
				return nil, nil, fmt.Errorf("schemadiff: invalid baseLen for parent '%s'", parentTokens.String())
			}

			type idxVal struct {
				idx   int
				value any
				order int
			}
			tmp := make([]idxVal, 0, len(ops))
			appendCount := 0
			for _, op := range ops {
				if op.child == "-" {
					idx := baseLen + appendCount
					appendCount++
					tmp = append(tmp, idxVal{idx: idx, value: op.value, order: op.order})
					continue
				}
				uidx, ierr := jsonpointer.ParseArrayIndex(op.child)
				if ierr != nil {
					return nil, nil, fmt.Errorf("schemadiff: array parent '%s' child '%s' is not numeric nor '-': %v", parentTokens.String(), op.child, ierr)
				}
				if int(uidx) >= baseLen {
					return nil, nil, fmt.Errorf("schemadiff: array parent '%s' child index %d >= baseLen %d", parentTokens.String(), uidx, baseLen)
				}
				tmp = append(tmp, idxVal{idx: int(uidx), value: op.value, order: op.order})
			}
			final := make(map[int]idxVal, len(tmp))
			for _, it := range tmp {
				final[it.idx] = it
			}
			if len(final) > 0 {
				maxIdx := -1
				for idx := range final {
					if idx > maxIdx {
						maxIdx = idx
					}
				}
				if maxIdx >= baseLen+appendCount {
					return nil, nil, fmt.Errorf("schemadiff: resolved index %d outside reconstructed range (0..%d) for parent '%s'", maxIdx, baseLen+appendCount-1, parentTokens.String())
				}
			}

			parentRem, gerr := parentTokens.Get(remaining)
			if gerr != nil {
				return nil, nil, fmt.Errorf("schemadiff: parent '%s' not found in remaining: %w", parentTokens.String(), gerr)
			}
			ps, ok := parentRem.([]any)
			if !ok {
				return nil, nil, fmt.Errorf("schemadiff: parent '%s' expected array in remaining", parentTokens.String())
			}
			removeSet := make(map[int]struct{}, len(final))
			for idx := range final {
				removeSet[idx] = struct{}{}
			}
			filtered := make([]any, 0, len(ps)-len(removeSet))
			for i := 0; i < len(ps); i++ {
				if _, drop := removeSet[i]; drop {
					continue
				}
				filtered = append(filtered, ps[i])
			}
			remaining, err = cowSetAtPath(remaining, parentTokens, filtered)
			if err != nil {
				return nil, nil, err
			}

			addedOnly, err = ensureAddedOnlyParent(addedOnly, parentTokens, true)
			if err != nil {
				return nil, nil, err
			}
			idxs := make([]int, 0, len(final))
			for idx := range final {
				idxs = append(idxs, idx)
			}
			for i := 0; i < len(idxs)-1; i++ {
				for j := i + 1; j < len(idxs); j++ {
					if idxs[i] > idxs[j] {
						idxs[i], idxs[j] = idxs[j], idxs[i]
					}
				}
			}
			values := make([]any, 0, len(idxs))
			for _, idx := range idxs {
				if idx < 0 || idx >= len(pa) {
					return nil, nil, fmt.Errorf("schemadiff: after array index %d out of bounds for parent '%s'", idx, parentTokens.String())
				}
				values = append(values, pa[idx])
			}
			addedOnly, err = cowSetAtPath(addedOnly, parentTokens, values)
			if err != nil {
				return nil, nil, err
			}

		default:
			return nil, nil, fmt.Errorf("schemadiff: parent '%s' must be object or array", parentTokens.String())
		}
	}

	return remaining, addedOnly, nil
}

// cowSetAtPath performs copy-on-write assignment of a value at the given tokenized path.
// It shallow-clones containers along the path to avoid mutating shared structures.
func cowSetAtPath(root any, tokens jsonpointer.Pointer, newVal any) (any, error) {
	if len(tokens) == 0 {
		return newVal, nil
	}

	type frame struct {
		container any
		isMap     bool
		key       string
		isSlice   bool
		index     int
	}
	var stack []frame
	current := root
	for i, tok := range tokens {
		switch c := current.(type) {
		case map[string]any:
			child, ok := c[tok]
			if !ok {
				return nil, fmt.Errorf("schemadiff: cowSetAtPath missing key '%s' at segment %d", tok, i)
			}
			stack = append(stack, frame{container: c, isMap: true, key: tok})
			current = child
		case []any:
			if tok == "-" {
				return nil, fmt.Errorf("schemadiff: cowSetAtPath does not accept '-' in path")
			}
			uidx, err := jsonpointer.ParseArrayIndex(tok)
			if err != nil {
				return nil, fmt.Errorf("schemadiff: cowSetAtPath invalid array index '%s' at segment %d: %v", tok, i, err)
			}
			if int(uidx) >= len(c) {
				return nil, fmt.Errorf("schemadiff: cowSetAtPath index %d out of bounds at segment %d", uidx, i)
			}
			stack = append(stack, frame{container: c, isSlice: true, index: int(uidx)})
			current = c[uidx]
		default:
			return nil, fmt.Errorf("schemadiff: cowSetAtPath encountered non-container at segment %d", i)
		}
	}

	updated := newVal
	for i := len(stack) - 1; i >= 0; i-- {
		fr := stack[i]
		if fr.isMap {
			orig := fr.container.(map[string]any)
			cp := shallowCloneMap(orig)
			cp[fr.key] = updated
			updated = cp
			continue
		}
		if fr.isSlice {
			orig := fr.container.([]any)
			cp := shallowCloneSlice(orig)
			cp[fr.index] = updated
			updated = cp
			continue
		}
		return nil, fmt.Errorf("schemadiff: cowSetAtPath invalid frame")
	}
	return updated, nil
}

// ensureAddedOnlyParent creates missing intermediate containers along tokens in the addedOnly tree.
// It only supports object (map) intermediates. The final container is created as a map or slice depending on wantArray.
func ensureAddedOnlyParent(root any, tokens jsonpointer.Pointer, wantArray bool) (any, error) {
	if len(tokens) == 0 {
		if wantArray {
			return []any{}, nil
		}
		return map[string]any{}, nil
	}
	var out any = root
	if out == nil {
		out = map[string]any{}
	}
	current := out
	for i, tok := range tokens {
		last := i == len(tokens)-1
		switch c := current.(type) {
		case map[string]any:
			child, ok := c[tok]
			if !ok {
				var created any
				if last {
					if wantArray {
						created = []any{}
					} else {
						created = map[string]any{}
					}
				} else {
					created = map[string]any{}
				}
				cp := shallowCloneMap(c)
				cp[tok] = created
				current = created
				head := jsonpointer.Pointer(tokens[:i])
				var err error
				out, err = cowSetAtPath(out, head, cp)
				if err != nil {
					return nil, err
				}
				continue
			}
			if last {
				switch child.(type) {
				case []any:
					if wantArray {
						current = child
						continue
					}
				case map[string]any:
					if !wantArray {
						current = child
						continue
					}
				}
				var desired any
				if wantArray {
					desired = []any{}
				} else {
					desired = map[string]any{}
				}
				cp := shallowCloneMap(c)
				cp[tok] = desired
				head := jsonpointer.Pointer(tokens[:i])
				var err error
				out, err = cowSetAtPath(out, head, cp)
				if err != nil {
					return nil, err
				}
				current = desired
				continue
			}
			current = child
		case []any:
			return nil, fmt.Errorf("schemadiff: ensureAddedOnlyParent does not support array indices in intermediate path at segment %d", i)
		default:
			return nil, fmt.Errorf("schemadiff: ensureAddedOnlyParent encountered non-container at segment %d", i)
		}
	}
	return out, nil
}
