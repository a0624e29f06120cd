package schemadiff

import (
	"hash/fnv"
	"math"
	"sort"
	"strconv"
)

// equalityMemo caches pairwise comparisons for one diff call, keyed by the
// FNV-1a digests of each side's canonical rendering. It is not safe to share
// across calls: Engine allocates a fresh memo per CreatePatch/diff, so a hash
// collision between unrelated calls can never leak a stale verdict forward.
type equalityMemo struct {
	cache map[[2]uint64]bool
}

func newEqualityMemo() *equalityMemo {
	return &equalityMemo{cache: make(map[[2]uint64]bool)}
}

// deepEqual reports whether a and b are structurally equivalent JSON values.
// NaN equals NaN and +0 equals -0, matching the document-level equivalence
// spec.md requires rather than Go's native float semantics.
func deepEqual(a, b any) bool {
	return deepEqualMemo(a, b, nil)
}

func deepEqualMemo(a, b any, memo *equalityMemo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv

	case string:
		bv, ok := b.(string)
		return ok && av == bv

	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(av) && math.IsNaN(bv) {
			return true
		}
		return av == bv

	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		if memo != nil && len(av) > 0 {
			ha, hb := quickHash(av), quickHash(bv)
			key := memoKey(ha, hb)
			if cached, found := memo.cache[key]; found {
				return cached
			}
			result := sliceElementsEqual(av, bv, memo, ha, hb)
			memo.cache[key] = result
			return result
		}
		return sliceElementsEqual(av, bv, memo, 0, 0)

	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		if memo != nil && len(av) > 0 {
			ha, hb := quickHash(av), quickHash(bv)
			key := memoKey(ha, hb)
			if cached, found := memo.cache[key]; found {
				return cached
			}
			result := mapEntriesEqual(av, bv, memo, ha, hb)
			memo.cache[key] = result
			return result
		}
		return mapEntriesEqual(av, bv, memo, 0, 0)

	default:
		return false
	}
}

func sliceElementsEqual(a, b []any, memo *equalityMemo, ha, hb uint64) bool {
	if ha == 0 && hb == 0 {
		ha, hb = quickHash(a), quickHash(b)
	}
	if ha != hb {
		return false
	}
	for i := range a {
		if !deepEqualMemo(a[i], b[i], memo) {
			return false
		}
	}
	return true
}

func mapEntriesEqual(a, b map[string]any, memo *equalityMemo, ha, hb uint64) bool {
	if ha == 0 && hb == 0 {
		ha, hb = quickHash(a), quickHash(b)
	}
	if ha != hb {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !deepEqualMemo(av, bv, memo) {
			return false
		}
	}
	return true
}

// planAwareEqual compares two values under a Plan: array subtrees compare via
// the array's configured strategy (keyed comparison for PrimaryKey arrays,
// positional comparison for every other strategy), everything else falls
// back to deepEqual.
func planAwareEqual(a, b any, plan *Plan, pointer string, memo *equalityMemo) bool {
	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		ap := lookupArrayPlan(plan, pointer)
		if ap != nil && ap.Strategy == StrategyPrimaryKey {
			return primaryKeyArraysEqual(aArr, bArr, ap, plan, pointer, memo)
		}
		if len(aArr) != len(bArr) {
			return false
		}
		for i := range aArr {
			if !planAwareEqual(aArr[i], bArr[i], plan, joinPath(pointer, strconv.Itoa(i)), memo) {
				return false
			}
		}
		return true
	}
	if aIsArr != bIsArr {
		return false
	}

	aMap, aIsMap := a.(map[string]any)
	bMap, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		if len(aMap) != len(bMap) {
			return false
		}
		for k, av := range aMap {
			bv, ok := bMap[k]
			if !ok {
				return false
			}
			if !planAwareEqual(av, bv, plan, joinPath(pointer, k), memo) {
				return false
			}
		}
		return true
	}
	if aIsMap != bIsMap {
		return false
	}

	return deepEqualMemo(a, b, memo)
}

func primaryKeyArraysEqual(a, b []any, ap *ArrayPlan, plan *Plan, pointer string, memo *equalityMemo) bool {
	if len(a) != len(b) {
		return false
	}
	aByKey := make(map[string]any, len(a))
	for _, el := range a {
		k, ok := extractPrimaryKey(el, ap.PrimaryKey)
		if !ok {
			return deepEqualMemo(a, b, memo)
		}
		aByKey[k] = el
	}
	for _, el := range b {
		k, ok := extractPrimaryKey(el, ap.PrimaryKey)
		if !ok {
			return deepEqualMemo(a, b, memo)
		}
		other, found := aByKey[k]
		if !found {
			return false
		}
		if !equalPlanned(other, el, ap, plan, joinPath(pointer, "*"), memo) {
			return false
		}
	}
	return true
}

// equalPlanned implements spec.md §4.1's equal_planned short-circuit order
// for a pair of elements governed by ap: (1) hash filter over
// ap.HashFields, (2) compare every field named in ap.RequiredFields, (3)
// compare ap.PrimaryKey, (4) full structural equal. Each step rejects
// cheaply when it can; the final step is the same planAwareEqual recursion
// every other value goes through, so this only changes how fast an
// inequality is detected, never what counts as equal.
func equalPlanned(a, b any, ap *ArrayPlan, plan *Plan, pointer string, memo *equalityMemo) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if ap == nil || !aok || !bok {
		return planAwareEqual(a, b, plan, pointer, memo)
	}

	if len(ap.HashFields) > 0 && fieldHash(am, ap.HashFields) != fieldHash(bm, ap.HashFields) {
		return false
	}
	for f := range ap.RequiredFields {
		if !deepEqualMemo(am[f], bm[f], memo) {
			return false
		}
	}
	if ap.PrimaryKey != "" {
		ak, akOk := extractPrimaryKey(am, ap.PrimaryKey)
		bk, bkOk := extractPrimaryKey(bm, ap.PrimaryKey)
		if akOk != bkOk || ak != bk {
			return false
		}
	}
	return planAwareEqual(a, b, plan, pointer, memo)
}

// equalWithHint compares two object values using a cheap FNV-1a digest over
// a declared subset of fields before falling back to full deep equality.
// Used by the Myers LCS path (C4) when no ArrayPlan governs the element type;
// that caller passes no hash fields, so the comparison is a plain deep equal.
func equalWithHint(a, b any, hashFields []string, memo *equalityMemo) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return deepEqualMemo(a, b, memo)
	}
	if len(hashFields) == 0 {
		return deepEqualMemo(a, b, memo)
	}
	if fieldHash(am, hashFields) != fieldHash(bm, hashFields) {
		return false
	}
	return deepEqualMemo(a, b, memo)
}

// fieldHash computes FNV1a(concat_i(i ":" field_i "=" render(x[field_i]) "|")),
// treating an absent field as an empty string per spec.
func fieldHash(m map[string]any, fields []string) uint64 {
	h := fnv.New64a()
	for i, f := range fields {
		_, _ = h.Write([]byte(strconv.Itoa(i)))
		_, _ = h.Write([]byte(":"))
		_, _ = h.Write([]byte(f))
		_, _ = h.Write([]byte("="))
		if v, ok := m[f]; ok {
			_, _ = h.Write([]byte(canonicalRender(v)))
		}
		_, _ = h.Write([]byte("|"))
	}
	return h.Sum64()
}

// quickHash computes an FNV-1a digest of a canonical rendering of v, used to
// cheaply reject unequal containers before doing a full structural walk.
func quickHash(v any) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalRender(v)))
	return h.Sum64()
}

func memoKey(a, b uint64) [2]uint64 {
	if a <= b {
		return [2]uint64{a, b}
	}
	return [2]uint64{b, a}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
