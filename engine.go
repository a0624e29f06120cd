package schemadiff

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultMaxDepth = 512

// undefined represents "value not present at this path", distinct from a
// JSON null. It only ever appears as an internal sentinel inside diffValue;
// it is never part of a caller-visible document or patch value.
type undefined struct{}

var isUndefined = undefined{}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	// MaxDepth bounds recursion; 0 selects the spec default of 512.
	MaxDepth int
	// PathMapCacheSize bounds the shared PathMap LRU; 0 selects a sane default.
	PathMapCacheSize int
	// FormatCacheSize bounds the shared formatted-diff LRU; 0 selects ~1000
	// per spec.md §4.6.
	FormatCacheSize int
	// Logger receives DepthExceeded and similar diagnostics. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// Engine holds the caches that are safe to share across many CreatePatch /
// StructuredDiff calls: a PathMap LRU and a formatted-diff LRU, both
// lock-guarded internally by the underlying hashicorp/golang-lru
// implementation. Per-call state (the equality memo, the depth counter)
// never lives here.
type Engine struct {
	maxDepth   int
	pathMapLRU *lru.Cache[string, *PathMap]
	formatLRU  *lru.Cache[string, *ChildBlock]
	logger     *zap.Logger
}

// NewEngine constructs an Engine ready to serve concurrent calls, each of
// which should use its own Prepare/CreatePatch invocation rather than share
// in-flight state.
func NewEngine(opts EngineOptions) (*Engine, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	pathMapSize := opts.PathMapCacheSize
	if pathMapSize <= 0 {
		pathMapSize = 256
	}
	formatSize := opts.FormatCacheSize
	if formatSize <= 0 {
		formatSize = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pathMapLRU, err := lru.New[string, *PathMap](pathMapSize)
	if err != nil {
		return nil, fmt.Errorf("schemadiff: failed to allocate PathMap cache: %w", err)
	}
	formatLRU, err := lru.New[string, *ChildBlock](formatSize)
	if err != nil {
		return nil, fmt.Errorf("schemadiff: failed to allocate format cache: %w", err)
	}

	return &Engine{
		maxDepth:   maxDepth,
		pathMapLRU: pathMapLRU,
		formatLRU:  formatLRU,
		logger:     logger,
	}, nil
}

// diffContext carries per-call state through one CreatePatch invocation:
// the equality memo and the depth counter are never shared across calls.
type diffContext struct {
	engine      *Engine
	plan        *Plan
	memo        *equalityMemo
	ops         Patch
	diagnostics []Diagnostic
}

// CreatePatch computes the patch transforming src into dst, guided by plan.
// plan may be nil, in which case every array falls back to Myers LCS.
func (e *Engine) CreatePatch(src, dst any, plan *Plan) (Patch, error) {
	ctx := &diffContext{engine: e, plan: plan, memo: newEqualityMemo()}
	srcN, err := normalizeJSONInput(src)
	if err != nil {
		return nil, fmt.Errorf("schemadiff: normalize src: %w", err)
	}
	dstN, err := normalizeJSONInput(dst)
	if err != nil {
		return nil, fmt.Errorf("schemadiff: normalize dst: %w", err)
	}
	ctx.diffValue(srcN, dstN, "", 0)
	return ctx.ops, nil
}

// New mirrors the teacher's top-level convenience wrapper: compute an
// unplanned patch (every array via Myers LCS) between two arbitrary values.
func New(a, b any) (Patch, error) {
	e, err := NewEngine(EngineOptions{})
	if err != nil {
		return nil, err
	}
	return e.CreatePatch(a, b, nil)
}

func (c *diffContext) emit(op Operation) {
	c.ops = append(c.ops, op)
}

// diffValue implements §4.5: the recursive object/array comparator.
func (c *diffContext) diffValue(src, dst any, path string, depth int) {
	if depth > c.engine.maxDepth {
		c.emit(Operation{Op: Replace, Path: path, Value: dst, OldValue: src})
		c.diagnostics = append(c.diagnostics, Diagnostic{Pointer: path, Reason: "DepthExceeded"})
		c.engine.logger.Warn("depth exceeded, degrading to replace", zap.String("path", path), zap.Int("depth", depth))
		return
	}

	_, srcUndef := src.(undefined)
	_, dstUndef := dst.(undefined)

	if srcUndef && dstUndef {
		return
	}
	if srcUndef {
		c.emit(Operation{Op: Add, Path: path, Value: dst})
		return
	}
	if dstUndef {
		c.emit(Operation{Op: Remove, Path: path, OldValue: src})
		return
	}

	srcArr, srcIsArr := src.([]any)
	dstArr, dstIsArr := dst.([]any)
	srcMap, srcIsMap := src.(map[string]any)
	dstMap, dstIsMap := dst.(map[string]any)

	switch {
	case srcIsArr && dstIsArr:
		c.diffArray(srcArr, dstArr, path, depth)
		return
	case srcIsMap && dstIsMap:
		c.diffObject(srcMap, dstMap, path, depth)
		return
	case srcIsArr != dstIsArr, srcIsMap != dstIsMap:
		c.emit(Operation{Op: Replace, Path: path, Value: dst, OldValue: src})
		return
	}

	if deepEqualMemo(src, dst, c.memo) {
		return
	}
	c.emit(Operation{Op: Replace, Path: path, Value: dst, OldValue: src})
}

func (c *diffContext) diffObject(src, dst map[string]any, path string, depth int) {
	keys := sortedKeys(src)
	seen := make(map[string]struct{}, len(src))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range sortedKeys(dst) {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		var sv, dv any = isUndefined, isUndefined
		if v, ok := src[k]; ok {
			sv = v
		}
		if v, ok := dst[k]; ok {
			dv = v
		}
		if sv == isUndefined && dv == isUndefined {
			continue
		}
		c.diffValue(sv, dv, joinPath(path, k), depth+1)
	}
}

func (c *diffContext) diffArray(src, dst []any, path string, depth int) {
	ap := lookupArrayPlan(c.plan, path)
	if ap == nil {
		c.diffArrayLCS(src, dst, path, nil, depth)
		return
	}
	switch ap.Strategy {
	case StrategyPrimaryKey:
		c.diffArrayPrimaryKey(src, dst, path, ap, depth)
	case StrategyUnique:
		c.diffArrayUnique(src, dst, path, depth)
	default:
		c.diffArrayLCS(src, dst, path, ap, depth)
	}
}
