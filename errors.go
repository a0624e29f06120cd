package schemadiff

import "errors"

// Error taxonomy (spec.md §7), by kind rather than by concrete type. Callers
// use errors.Is against these sentinels; functions that fail wrap one of
// them with the offending pointer and a short reason, mirroring the
// teacher's fmt.Errorf("...: %w", err) wrapping style.
var (
	ErrInvalidPointer      = errors.New("schemadiff: invalid JSON pointer")
	ErrInvalidTarget       = errors.New("schemadiff: target_path does not name an array")
	ErrSchemaRefUnresolved = errors.New("schemadiff: non-local $ref")
	ErrDepthExceeded       = errors.New("schemadiff: recursion depth exceeded")
	ErrInternal            = errors.New("schemadiff: internal invariant violated")
)
