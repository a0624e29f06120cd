package schemadiff

import (
	"strings"

	"go.uber.org/zap"
)

// ArrayStrategy selects the per-array diff algorithm chosen by the plan
// compiler for a given pointer.
type ArrayStrategy int

const (
	StrategyLcs ArrayStrategy = iota
	StrategyPrimaryKey
	StrategyUnique
)

func (s ArrayStrategy) rank() int {
	switch s {
	case StrategyPrimaryKey:
		return 3
	case StrategyUnique:
		return 2
	default:
		return 1
	}
}

func (s ArrayStrategy) String() string {
	switch s {
	case StrategyPrimaryKey:
		return "primary_key"
	case StrategyUnique:
		return "unique"
	default:
		return "lcs"
	}
}

// ArrayPlan is the per-pointer decision record produced by CompilePlan.
type ArrayPlan struct {
	Strategy       ArrayStrategy
	PrimaryKey     string
	ItemSchema     map[string]any
	RequiredFields map[string]struct{}
	HashFields     []string
}

// fingerprint is a short canonical string identifying an ArrayPlan for cache
// keying, per spec.md's Fingerprint glossary entry.
func (ap *ArrayPlan) fingerprint() string {
	var b strings.Builder
	b.WriteString(ap.PrimaryKey)
	b.WriteByte(',')
	b.WriteString(strings.Join(ap.HashFields, "+"))
	b.WriteByte(',')
	b.WriteString(ap.Strategy.String())
	return b.String()
}

// Plan is an immutable mapping from normalized JSON Pointer to ArrayPlan,
// compiled once from a schema and safely shared across concurrent diffs.
type Plan struct {
	entries     map[string]*ArrayPlan
	Diagnostics []Diagnostic
}

// Entries returns a snapshot of every normalized pointer this Plan governs,
// mapped to its chosen ArrayPlan. Used by cmd/schemadiff's plan summary; the
// core engine itself only ever needs lookupArrayPlan's single-pointer form.
func (p *Plan) Entries() map[string]ArrayPlan {
	if p == nil {
		return nil
	}
	out := make(map[string]ArrayPlan, len(p.entries))
	for k, v := range p.entries {
		out[k] = *v
	}
	return out
}

func (p *Plan) fingerprint() string {
	if p == nil || len(p.entries) == 0 {
		return "∅"
	}
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sortStrings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.entries[k].fingerprint())
		b.WriteByte(';')
	}
	return b.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// lookupArrayPlan resolves the ArrayPlan governing pointer: exact match on
// the normalized pointer first, else the ancestor-wildcard form produced by
// an additionalProperties-originated schema branch (".../*").
func lookupArrayPlan(plan *Plan, pointer string) *ArrayPlan {
	if plan == nil {
		return nil
	}
	norm := normalizePointer(pointer)
	if ap, ok := plan.entries[norm]; ok {
		return ap
	}
	tokens := splitPointer(norm)
	for i := len(tokens) - 1; i >= 0; i-- {
		candidate := make([]string, len(tokens))
		copy(candidate, tokens)
		candidate[i] = "*"
		if ap, ok := plan.entries[joinPointer(candidate)]; ok {
			return ap
		}
	}
	return nil
}

// extractPrimaryKey renders el[key] as a string suitable for map lookup.
// Only scalar (string/number) primary keys are supported; anything else
// reports !ok. The keyed diff and the structured aggregator skip such
// elements; primaryKeyArraysEqual falls back to a deep equal of both arrays.
func extractPrimaryKey(el any, key string) (string, bool) {
	m, ok := el.(map[string]any)
	if !ok || key == "" {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch v.(type) {
	case string, float64:
		return canonicalRender(v), true
	default:
		return "", false
	}
}

// CompileOptions configures CompilePlan.
type CompileOptions struct {
	// PrimaryKeyMap overrides automatic candidate-key detection for specific
	// normalized pointers.
	PrimaryKeyMap map[string]string
	// BasePath restricts the resulting Plan to entries under this pointer,
	// stored with the prefix stripped.
	BasePath string
	// Logger receives SchemaReferenceUnresolved diagnostics as they occur.
	// Defaults to a no-op logger; never required.
	Logger *zap.Logger
}

type schemaCompiler struct {
	root    map[string]any
	opts    CompileOptions
	visited map[any]struct{}
	plan    map[string]*ArrayPlan
	diags   []Diagnostic
	logger  *zap.Logger
}

// CompilePlan walks a JSON Schema (decoded into plain map[string]any /
// []any / scalars) and produces a Plan mapping every array location to its
// chosen diff strategy. It never fails fatally: unresolvable constructs are
// skipped and recorded as diagnostics.
func CompilePlan(schema map[string]any, opts CompileOptions) (*Plan, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &schemaCompiler{
		root:    schema,
		opts:    opts,
		visited: make(map[any]struct{}),
		plan:    make(map[string]*ArrayPlan),
		logger:  logger,
	}
	c.walk(schema, "")

	entries := c.plan
	if opts.BasePath != "" {
		filtered := make(map[string]*ArrayPlan, len(entries))
		for k, v := range entries {
			if strings.HasPrefix(k, opts.BasePath) {
				stripped := strings.TrimPrefix(k, opts.BasePath)
				filtered[stripped] = v
			}
		}
		entries = filtered
	}

	return &Plan{entries: entries, Diagnostics: c.diags}, nil
}

// walk traverses a schema node at the given document pointer, recording
// array plans as it discovers them. node identity is tracked in c.visited
// to break $ref cycles; the identity is released on return so the same
// definition may be revisited from a different document path.
func (c *schemaCompiler) walk(node map[string]any, pointer string) {
	if node == nil {
		return
	}
	key := nodeIdentityKey(node)
	if _, cycling := c.visited[key]; cycling {
		return
	}
	c.visited[key] = struct{}{}
	defer delete(c.visited, key)

	if ref, ok := node["$ref"].(string); ok {
		resolved, ok := c.resolveRef(ref)
		if !ok {
			c.diags = append(c.diags, Diagnostic{Pointer: pointer, Reason: "SchemaReferenceUnresolved: " + ref})
			c.logger.Debug("unresolved schema reference", zap.String("pointer", pointer), zap.String("ref", ref))
			return
		}
		c.walk(resolved, pointer)
		return
	}

	for _, branchKey := range []string{"anyOf", "oneOf", "allOf"} {
		raw, ok := node[branchKey].([]any)
		if !ok {
			continue
		}
		seen := make(map[string]struct{}, len(raw))
		for _, b := range raw {
			bm, ok := b.(map[string]any)
			if !ok {
				continue
			}
			canon := canonicalRender(bm)
			if _, dup := seen[canon]; dup {
				continue
			}
			seen[canon] = struct{}{}
			c.walk(bm, pointer)
		}
	}

	typ, _ := node["type"].(string)

	if typ == "array" || node["items"] != nil {
		c.walkArray(node, pointer)
	}

	if props, ok := node["properties"].(map[string]any); ok {
		for k, v := range props {
			if vm, ok := v.(map[string]any); ok {
				c.walk(vm, joinPath(pointer, k))
			}
		}
	}

	if ap, ok := node["additionalProperties"].(map[string]any); ok {
		c.walk(ap, joinPath(pointer, "*"))
	}
}

func (c *schemaCompiler) walkArray(node map[string]any, pointer string) {
	itemsRaw, ok := node["items"]
	if !ok {
		return
	}
	itemSchema, ok := itemsRaw.(map[string]any)
	if !ok {
		return
	}
	if ref, ok := itemSchema["$ref"].(string); ok {
		resolved, ok := c.resolveRef(ref)
		if !ok {
			c.diags = append(c.diags, Diagnostic{Pointer: pointer, Reason: "SchemaReferenceUnresolved: " + ref})
			c.logger.Debug("unresolved item schema reference", zap.String("pointer", pointer), zap.String("ref", ref))
			return
		}
		itemSchema = resolved
	}

	ap := c.decideArrayStrategy(itemSchema, pointer)
	c.recordPlan(pointer, ap)

	c.walk(itemSchema, pointer)
}

// decideArrayStrategy implements the §4.3 strategy-selection algorithm.
func (c *schemaCompiler) decideArrayStrategy(itemSchema map[string]any, pointer string) *ArrayPlan {
	itemType, _ := itemSchema["type"].(string)
	if itemType == "string" || itemType == "number" || itemType == "boolean" || itemType == "integer" {
		return &ArrayPlan{Strategy: StrategyUnique, ItemSchema: itemSchema}
	}

	if override, ok := c.opts.PrimaryKeyMap[normalizePointer(pointer)]; ok {
		required, hash := c.collectFields(itemSchema)
		return &ArrayPlan{
			Strategy:       StrategyPrimaryKey,
			PrimaryKey:     override,
			ItemSchema:     itemSchema,
			RequiredFields: required,
			HashFields:     hash,
		}
	}

	if candidate, ok := c.findCandidateKey(itemSchema); ok {
		required, hash := c.collectFields(itemSchema)
		return &ArrayPlan{
			Strategy:       StrategyPrimaryKey,
			PrimaryKey:     candidate,
			ItemSchema:     itemSchema,
			RequiredFields: required,
			HashFields:     hash,
		}
	}

	return &ArrayPlan{Strategy: StrategyLcs, ItemSchema: itemSchema}
}

// candidateKeyNames is intentionally closed per spec.md's Open Questions:
// the list of probed field names never grows beyond id/name/port.
var candidateKeyNames = []string{"id", "name", "port"}

func (c *schemaCompiler) findCandidateKey(itemSchema map[string]any) (string, bool) {
	if k, ok := c.scanCandidateKey(itemSchema); ok {
		return k, true
	}
	for _, branchKey := range []string{"anyOf", "oneOf"} {
		branches, ok := itemSchema[branchKey].([]any)
		if !ok {
			continue
		}
		for _, b := range branches {
			bm, ok := b.(map[string]any)
			if !ok {
				continue
			}
			if k, ok := c.scanCandidateKey(bm); ok {
				return k, true
			}
		}
	}
	return "", false
}

func (c *schemaCompiler) scanCandidateKey(schema map[string]any) (string, bool) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return "", false
	}
	required := requiredSet(schema)
	for _, name := range candidateKeyNames {
		if _, isRequired := required[name]; !isRequired {
			continue
		}
		fieldSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		ft, _ := fieldSchema["type"].(string)
		if ft == "string" || ft == "number" || ft == "integer" {
			return name, true
		}
	}
	return "", false
}

func (c *schemaCompiler) collectFields(itemSchema map[string]any) (map[string]struct{}, []string) {
	required := requiredSet(itemSchema)
	props, _ := itemSchema["properties"].(map[string]any)

	reqList, _ := itemSchema["required"].([]any)
	hash := make([]string, 0, len(reqList))
	for _, r := range reqList {
		name, ok := r.(string)
		if !ok {
			continue
		}
		fieldSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		ft, _ := fieldSchema["type"].(string)
		if ft == "string" || ft == "number" || ft == "integer" {
			hash = append(hash, name)
		}
	}
	return required, hash
}

func requiredSet(schema map[string]any) map[string]struct{} {
	reqList, _ := schema["required"].([]any)
	out := make(map[string]struct{}, len(reqList))
	for _, r := range reqList {
		if name, ok := r.(string); ok {
			out[name] = struct{}{}
		}
	}
	return out
}

// recordPlan applies the §4.3 plan-merging rule when pointer already has an
// entry from a different schema branch.
func (c *schemaCompiler) recordPlan(pointer string, ap *ArrayPlan) {
	norm := normalizePointer(pointer)
	existing, ok := c.plan[norm]
	if !ok {
		c.plan[norm] = ap
		return
	}

	winner, loser := existing, ap
	if ap.Strategy.rank() > existing.Strategy.rank() {
		winner, loser = ap, existing
	} else if ap.Strategy.rank() == existing.Strategy.rank() {
		if existing.PrimaryKey == "" && ap.PrimaryKey != "" {
			winner, loser = ap, existing
		} else if len(ap.HashFields) > len(existing.HashFields) {
			winner, loser = ap, existing
		}
	}

	merged := &ArrayPlan{
		Strategy:       winner.Strategy,
		PrimaryKey:     winner.PrimaryKey,
		ItemSchema:     winner.ItemSchema,
		RequiredFields: unionSet(winner.RequiredFields, loser.RequiredFields),
		HashFields:     unionStrings(winner.HashFields, loser.HashFields),
	}
	c.plan[norm] = merged
}

func unionSet(a, b map[string]struct{}) map[string]struct{} {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// resolveRef resolves a local ("#/...") JSON Pointer reference against the
// compiled schema's root. Non-local references are reported to the caller
// as unresolved.
func (c *schemaCompiler) resolveRef(ref string) (map[string]any, bool) {
	if !strings.HasPrefix(ref, "#/") && ref != "#" {
		return nil, false
	}
	if ref == "#" {
		return c.root, true
	}
	tokens := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	var cur any = c.root
	for _, tok := range tokens {
		tok = unescapeToken(tok)
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[tok]
		if !ok {
			return nil, false
		}
		cur = next
	}
	m, ok := cur.(map[string]any)
	return m, ok
}

// nodeIdentityKey returns a cycle-detection key for a schema node. Plain Go
// maps have no stable address without unsafe, so identity is approximated
// by canonical content; two structurally identical but distinct branches
// will share a cycle guard, which is conservative (skips a bit more than
// strictly necessary) rather than unsound (it can never loop forever).
func nodeIdentityKey(node map[string]any) string {
	return canonicalRender(node)
}
