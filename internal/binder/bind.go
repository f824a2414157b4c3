// Package binder validates a parsed operation against a schema.Schema and
// produces a BoundOperation: a selection tree with every field resolved to
// its schema.Field definition, every argument and variable coerced, and
// every directive/fragment already expanded into response-key groups.
// opgraph builds its operation graph directly from a BoundOperation instead
// of re-walking the AST.
package binder

import (
	"sort"

	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

// Limits bounds operation complexity so a single request cannot force the
// planner or executor to do unbounded work.
type Limits struct {
	MaxFields int // 0 means unlimited
}

// BoundOperation is a fully validated, response-ordered operation ready for
// opgraph construction.
type BoundOperation struct {
	Name      string
	Type      language.Operation
	RootType  *schema.Type
	Variables map[string]any
	Selection *BoundSelectionSet
}

// BoundSelectionSet preserves response-key order. Groups holds fields bound
// directly against parentType (always valid: an interface's own fields, or
// any field of a concrete object type, since a fragment narrowing an object
// type never changes which field definitions apply). Conditional holds one
// entry per distinct type condition that narrowed an abstract parentType to
// something more specific (a `(type_condition_possible_types, fields)` pair,
// before opgraph/shapes turn them into partitions) — fields
// inside those branches are bound against the narrower type, since an
// interface's Fields list does not carry a concrete implementer's own
// fields.
type BoundSelectionSet struct {
	Groups      []*BoundFieldGroup
	Conditional []*BoundConditionalSelection
}

// BoundConditionalSelection is every fragment (inline or spread) whose type
// condition narrowed an abstract parent type to TypeCondition, merged
// together and bound against that narrower type.
type BoundConditionalSelection struct {
	TypeCondition string
	// PossibleTypes is the intersection of TypeCondition's possible objects
	// with parentType's, sorted ascending — exactly the `PossibleTypes`
	// input internal/shapes.Condition expects.
	PossibleTypes []string
	Selection     *BoundSelectionSet
}

type BoundFieldGroup struct {
	ResponseName string
	Name         string // field name on the wire, e.g. "__typename"
	FieldDef     *schema.Field
	Arguments    map[string]any
	AST          []*language.Field // every merged field node, across fragments
	Selection    *BoundSelectionSet
}

// Bind validates doc/operationName against s and coerces variableValues.
func Bind(s *schema.Schema, doc *language.QueryDocument, operationName string, variableValues map[string]any, limits Limits) (*BoundOperation, []*Error) {
	op := findOperation(doc, operationName)
	if op == nil {
		return nil, []*Error{errf(UnknownType, 0, 0, "operation %q not found", operationName)}
	}

	var rootType *schema.Type
	switch op.Operation {
	case language.Query:
		rootType = s.GetQueryType()
	case language.Mutation:
		rootType = s.GetMutationType()
		if rootType == nil {
			return nil, []*Error{errf(NoMutationDefined, op.Position.Line, op.Position.Column, "schema defines no mutation type")}
		}
	case language.Subscription:
		rootType = s.GetSubscriptionType()
		if rootType == nil {
			return nil, []*Error{errf(NoSubscriptionDefined, op.Position.Line, op.Position.Column, "schema defines no subscription type")}
		}
	default:
		return nil, []*Error{errf(UnknownType, 0, 0, "unsupported operation type %q", op.Operation)}
	}
	if rootType == nil {
		return nil, []*Error{errf(UnknownType, 0, 0, "schema defines no query type")}
	}

	vars, errs := coerceVariableValues(s, op, variableValues)
	if len(errs) > 0 {
		return nil, errs
	}

	b := &binding{schema: s, doc: doc, vars: vars, used: map[string]bool{}, limits: limits}
	sel := b.bindSelectionSet(rootType, op.SelectionSet, map[string]bool{})
	if len(b.errs) > 0 {
		return nil, b.errs
	}
	if unused := checkUnusedVariables(op, b.used); len(unused) > 0 {
		return nil, unused
	}

	return &BoundOperation{
		Name:      op.Name,
		Type:      op.Operation,
		RootType:  rootType,
		Variables: vars,
		Selection: sel,
	}, nil
}

func findOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" && len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	for _, op := range doc.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

type binding struct {
	schema    *schema.Schema
	doc       *language.QueryDocument
	vars      map[string]any
	used      map[string]bool
	limits    Limits
	fieldCount int
	errs      []*Error
}

func (b *binding) fail(e *Error) { b.errs = append(b.errs, e) }

// bindSelectionSet runs the standard CollectFields algorithm (spec-mandated
// skip/include evaluation, fragment spread expansion, response-key
// grouping) and recursively binds composite fields. visitedFragments guards
// against FragmentCycle within this branch of the tree. When parentType is
// an interface or union, fragments that narrow it to something more
// specific are *not* flattened into groups (their fields can't be resolved
// against the abstract type); they are bound separately as Conditional
// branches instead.
func (b *binding) bindSelectionSet(parentType *schema.Type, selectionSet language.SelectionSet, visitedFragments map[string]bool) *BoundSelectionSet {
	groups := newGroupIndex()
	var cond *condIndex
	if isAbstractType(parentType) {
		cond = newCondIndex()
	}
	b.collect(parentType, selectionSet, groups, cond, visitedFragments)

	out := &BoundSelectionSet{}
	for _, g := range groups.order {
		out.Groups = append(out.Groups, b.finishGroup(parentType, g))
	}
	if cond != nil {
		for _, bucket := range cond.order {
			possible := possibleTypesIntersection(parentType, bucket.condType)
			if len(possible) == 0 {
				continue // disjoint condition; already reported by checkTypeCondition
			}
			out.Conditional = append(out.Conditional, &BoundConditionalSelection{
				TypeCondition: bucket.typeName,
				PossibleTypes: possible,
				Selection:     b.bindSelectionSet(bucket.condType, bucket.sub, bucket.visited),
			})
		}
	}
	return out
}

func isAbstractType(t *schema.Type) bool {
	return t != nil && (t.Kind == schema.TypeKindInterface || t.Kind == schema.TypeKindUnion)
}

// possibleTypesIntersection returns the sorted set of concrete object type
// names that satisfy both parentType and condType.
func possibleTypesIntersection(parentType, condType *schema.Type) []string {
	ps := possibleSet(parentType)
	cs := possibleSet(condType)
	if cs == nil {
		cs = map[string]bool{condType.Name: true}
	}
	if ps == nil {
		ps = map[string]bool{parentType.Name: true}
	}
	var out []string
	for name := range ps {
		if cs[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// condBucket accumulates every fragment narrowing an abstract parent type
// to the same concrete condition type, so their selections are bound
// together exactly once (mirrors fieldGroup's response-key merging, one
// level up).
type condBucket struct {
	typeName string
	condType *schema.Type
	sub      language.SelectionSet
	visited  map[string]bool
}

type condIndex struct {
	order []*condBucket
	index map[string]int
}

func newCondIndex() *condIndex { return &condIndex{index: map[string]int{}} }

func (c *condIndex) add(condType *schema.Type, sub language.SelectionSet, visited map[string]bool) {
	if i, ok := c.index[condType.Name]; ok {
		b := c.order[i]
		b.sub = append(b.sub, sub...)
		for k := range visited {
			b.visited[k] = true
		}
		return
	}
	merged := make(map[string]bool, len(visited))
	for k := range visited {
		merged[k] = true
	}
	c.index[condType.Name] = len(c.order)
	c.order = append(c.order, &condBucket{
		typeName: condType.Name,
		condType: condType,
		sub:      append(language.SelectionSet(nil), sub...),
		visited:  merged,
	})
}

type fieldGroup struct {
	responseName string
	fields       []*language.Field
}

type groupIndex struct {
	order []*fieldGroup
	index map[string]int
}

func newGroupIndex() *groupIndex { return &groupIndex{index: map[string]int{}} }

func (g *groupIndex) add(responseName string, f *language.Field) {
	if i, ok := g.index[responseName]; ok {
		g.order[i].fields = append(g.order[i].fields, f)
		return
	}
	g.index[responseName] = len(g.order)
	g.order = append(g.order, &fieldGroup{responseName: responseName, fields: []*language.Field{f}})
}

func (b *binding) collect(parentType *schema.Type, selectionSet language.SelectionSet, groups *groupIndex, cond *condIndex, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !b.shouldInclude(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			groups.add(responseName, sel)

		case *language.InlineFragment:
			if !b.shouldInclude(sel.Directives) {
				continue
			}
			if !b.checkTypeCondition(parentType, sel.TypeCondition, sel.Position.Line, sel.Position.Column) {
				continue
			}
			if b.narrows(parentType, sel.TypeCondition, cond) {
				b.route(parentType, sel.TypeCondition, sel.SelectionSet, cond, visitedFragments)
				continue
			}
			b.collect(parentType, sel.SelectionSet, groups, cond, visitedFragments)

		case *language.FragmentSpread:
			if !b.shouldInclude(sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				b.fail(errf(FragmentCycle, sel.Position.Line, sel.Position.Column, "fragment %q forms a cycle", sel.Name))
				continue
			}
			frag := b.doc.Fragments.ForName(sel.Name)
			if frag == nil {
				b.fail(errf(UnknownFragment, sel.Position.Line, sel.Position.Column, "unknown fragment %q", sel.Name))
				continue
			}
			if !b.checkTypeCondition(parentType, frag.TypeCondition, frag.Position.Line, frag.Position.Column) {
				continue
			}
			nested := map[string]bool{sel.Name: true}
			for k := range visitedFragments {
				nested[k] = true
			}
			if b.narrows(parentType, frag.TypeCondition, cond) {
				b.route(parentType, frag.TypeCondition, frag.SelectionSet, cond, nested)
				continue
			}
			b.collect(parentType, frag.SelectionSet, groups, cond, nested)
		}
	}
}

// narrows reports whether typeCondition genuinely narrows parentType to
// something more specific that must be bound separately: only possible (and
// only meaningful) when parentType is abstract and the condition names a
// different type.
func (b *binding) narrows(parentType *schema.Type, typeCondition string, cond *condIndex) bool {
	if cond == nil || typeCondition == "" || typeCondition == parentType.Name {
		return false
	}
	return b.schema.Types[typeCondition] != nil
}

func (b *binding) route(parentType *schema.Type, typeCondition string, sub language.SelectionSet, cond *condIndex, visited map[string]bool) {
	condType := b.schema.Types[typeCondition]
	cond.add(condType, sub, visited)
}

// checkTypeCondition validates a fragment's type condition names a known
// composite type whose possible-type set intersects parentType's.
func (b *binding) checkTypeCondition(parentType *schema.Type, typeCondition string, line, col int) bool {
	if typeCondition == "" {
		return true
	}
	condType := b.schema.Types[typeCondition]
	if condType == nil {
		b.fail(errf(UnknownType, line, col, "unknown type %q in fragment type condition", typeCondition))
		return false
	}
	if !b.schema.IsComposite(typeCondition) {
		b.fail(errf(InvalidTypeCondition, line, col, "fragment type condition %q is not an object, interface, or union", typeCondition))
		return false
	}
	if !typesIntersect(parentType, condType) {
		b.fail(errf(DisjointTypeCondition, line, col, "fragment on %q can never apply within %q", typeCondition, parentType.Name))
		return false
	}
	return true
}

// typesIntersect reports whether a and b could share a concrete object type
// at runtime.
func typesIntersect(a, b *schema.Type) bool {
	if a.Name == b.Name {
		return true
	}
	as, bs := possibleSet(a), possibleSet(b)
	if as == nil || bs == nil {
		return true // one side is not a composite type; no possible-type set to compare
	}
	for name := range as {
		if bs[name] {
			return true
		}
	}
	return false
}

func possibleSet(t *schema.Type) map[string]bool {
	switch t.Kind {
	case schema.TypeKindObject:
		return map[string]bool{t.Name: true}
	case schema.TypeKindInterface, schema.TypeKindUnion:
		m := make(map[string]bool, len(t.PossibleTypes))
		for _, p := range t.PossibleTypes {
			m[p] = true
		}
		return m
	default:
		return nil
	}
}

func (b *binding) shouldInclude(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v := b.directiveBoolArg(skip, "if"); v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if !b.directiveBoolArg(include, "if") {
			return false
		}
	}
	return true
}

func (b *binding) directiveBoolArg(d *language.Directive, argName string) bool {
	for _, arg := range d.Arguments {
		if arg.Name != argName {
			continue
		}
		val, refs := valueFromASTWithVars(arg.Value, b.vars)
		for _, r := range refs {
			b.used[r] = true
		}
		if bv, ok := val.(bool); ok {
			return bv
		}
	}
	return false
}

func (b *binding) finishGroup(parentType *schema.Type, g *fieldGroup) *BoundFieldGroup {
	b.fieldCount++
	if b.limits.MaxFields > 0 && b.fieldCount > b.limits.MaxFields {
		b.fail(errf(TooManyFields, 0, 0, "operation selects more than %d fields", b.limits.MaxFields))
	}

	first := g.fields[0]
	out := &BoundFieldGroup{ResponseName: g.responseName, Name: first.Name}

	if first.Name == "__typename" {
		return out
	}

	fieldDef := parentType.FieldByName(first.Name)
	if fieldDef == nil {
		b.fail(errf(UnknownField, first.Position.Line, first.Position.Column, "field %q does not exist on type %q", first.Name, parentType.Name))
		return out
	}
	out.FieldDef = fieldDef
	out.AST = g.fields

	args, aerrs := coerceArgumentValues(fieldDef, first.Arguments, b.vars, b.used, first.Position.Line, first.Position.Column)
	for _, e := range aerrs {
		b.fail(e)
	}
	out.Arguments = args

	namedType := schema.GetNamedType(fieldDef.Type)
	returnType := b.schema.Types[namedType]
	hasSelection := false
	for _, f := range g.fields {
		if len(f.SelectionSet) > 0 {
			hasSelection = true
		}
	}

	if returnType == nil {
		b.fail(errf(UnknownType, first.Position.Line, first.Position.Column, "unknown return type %q for field %q", namedType, first.Name))
		return out
	}

	switch returnType.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		if hasSelection {
			b.fail(errf(CannotHaveSelectionSet, first.Position.Line, first.Position.Column, "field %q of leaf type %q cannot have a selection set", first.Name, namedType))
		}
		return out
	case schema.TypeKindUnion:
		for _, f := range g.fields {
			for _, s := range f.SelectionSet {
				if ff, ok := s.(*language.Field); ok && ff.Name != "__typename" {
					b.fail(errf(UnionHaveNoFields, ff.Position.Line, ff.Position.Column, "cannot select field %q directly on union %q; use an inline fragment", ff.Name, namedType))
				}
			}
		}
	}

	if !hasSelection {
		b.fail(errf(LeafMustBeAScalarOrEnum, first.Position.Line, first.Position.Column, "field %q of composite type %q must have a selection set", first.Name, namedType))
		return out
	}

	merged := mergeSelectionSets(g.fields)
	out.Selection = b.bindSelectionSet(returnType, merged, map[string]bool{})
	return out
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
