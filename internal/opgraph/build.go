package opgraph

import (
	binder "github.com/hanpama/federon/internal/binder"
	schema "github.com/hanpama/federon/internal/schema"
)

// Build walks a BoundOperation's selection tree and emits the operation
// graph: one QueryField node per response-key group, fanned out to one
// ProvidableField node per FieldResolution the schema index recorded for
// that field, each wired to its owning Resolver node. Any Requires target
// missing as a sibling QueryField is synthesized as an EXTRA-flagged one,
// per the builder invariant that Requires may name fields the operation
// never selected.
func Build(s *schema.Schema, op *binder.BoundOperation) *Graph {
	g := &Graph{extras: map[extraKey]NodeID{}}
	root := g.addNode(Node{Kind: NodeRoot, Parent: NoNode, ParentType: op.RootType})
	g.Root = root

	buildSelection(g, s, op.RootType, op.Selection, root, "", nil)
	return g
}

// buildSelection fans sel out under parent. typeCondition/possibleTypes are
// non-empty only for the direct fields of a BoundConditionalSelection
// branch: they mark that the resulting QueryField only applies
// when the enclosing abstract field resolves to one of possibleTypes at
// runtime. Nested children are unmarked — their conditionality is already
// implied by their tagged ancestor.
func buildSelection(g *Graph, s *schema.Schema, parentType *schema.Type, sel *binder.BoundSelectionSet, parent NodeID, typeCondition string, possibleTypes []string) {
	if sel == nil {
		return
	}

	// Two passes: first materialize every direct QueryField (and register
	// it in g.extras) so a sibling's Requires set can find it regardless of
	// declaration order, then wire resolutions and recurse.
	type pendingField struct {
		group *binder.BoundFieldGroup
		qf    NodeID
	}
	var pending []pendingField

	for _, group := range sel.Groups {
		if group.Name == "__typename" {
			tn := g.addNode(Node{Kind: NodeQueryField, Parent: parent, ResponseName: group.ResponseName, ParentType: parentType, Bound: group,
				Flags:                  FlagTypename,
				TypeCondition:          typeCondition, ConditionPossibleTypes: possibleTypes})
			g.addEdge(EdgeTypenameField, parent, tn)
			continue
		}

		qf := g.addNode(Node{
			Kind:                   NodeQueryField,
			Parent:                 parent,
			ResponseName:           group.ResponseName,
			FieldDef:               group.FieldDef,
			Bound:                  group,
			ParentType:             parentType,
			TypeCondition:          typeCondition,
			ConditionPossibleTypes: possibleTypes,
			Flags:                  fieldFlags(s, group.FieldDef),
		})
		g.addEdge(EdgeField, parent, qf)
		if group.FieldDef != nil && parent != NoNode {
			g.extras[extraKey{parent: parent, name: group.FieldDef.Name}] = qf
		}
		pending = append(pending, pendingField{group: group, qf: qf})
	}

	for _, pf := range pending {
		group, qf := pf.group, pf.qf
		if group.FieldDef == nil {
			continue
		}
		for _, res := range group.FieldDef.Resolutions {
			addProvidableField(g, s, parent, qf, res)
		}

		if group.Selection != nil {
			childType := s.Types[schema.GetNamedType(group.FieldDef.Type)]
			buildSelection(g, s, childType, group.Selection, qf, "", nil)
		}
	}

	for _, cs := range sel.Conditional {
		condType := s.Types[cs.TypeCondition]
		buildSelection(g, s, condType, cs.Selection, parent, cs.TypeCondition, cs.PossibleTypes)
	}
}

// fieldFlags derives the QueryField flags that depend only on the schema
// field definition, not on what else the operation selected alongside it.
func fieldFlags(s *schema.Schema, fieldDef *schema.Field) QueryFieldFlag {
	if fieldDef == nil {
		return 0
	}
	var flags QueryFieldFlag
	if s.IsComposite(schema.GetNamedType(fieldDef.Type)) {
		flags |= FlagIsCompositeType
	}
	for _, res := range fieldDef.Resolutions {
		if r := s.ResolverByID(res.ResolverID); r != nil && r.Kind == schema.ResolverKindIntrospection {
			flags |= FlagProvidableByIntrospection
			break
		}
	}
	return flags
}

// addProvidableField adds one ProvidableField node for res, wired to its
// Resolver node, and a Requires edge to every field res.Requires names under
// parent — synthesizing an EXTRA sibling QueryField for any name the
// operation did not itself select (§4.2's builder invariant).
func addProvidableField(g *Graph, s *schema.Schema, parent NodeID, query NodeID, res *schema.FieldResolution) NodeID {
	pf := g.addNode(Node{
		Kind:       NodeProvidableField,
		Query:      query,
		ResolverID: res.ResolverID,
		Requires:   res.Requires,
		Provides:   res.Provides,
	})
	g.addEdge(EdgeCanProvide, query, pf)

	resolverNode := findOrAddResolverNode(g, s, res.ResolverID)
	g.addEdge(EdgeProvides, pf, resolverNode)
	if rn := g.Node(resolverNode); rn.Resolver != nil && rn.Resolver.Kind == schema.ResolverKindEntityLookup {
		g.addEdge(EdgeCreateChildResolver, pf, resolverNode)
	}

	if parent != NoNode {
		for _, name := range res.Requires.Names() {
			target := findOrSynthesizeSibling(g, s, parent, name, pf)
			g.addEdge(EdgeRequires, pf, target)
		}
	}
	return pf
}

// findOrSynthesizeSibling returns the QueryField named fieldName under
// parent's selection, reusing an operation-selected field with that name if
// one exists, else synthesizing (and memoizing) an EXTRA one carrying
// requiredBy as its matching requirement.
func findOrSynthesizeSibling(g *Graph, s *schema.Schema, parent NodeID, fieldName string, requiredBy NodeID) NodeID {
	for _, e := range g.OutEdges(parent, EdgeField) {
		if n := g.Node(e.To); n.FieldDef != nil && n.FieldDef.Name == fieldName {
			return e.To
		}
	}
	key := extraKey{parent: parent, name: fieldName}
	if id, ok := g.extras[key]; ok {
		return id
	}

	// The sibling is selected against the parent field's own return type,
	// not the type the parent field itself was selected against.
	parentType := g.Node(parent).ParentType
	if pn := g.Node(parent); pn.Kind == NodeQueryField && pn.FieldDef != nil {
		parentType = s.Types[schema.GetNamedType(pn.FieldDef.Type)]
	}
	var fieldDef *schema.Field
	if parentType != nil {
		fieldDef = parentType.FieldByName(fieldName)
	}
	extra := g.addNode(Node{
		Kind:                  NodeQueryField,
		Parent:                parent,
		ResponseName:          fieldName,
		FieldDef:              fieldDef,
		ParentType:            parentType,
		Flags:                 FlagExtra | fieldFlags(s, fieldDef),
		MatchingRequirementID: requiredBy,
	})
	g.extras[key] = extra
	g.addEdge(EdgeField, parent, extra)

	if fieldDef != nil {
		for _, res := range fieldDef.Resolutions {
			addProvidableField(g, s, parent, extra, res)
		}
	}
	return extra
}

// findOrAddResolverNode memoizes one Resolver node per ResolverID so the
// Steiner solver's "resolver already selected" cost rule can be keyed by
// node identity instead of re-comparing schema.ResolverID values.
func findOrAddResolverNode(g *Graph, s *schema.Schema, id schema.ResolverID) NodeID {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == NodeResolver && g.Nodes[i].Resolver != nil && g.Nodes[i].Resolver.ID == id {
			return g.Nodes[i].ID
		}
	}
	return g.addNode(Node{Kind: NodeResolver, Resolver: s.ResolverByID(id)})
}
