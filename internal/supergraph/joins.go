package supergraph

import (
	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

func rootResolverID(g schema.SubgraphID) schema.ResolverID {
	return schema.ResolverID("root:" + g)
}

func lookupResolverID(entityType string, g schema.SubgraphID) schema.ResolverID {
	return schema.ResolverID("lookup:" + entityType + ":" + g)
}

func (b *builder) ensureRootResolver(g schema.SubgraphID) {
	id := rootResolverID(g)
	if b.sch.Resolvers[id] == nil {
		b.sch.Resolvers[id] = &schema.Resolver{ID: id, Kind: schema.ResolverKindRootQuery, SubgraphID: g}
	}
}

// populateGraphs reads the join__Graph enum's values, each carrying a
// @join__graph(name: "...", url: "...") directive, into schema.Subgraph
// entries. The enum value's own name is the subgraph id referenced by
// every other join__*/composite__* directive's "graph" argument.
func (b *builder) populateGraphs() {
	var joinGraph *language.Definition
	for _, def := range b.doc.Definitions {
		if def.Name == "join__Graph" {
			joinGraph = def
			break
		}
	}
	if joinGraph == nil {
		b.addViolation(violationAt(nil, "supergraph document is missing the join__Graph enum"))
		return
	}
	for _, ev := range joinGraph.EnumValues {
		dir := directiveNamed(ev.Directives, "join__graph")
		if dir == nil {
			b.addViolation(violationAt(ev.Position, "join__Graph value %q has no @join__graph directive", ev.Name))
			continue
		}
		id := schema.SubgraphID(ev.Name)
		name, _ := b.stringArg(dir, "name")
		url, _ := b.stringArg(dir, "url")
		b.sch.Subgraphs[id] = &schema.Subgraph{ID: id, Name: name, URL: url}
	}
}

// populateJoinType reads @join__type(graph: G, key: "...") off every object
// and interface definition, recording subgraph membership and, when a key
// is given, the field set that subgraph uses to look the entity back up.
func (b *builder) populateJoinType() {
	for _, def := range b.doc.Definitions {
		t := b.sch.Types[def.Name]
		if t == nil {
			continue
		}
		for _, dir := range directivesNamed(def.Directives, "join__type") {
			graphName, ok := b.stringArg(dir, "graph")
			if !ok {
				continue
			}
			g := schema.SubgraphID(graphName)
			t.Subgraphs = append(t.Subgraphs, g)
			if key, ok := b.stringArg(dir, "key"); ok && key != "" {
				fs := mustParseFieldSet(b, key, dir.Position)
				if t.Keys == nil {
					t.Keys = make(map[schema.SubgraphID]schema.FieldSet)
				}
				t.Keys[g] = fs
			}
		}
	}
}

// populateJoinField reads @join__field(graph: G, requires: "...",
// provides: "...", external: Bool) off every field, recording one
// FieldResolution per subgraph able to resolve the field natively (i.e.
// without hopping in through an entity lookup — see populateEntityHops for
// that case). A field with no @join__field directives at all is resolvable
// by every subgraph its parent type belongs to.
func (b *builder) populateJoinField() {
	for _, def := range b.doc.Definitions {
		t := b.sch.Types[def.Name]
		if t == nil || (def.Kind != language.Object && def.Kind != language.Interface) {
			continue
		}
		for _, fd := range def.Fields {
			f := t.FieldByName(fd.Name)
			if f == nil {
				continue
			}
			joins := directivesNamed(fd.Directives, "join__field")
			if len(joins) == 0 {
				for _, g := range t.Subgraphs {
					b.ensureRootResolver(g)
					f.Resolutions = append(f.Resolutions, &schema.FieldResolution{ResolverID: rootResolverID(g)})
				}
				continue
			}
			for _, dir := range joins {
				graphName, ok := b.stringArg(dir, "graph")
				if !ok {
					continue
				}
				g := schema.SubgraphID(graphName)
				b.ensureRootResolver(g)
				res := &schema.FieldResolution{ResolverID: rootResolverID(g)}
				if requires, ok := b.stringArg(dir, "requires"); ok && requires != "" {
					res.Requires = mustParseFieldSet(b, requires, dir.Position)
				}
				if provides, ok := b.stringArg(dir, "provides"); ok && provides != "" {
					res.Provides = mustParseFieldSet(b, provides, dir.Position)
				}
				for _, a := range dir.Arguments {
					if a.Name == "external" && a.Value.Raw == "true" {
						res.External = true
					}
				}
				f.Resolutions = append(f.Resolutions, res)
			}
		}
	}
}
