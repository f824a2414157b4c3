package supergraph

import (
	"strings"

	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

// populateLookups reads @composite__lookup(graph: G, key: "...", map: [...])
// off entity-lookup fields (conventionally Query-type fields such as
// productByUpc) into ENTITY_LOOKUP resolvers, the resolvers the operation
// graph uses to hop into an entity type from a subgraph that does not own
// it natively.
func (b *builder) populateLookups() {
	for _, def := range b.doc.Definitions {
		t := b.sch.Types[def.Name]
		if t == nil || (def.Kind != language.Object && def.Kind != language.Interface) {
			continue
		}
		for _, fd := range def.Fields {
			dir := directiveNamed(fd.Directives, "composite__lookup")
			if dir == nil {
				continue
			}
			f := t.FieldByName(fd.Name)
			if f == nil {
				continue
			}
			graphName, ok := b.stringArg(dir, "graph")
			if !ok {
				continue
			}
			g := schema.SubgraphID(graphName)
			entityType := schema.GetNamedType(f.Type)

			var keyFields schema.FieldSet
			if key, ok := b.stringArg(dir, "key"); ok && key != "" {
				keyFields = mustParseFieldSet(b, key, dir.Position)
			} else if et := b.sch.Types[entityType]; et != nil {
				keyFields = et.Keys[g]
			}

			mapping := b.buildArgumentMapping(dir, keyFields, fd)

			id := lookupResolverID(entityType, g)
			b.sch.Resolvers[id] = &schema.Resolver{
				ID:              id,
				Kind:            schema.ResolverKindEntityLookup,
				SubgraphID:      g,
				EntityType:      entityType,
				KeyFields:       keyFields,
				ArgumentMapping: mapping,
				LookupField:     fd.Name,
			}

			b.checkIsWrapping(fd, entityType)
		}
	}
}

// buildArgumentMapping reads the `map` argument ("keyField:argName" pairs)
// when present; otherwise it falls back to matching a single key field to
// the lookup field's single argument, which covers the common
// productByUpc(upc: String!) shape without requiring an explicit map.
func (b *builder) buildArgumentMapping(dir *language.Directive, keyFields schema.FieldSet, fd *language.FieldDefinition) map[string]string {
	if pairs := b.stringListArg(dir, "map"); len(pairs) > 0 {
		out := make(map[string]string, len(pairs))
		for _, p := range pairs {
			kv := strings.SplitN(p, ":", 2)
			if len(kv) != 2 {
				b.addViolation(violationAt(dir.Position, "invalid map entry %q on @composite__lookup", p))
				continue
			}
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
		return out
	}
	names := keyFields.Names()
	if len(names) == 1 && len(fd.Arguments) == 1 {
		return map[string]string{names[0]: fd.Arguments[0].Name}
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = n
	}
	return out
}

// checkIsWrapping validates the supplemented @composite__is(field: "...")
// annotation some lookup arguments carry: the argument's wire type must be
// assignable from the entity field it maps into, or a composer bug ships a
// lookup the gateway can build a request for but the subgraph will reject.
func (b *builder) checkIsWrapping(fd *language.FieldDefinition, entityType string) {
	et := b.sch.Types[entityType]
	if et == nil {
		return
	}
	for _, arg := range fd.Arguments {
		isDir := directiveNamed(arg.Directives, "composite__is")
		if isDir == nil {
			continue
		}
		fieldName, ok := b.stringArg(isDir, "field")
		if !ok {
			continue
		}
		ef := et.FieldByName(fieldName)
		if ef == nil {
			b.addViolation(violationAt(isDir.Position, "@composite__is references unknown field %q on %s", fieldName, entityType))
			continue
		}
		argType := b.buildTypeRef(arg.Type)
		if !wrappingCompatible(ef.Type, argType) {
			b.addViolation(violationAt(isDir.Position, "Incompatible wrapping, cannot map %s (%s) into %s (%s)",
				fieldName, renderWireType(ef.Type), arg.Name, renderWireType(argType)))
		}
	}
}

// wrappingCompatible reports whether a value of type src can be passed
// where dst is expected: identical list nesting depth, and dst only
// requires Non-Null where src already guarantees it.
func wrappingCompatible(src, dst *schema.TypeRef) bool {
	for {
		srcNonNull := src.Kind == schema.TypeRefKindNonNull
		dstNonNull := dst.Kind == schema.TypeRefKindNonNull
		if srcNonNull {
			src = src.OfType
		}
		if dstNonNull {
			dst = dst.OfType
		}
		if dstNonNull && !srcNonNull {
			return false
		}
		srcList := src.Kind == schema.TypeRefKindList
		dstList := dst.Kind == schema.TypeRefKindList
		if srcList != dstList {
			return false
		}
		if !srcList {
			return true
		}
		src, dst = src.OfType, dst.OfType
	}
}

func renderWireType(t *schema.TypeRef) string {
	switch t.Kind {
	case schema.TypeRefKindNonNull:
		return renderWireType(t.OfType) + "!"
	case schema.TypeRefKindList:
		return "[" + renderWireType(t.OfType) + "]"
	default:
		return t.Named
	}
}

// populateEntityHops gives every field a subgraph G natively resolves a
// second, hop-in FieldResolution through G's entity-lookup resolver, so the
// Steiner solver can reach that field either by already being in G's
// response tree or by hopping into the entity from elsewhere using its key.
func (b *builder) populateEntityHops() {
	for _, t := range b.sch.Types {
		if t.Keys == nil {
			continue
		}
		for g, keyFields := range t.Keys {
			id := lookupResolverID(t.Name, g)
			if b.sch.Resolvers[id] == nil {
				continue
			}
			rootID := rootResolverID(g)
			for _, f := range t.Fields {
				nativeHere := false
				for _, res := range f.Resolutions {
					if res.ResolverID == rootID {
						nativeHere = true
						break
					}
				}
				if nativeHere {
					f.Resolutions = append(f.Resolutions, &schema.FieldResolution{ResolverID: id, Requires: keyFields})
				}
			}
		}
	}
}
