package supergraph

import (
	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

var builtinScalars = []string{"String", "Int", "Float", "Boolean", "ID"}

func (b *builder) populateBuiltins() {
	for _, name := range builtinScalars {
		b.sch.Types[name] = &schema.Type{Name: name, Kind: schema.TypeKindScalar}
	}
}

// populateDefinitions creates an empty schema.Type skeleton for every named
// type in the document, so later passes can resolve cross-references (a
// field's return type, a union's members) regardless of definition order.
func (b *builder) populateDefinitions() {
	for _, def := range b.doc.Definitions {
		if isFederationBookkeepingType(def.Name) {
			continue
		}
		kind, ok := typeKindOf(def.Kind)
		if !ok {
			b.addViolation(violationAt(def.Position, "unsupported definition kind for %q", def.Name))
			continue
		}
		b.sch.Types[def.Name] = &schema.Type{
			Name:        def.Name,
			Kind:        kind,
			Description: def.Description,
		}
	}
}

// isFederationBookkeepingType reports whether name is a composer-internal
// type (the join__Graph enum, the link__Purpose enum, scoped "join__"/
// "composite__"/"link__" support types) that never becomes a gateway-visible
// schema.Type; its information is read directly off the AST during the join
// and composite passes instead.
func isFederationBookkeepingType(name string) bool {
	switch name {
	case "join__Graph", "join__FieldSet", "link__Purpose", "link__Import", "composite__Lookup":
		return true
	}
	return false
}

func typeKindOf(k language.DefinitionKind) (schema.TypeKind, bool) {
	switch k {
	case language.Object:
		return schema.TypeKindObject, true
	case language.Interface:
		return schema.TypeKindInterface, true
	case language.Union:
		return schema.TypeKindUnion, true
	case language.Scalar:
		return schema.TypeKindScalar, true
	case language.Enum:
		return schema.TypeKindEnum, true
	case language.InputObject:
		return schema.TypeKindInputObject, true
	default:
		return "", false
	}
}

// populateFields fills in each type's Fields/InputFields/EnumValues/
// Interfaces/PossibleTypes from the AST. The join__/composite__ directives
// are not materialized here; populateJoinType, populateJoinField and
// populateLookups read them.
func (b *builder) populateFields() {
	for _, def := range b.doc.Definitions {
		t := b.sch.Types[def.Name]
		if t == nil {
			continue
		}
		switch def.Kind {
		case language.Object, language.Interface:
			t.Interfaces = append(t.Interfaces, def.Interfaces...)
			for _, fd := range def.Fields {
				t.Fields = append(t.Fields, b.buildField(fd))
			}
		case language.Union:
			t.PossibleTypes = append(t.PossibleTypes, def.Types...)
		case language.Enum:
			for _, ev := range def.EnumValues {
				t.EnumValues = append(t.EnumValues, &schema.EnumValue{
					Name:        ev.Name,
					Description: ev.Description,
				})
			}
		case language.InputObject:
			for _, fd := range def.Fields {
				t.InputFields = append(t.InputFields, &schema.InputValue{
					Name:        fd.Name,
					Description: fd.Description,
					Type:        b.buildTypeRef(fd.Type),
				})
			}
		}
	}
	// An interface's possible types are every object type that lists it.
	for _, def := range b.doc.Definitions {
		if def.Kind != language.Object {
			continue
		}
		for _, iface := range def.Interfaces {
			it := b.sch.Types[iface]
			if it != nil {
				it.PossibleTypes = append(it.PossibleTypes, def.Name)
			}
		}
	}
}

func (b *builder) buildField(fd *language.FieldDefinition) *schema.Field {
	f := &schema.Field{
		Name:        fd.Name,
		Description: fd.Description,
		Type:        b.buildTypeRef(fd.Type),
	}
	for _, arg := range fd.Arguments {
		f.Arguments = append(f.Arguments, &schema.InputValue{
			Name:        arg.Name,
			Description: arg.Description,
			Type:        b.buildTypeRef(arg.Type),
		})
	}
	if dep := directiveNamed(fd.Directives, "deprecated"); dep != nil {
		f.IsDeprecated = true
		if reason, ok := b.stringArg(dep, "reason"); ok {
			f.DeprecationReason = reason
		}
	}
	return f
}

func (b *builder) buildTypeRef(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := &language.Type{NamedType: t.NamedType, Elem: t.Elem}
		return schema.NonNullType(b.buildTypeRef(inner))
	}
	if t.Elem != nil {
		return schema.ListType(b.buildTypeRef(t.Elem))
	}
	return schema.NamedType(t.NamedType)
}
