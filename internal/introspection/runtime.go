// Package introspection answers __schema and __type selections directly
// against the composed schema, without a subgraph round trip. The Resolver
// it exports implements executor.LocalResolver; ExtendSchema wires the
// introspection fields and their synthetic resolver into a schema.Schema so
// the operation graph and Steiner solver route them here like any other
// field.
package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/federon/internal/executor"
	schema "github.com/hanpama/federon/internal/schema"
	solution "github.com/hanpama/federon/internal/solution"
)

// resolverID names the synthetic resolver ExtendSchema attaches to the
// __schema/__type fields it adds to the Query type.
const resolverID schema.ResolverID = "introspection"

// ExtendSchema returns a copy of sch with introspection meta-types, the
// __schema/__type fields on the query root, and the Resolver entry those
// fields route through already wired in.
func ExtendSchema(sch *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        sch.QueryType,
		MutationType:     sch.MutationType,
		SubscriptionType: sch.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(sch.Types)+8),
		Directives:       sch.Directives,
		Subgraphs:        sch.Subgraphs,
		Description:      sch.Description,
		Resolvers:        make(map[schema.ResolverID]*schema.Resolver, len(sch.Resolvers)+1),
	}
	for name, t := range sch.Types {
		extended.Types[name] = t
	}
	for id, r := range sch.Resolvers {
		extended.Resolvers[id] = r
	}
	extended.Resolvers[resolverID] = &schema.Resolver{
		ID: resolverID, Kind: schema.ResolverKindIntrospection, SubgraphID: schema.IntrospectionSubgraph,
	}

	addIntrospectionTypes(extended)

	if queryType := extended.GetQueryType(); queryType != nil {
		withIntrospectionFields := &schema.Type{
			Name:        queryType.Name,
			Kind:        queryType.Kind,
			Description: queryType.Description,
			Fields:      append(append([]*schema.Field{}, queryType.Fields...), schemaField(), typeField()),
			Interfaces:  queryType.Interfaces,
			Subgraphs:   queryType.Subgraphs,
		}
		extended.Types[queryType.Name] = withIntrospectionFields
	}

	extended.Finalize()
	return extended
}

func schemaField() *schema.Field {
	return &schema.Field{
		Name:        "__schema",
		Description: "Access the current type schema of this server.",
		Type:        schema.NonNullType(schema.NamedType("__Schema")),
		Resolutions: []*schema.FieldResolution{{ResolverID: resolverID}},
	}
}

func typeField() *schema.Field {
	return &schema.Field{
		Name:        "__type",
		Description: "Request the type information of a single type.",
		Arguments: []*schema.InputValue{
			{Name: "name", Description: "The name of the type to look up.", Type: schema.NonNullType(schema.NamedType("String"))},
		},
		Type:        schema.NamedType("__Type"),
		Resolutions: []*schema.FieldResolution{{ResolverID: resolverID}},
	}
}

// addIntrospectionTypes adds the introspection types to the schema
func addIntrospectionTypes(sch *schema.Schema) {
	sch.Types["__Schema"] = schemaType()
	sch.Types["__Type"] = typeType()
	sch.Types["__Field"] = fieldType()
	sch.Types["__InputValue"] = inputValueType()
	sch.Types["__EnumValue"] = enumValueType()
	sch.Types["__Directive"] = directiveType()
	sch.Types["__TypeKind"] = typeKindEnum()
	sch.Types["__DirectiveLocation"] = directiveLocationEnum()
}

func schemaType() *schema.Type {
	return &schema.Type{
		Name:        "__Schema",
		Kind:        schema.TypeKindObject,
		Description: "A GraphQL Schema defines the capabilities of a GraphQL server.",
		Fields: []*schema.Field{
			{Name: "types", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Type"))))},
			{Name: "queryType", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "mutationType", Type: schema.NamedType("__Type")},
			{Name: "subscriptionType", Type: schema.NamedType("__Type")},
			{Name: "directives", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__Directive"))))},
			{Name: "description", Type: schema.NamedType("String")},
		},
	}
}

func typeType() *schema.Type {
	boolArgList := []*schema.InputValue{{Name: "includeDeprecated", Type: schema.NamedType("Boolean"), DefaultValue: false}}
	return &schema.Type{
		Name:        "__Type",
		Kind:        schema.TypeKindObject,
		Description: "The fundamental unit of any GraphQL Schema is the type.",
		Fields: []*schema.Field{
			{Name: "kind", Type: schema.NonNullType(schema.NamedType("__TypeKind"))},
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "fields", Arguments: boolArgList, Type: schema.ListType(schema.NonNullType(schema.NamedType("__Field")))},
			{Name: "interfaces", Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type")))},
			{Name: "possibleTypes", Type: schema.ListType(schema.NonNullType(schema.NamedType("__Type")))},
			{Name: "enumValues", Arguments: boolArgList, Type: schema.ListType(schema.NonNullType(schema.NamedType("__EnumValue")))},
			{Name: "inputFields", Arguments: boolArgList, Type: schema.ListType(schema.NonNullType(schema.NamedType("__InputValue")))},
			{Name: "ofType", Type: schema.NamedType("__Type")},
			{Name: "specifiedByURL", Type: schema.NamedType("String")},
			{Name: "isOneOf", Type: schema.NamedType("Boolean")},
		},
	}
}

func fieldType() *schema.Type {
	return &schema.Type{
		Name: "__Field",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "args", Arguments: []*schema.InputValue{{Name: "includeDeprecated", Type: schema.NamedType("Boolean"), DefaultValue: false}}, Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue"))))},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func inputValueType() *schema.Type {
	return &schema.Type{
		Name: "__InputValue",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "type", Type: schema.NonNullType(schema.NamedType("__Type"))},
			{Name: "defaultValue", Type: schema.NamedType("String")},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func enumValueType() *schema.Type {
	return &schema.Type{
		Name: "__EnumValue",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isDeprecated", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "deprecationReason", Type: schema.NamedType("String")},
		},
	}
}

func directiveType() *schema.Type {
	return &schema.Type{
		Name: "__Directive",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "description", Type: schema.NamedType("String")},
			{Name: "isRepeatable", Type: schema.NonNullType(schema.NamedType("Boolean"))},
			{Name: "locations", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__DirectiveLocation"))))},
			{Name: "args", Arguments: []*schema.InputValue{{Name: "includeDeprecated", Type: schema.NamedType("Boolean"), DefaultValue: false}}, Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("__InputValue"))))},
		},
	}
}

func typeKindEnum() *schema.Type {
	return &schema.Type{
		Name: "__TypeKind",
		Kind: schema.TypeKindEnum,
		EnumValues: []*schema.EnumValue{
			{Name: "SCALAR"}, {Name: "OBJECT"}, {Name: "INTERFACE"}, {Name: "UNION"},
			{Name: "ENUM"}, {Name: "INPUT_OBJECT"}, {Name: "LIST"}, {Name: "NON_NULL"},
		},
	}
}

func directiveLocationEnum() *schema.Type {
	return &schema.Type{
		Name: "__DirectiveLocation",
		Kind: schema.TypeKindEnum,
		EnumValues: []*schema.EnumValue{
			{Name: "QUERY"}, {Name: "MUTATION"}, {Name: "SUBSCRIPTION"}, {Name: "FIELD"},
			{Name: "FRAGMENT_DEFINITION"}, {Name: "FRAGMENT_SPREAD"}, {Name: "INLINE_FRAGMENT"},
			{Name: "VARIABLE_DEFINITION"}, {Name: "SCHEMA"}, {Name: "SCALAR"}, {Name: "OBJECT"},
			{Name: "FIELD_DEFINITION"}, {Name: "ARGUMENT_DEFINITION"}, {Name: "INTERFACE"},
			{Name: "UNION"}, {Name: "ENUM"}, {Name: "ENUM_VALUE"}, {Name: "INPUT_OBJECT"},
			{Name: "INPUT_FIELD_DEFINITION"},
		},
	}
}

// Resolver answers the Introspection subgraph's partitions: a selection tree
// rooted at __schema or __type, resolved directly against the schema.Schema
// Go value rather than over the wire.
type Resolver struct {
	schema *schema.Schema
}

func NewResolver(sch *schema.Schema) *Resolver { return &Resolver{schema: sch} }

// Resolve implements executor.LocalResolver.
func (ir *Resolver) Resolve(ctx context.Context, roots []*solution.SelectionNode) (any, []executor.GraphQLError) {
	out := map[string]any{}
	for _, root := range roots {
		switch root.Name {
		case "__schema":
			out[root.ResponseName] = resolveNode(ir.schema, ir.schema, root.Children)
		case "__type":
			name, _ := root.Arguments["name"].(string)
			t := ir.schema.Types[name]
			if t == nil {
				out[root.ResponseName] = nil
				continue
			}
			out[root.ResponseName] = resolveNode(ir.schema, t, root.Children)
		case "__typename":
			out[root.ResponseName] = ir.schema.QueryType
		}
	}
	return out, nil
}

// resolveNode resolves every child selection against source, returning a
// map[string]any suitable for merging straight into the response tree.
func resolveNode(sch *schema.Schema, source any, children []*solution.SelectionNode) map[string]any {
	out := make(map[string]any, len(children))
	for _, c := range children {
		if c.Name == "__typename" {
			out[c.ResponseName] = typeNameOf(source)
			continue
		}
		v, ok := resolveField(sch, source, c.Name, c.Arguments)
		out[c.ResponseName] = shapeValue(sch, v, ok, c.Children)
	}
	return out
}

// shapeValue recurses resolveNode over whatever resolveField returned:
// nil passes through, a slice maps element-wise, anything else (a nested
// *schema.Type/*schema.Field/... or a scalar) resolves once more if it has
// children, or is returned as-is for a leaf.
func shapeValue(sch *schema.Schema, v any, ok bool, children []*solution.SelectionNode) any {
	if !ok || v == nil {
		return nil
	}
	if len(children) == 0 {
		return derefScalar(v)
	}
	switch vals := v.(type) {
	case []*schema.Type:
		out := make([]any, len(vals))
		for i, t := range vals {
			out[i] = resolveNode(sch, t, children)
		}
		return out
	case []*schema.Field:
		out := make([]any, len(vals))
		for i, f := range vals {
			out[i] = resolveNode(sch, f, children)
		}
		return out
	case []*schema.InputValue:
		out := make([]any, len(vals))
		for i, iv := range vals {
			out[i] = resolveNode(sch, iv, children)
		}
		return out
	case []*schema.EnumValue:
		out := make([]any, len(vals))
		for i, ev := range vals {
			out[i] = resolveNode(sch, ev, children)
		}
		return out
	case []*schema.Directive:
		out := make([]any, len(vals))
		for i, d := range vals {
			out[i] = resolveNode(sch, d, children)
		}
		return out
	default:
		return resolveNode(sch, v, children)
	}
}

func derefScalar(v any) any {
	switch s := v.(type) {
	case *string:
		if s == nil {
			return nil
		}
		return *s
	default:
		return v
	}
}

func typeNameOf(source any) string {
	switch source.(type) {
	case *schema.Schema:
		return "__Schema"
	case *schema.Type:
		return "__Type"
	case *schema.TypeRef:
		return "__Type"
	case *schema.Field:
		return "__Field"
	case *schema.InputValue:
		return "__InputValue"
	case *schema.EnumValue:
		return "__EnumValue"
	case *schema.Directive:
		return "__Directive"
	default:
		return ""
	}
}

// resolveField dispatches a single field lookup by the Go type of source,
// mirroring the __Schema/__Type/... object types defined above.
func resolveField(sch *schema.Schema, source any, field string, args map[string]any) (any, bool) {
	switch src := source.(type) {
	case *schema.Schema:
		return resolveSchemaField(src, field)
	case *schema.Type:
		return resolveTypeField(sch, src, field, args)
	case *schema.TypeRef:
		return resolveTypeRefField(sch, src, field, args)
	case *schema.Field:
		return resolveFieldField(src, field, args)
	case *schema.InputValue:
		return resolveInputValueField(src, field)
	case *schema.EnumValue:
		return resolveEnumValueField(src, field)
	case *schema.Directive:
		return resolveDirectiveField(src, field, args)
	}
	return nil, false
}

func resolveSchemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		return resolveSchemaTypes(sch), true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		return sch.GetMutationType(), true
	case "subscriptionType":
		return sch.GetSubscriptionType(), true
	case "directives":
		return resolveSchemaDirectives(sch), true
	case "description":
		return sch.Description, true
	}
	return nil, false
}

func resolveSchemaTypes(sch *schema.Schema) []*schema.Type {
	out := make([]*schema.Type, 0, len(sch.Types))
	for _, t := range sch.Types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveSchemaDirectives(sch *schema.Schema) []*schema.Directive {
	out := make([]*schema.Directive, 0, len(sch.Directives))
	for _, d := range sch.Directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return t.Description, true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "fields":
		return resolveTypeFields(t, args), true
	case "interfaces":
		return resolveTypeInterfaces(sch, t), true
	case "possibleTypes":
		return resolveTypePossibleTypes(sch, t), true
	case "enumValues":
		return resolveTypeEnumValues(t, args), true
	case "inputFields":
		return resolveTypeInputFields(t, args), true
	case "isOneOf":
		return t.OneOf, true
	case "ofType":
		// Wrapper types (LIST/NON_NULL) are represented as TypeRef nodes, so
		// a named type's own ofType is always null.
		return nil, true
	}
	return nil, false
}

func resolveTypeInterfaces(sch *schema.Schema, t *schema.Type) []*schema.Type {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	out := make([]*schema.Type, 0, len(t.Interfaces))
	for _, name := range t.Interfaces {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveTypePossibleTypes(sch *schema.Schema, t *schema.Type) []*schema.Type {
	if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
		return nil
	}
	pts := make([]*schema.Type, 0, len(t.PossibleTypes))
	for _, name := range t.PossibleTypes {
		if def := sch.Types[name]; def != nil {
			pts = append(pts, def)
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Name < pts[j].Name })
	return pts
}

func resolveTypeFields(t *schema.Type, args map[string]any) []*schema.Field {
	if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.Field{}
	for _, f := range t.Fields {
		if !includeDeprecated && f.IsDeprecated {
			continue
		}
		if strings.HasPrefix(f.Name, "__") {
			continue // meta-fields such as __schema/__type are not listed
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveTypeEnumValues(t *schema.Type, args map[string]any) []*schema.EnumValue {
	if t.Kind != schema.TypeKindEnum {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.EnumValue{}
	for _, ev := range t.EnumValues {
		if !includeDeprecated && ev.IsDeprecated {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveTypeInputFields(t *schema.Type, args map[string]any) []*schema.InputValue {
	if t.Kind != schema.TypeKindInputObject {
		return nil
	}
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.InputValue{}
	for _, iv := range t.InputFields {
		if !includeDeprecated && iv.IsDeprecated {
			continue
		}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveTypeRefField(sch *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(tr.Kind), true
	case "name":
		if schema.IsNonNull(tr) || schema.IsList(tr) {
			return nil, true
		}
		return tr.Named, true
	case "ofType":
		if tr.Kind == schema.TypeRefKindNonNull || tr.Kind == schema.TypeRefKindList {
			return tr.OfType, true
		}
		return nil, true
	default:
		if name := schema.GetNamedType(tr); name != "" {
			if def := sch.Types[name]; def != nil {
				return resolveTypeField(sch, def, field, args)
			}
		}
		return nil, true
	}
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return f.Description, true
	case "args":
		return resolveFieldArgs(f, args), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return resolveDeprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func resolveFieldArgs(f *schema.Field, args map[string]any) []*schema.InputValue {
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.InputValue{}
	for _, a := range f.Arguments {
		if !includeDeprecated && a.IsDeprecated {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveInputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return a.Description, true
	case "type":
		return a.Type, true
	case "defaultValue":
		if a.DefaultValue == nil {
			return nil, true
		}
		v := fmt.Sprintf("%v", a.DefaultValue)
		return v, true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return resolveDeprecationReason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return ev.Description, true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return resolveDeprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return d.Description, true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := make([]string, len(d.Locations))
		copy(locs, d.Locations)
		sort.Strings(locs)
		return locs, true
	case "args":
		return resolveDirectiveArgs(d, args), true
	}
	return nil, false
}

func resolveDirectiveArgs(d *schema.Directive, args map[string]any) []*schema.InputValue {
	includeDeprecated := boolArg(args, "includeDeprecated", false)
	out := []*schema.InputValue{}
	for _, a := range d.Arguments {
		if !includeDeprecated && a.IsDeprecated {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func resolveDeprecationReason(isDeprecated bool, reason string) any {
	if !isDeprecated {
		return nil
	}
	return reason
}

func boolArg(args map[string]any, name string, def bool) bool {
	if args == nil {
		return def
	}
	if v, ok := args[name]; ok {
		if b, ok2 := v.(bool); ok2 {
			return b
		}
	}
	return def
}
