package executor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	schema "github.com/hanpama/federon/internal/schema"
	solution "github.com/hanpama/federon/internal/solution"
)

// buildRootDocument renders a root partition's outbound selection into a
// complete operation document the subgraph's own field names and argument
// literals are taken from directly: a root partition is just the subset of
// the client's own operation a single subgraph can answer.
func buildRootDocument(sch *schema.Schema, p *solution.Partition, isMutation bool) string {
	var b strings.Builder
	if isMutation {
		b.WriteString("mutation")
	} else {
		b.WriteString("query")
	}
	b.WriteByte(' ')
	writeSelectionSet(&b, sch, p.Roots)
	return b.String()
}

// buildEntityDocument batches every representation in reps into one
// subgraph call, one aliased root selection per representation, e.g.:
//
//	query { e0: productByUpc(upc:"A1"){name} e1: productByUpc(upc:"A2"){name} }
//
// reps[i] maps the subgraph lookup argument name (resolver.ArgumentMapping
// values) to the key value read off the i-th parent object.
func buildEntityDocument(sch *schema.Schema, resolver *schema.Resolver, p *solution.Partition, reps []map[string]any) string {
	var b strings.Builder
	b.WriteString("query {")
	for i, rep := range reps {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "e%d: %s(", i, resolver.LookupField)
		writeArguments(&b, sch, nil, rep)
		b.WriteString(") ")
		writeSelectionSet(&b, sch, p.Roots)
	}
	b.WriteString(" }")
	return b.String()
}

func writeSelectionSet(b *strings.Builder, sch *schema.Schema, nodes []*solution.SelectionNode) {
	b.WriteString("{ ")
	for _, n := range nodes {
		writeSelection(b, sch, n)
		b.WriteByte(' ')
	}
	b.WriteByte('}')
}

func writeSelection(b *strings.Builder, sch *schema.Schema, n *solution.SelectionNode) {
	if n.TypeCondition != "" {
		fmt.Fprintf(b, "... on %s { ", n.TypeCondition)
	}
	if n.ResponseName != n.Name {
		fmt.Fprintf(b, "%s: %s", n.ResponseName, n.Name)
	} else {
		b.WriteString(n.Name)
	}
	if len(n.Arguments) > 0 {
		b.WriteByte('(')
		writeArguments(b, sch, n.FieldDef, n.Arguments)
		b.WriteByte(')')
	}
	if len(n.Children) > 0 {
		b.WriteByte(' ')
		writeSelectionSet(b, sch, n.Children)
	}
	if n.TypeCondition != "" {
		b.WriteString(" }")
	}
}

func writeArguments(b *strings.Builder, sch *schema.Schema, fieldDef *schema.Field, args map[string]any) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%s: ", name)
		writeValue(b, sch, argType(fieldDef, name), args[name])
	}
}

func argType(fieldDef *schema.Field, name string) *schema.TypeRef {
	if fieldDef == nil {
		return nil
	}
	for _, a := range fieldDef.Arguments {
		if a.Name == name {
			return a.Type
		}
	}
	return nil
}

// writeValue renders v as a GraphQL literal. When t names an enum, v (a
// plain Go string after binder coercion) is written as a bare identifier
// instead of a quoted string; every other scalar/list/input-object shape
// coincides with JSON literal syntax closely enough that encoding/json
// renders it directly, except input-object keys, which GraphQL leaves
// unquoted.
func writeValue(b *strings.Builder, sch *schema.Schema, t *schema.TypeRef, v any) {
	if v == nil {
		b.WriteString("null")
		return
	}
	if named := schema.GetNamedType(t); named != "" {
		if ty := sch.Types[named]; ty != nil && ty.Kind == schema.TypeKindEnum {
			if s, ok := v.(string); ok {
				b.WriteString(s)
				return
			}
		}
	}
	switch val := v.(type) {
	case map[string]any:
		writeInputObject(b, sch, t, val)
	case []any:
		inner := schema.Unwrap(t)
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, sch, inner, item)
		}
		b.WriteByte(']')
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			b.WriteString("null")
			return
		}
		b.Write(encoded)
	}
}

func writeInputObject(b *strings.Builder, sch *schema.Schema, t *schema.TypeRef, obj map[string]any) {
	var fieldTypes map[string]*schema.TypeRef
	if named := schema.GetNamedType(t); named != "" {
		if ty := sch.Types[named]; ty != nil {
			fieldTypes = make(map[string]*schema.TypeRef, len(ty.InputFields))
			for _, f := range ty.InputFields {
				fieldTypes[f.Name] = f.Type
			}
		}
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%s:", name)
		writeValue(b, sch, fieldTypes[name], obj[name])
	}
	b.WriteByte('}')
}
